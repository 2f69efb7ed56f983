package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
)

const matchColumns = `m.id, m.transaction_id, m.receipt_id, m.match_confidence, m.match_status,
	m.user_confirmed, m.created_at, m.updated_at`

// InsertMatchIfAbsent creates m unless the pair already has a row
func (s *Storage) InsertMatchIfAbsent(ctx context.Context, m *expense.Match) (bool, error) {
	if m.Status == "" {
		m.Status = expense.MatchPending
	}
	now := s.now()

	var created bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
		INSERT INTO matches
		(transaction_id, receipt_id, match_confidence, match_status, user_confirmed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (transaction_id, receipt_id) DO NOTHING
		`,
			m.TransactionID,
			m.ReceiptID,
			m.Confidence.InexactFloat64(),
			string(m.Status),
			m.Status == expense.MatchConfirmed,
			now,
			now,
		)
		if isForeignKeyViolation(err) {
			return fmt.Errorf("match for transaction %d, receipt %d: %w", m.TransactionID, m.ReceiptID, expense.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to insert match: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 1 {
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			m.ID = id
			m.UserConfirmed = m.Status == expense.MatchConfirmed
			m.CreatedAt = now
			m.UpdatedAt = now
			created = true
			return nil
		}

		existing, err := scanMatch(tx.QueryRowContext(ctx, `
		SELECT `+matchColumns+` FROM matches m WHERE m.transaction_id = ? AND m.receipt_id = ?
		`, m.TransactionID, m.ReceiptID))
		if err != nil {
			return fmt.Errorf("failed to load existing match: %w", err)
		}
		*m = *existing
		return nil
	})
	return created, err
}

// GetMatch retrieves a match by ID
func (s *Storage) GetMatch(ctx context.Context, id int64) (*expense.Match, error) {
	m, err := scanMatch(s.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches m WHERE m.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("match", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// GetMatchByPair retrieves the match for a transaction/receipt pair
func (s *Storage) GetMatchByPair(ctx context.Context, transactionID, receiptID int64) (*expense.Match, error) {
	m, err := scanMatch(s.db.QueryRowContext(ctx, `
	SELECT `+matchColumns+` FROM matches m WHERE m.transaction_id = ? AND m.receipt_id = ?
	`, transactionID, receiptID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match for transaction %d, receipt %d: %w", transactionID, receiptID, expense.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// TransitionMatch applies the match state machine inside one transaction
func (s *Storage) TransitionMatch(ctx context.Context, id int64, target expense.MatchStatus) (*expense.Match, bool, error) {
	var (
		result  *expense.Match
		changed bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := scanMatch(tx.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches m WHERE m.id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("match", id)
		}
		if err != nil {
			return err
		}

		changed, err = m.Apply(target)
		if err != nil {
			return fmt.Errorf("match %d: %w", id, err)
		}
		result = m
		if !changed {
			return nil
		}

		m.UpdatedAt = s.now()
		_, err = tx.ExecContext(ctx, `
		UPDATE matches SET match_status = ?, user_confirmed = ?, updated_at = ? WHERE id = ?
		`, string(m.Status), m.UserConfirmed, m.UpdatedAt, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return result, changed, nil
}

// DeleteMatch removes a match and returns the deleted row
func (s *Storage) DeleteMatch(ctx context.Context, id int64) (*expense.Match, error) {
	var deleted *expense.Match
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := scanMatch(tx.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches m WHERE m.id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("match", id)
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE id = ?`, id); err != nil {
			return err
		}
		deleted = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

const matchDetailQuery = `
	SELECT ` + matchColumns + `,
		t.transaction_date, t.description, t.amount_cents,
		r.original_filename, r.extracted_merchant, r.extracted_amount_cents, r.extracted_date
	FROM matches m
	JOIN transactions t ON t.id = m.transaction_id
	JOIN receipts r ON r.id = m.receipt_id`

// ListMatches returns joined match views, best confidence first
func (s *Storage) ListMatches(ctx context.Context, filters MatchFilters) ([]*MatchDetail, error) {
	var (
		conds []string
		args  []any
	)
	if filters.Status != "" {
		conds = append(conds, "m.match_status = ?")
		args = append(args, string(filters.Status))
	}
	if filters.ReceiptID != 0 {
		conds = append(conds, "m.receipt_id = ?")
		args = append(args, filters.ReceiptID)
	}
	if filters.TransactionID != 0 {
		conds = append(conds, "m.transaction_id = ?")
		args = append(args, filters.TransactionID)
	}

	query := matchDetailQuery
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY m.match_confidence DESC, m.id"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	details := make([]*MatchDetail, 0)
	for rows.Next() {
		d, err := scanMatchDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// GetMatchDetail retrieves one joined match view
func (s *Storage) GetMatchDetail(ctx context.Context, id int64) (*MatchDetail, error) {
	d, err := scanMatchDetail(s.db.QueryRowContext(ctx, matchDetailQuery+" WHERE m.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("match", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return d, nil
}

// GetMatchStats returns aggregate match statistics
func (s *Storage) GetMatchStats(ctx context.Context) (*MatchStats, error) {
	stats := &MatchStats{}
	err := s.db.QueryRowContext(ctx, `
	SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN match_status = 'confirmed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN match_status = 'pending' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN match_status = 'rejected' THEN 1 ELSE 0 END), 0),
		(SELECT COUNT(*) FROM receipts r
		 WHERE r.processing_status = 'completed'
		   AND NOT EXISTS (SELECT 1 FROM matches x WHERE x.receipt_id = r.id))
	FROM matches
	`).Scan(
		&stats.TotalMatches,
		&stats.ConfirmedMatches,
		&stats.PendingMatches,
		&stats.RejectedMatches,
		&stats.UnmatchedReceipts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get match stats: %w", err)
	}
	return stats, nil
}

func scanMatch(row scanner) (*expense.Match, error) {
	var m expense.Match
	if err := scanMatchInto(row, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMatchInto(row scanner, m *expense.Match, extra ...any) error {
	var (
		confidence float64
		status     string
	)
	dest := []any{
		&m.ID,
		&m.TransactionID,
		&m.ReceiptID,
		&confidence,
		&status,
		&m.UserConfirmed,
		&m.CreatedAt,
		&m.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}

	m.Confidence = confidenceFromDB(confidence)
	parsed, err := expense.ParseMatchStatus(status)
	if err != nil {
		return err
	}
	m.Status = parsed
	return nil
}

func scanMatchDetail(row scanner) (*MatchDetail, error) {
	var (
		d              MatchDetail
		amountCents    int64
		extractedCents sql.NullInt64
	)
	err := scanMatchInto(row, &d.Match,
		&d.TransactionDate,
		&d.Description,
		&amountCents,
		&d.OriginalFilename,
		&d.ExtractedMerchant,
		&extractedCents,
		&d.ExtractedDate,
	)
	if err != nil {
		return nil, err
	}

	d.TransactionAmount = fromCents(amountCents)
	if extractedCents.Valid {
		d.ExtractedAmount.Valid = true
		d.ExtractedAmount.Decimal = fromCents(extractedCents.Int64)
	}
	return &d, nil
}
