package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
)

const transactionColumns = `id, transaction_date, description, amount_cents, category, card_last_four,
	issuer_transaction_id, external_transaction_id, sales_tax_cents, created_at, updated_at`

// InsertTransaction stores tx unless it duplicates an existing row
func (s *Storage) InsertTransaction(ctx context.Context, tx *expense.Transaction) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO transactions
	(transaction_date, description, amount_cents, category, card_last_four,
	 issuer_transaction_id, external_transaction_id, sales_tax_cents, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT DO NOTHING
	`,
		tx.Date,
		tx.Description,
		toCents(tx.Amount),
		tx.Category,
		tx.CardLastFour,
		nullString(tx.IssuerTransactionID),
		nullString(tx.ExternalTransactionID),
		nullCents(tx.SalesTax),
		now,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	tx.ID = id
	tx.CreatedAt = now
	tx.UpdatedAt = now
	return true, nil
}

// GetTransaction retrieves a transaction by ID
func (s *Storage) GetTransaction(ctx context.Context, id int64) (*expense.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("transaction", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// ListTransactions returns transactions newest first with pagination
func (s *Storage) ListTransactions(ctx context.Context, filters TransactionFilters) (*TransactionListResult, error) {
	limit := pageLimit(filters.Limit)

	where := ""
	var args []any
	if filters.Search != "" {
		where = " WHERE description LIKE ?"
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		` ORDER BY transaction_date DESC, id DESC LIMIT ? OFFSET ?`
	txs, err := s.queryTransactions(ctx, query, append(args, limit, filters.Offset)...)
	if err != nil {
		return nil, err
	}

	return &TransactionListResult{
		Transactions: txs,
		TotalCount:   total,
		Limit:        limit,
		Offset:       filters.Offset,
	}, nil
}

// ListTransactionsInDateRange returns transactions dated within [from, to]
func (s *Storage) ListTransactionsInDateRange(ctx context.Context, from, to expense.Date) ([]*expense.Transaction, error) {
	return s.queryTransactions(ctx, `
	SELECT `+transactionColumns+` FROM transactions
	WHERE transaction_date BETWEEN ? AND ?
	ORDER BY transaction_date, id
	`, from, to)
}

// UpdateTransaction applies a user edit
func (s *Storage) UpdateTransaction(ctx context.Context, tx *expense.Transaction) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
	UPDATE transactions SET
		transaction_date = ?, description = ?, amount_cents = ?, category = ?,
		card_last_four = ?, issuer_transaction_id = ?, external_transaction_id = ?,
		sales_tax_cents = ?, updated_at = ?
	WHERE id = ?
	`,
		tx.Date,
		tx.Description,
		toCents(tx.Amount),
		tx.Category,
		tx.CardLastFour,
		nullString(tx.IssuerTransactionID),
		nullString(tx.ExternalTransactionID),
		nullCents(tx.SalesTax),
		now,
		tx.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("transaction %d: %w: duplicates an existing transaction", tx.ID, expense.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound("transaction", tx.ID)
	}
	tx.UpdatedAt = now
	return nil
}

// DeleteTransaction removes a transaction; its matches go by ON DELETE CASCADE
func (s *Storage) DeleteTransaction(ctx context.Context, id int64) (int, error) {
	var removed int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE transaction_id = ?`, id).Scan(&removed); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return notFound("transaction", id)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Storage) queryTransactions(ctx context.Context, query string, args ...any) ([]*expense.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	txs := make([]*expense.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(row scanner) (*expense.Transaction, error) {
	var (
		tx          expense.Transaction
		amountCents int64
		issuerID    sql.NullString
		externalID  sql.NullString
		taxCents    sql.NullInt64
	)
	err := row.Scan(
		&tx.ID,
		&tx.Date,
		&tx.Description,
		&amountCents,
		&tx.Category,
		&tx.CardLastFour,
		&issuerID,
		&externalID,
		&taxCents,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Amount = fromCents(amountCents)
	tx.IssuerTransactionID = issuerID.String
	tx.ExternalTransactionID = externalID.String
	if taxCents.Valid {
		tx.SalesTax.Valid = true
		tx.SalesTax.Decimal = fromCents(taxCents.Int64)
	}
	return &tx, nil
}
