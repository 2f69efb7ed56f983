package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
)

const receiptColumns = `r.id, r.file_ref, r.original_filename, r.file_size, r.content_type, r.upload_date,
	r.ocr_text, r.extracted_amount_cents, r.extracted_date, r.extracted_merchant,
	r.processing_status, r.created_at, r.updated_at`

// CreateReceipt stores a new receipt
func (s *Storage) CreateReceipt(ctx context.Context, r *expense.Receipt) error {
	now := s.now()
	if r.UploadedAt.IsZero() {
		r.UploadedAt = now
	}
	if r.Status == "" {
		r.Status = expense.ProcessingPending
	}

	res, err := s.db.ExecContext(ctx, `
	INSERT INTO receipts
	(file_ref, original_filename, file_size, content_type, upload_date, ocr_text,
	 extracted_amount_cents, extracted_date, extracted_merchant, processing_status,
	 created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.FileRef,
		r.OriginalFilename,
		r.FileSize,
		r.ContentType,
		r.UploadedAt,
		r.OCRText,
		nullCents(r.ExtractedAmount),
		r.ExtractedDate,
		r.ExtractedMerchant,
		string(r.Status),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

// GetReceipt retrieves a receipt by ID
func (s *Storage) GetReceipt(ctx context.Context, id int64) (*expense.Receipt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM receipts r WHERE r.id = ?`, id)
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("receipt", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return r, nil
}

// ListReceipts returns receipts with match counts, newest upload first
func (s *Storage) ListReceipts(ctx context.Context, filters ReceiptFilters) (*ReceiptListResult, error) {
	limit := pageLimit(filters.Limit)

	where := ""
	var args []any
	if filters.Status != "" {
		where = " WHERE r.processing_status = ?"
		args = append(args, string(filters.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM receipts r`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count receipts: %w", err)
	}

	query := `SELECT ` + receiptColumns + `,
		(SELECT COUNT(*) FROM matches m WHERE m.receipt_id = r.id) AS match_count
	FROM receipts r` + where + `
	ORDER BY r.upload_date DESC, r.id DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, append(args, limit, filters.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := make([]*ReceiptSummary, 0)
	for rows.Next() {
		var summary ReceiptSummary
		if err := scanReceiptInto(rows, &summary.Receipt, &summary.MatchCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ReceiptListResult{
		Receipts:   summaries,
		TotalCount: total,
		Limit:      limit,
		Offset:     filters.Offset,
	}, nil
}

// ListUnmatchedReceipts returns completed receipts with no confirmed match
func (s *Storage) ListUnmatchedReceipts(ctx context.Context) ([]*expense.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+receiptColumns+` FROM receipts r
	WHERE r.processing_status = 'completed'
	  AND NOT EXISTS (
		SELECT 1 FROM matches m WHERE m.receipt_id = r.id AND m.match_status = 'confirmed'
	  )
	ORDER BY r.upload_date DESC, r.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched receipts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	receipts := make([]*expense.Receipt, 0)
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// UpdateReceipt overwrites r if its stored status still equals expected
func (s *Storage) UpdateReceipt(ctx context.Context, r *expense.Receipt, expected expense.ProcessingStatus) error {
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT processing_status FROM receipts WHERE id = ?`, r.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("receipt", r.ID)
		}
		if err != nil {
			return err
		}
		if expense.ProcessingStatus(current) != expected {
			return fmt.Errorf("receipt %d: %w: status is %s, expected %s", r.ID, expense.ErrConflict, current, expected)
		}

		_, err = tx.ExecContext(ctx, `
		UPDATE receipts SET
			original_filename = ?, ocr_text = ?, extracted_amount_cents = ?, extracted_date = ?,
			extracted_merchant = ?, processing_status = ?, updated_at = ?
		WHERE id = ?
		`,
			r.OriginalFilename,
			r.OCRText,
			nullCents(r.ExtractedAmount),
			r.ExtractedDate,
			r.ExtractedMerchant,
			string(r.Status),
			now,
			r.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update receipt: %w", err)
		}
		r.UpdatedAt = now
		return nil
	})
}

// DeleteReceipt removes a receipt; its matches go by ON DELETE CASCADE
func (s *Storage) DeleteReceipt(ctx context.Context, id int64) (int, error) {
	var removed int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE receipt_id = ?`, id).Scan(&removed); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM receipts WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return notFound("receipt", id)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func scanReceipt(row scanner) (*expense.Receipt, error) {
	var r expense.Receipt
	if err := scanReceiptInto(row, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// scanReceiptInto scans receiptColumns followed by any extra destinations
func scanReceiptInto(row scanner, r *expense.Receipt, extra ...any) error {
	var (
		amountCents sql.NullInt64
		status      string
	)
	dest := []any{
		&r.ID,
		&r.FileRef,
		&r.OriginalFilename,
		&r.FileSize,
		&r.ContentType,
		&r.UploadedAt,
		&r.OCRText,
		&amountCents,
		&r.ExtractedDate,
		&r.ExtractedMerchant,
		&status,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}

	if amountCents.Valid {
		r.ExtractedAmount.Valid = true
		r.ExtractedAmount.Decimal = fromCents(amountCents.Int64)
	}
	parsed, err := expense.ParseProcessingStatus(status)
	if err != nil {
		return err
	}
	r.Status = parsed
	return nil
}
