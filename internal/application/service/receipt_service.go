package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/filestore"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
	"github.com/shopspring/decimal"
)

// Extraction is what the OCR collaborator reports for a receipt.
// Any field may be missing; Status must be completed or failed.
type Extraction struct {
	Amount   decimal.NullDecimal      `json:"amount"`
	Date     expense.Date             `json:"date"`
	Merchant string                   `json:"merchant"`
	RawText  string                   `json:"raw_text"`
	Status   expense.ProcessingStatus `json:"status"`
}

// ReceiptEdit holds user corrections to extracted fields. Nil fields are left unchanged.
type ReceiptEdit struct {
	Amount   *decimal.Decimal `json:"extracted_amount"`
	Date     *expense.Date    `json:"extracted_date"`
	Merchant *string          `json:"extracted_merchant"`
}

// ReceiptService manages uploaded receipts and their OCR state.
type ReceiptService struct {
	storage storage.Repository
	files   filestore.Store
	logger  *slog.Logger
}

// NewReceiptService creates a new receipt service.
func NewReceiptService(store storage.Repository, files filestore.Store, logger *slog.Logger) *ReceiptService {
	return &ReceiptService{storage: store, files: files, logger: logger}
}

// Register stores the uploaded file and creates a pending receipt for it.
func (s *ReceiptService) Register(ctx context.Context, originalName, contentType string, content io.Reader) (*expense.Receipt, error) {
	ref, size, err := s.files.Save(originalName, content)
	if err != nil {
		return nil, fmt.Errorf("saving receipt file: %w", err)
	}

	r := &expense.Receipt{
		FileRef:          ref,
		OriginalFilename: originalName,
		FileSize:         size,
		ContentType:      contentType,
		Status:           expense.ProcessingPending,
	}
	if err := s.storage.CreateReceipt(ctx, r); err != nil {
		if delErr := s.files.Delete(ref); delErr != nil {
			s.logger.Warn("failed to remove orphaned receipt file", "file_ref", ref, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info("receipt registered", "receipt_id", r.ID, "filename", originalName, "size", size)
	return r, nil
}

// MarkProcessing records that OCR has started. Calling it again is a no-op.
func (s *ReceiptService) MarkProcessing(ctx context.Context, id int64) (*expense.Receipt, error) {
	r, err := s.storage.GetReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == expense.ProcessingProcessing {
		return r, nil
	}
	if !r.Status.CanTransitionTo(expense.ProcessingProcessing) {
		return nil, fmt.Errorf("receipt %d: %w: %s -> %s", id, expense.ErrInvalidTransition, r.Status, expense.ProcessingProcessing)
	}

	previous := r.Status
	r.Status = expense.ProcessingProcessing
	if err := s.storage.UpdateReceipt(ctx, r, previous); err != nil {
		return nil, err
	}
	return r, nil
}

// RecordExtraction stores the OCR result and moves the receipt to a terminal
// status. Only completed receipts with an amount and a date take part in matching.
func (s *ReceiptService) RecordExtraction(ctx context.Context, id int64, ext Extraction) (*expense.Receipt, error) {
	if !ext.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: extraction status must be completed or failed, got %q", expense.ErrInvalidTransition, ext.Status)
	}

	r, err := s.storage.GetReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransitionTo(ext.Status) {
		return nil, fmt.Errorf("receipt %d: %w: already %s", id, expense.ErrConflict, r.Status)
	}

	previous := r.Status
	r.Status = ext.Status
	r.OCRText = ext.RawText
	r.ExtractedMerchant = strings.TrimSpace(ext.Merchant)
	r.ExtractedDate = ext.Date
	r.ExtractedAmount = ext.Amount
	if r.ExtractedAmount.Valid {
		r.ExtractedAmount.Decimal = r.ExtractedAmount.Decimal.Abs().Round(2)
	}

	if err := s.storage.UpdateReceipt(ctx, r, previous); err != nil {
		return nil, err
	}

	s.logger.Info("receipt extraction recorded",
		"receipt_id", id,
		"status", r.Status,
		"matchable", r.Matchable(),
	)
	return r, nil
}

// UpdateDetails applies user corrections to the extracted fields.
func (s *ReceiptService) UpdateDetails(ctx context.Context, id int64, edit ReceiptEdit) (*expense.Receipt, error) {
	r, err := s.storage.GetReceipt(ctx, id)
	if err != nil {
		return nil, err
	}

	if edit.Amount != nil {
		r.ExtractedAmount = decimal.NewNullDecimal(edit.Amount.Abs().Round(2))
	}
	if edit.Date != nil {
		r.ExtractedDate = *edit.Date
	}
	if edit.Merchant != nil {
		r.ExtractedMerchant = strings.TrimSpace(*edit.Merchant)
	}

	if err := s.storage.UpdateReceipt(ctx, r, r.Status); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns one receipt.
func (s *ReceiptService) Get(ctx context.Context, id int64) (*expense.Receipt, error) {
	return s.storage.GetReceipt(ctx, id)
}

// List returns receipts with their match counts.
func (s *ReceiptService) List(ctx context.Context, filters storage.ReceiptFilters) (*storage.ReceiptListResult, error) {
	return s.storage.ListReceipts(ctx, filters)
}

// ListUnmatched returns completed receipts that have no confirmed match.
func (s *ReceiptService) ListUnmatched(ctx context.Context) ([]*expense.Receipt, error) {
	return s.storage.ListUnmatchedReceipts(ctx)
}

// Open returns the stored file of a receipt.
func (s *ReceiptService) Open(ctx context.Context, id int64) (*expense.Receipt, io.ReadCloser, error) {
	r, err := s.storage.GetReceipt(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.files.Open(r.FileRef)
	if err != nil {
		return nil, nil, fmt.Errorf("receipt %d: %w", id, err)
	}
	return r, f, nil
}

// Delete removes the receipt, its matches and its file. It returns how many
// matches were removed with it.
func (s *ReceiptService) Delete(ctx context.Context, id int64) (int, error) {
	r, err := s.storage.GetReceipt(ctx, id)
	if err != nil {
		return 0, err
	}

	removed, err := s.storage.DeleteReceipt(ctx, id)
	if err != nil {
		return 0, err
	}

	if err := s.files.Delete(r.FileRef); err != nil {
		s.logger.Warn("failed to delete receipt file", "receipt_id", id, "file_ref", r.FileRef, "error", err)
	}

	s.logger.Info("receipt deleted", "receipt_id", id, "matches_removed", removed)
	return removed, nil
}
