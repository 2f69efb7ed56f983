package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/eshaffer321/expense-matcher/internal/domain/normalizer"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
)

// ImportResult summarises one import run.
type ImportResult struct {
	RunID      int64 `json:"run_id"`
	Total      int   `json:"total"`
	Imported   int   `json:"imported"`
	Skipped    int   `json:"skipped"`
	Duplicates int   `json:"duplicates"`
	Malformed  int   `json:"malformed"`
}

func newImportResult(runID int64, s normalizer.Summary) *ImportResult {
	return &ImportResult{
		RunID:      runID,
		Total:      s.Total,
		Imported:   s.Imported,
		Skipped:    s.Skipped(),
		Duplicates: s.Duplicates,
		Malformed:  s.Malformed,
	}
}

// ImportService loads card statements into the transaction store.
// Importing the same rows twice creates nothing the second time.
type ImportService struct {
	storage storage.Repository
	logger  *slog.Logger
}

// NewImportService creates a new import service.
func NewImportService(store storage.Repository, logger *slog.Logger) *ImportService {
	return &ImportService{storage: store, logger: logger}
}

// rowSource yields rows until io.EOF. Errors wrapping normalizer.ErrMalformed
// skip one row; any other error aborts the import.
type rowSource func() (normalizer.Row, error)

// ImportRows normalizes and stores rows.
func (s *ImportService) ImportRows(ctx context.Context, source string, rows []normalizer.Row) (*ImportResult, error) {
	i := 0
	next := func() (normalizer.Row, error) {
		if i >= len(rows) {
			return normalizer.Row{}, io.EOF
		}
		i++
		return rows[i-1], nil
	}
	return s.run(ctx, source, func() (rowSource, error) { return next, nil })
}

// ImportCSV reads a statement export with a header line. A header missing the
// date, description or amount column returns expense.ErrInvalidImport.
func (s *ImportService) ImportCSV(ctx context.Context, source string, r io.Reader) (*ImportResult, error) {
	return s.run(ctx, source, func() (rowSource, error) {
		reader, err := normalizer.NewCSVReader(r)
		if err != nil {
			return nil, err
		}
		return reader.Next, nil
	})
}

// ListRuns returns recent import runs, newest first.
func (s *ImportService) ListRuns(ctx context.Context, limit int) ([]*expense.ImportRun, error) {
	return s.storage.ListImportRuns(ctx, limit)
}

// GetRun returns one import run.
func (s *ImportService) GetRun(ctx context.Context, id int64) (*expense.ImportRun, error) {
	return s.storage.GetImportRun(ctx, id)
}

func (s *ImportService) run(ctx context.Context, source string, open func() (rowSource, error)) (*ImportResult, error) {
	runID, err := s.storage.StartImportRun(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("starting import run: %w", err)
	}

	var summary normalizer.Summary
	next, err := open()
	if err == nil {
		err = s.consume(ctx, next, &summary)
	}

	run := &expense.ImportRun{
		ID:         runID,
		Total:      summary.Total,
		Imported:   summary.Imported,
		Duplicates: summary.Duplicates,
		Malformed:  summary.Malformed,
		Status:     expense.ImportCompleted,
	}
	if err != nil {
		run.Status = expense.ImportFailed
		run.Error = err.Error()
	}

	// Record the outcome even if the request was cancelled mid-import
	if completeErr := s.storage.CompleteImportRun(context.WithoutCancel(ctx), run); completeErr != nil {
		s.logger.Error("failed to record import run", "run_id", runID, "error", completeErr)
	}

	if err != nil {
		s.logger.Warn("import failed", "run_id", runID, "source", source, "error", err)
		return nil, err
	}

	s.logger.Info("import completed",
		"run_id", runID,
		"source", source,
		"total", summary.Total,
		"imported", summary.Imported,
		"duplicates", summary.Duplicates,
		"malformed", summary.Malformed,
	)
	return newImportResult(runID, summary), nil
}

func (s *ImportService) consume(ctx context.Context, next rowSource, summary *normalizer.Summary) error {
	seen := make(map[string]bool)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && !errors.Is(err, normalizer.ErrMalformed) {
			return fmt.Errorf("reading rows: %w", err)
		}
		summary.Total++
		if err != nil {
			summary.Malformed++
			s.logger.Debug("skipping unreadable row", "error", err)
			continue
		}

		tx, err := normalizer.Normalize(row)
		if err != nil {
			summary.Malformed++
			s.logger.Debug("skipping malformed row", "row", summary.Total, "error", err)
			continue
		}

		key := normalizer.DuplicateKey(tx)
		if seen[key] {
			summary.Duplicates++
			continue
		}
		seen[key] = true

		created, err := s.storage.InsertTransaction(ctx, tx)
		if err != nil {
			return fmt.Errorf("storing row %d: %w", summary.Total, err)
		}
		if created {
			summary.Imported++
		} else {
			summary.Duplicates++
		}
	}
}
