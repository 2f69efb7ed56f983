package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
)

// StartImportRun records the start of an import run
func (s *Storage) StartImportRun(ctx context.Context, source string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO import_runs (source, started_at, status) VALUES (?, ?, ?)
	`, source, s.now(), expense.ImportRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to start import run: %w", err)
	}
	return res.LastInsertId()
}

// CompleteImportRun records counts and the final status of a run
func (s *Storage) CompleteImportRun(ctx context.Context, run *expense.ImportRun) error {
	completedAt := s.now()
	status := run.Status
	if status == "" {
		status = expense.ImportCompleted
	}

	res, err := s.db.ExecContext(ctx, `
	UPDATE import_runs SET
		completed_at = ?, total_rows = ?, imported = ?, duplicates = ?, malformed = ?,
		status = ?, error_message = ?
	WHERE id = ?
	`, completedAt, run.Total, run.Imported, run.Duplicates, run.Malformed, status, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("failed to complete import run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound("import run", run.ID)
	}
	run.CompletedAt = &completedAt
	run.Status = status
	return nil
}

// ListImportRuns returns recent import runs
func (s *Storage) ListImportRuns(ctx context.Context, limit int) ([]*expense.ImportRun, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, source, started_at, completed_at, total_rows, imported, duplicates, malformed, status, error_message
	FROM import_runs
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, pageLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*expense.ImportRun, 0)
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetImportRun retrieves an import run by ID
func (s *Storage) GetImportRun(ctx context.Context, id int64) (*expense.ImportRun, error) {
	run, err := scanImportRun(s.db.QueryRowContext(ctx, `
	SELECT id, source, started_at, completed_at, total_rows, imported, duplicates, malformed, status, error_message
	FROM import_runs WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("import run", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import run: %w", err)
	}
	return run, nil
}

func scanImportRun(row scanner) (*expense.ImportRun, error) {
	var (
		run         expense.ImportRun
		completedAt sql.NullTime
	)
	err := row.Scan(
		&run.ID,
		&run.Source,
		&run.StartedAt,
		&completedAt,
		&run.Total,
		&run.Imported,
		&run.Duplicates,
		&run.Malformed,
		&run.Status,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}

// LogMatchEvent appends an event to the match audit log
func (s *Storage) LogMatchEvent(ctx context.Context, event *expense.MatchEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO match_events (match_id, transaction_id, receipt_id, action, source, confidence, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.MatchID,
		event.TransactionID,
		event.ReceiptID,
		string(event.Action),
		string(event.Source),
		event.Confidence.InexactFloat64(),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log match event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = id
	return nil
}

// ListMatchEvents returns the events of one match, oldest first
func (s *Storage) ListMatchEvents(ctx context.Context, matchID int64) ([]*expense.MatchEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, match_id, transaction_id, receipt_id, action, source, confidence, created_at
	FROM match_events WHERE match_id = ?
	ORDER BY id
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list match events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]*expense.MatchEvent, 0)
	for rows.Next() {
		var (
			e          expense.MatchEvent
			action     string
			source     string
			confidence float64
		)
		if err := rows.Scan(&e.ID, &e.MatchID, &e.TransactionID, &e.ReceiptID, &action, &source, &confidence, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = expense.MatchAction(action)
		e.Source = expense.EventSource(source)
		e.Confidence = confidenceFromDB(confidence)
		events = append(events, &e)
	}
	return events, rows.Err()
}
