package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/eshaffer321/expense-matcher/internal/domain/matcher"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DefaultSweepConcurrency bounds how many receipts AutoMatch scores at once.
const DefaultSweepConcurrency = 4

// Proposal is one scored candidate for a receipt and the match row that holds it.
type Proposal struct {
	MatchID     int64                `json:"match_id"`
	Status      expense.MatchStatus  `json:"match_status"`
	Created     bool                 `json:"created"`
	Transaction *expense.Transaction `json:"transaction"`
	Score       matcher.Score        `json:"score"`
}

// MatchService drives the match lifecycle: proposing candidates, the
// auto-match sweep and user decisions.
type MatchService struct {
	storage     storage.Repository
	matcher     *matcher.Matcher
	logger      *slog.Logger
	concurrency int
}

// MatchOption configures a MatchService.
type MatchOption func(*MatchService)

// WithSweepConcurrency sets how many receipts AutoMatch processes in parallel.
func WithSweepConcurrency(n int) MatchOption {
	return func(s *MatchService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewMatchService creates a new match service.
func NewMatchService(store storage.Repository, m *matcher.Matcher, logger *slog.Logger, opts ...MatchOption) *MatchService {
	s := &MatchService{
		storage:     store,
		matcher:     m,
		logger:      logger,
		concurrency: DefaultSweepConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindCandidates scores the receipt against transactions inside its windows
// and records a pending match for every candidate that clears the floor.
// Pairs that already have a match row keep it, whatever its status.
func (s *MatchService) FindCandidates(ctx context.Context, receiptID int64) ([]*Proposal, error) {
	receipt, err := s.storage.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	results, err := s.score(ctx, receipt)
	if err != nil {
		return nil, err
	}

	proposals := make([]*Proposal, 0, len(results))
	for _, result := range results {
		p, err := s.propose(ctx, receipt, result, expense.SourcePropose)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}

	s.logger.Info("found candidates", "receipt_id", receiptID, "candidates", len(proposals))
	return proposals, nil
}

// ProposePair scores one explicit pair and records it as a pending match.
// A pair scoring under the floor returns expense.ErrBelowMinScore.
func (s *MatchService) ProposePair(ctx context.Context, transactionID, receiptID int64) (*Proposal, error) {
	tx, err := s.storage.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	receipt, err := s.storage.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if !receipt.Matchable() {
		return nil, fmt.Errorf("receipt %d: %w", receiptID, expense.ErrReceiptNotReady)
	}

	score := s.matcher.Score(receipt, tx)
	if !s.matcher.MeetsFloor(score.Confidence) {
		return nil, fmt.Errorf("%w: %s < %s", expense.ErrBelowMinScore, score.Confidence.StringFixed(2), s.matcher.MinScore().StringFixed(2))
	}

	return s.propose(ctx, receipt, matcher.MatchResult{Transaction: tx, Score: score}, expense.SourceUser)
}

// AutoMatch proposes matches scoring at least threshold for every completed
// receipt without a confirmed match. Matches are created pending, never
// confirmed. It returns how many new matches were created.
func (s *MatchService) AutoMatch(ctx context.Context, threshold float64) (int, error) {
	if !matcher.IsFinite(threshold) || threshold < 0 || threshold > 100 {
		return 0, fmt.Errorf("%w: got %v", expense.ErrInvalidThreshold, threshold)
	}
	floor := decimal.Max(decimal.NewFromFloat(threshold), s.matcher.MinScore())

	receipts, err := s.storage.ListUnmatchedReceipts(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing unmatched receipts: %w", err)
	}

	var created atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, receipt := range receipts {
		if !receipt.Matchable() {
			continue
		}
		g.Go(func() error {
			results, err := s.score(gctx, receipt)
			if err != nil {
				return err
			}
			for _, result := range results {
				if result.Score.Confidence.LessThan(floor) {
					break // results are ordered by confidence
				}
				p, err := s.propose(gctx, receipt, result, expense.SourceSweep)
				if err != nil {
					return err
				}
				if p.Created {
					created.Add(1)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(created.Load()), fmt.Errorf("auto-match sweep: %w", err)
	}

	s.logger.Info("auto-match completed",
		"threshold", threshold,
		"receipts", len(receipts),
		"created", created.Load(),
	)
	return int(created.Load()), nil
}

// Confirm marks a match confirmed. Confirming twice is a no-op; confirming a
// rejected match returns expense.ErrConflict.
func (s *MatchService) Confirm(ctx context.Context, id int64) (*expense.Match, error) {
	return s.transition(ctx, id, expense.MatchConfirmed, expense.ActionConfirmed)
}

// Reject marks a match rejected. Rejecting twice is a no-op; rejecting a
// confirmed match returns expense.ErrConflict.
func (s *MatchService) Reject(ctx context.Context, id int64) (*expense.Match, error) {
	return s.transition(ctx, id, expense.MatchRejected, expense.ActionRejected)
}

// Delete removes a match in any state.
func (s *MatchService) Delete(ctx context.Context, id int64) error {
	m, err := s.storage.DeleteMatch(ctx, id)
	if err != nil {
		return err
	}
	s.record(ctx, m, expense.ActionDeleted, expense.SourceUser)
	s.logger.Info("match deleted", "match_id", id, "status", m.Status)
	return nil
}

// Get returns the joined view of one match.
func (s *MatchService) Get(ctx context.Context, id int64) (*storage.MatchDetail, error) {
	return s.storage.GetMatchDetail(ctx, id)
}

// List returns joined match views, best confidence first.
func (s *MatchService) List(ctx context.Context, filters storage.MatchFilters) ([]*storage.MatchDetail, error) {
	return s.storage.ListMatches(ctx, filters)
}

// ListPending returns matches waiting for a user decision.
func (s *MatchService) ListPending(ctx context.Context) ([]*storage.MatchDetail, error) {
	return s.storage.ListMatches(ctx, storage.MatchFilters{Status: expense.MatchPending})
}

// Events returns the audit log of one match. Events survive match deletion.
func (s *MatchService) Events(ctx context.Context, matchID int64) ([]*expense.MatchEvent, error) {
	return s.storage.ListMatchEvents(ctx, matchID)
}

// Stats returns aggregate match counts.
func (s *MatchService) Stats(ctx context.Context) (*storage.MatchStats, error) {
	return s.storage.GetMatchStats(ctx)
}

// score loads the transactions inside the receipt's date window and ranks them.
func (s *MatchService) score(ctx context.Context, receipt *expense.Receipt) ([]matcher.MatchResult, error) {
	if !receipt.Matchable() {
		return nil, fmt.Errorf("receipt %d: %w", receipt.ID, expense.ErrReceiptNotReady)
	}

	from, to := s.matcher.DateRange(receipt)
	txs, err := s.storage.ListTransactionsInDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading candidates for receipt %d: %w", receipt.ID, err)
	}

	return s.matcher.FindCandidates(receipt, txs)
}

// propose inserts a pending match unless the pair already has one.
func (s *MatchService) propose(ctx context.Context, receipt *expense.Receipt, result matcher.MatchResult, source expense.EventSource) (*Proposal, error) {
	m := &expense.Match{
		TransactionID: result.Transaction.ID,
		ReceiptID:     receipt.ID,
		Confidence:    result.Score.Confidence,
		Status:        expense.MatchPending,
	}
	created, err := s.storage.InsertMatchIfAbsent(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("proposing transaction %d for receipt %d: %w", result.Transaction.ID, receipt.ID, err)
	}

	if created {
		s.record(ctx, m, expense.ActionProposed, source)
		s.logger.Debug("proposed match",
			"match_id", m.ID,
			"receipt_id", receipt.ID,
			"transaction_id", result.Transaction.ID,
			"confidence", result.Score.Confidence.StringFixed(2),
			"source", source,
		)
	}

	return &Proposal{
		MatchID:     m.ID,
		Status:      m.Status,
		Created:     created,
		Transaction: result.Transaction,
		Score:       result.Score,
	}, nil
}

func (s *MatchService) transition(ctx context.Context, id int64, target expense.MatchStatus, action expense.MatchAction) (*expense.Match, error) {
	m, changed, err := s.storage.TransitionMatch(ctx, id, target)
	if err != nil {
		return nil, err
	}
	if changed {
		s.record(ctx, m, action, expense.SourceUser)
		s.logger.Info("match "+string(action), "match_id", id)
	}
	return m, nil
}

// record appends to the audit log. A failed write is logged, not returned:
// the match change has already been committed.
func (s *MatchService) record(ctx context.Context, m *expense.Match, action expense.MatchAction, source expense.EventSource) {
	event := &expense.MatchEvent{
		MatchID:       m.ID,
		TransactionID: m.TransactionID,
		ReceiptID:     m.ReceiptID,
		Action:        action,
		Source:        source,
		Confidence:    m.Confidence,
	}
	if err := s.storage.LogMatchEvent(ctx, event); err != nil {
		s.logger.Warn("failed to record match event", "match_id", m.ID, "action", action, "error", err)
	}
}
