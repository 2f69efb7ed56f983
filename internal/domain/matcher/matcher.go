// Package matcher pairs receipts with card transactions.
//
// Matching runs in two stages:
//   - Candidate generation keeps transactions whose date is within the
//     configured window of the receipt date and whose absolute amount is
//     within max(tolerance, pct × receipt amount) of the receipt amount.
//   - Scoring combines amount, date and merchant-text sub-scores (each 0-100)
//     into a weighted confidence, truncated to two decimals.
//
// Example usage:
//
//	m, err := matcher.NewMatcher(matcher.DefaultConfig())
//	from, to := m.DateRange(receipt)
//	txs := loadTransactionsBetween(from, to)
//	results, err := m.FindCandidates(receipt, txs)
//	for _, r := range results {
//		// r.Transaction, r.Score.Confidence
//	}
package matcher

import (
	"fmt"
	"sort"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Matcher scores receipts against transactions. It is safe for concurrent use.
type Matcher struct {
	config Config

	amountTolerance    decimal.Decimal
	amountTolerancePct decimal.Decimal
	amountWeight       decimal.Decimal
	dateWeight         decimal.Decimal
	textWeight         decimal.Decimal
	weightSum          decimal.Decimal
	edgeScore          decimal.Decimal
	minScore           decimal.Decimal
}

// NewMatcher creates a new matcher with the given config
func NewMatcher(config Config) (*Matcher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matcher config: %w", err)
	}

	m := &Matcher{
		config:             config,
		amountTolerance:    decimal.NewFromFloat(config.AmountTolerance),
		amountTolerancePct: decimal.NewFromFloat(config.AmountTolerancePct),
		amountWeight:       decimal.NewFromFloat(config.AmountWeight),
		dateWeight:         decimal.NewFromFloat(config.DateWeight),
		textWeight:         decimal.NewFromFloat(config.TextWeight),
		edgeScore:          decimal.NewFromFloat(config.WindowEdgeScore),
		minScore:           decimal.NewFromFloat(config.MinScore),
	}
	m.weightSum = m.amountWeight.Add(m.dateWeight).Add(m.textWeight)
	return m, nil
}

// Config returns the configuration the matcher was built with.
func (m *Matcher) Config() Config {
	return m.config
}

// MinScore is the persistence floor.
func (m *Matcher) MinScore() decimal.Decimal {
	return m.minScore
}

// MeetsFloor reports whether confidence is high enough to be persisted.
func (m *Matcher) MeetsFloor(confidence decimal.Decimal) bool {
	return confidence.GreaterThanOrEqual(m.minScore)
}

// MatchResult contains match information
type MatchResult struct {
	Transaction *expense.Transaction
	Score       Score
}

// FindCandidates filters transactions to the receipt's windows, scores each
// survivor and drops those below the floor. Results are ordered by confidence
// descending, then date distance ascending, then transaction id ascending.
func (m *Matcher) FindCandidates(receipt *expense.Receipt, transactions []*expense.Transaction) ([]MatchResult, error) {
	if !receipt.Matchable() {
		return nil, expense.ErrReceiptNotReady
	}

	candidates := m.Candidates(receipt, transactions)
	results := make([]MatchResult, 0, len(candidates))
	for _, tx := range candidates {
		score := m.Score(receipt, tx)
		if !m.MeetsFloor(score.Confidence) {
			continue
		}
		results = append(results, MatchResult{Transaction: tx, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if c := a.Score.Confidence.Cmp(b.Score.Confidence); c != 0 {
			return c > 0
		}
		if a.Score.DayDistance != b.Score.DayDistance {
			return a.Score.DayDistance < b.Score.DayDistance
		}
		return a.Transaction.ID < b.Transaction.ID
	})

	return results, nil
}
