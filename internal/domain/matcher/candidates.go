package matcher

import (
	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/shopspring/decimal"
)

// DateRange returns the inclusive date window around the receipt date.
// Storage uses it to pre-narrow the transactions handed to Candidates.
func (m *Matcher) DateRange(receipt *expense.Receipt) (from, to expense.Date) {
	d := receipt.ExtractedDate
	return d.AddDays(-m.config.DateWindowDays), d.AddDays(m.config.DateWindowDays)
}

// AmountLimit is the largest absolute amount difference still considered a candidate.
func (m *Matcher) AmountLimit(receiptAmount decimal.Decimal) decimal.Decimal {
	pct := receiptAmount.Abs().Mul(m.amountTolerancePct)
	return decimal.Max(m.amountTolerance, pct)
}

// Candidates keeps the transactions inside both the date and the amount window.
// The receipt must be Matchable; otherwise nothing is returned.
func (m *Matcher) Candidates(receipt *expense.Receipt, transactions []*expense.Transaction) []*expense.Transaction {
	if !receipt.Matchable() {
		return nil
	}

	amount := receipt.ExtractedAmount.Decimal.Abs()
	limit := m.AmountLimit(amount)

	var out []*expense.Transaction
	for _, tx := range transactions {
		if expense.DaysBetween(tx.Date, receipt.ExtractedDate) > m.config.DateWindowDays {
			continue
		}
		if tx.AbsAmount().Sub(amount).Abs().GreaterThan(limit) {
			continue
		}
		out = append(out, tx)
	}
	return out
}
