package matcher

import (
	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/shopspring/decimal"
)

// Score breaks a confidence down into its parts.
type Score struct {
	Confidence  decimal.Decimal `json:"confidence"`
	Amount      decimal.Decimal `json:"amount_score"`
	Date        decimal.Decimal `json:"date_score"`
	Text        decimal.Decimal `json:"text_score"`
	DayDistance int             `json:"day_distance"`
	AmountDiff  decimal.Decimal `json:"amount_diff"`
}

// Score computes the weighted confidence for one pair. A receipt without an
// extracted amount or date scores zero on the missing dimension.
func (m *Matcher) Score(receipt *expense.Receipt, tx *expense.Transaction) Score {
	var s Score

	if receipt.ExtractedAmount.Valid {
		amount := receipt.ExtractedAmount.Decimal.Abs()
		s.AmountDiff = tx.AbsAmount().Sub(amount).Abs()
		s.Amount = m.AmountScore(s.AmountDiff, m.AmountLimit(amount))
	}

	if !receipt.ExtractedDate.IsZero() {
		s.DayDistance = expense.DaysBetween(tx.Date, receipt.ExtractedDate)
		s.Date = m.DateScore(s.DayDistance)
	}

	s.Text = TextScore(receipt.ExtractedMerchant, receipt.OCRText, tx.Description)

	weighted := m.amountWeight.Mul(s.Amount).
		Add(m.dateWeight.Mul(s.Date)).
		Add(m.textWeight.Mul(s.Text))
	s.Confidence = clamp(weighted.Div(m.weightSum)).Truncate(2)

	return s
}

// AmountScore is 100 for an exact amount, falling linearly to the edge score
// at limit, and 0 beyond it.
func (m *Matcher) AmountScore(diff, limit decimal.Decimal) decimal.Decimal {
	diff = diff.Abs()
	if diff.IsZero() {
		return hundred
	}
	if !limit.IsPositive() || diff.GreaterThan(limit) {
		return decimal.Zero
	}
	return m.linear(diff.Div(limit))
}

// DateScore is 100 on the same day, falling linearly to the edge score at the
// window boundary, and 0 beyond it.
func (m *Matcher) DateScore(days int) decimal.Decimal {
	if days < 0 {
		days = -days
	}
	if days == 0 {
		return hundred
	}
	window := m.config.DateWindowDays
	if window <= 0 || days > window {
		return decimal.Zero
	}
	return m.linear(decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(int64(window))))
}

// linear maps a fraction of the window in [0,1] onto [100, edge].
func (m *Matcher) linear(fraction decimal.Decimal) decimal.Decimal {
	drop := hundred.Sub(m.edgeScore).Mul(fraction)
	return clamp(hundred.Sub(drop))
}

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(hundred) {
		return hundred
	}
	return d
}
