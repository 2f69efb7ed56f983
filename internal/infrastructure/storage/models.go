package storage

import (
	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/shopspring/decimal"
)

// defaultPageSize applies when a list filter leaves Limit at zero
const defaultPageSize = 50

// ReceiptSummary is a receipt row with the number of matches referencing it
type ReceiptSummary struct {
	expense.Receipt
	MatchCount int `json:"match_count"`
}

// MatchDetail joins a match with the fields the review screens show
type MatchDetail struct {
	expense.Match

	TransactionDate   expense.Date        `json:"transaction_date"`
	Description       string              `json:"description"`
	TransactionAmount decimal.Decimal     `json:"transaction_amount"`
	OriginalFilename  string              `json:"original_filename"`
	ExtractedMerchant string              `json:"extracted_merchant"`
	ExtractedAmount   decimal.NullDecimal `json:"extracted_amount"`
	ExtractedDate     expense.Date        `json:"extracted_date"`
}

// MatchStats contains aggregate match statistics
type MatchStats struct {
	TotalMatches      int `json:"total_matches"`
	ConfirmedMatches  int `json:"confirmed_matches"`
	PendingMatches    int `json:"pending_matches"`
	RejectedMatches   int `json:"rejected_matches"`
	UnmatchedReceipts int `json:"unmatched_receipts"` // completed receipts with no match rows at all
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return limit
}

// toCents converts a money amount to integer cents for storage
func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func nullCents(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return toCents(d.Decimal)
}

// confidenceFromDB restores the two-decimal confidence from a REAL column
func confidenceFromDB(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}
