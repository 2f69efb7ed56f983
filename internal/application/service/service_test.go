package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/eshaffer321/expense-matcher/internal/domain/matcher"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var jan15 = expense.NewDate(2024, time.January, 15)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMatchService(t *testing.T, repo storage.Repository) *MatchService {
	t.Helper()
	m, err := matcher.NewMatcher(matcher.DefaultConfig())
	require.NoError(t, err)
	return NewMatchService(repo, m, discardLogger(), WithSweepConcurrency(2))
}

func addTransaction(repo *storage.MockRepository, description, amount string, date expense.Date) *expense.Transaction {
	return repo.AddTransaction(&expense.Transaction{
		Date:        date,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
	})
}

func addCompletedReceipt(repo *storage.MockRepository, amount string, date expense.Date, merchant string) *expense.Receipt {
	return repo.AddReceipt(&expense.Receipt{
		FileRef:           "ref-" + merchant,
		OriginalFilename:  merchant + ".jpg",
		ExtractedAmount:   decimal.NewNullDecimal(decimal.RequireFromString(amount)),
		ExtractedDate:     date,
		ExtractedMerchant: merchant,
		Status:            expense.ProcessingCompleted,
	})
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
