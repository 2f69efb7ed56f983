package storage

import (
	"context"
	"testing"
	"time"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jan15 = expense.NewDate(2024, time.January, 15)

func sampleTransaction(description, amount string, date expense.Date) *expense.Transaction {
	return &expense.Transaction{
		Date:        date,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
	}
}

func completedReceipt(amount string, date expense.Date, merchant string) *expense.Receipt {
	return &expense.Receipt{
		FileRef:           "ref-" + merchant,
		OriginalFilename:  merchant + ".jpg",
		Status:            expense.ProcessingCompleted,
		ExtractedAmount:   decimal.NewNullDecimal(decimal.RequireFromString(amount)),
		ExtractedDate:     date,
		ExtractedMerchant: merchant,
	}
}

func TestStorage_InsertAndGetTransaction(t *testing.T) {
	// Arrange
	store := newTestStorage(t)
	ctx := context.Background()
	tx := sampleTransaction("STARBUCKS STORE #12345", "-4.50", jan15)
	tx.Category = "Food & Drink"
	tx.CardLastFour = "4242"
	tx.IssuerTransactionID = "ISS-1"
	tx.SalesTax = decimal.NewNullDecimal(decimal.RequireFromString("0.36"))

	// Act
	created, err := store.InsertTransaction(ctx, tx)
	require.NoError(t, err)
	got, err := store.GetTransaction(ctx, tx.ID)

	// Assert
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, tx.ID)
	assert.Equal(t, "2024-01-15", got.Date.String())
	assert.Equal(t, "STARBUCKS STORE #12345", got.Description)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("-4.50")))
	assert.Equal(t, "Food & Drink", got.Category)
	assert.Equal(t, "4242", got.CardLastFour)
	assert.Equal(t, "ISS-1", got.IssuerTransactionID)
	require.True(t, got.SalesTax.Valid)
	assert.Equal(t, "0.36", got.SalesTax.Decimal.StringFixed(2))
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStorage_InsertTransaction_Duplicates(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	first := sampleTransaction("COFFEE", "-3.00", jan15)
	created, err := store.InsertTransaction(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	// Same natural key
	created, err = store.InsertTransaction(ctx, sampleTransaction("COFFEE", "-3.00", jan15))
	require.NoError(t, err)
	assert.False(t, created)

	// Same issuer id, different natural key
	withIssuer := sampleTransaction("TEA", "-2.00", jan15)
	withIssuer.IssuerTransactionID = "X1"
	created, err = store.InsertTransaction(ctx, withIssuer)
	require.NoError(t, err)
	require.True(t, created)

	other := sampleTransaction("TEA AGAIN", "-2.50", jan15)
	other.IssuerTransactionID = "X1"
	created, err = store.InsertTransaction(ctx, other)
	require.NoError(t, err)
	assert.False(t, created)

	// Rows without issuer ids never collide on it
	a := sampleTransaction("A", "-1.00", jan15)
	b := sampleTransaction("B", "-1.00", jan15)
	_, err = store.InsertTransaction(ctx, a)
	require.NoError(t, err)
	created, err = store.InsertTransaction(ctx, b)
	require.NoError(t, err)
	assert.True(t, created)

	list, err := store.ListTransactions(ctx, TransactionFilters{})
	require.NoError(t, err)
	assert.Equal(t, 4, list.TotalCount)
}

func TestStorage_GetTransaction_NotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetTransaction(context.Background(), 42)

	assert.ErrorIs(t, err, expense.ErrNotFound)
}

func TestStorage_ListTransactions_PaginationAndSearch(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := store.InsertTransaction(ctx, sampleTransaction("SHOP", "-1.00", jan15.AddDays(i)))
		require.NoError(t, err)
	}
	_, err := store.InsertTransaction(ctx, sampleTransaction("GROCER", "-9.00", jan15))
	require.NoError(t, err)

	page1, err := store.ListTransactions(ctx, TransactionFilters{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 6, page1.TotalCount)
	require.Len(t, page1.Transactions, 2)
	assert.Equal(t, "2024-01-19", page1.Transactions[0].Date.String())

	page3, err := store.ListTransactions(ctx, TransactionFilters{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, page3.Transactions, 2)

	search, err := store.ListTransactions(ctx, TransactionFilters{Search: "groc"})
	require.NoError(t, err)
	assert.Equal(t, 1, search.TotalCount)
}

func TestStorage_ListTransactionsInDateRange(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	for _, offset := range []int{-6, -5, 0, 5, 6} {
		_, err := store.InsertTransaction(ctx, sampleTransaction("X", "-1.00", jan15.AddDays(offset)))
		require.NoError(t, err)
	}

	got, err := store.ListTransactionsInDateRange(ctx, jan15.AddDays(-5), jan15.AddDays(5))

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-01-10", got[0].Date.String())
	assert.Equal(t, "2024-01-20", got[2].Date.String())
}

func TestStorage_UpdateTransaction(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	a := sampleTransaction("A", "-1.00", jan15)
	b := sampleTransaction("B", "-1.00", jan15)
	_, err := store.InsertTransaction(ctx, a)
	require.NoError(t, err)
	_, err = store.InsertTransaction(ctx, b)
	require.NoError(t, err)

	a.Category = "Travel"
	require.NoError(t, store.UpdateTransaction(ctx, a))
	got, err := store.GetTransaction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Travel", got.Category)

	// Editing b into a's natural key conflicts
	b.Description = "A"
	assert.ErrorIs(t, store.UpdateTransaction(ctx, b), expense.ErrConflict)

	missing := sampleTransaction("Z", "-1", jan15)
	missing.ID = 999
	assert.ErrorIs(t, store.UpdateTransaction(ctx, missing), expense.ErrNotFound)
}

func TestStorage_ReceiptLifecycle(t *testing.T) {
	// Arrange
	store := newTestStorage(t)
	ctx := context.Background()
	r := &expense.Receipt{FileRef: "abc.jpg", OriginalFilename: "lunch.jpg", FileSize: 1024, ContentType: "image/jpeg"}

	// Act
	require.NoError(t, store.CreateReceipt(ctx, r))
	got, err := store.GetReceipt(ctx, r.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, expense.ProcessingPending, got.Status)
	assert.False(t, got.ExtractedAmount.Valid)
	assert.True(t, got.ExtractedDate.IsZero())
	assert.Equal(t, int64(1024), got.FileSize)

	// OCR completes
	got.Status = expense.ProcessingCompleted
	got.ExtractedAmount = decimal.NewNullDecimal(decimal.RequireFromString("12.34"))
	got.ExtractedDate = jan15
	got.ExtractedMerchant = "Deli"
	require.NoError(t, store.UpdateReceipt(ctx, got, expense.ProcessingPending))

	reloaded, err := store.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, expense.ProcessingCompleted, reloaded.Status)
	assert.Equal(t, "12.34", reloaded.ExtractedAmount.Decimal.StringFixed(2))
	assert.Equal(t, "2024-01-15", reloaded.ExtractedDate.String())

	// A stale writer loses
	stale := *reloaded
	stale.Status = expense.ProcessingFailed
	err = store.UpdateReceipt(ctx, &stale, expense.ProcessingPending)
	assert.ErrorIs(t, err, expense.ErrConflict)
}

func TestStorage_ListReceipts_MatchCounts(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	tx := sampleTransaction("DELI", "-12.34", jan15)
	_, err := store.InsertTransaction(ctx, tx)
	require.NoError(t, err)
	matched := completedReceipt("12.34", jan15, "Deli")
	require.NoError(t, store.CreateReceipt(ctx, matched))
	lonely := completedReceipt("99.00", jan15, "Other")
	require.NoError(t, store.CreateReceipt(ctx, lonely))

	_, err = store.InsertMatchIfAbsent(ctx, &expense.Match{TransactionID: tx.ID, ReceiptID: matched.ID, Confidence: decimal.NewFromInt(90)})
	require.NoError(t, err)

	list, err := store.ListReceipts(ctx, ReceiptFilters{})
	require.NoError(t, err)
	assert.Equal(t, 2, list.TotalCount)

	counts := make(map[int64]int)
	for _, s := range list.Receipts {
		counts[s.ID] = s.MatchCount
	}
	assert.Equal(t, 1, counts[matched.ID])
	assert.Equal(t, 0, counts[lonely.ID])

	filtered, err := store.ListReceipts(ctx, ReceiptFilters{Status: expense.ProcessingPending})
	require.NoError(t, err)
	assert.Equal(t, 0, filtered.TotalCount)
}

func TestStorage_ImportRuns(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	id, err := store.StartImportRun(ctx, "statement.csv")
	require.NoError(t, err)

	run := &expense.ImportRun{ID: id, Total: 5, Imported: 3, Duplicates: 1, Malformed: 1}
	require.NoError(t, store.CompleteImportRun(ctx, run))

	got, err := store.GetImportRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "statement.csv", got.Source)
	assert.Equal(t, expense.ImportCompleted, got.Status)
	assert.Equal(t, 3, got.Imported)
	require.NotNil(t, got.CompletedAt)

	runs, err := store.ListImportRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = store.GetImportRun(ctx, 999)
	assert.ErrorIs(t, err, expense.ErrNotFound)
}

func TestStorage_MatchEventsOutliveMatches(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	tx := sampleTransaction("DELI", "-12.34", jan15)
	_, err := store.InsertTransaction(ctx, tx)
	require.NoError(t, err)
	r := completedReceipt("12.34", jan15, "Deli")
	require.NoError(t, store.CreateReceipt(ctx, r))
	m := &expense.Match{TransactionID: tx.ID, ReceiptID: r.ID, Confidence: decimal.RequireFromString("88.25")}
	_, err = store.InsertMatchIfAbsent(ctx, m)
	require.NoError(t, err)

	require.NoError(t, store.LogMatchEvent(ctx, &expense.MatchEvent{
		MatchID: m.ID, TransactionID: tx.ID, ReceiptID: r.ID,
		Action: expense.ActionProposed, Source: expense.SourcePropose, Confidence: m.Confidence,
	}))
	_, err = store.DeleteMatch(ctx, m.ID)
	require.NoError(t, err)

	events, err := store.ListMatchEvents(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, expense.ActionProposed, events[0].Action)
	assert.Equal(t, "88.25", events[0].Confidence.StringFixed(2))
}

func TestStorage_Ping(t *testing.T) {
	store := newTestStorage(t)

	assert.NoError(t, store.Ping(context.Background()))

	require.NoError(t, store.Close())
	assert.Error(t, store.Ping(context.Background()))
}
