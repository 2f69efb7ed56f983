package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It enforces the same uniqueness and cascade rules as the SQLite store,
// making service and handler tests fast and isolated.
type MockRepository struct {
	mu sync.Mutex

	transactions map[int64]*expense.Transaction
	receipts     map[int64]*expense.Receipt
	matches      map[int64]*expense.Match
	importRuns   map[int64]*expense.ImportRun
	events       []*expense.MatchEvent
	nextID       int64

	// Hooks for test assertions
	InsertMatchCalls    int
	TransitionCalls     int
	LastLoggedEvent     *expense.MatchEvent
	CompleteImportCalls int

	// Error injection for testing error paths
	InsertTransactionErr error
	InsertMatchErr       error
	GetReceiptErr        error
	ListReceiptsErr      error
	ListTransactionsErr  error
	TransitionErr        error
	StatsErr             error
	StartImportRunErr    error
	LogMatchEventErr     error
	PingErr              error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		transactions: make(map[int64]*expense.Transaction),
		receipts:     make(map[int64]*expense.Receipt),
		matches:      make(map[int64]*expense.Match),
		importRuns:   make(map[int64]*expense.ImportRun),
		nextID:       1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Ping returns PingErr
func (m *MockRepository) Ping(context.Context) error {
	return m.PingErr
}

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

func (m *MockRepository) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

// AddTransaction stores tx directly, bypassing duplicate checks. Test helper.
func (m *MockRepository) AddTransaction(tx *expense.Transaction) *expense.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ID == 0 {
		tx.ID = m.id()
	} else if tx.ID >= m.nextID {
		m.nextID = tx.ID + 1
	}
	copied := *tx
	m.transactions[tx.ID] = &copied
	return tx
}

// AddReceipt stores r directly. Test helper.
func (m *MockRepository) AddReceipt(r *expense.Receipt) *expense.Receipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.id()
	} else if r.ID >= m.nextID {
		m.nextID = r.ID + 1
	}
	if r.Status == "" {
		r.Status = expense.ProcessingPending
	}
	copied := *r
	m.receipts[r.ID] = &copied
	return r
}

// MatchCount returns the number of stored matches. Test helper.
func (m *MockRepository) MatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matches)
}

// ================================================================
// TRANSACTIONS
// ================================================================

func (m *MockRepository) duplicateOf(tx *expense.Transaction) bool {
	for _, existing := range m.transactions {
		if existing.ID == tx.ID {
			continue
		}
		if tx.IssuerTransactionID != "" && existing.IssuerTransactionID == tx.IssuerTransactionID {
			return true
		}
		if existing.Date.Equal(tx.Date) && existing.Description == tx.Description && existing.Amount.Equal(tx.Amount) {
			return true
		}
	}
	return false
}

// InsertTransaction stores tx unless it duplicates an existing row
func (m *MockRepository) InsertTransaction(_ context.Context, tx *expense.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertTransactionErr != nil {
		return false, m.InsertTransactionErr
	}
	tx.ID = 0
	if m.duplicateOf(tx) {
		return false, nil
	}
	now := time.Now().UTC()
	tx.ID = m.id()
	tx.CreatedAt, tx.UpdatedAt = now, now
	copied := *tx
	m.transactions[tx.ID] = &copied
	return true, nil
}

// GetTransaction retrieves a transaction from the in-memory map
func (m *MockRepository) GetTransaction(_ context.Context, id int64) (*expense.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, notFound("transaction", id)
	}
	copied := *tx
	return &copied, nil
}

// ListTransactions returns transactions newest first with pagination
func (m *MockRepository) ListTransactions(_ context.Context, filters TransactionFilters) (*TransactionListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListTransactionsErr != nil {
		return nil, m.ListTransactionsErr
	}

	all := make([]*expense.Transaction, 0, len(m.transactions))
	for _, tx := range m.transactions {
		if filters.Search != "" && !strings.Contains(strings.ToLower(tx.Description), strings.ToLower(filters.Search)) {
			continue
		}
		copied := *tx
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.After(all[j].Date)
		}
		return all[i].ID > all[j].ID
	})

	limit := pageLimit(filters.Limit)
	return &TransactionListResult{
		Transactions: page(all, filters.Offset, limit),
		TotalCount:   len(all),
		Limit:        limit,
		Offset:       filters.Offset,
	}, nil
}

// ListTransactionsInDateRange returns transactions dated within [from, to]
func (m *MockRepository) ListTransactionsInDateRange(_ context.Context, from, to expense.Date) ([]*expense.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListTransactionsErr != nil {
		return nil, m.ListTransactionsErr
	}
	out := make([]*expense.Transaction, 0)
	for _, tx := range m.transactions {
		if tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		copied := *tx
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateTransaction applies a user edit
func (m *MockRepository) UpdateTransaction(_ context.Context, tx *expense.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.transactions[tx.ID]
	if !ok {
		return notFound("transaction", tx.ID)
	}
	if m.duplicateOf(tx) {
		return fmt.Errorf("transaction %d: %w: duplicates an existing transaction", tx.ID, expense.ErrConflict)
	}
	tx.CreatedAt = existing.CreatedAt
	tx.UpdatedAt = time.Now().UTC()
	copied := *tx
	m.transactions[tx.ID] = &copied
	return nil
}

// DeleteTransaction removes a transaction and cascades to its matches
func (m *MockRepository) DeleteTransaction(_ context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[id]; !ok {
		return 0, notFound("transaction", id)
	}
	delete(m.transactions, id)
	return m.cascade(func(match *expense.Match) bool { return match.TransactionID == id }), nil
}

func (m *MockRepository) cascade(match func(*expense.Match) bool) int {
	removed := 0
	for id, existing := range m.matches {
		if match(existing) {
			delete(m.matches, id)
			removed++
		}
	}
	return removed
}

// ================================================================
// RECEIPTS
// ================================================================

// CreateReceipt stores a new receipt
func (m *MockRepository) CreateReceipt(_ context.Context, r *expense.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	r.ID = m.id()
	if r.UploadedAt.IsZero() {
		r.UploadedAt = now
	}
	if r.Status == "" {
		r.Status = expense.ProcessingPending
	}
	r.CreatedAt, r.UpdatedAt = now, now
	copied := *r
	m.receipts[r.ID] = &copied
	return nil
}

// GetReceipt retrieves a receipt from the in-memory map
func (m *MockRepository) GetReceipt(_ context.Context, id int64) (*expense.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetReceiptErr != nil {
		return nil, m.GetReceiptErr
	}
	r, ok := m.receipts[id]
	if !ok {
		return nil, notFound("receipt", id)
	}
	copied := *r
	return &copied, nil
}

// ListReceipts returns receipts with match counts, newest first
func (m *MockRepository) ListReceipts(_ context.Context, filters ReceiptFilters) (*ReceiptListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListReceiptsErr != nil {
		return nil, m.ListReceiptsErr
	}

	all := make([]*ReceiptSummary, 0, len(m.receipts))
	for _, r := range m.receipts {
		if filters.Status != "" && r.Status != filters.Status {
			continue
		}
		count := 0
		for _, match := range m.matches {
			if match.ReceiptID == r.ID {
				count++
			}
		}
		all = append(all, &ReceiptSummary{Receipt: *r, MatchCount: count})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	limit := pageLimit(filters.Limit)
	return &ReceiptListResult{
		Receipts:   page(all, filters.Offset, limit),
		TotalCount: len(all),
		Limit:      limit,
		Offset:     filters.Offset,
	}, nil
}

// ListUnmatchedReceipts returns completed receipts with no confirmed match
func (m *MockRepository) ListUnmatchedReceipts(_ context.Context) ([]*expense.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListReceiptsErr != nil {
		return nil, m.ListReceiptsErr
	}

	confirmed := make(map[int64]bool)
	for _, match := range m.matches {
		if match.Status == expense.MatchConfirmed {
			confirmed[match.ReceiptID] = true
		}
	}

	out := make([]*expense.Receipt, 0)
	for _, r := range m.receipts {
		if r.Status != expense.ProcessingCompleted || confirmed[r.ID] {
			continue
		}
		copied := *r
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// UpdateReceipt overwrites r if its stored status still equals expected
func (m *MockRepository) UpdateReceipt(_ context.Context, r *expense.Receipt, expected expense.ProcessingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.receipts[r.ID]
	if !ok {
		return notFound("receipt", r.ID)
	}
	if existing.Status != expected {
		return fmt.Errorf("receipt %d: %w: status is %s, expected %s", r.ID, expense.ErrConflict, existing.Status, expected)
	}
	r.UpdatedAt = time.Now().UTC()
	copied := *r
	m.receipts[r.ID] = &copied
	return nil
}

// DeleteReceipt removes a receipt and cascades to its matches
func (m *MockRepository) DeleteReceipt(_ context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.receipts[id]; !ok {
		return 0, notFound("receipt", id)
	}
	delete(m.receipts, id)
	return m.cascade(func(match *expense.Match) bool { return match.ReceiptID == id }), nil
}

// ================================================================
// MATCHES
// ================================================================

// InsertMatchIfAbsent creates match unless the pair already has a row
func (m *MockRepository) InsertMatchIfAbsent(_ context.Context, match *expense.Match) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertMatchCalls++
	if m.InsertMatchErr != nil {
		return false, m.InsertMatchErr
	}
	if _, ok := m.transactions[match.TransactionID]; !ok {
		return false, fmt.Errorf("match for transaction %d, receipt %d: %w", match.TransactionID, match.ReceiptID, expense.ErrNotFound)
	}
	if _, ok := m.receipts[match.ReceiptID]; !ok {
		return false, fmt.Errorf("match for transaction %d, receipt %d: %w", match.TransactionID, match.ReceiptID, expense.ErrNotFound)
	}

	for _, existing := range m.matches {
		if existing.TransactionID == match.TransactionID && existing.ReceiptID == match.ReceiptID {
			*match = *existing
			return false, nil
		}
	}

	if match.Status == "" {
		match.Status = expense.MatchPending
	}
	now := time.Now().UTC()
	match.ID = m.id()
	match.UserConfirmed = match.Status == expense.MatchConfirmed
	match.CreatedAt, match.UpdatedAt = now, now
	copied := *match
	m.matches[match.ID] = &copied
	return true, nil
}

// GetMatch retrieves a match from the in-memory map
func (m *MockRepository) GetMatch(_ context.Context, id int64) (*expense.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, notFound("match", id)
	}
	copied := *match
	return &copied, nil
}

// GetMatchByPair retrieves the match for a transaction/receipt pair
func (m *MockRepository) GetMatchByPair(_ context.Context, transactionID, receiptID int64) (*expense.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, match := range m.matches {
		if match.TransactionID == transactionID && match.ReceiptID == receiptID {
			copied := *match
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("match for transaction %d, receipt %d: %w", transactionID, receiptID, expense.ErrNotFound)
}

// TransitionMatch applies the match state machine
func (m *MockRepository) TransitionMatch(_ context.Context, id int64, target expense.MatchStatus) (*expense.Match, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransitionCalls++
	if m.TransitionErr != nil {
		return nil, false, m.TransitionErr
	}
	stored, ok := m.matches[id]
	if !ok {
		return nil, false, notFound("match", id)
	}
	changed, err := stored.Apply(target)
	if err != nil {
		return nil, false, fmt.Errorf("match %d: %w", id, err)
	}
	if changed {
		stored.UpdatedAt = time.Now().UTC()
	}
	copied := *stored
	return &copied, changed, nil
}

// DeleteMatch removes a match and returns the deleted row
func (m *MockRepository) DeleteMatch(_ context.Context, id int64) (*expense.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, notFound("match", id)
	}
	delete(m.matches, id)
	return match, nil
}

// ListMatches returns joined match views, best confidence first
func (m *MockRepository) ListMatches(_ context.Context, filters MatchFilters) ([]*MatchDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*MatchDetail, 0)
	for _, match := range m.matches {
		if filters.Status != "" && match.Status != filters.Status {
			continue
		}
		if filters.ReceiptID != 0 && match.ReceiptID != filters.ReceiptID {
			continue
		}
		if filters.TransactionID != 0 && match.TransactionID != filters.TransactionID {
			continue
		}
		out = append(out, m.detail(match))
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Confidence.Cmp(out[j].Confidence); c != 0 {
			return c > 0
		}
		return out[i].ID < out[j].ID
	})
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

// GetMatchDetail retrieves one joined match view
func (m *MockRepository) GetMatchDetail(_ context.Context, id int64) (*MatchDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, notFound("match", id)
	}
	return m.detail(match), nil
}

func (m *MockRepository) detail(match *expense.Match) *MatchDetail {
	d := &MatchDetail{Match: *match}
	if tx, ok := m.transactions[match.TransactionID]; ok {
		d.TransactionDate = tx.Date
		d.Description = tx.Description
		d.TransactionAmount = tx.Amount
	}
	if r, ok := m.receipts[match.ReceiptID]; ok {
		d.OriginalFilename = r.OriginalFilename
		d.ExtractedMerchant = r.ExtractedMerchant
		d.ExtractedAmount = r.ExtractedAmount
		d.ExtractedDate = r.ExtractedDate
	}
	return d
}

// GetMatchStats returns aggregate match statistics
func (m *MockRepository) GetMatchStats(_ context.Context) (*MatchStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatsErr != nil {
		return nil, m.StatsErr
	}

	stats := &MatchStats{TotalMatches: len(m.matches)}
	hasMatch := make(map[int64]bool)
	for _, match := range m.matches {
		hasMatch[match.ReceiptID] = true
		switch match.Status {
		case expense.MatchConfirmed:
			stats.ConfirmedMatches++
		case expense.MatchPending:
			stats.PendingMatches++
		case expense.MatchRejected:
			stats.RejectedMatches++
		}
	}
	for _, r := range m.receipts {
		if r.Status == expense.ProcessingCompleted && !hasMatch[r.ID] {
			stats.UnmatchedReceipts++
		}
	}
	return stats, nil
}

// ================================================================
// IMPORT RUNS & MATCH EVENTS
// ================================================================

// StartImportRun records the start of an import run
func (m *MockRepository) StartImportRun(_ context.Context, source string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartImportRunErr != nil {
		return 0, m.StartImportRunErr
	}
	id := m.id()
	m.importRuns[id] = &expense.ImportRun{
		ID:        id,
		Source:    source,
		StartedAt: time.Now().UTC(),
		Status:    expense.ImportRunning,
	}
	return id, nil
}

// CompleteImportRun records counts and the final status of a run
func (m *MockRepository) CompleteImportRun(_ context.Context, run *expense.ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteImportCalls++
	stored, ok := m.importRuns[run.ID]
	if !ok {
		return notFound("import run", run.ID)
	}
	completedAt := time.Now().UTC()
	if run.Status == "" {
		run.Status = expense.ImportCompleted
	}
	run.CompletedAt = &completedAt
	run.Source = stored.Source
	run.StartedAt = stored.StartedAt
	copied := *run
	m.importRuns[run.ID] = &copied
	return nil
}

// ListImportRuns returns recent import runs
func (m *MockRepository) ListImportRuns(_ context.Context, limit int) ([]*expense.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*expense.ImportRun, 0, len(m.importRuns))
	for _, run := range m.importRuns {
		copied := *run
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, 0, pageLimit(limit)), nil
}

// GetImportRun retrieves an import run by ID
func (m *MockRepository) GetImportRun(_ context.Context, id int64) (*expense.ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.importRuns[id]
	if !ok {
		return nil, notFound("import run", id)
	}
	copied := *run
	return &copied, nil
}

// LogMatchEvent appends an event to the in-memory audit log
func (m *MockRepository) LogMatchEvent(_ context.Context, event *expense.MatchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LogMatchEventErr != nil {
		return m.LogMatchEventErr
	}
	event.ID = int64(len(m.events) + 1)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	copied := *event
	m.events = append(m.events, &copied)
	m.LastLoggedEvent = &copied
	return nil
}

// ListMatchEvents returns the events of one match, oldest first
func (m *MockRepository) ListMatchEvents(_ context.Context, matchID int64) ([]*expense.MatchEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*expense.MatchEvent, 0)
	for _, e := range m.events {
		if e.MatchID == matchID {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return make([]T, 0)
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
