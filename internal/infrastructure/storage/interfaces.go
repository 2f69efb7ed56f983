package storage

import (
	"context"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, in-memory mock)
// and makes testing with mocks straightforward.
//
// Lookups of missing rows return an error wrapping expense.ErrNotFound.
type Repository interface {
	TransactionRepository
	ReceiptRepository
	MatchRepository
	ImportRunRepository
	MatchEventRepository

	// Ping reports whether the database is reachable
	Ping(ctx context.Context) error
	Close() error
}

// TransactionRepository handles imported card transactions
type TransactionRepository interface {
	// InsertTransaction stores tx unless a row with the same natural key
	// (date, description, amount) or issuer id already exists.
	// It reports whether a row was created and sets tx.ID when it was.
	InsertTransaction(ctx context.Context, tx *expense.Transaction) (bool, error)

	// GetTransaction retrieves a transaction by ID
	GetTransaction(ctx context.Context, id int64) (*expense.Transaction, error)

	// ListTransactions returns transactions matching the filters with pagination
	ListTransactions(ctx context.Context, filters TransactionFilters) (*TransactionListResult, error)

	// ListTransactionsInDateRange returns transactions dated within [from, to]
	ListTransactionsInDateRange(ctx context.Context, from, to expense.Date) ([]*expense.Transaction, error)

	// UpdateTransaction applies a user edit. A clash with another row's
	// natural key or issuer id returns expense.ErrConflict.
	UpdateTransaction(ctx context.Context, tx *expense.Transaction) error

	// DeleteTransaction removes the transaction and every match referencing it.
	// It returns how many matches went with it.
	DeleteTransaction(ctx context.Context, id int64) (int, error)
}

// TransactionFilters defines filters for listing transactions
type TransactionFilters struct {
	Search string // Substring of the description (empty = all)
	Limit  int    // Max results (0 = default 50)
	Offset int    // Pagination offset
}

// TransactionListResult contains paginated transaction results
type TransactionListResult struct {
	Transactions []*expense.Transaction `json:"transactions"`
	TotalCount   int                    `json:"total_count"`
	Limit        int                    `json:"limit"`
	Offset       int                    `json:"offset"`
}

// ReceiptRepository handles uploaded receipts
type ReceiptRepository interface {
	// CreateReceipt stores a new receipt and sets its ID
	CreateReceipt(ctx context.Context, r *expense.Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(ctx context.Context, id int64) (*expense.Receipt, error)

	// ListReceipts returns receipts with their match counts, newest first
	ListReceipts(ctx context.Context, filters ReceiptFilters) (*ReceiptListResult, error)

	// ListUnmatchedReceipts returns completed receipts that have no confirmed match
	ListUnmatchedReceipts(ctx context.Context) ([]*expense.Receipt, error)

	// UpdateReceipt overwrites r only if the stored status still equals
	// expected; otherwise it returns expense.ErrConflict.
	UpdateReceipt(ctx context.Context, r *expense.Receipt, expected expense.ProcessingStatus) error

	// DeleteReceipt removes the receipt and its matches, returning how many matches went with it
	DeleteReceipt(ctx context.Context, id int64) (int, error)
}

// ReceiptFilters defines filters for listing receipts
type ReceiptFilters struct {
	Status expense.ProcessingStatus // Filter by processing status (empty = all)
	Limit  int                      // Max results (0 = default 50)
	Offset int                      // Pagination offset
}

// ReceiptListResult contains paginated receipt results
type ReceiptListResult struct {
	Receipts   []*ReceiptSummary `json:"receipts"`
	TotalCount int               `json:"total_count"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
}

// MatchRepository handles proposed and decided matches
type MatchRepository interface {
	// InsertMatchIfAbsent creates m unless the (transaction, receipt) pair
	// already has a row. When it does, m is overwritten with the existing row
	// and false is returned. A missing transaction or receipt returns
	// expense.ErrNotFound.
	InsertMatchIfAbsent(ctx context.Context, m *expense.Match) (bool, error)

	// GetMatch retrieves a match by ID
	GetMatch(ctx context.Context, id int64) (*expense.Match, error)

	// GetMatchByPair retrieves the match for a transaction/receipt pair
	GetMatchByPair(ctx context.Context, transactionID, receiptID int64) (*expense.Match, error)

	// TransitionMatch atomically applies the match state machine and reports
	// whether the row changed.
	TransitionMatch(ctx context.Context, id int64, target expense.MatchStatus) (*expense.Match, bool, error)

	// DeleteMatch removes a match and returns the deleted row
	DeleteMatch(ctx context.Context, id int64) (*expense.Match, error)

	// ListMatches returns joined match views, best confidence first
	ListMatches(ctx context.Context, filters MatchFilters) ([]*MatchDetail, error)

	// GetMatchDetail retrieves one joined match view
	GetMatchDetail(ctx context.Context, id int64) (*MatchDetail, error)

	// GetMatchStats returns aggregate match statistics
	GetMatchStats(ctx context.Context) (*MatchStats, error)
}

// MatchFilters defines filters for listing matches
type MatchFilters struct {
	Status        expense.MatchStatus // Filter by status (empty = all)
	ReceiptID     int64               // Filter by receipt (0 = all)
	TransactionID int64               // Filter by transaction (0 = all)
	Limit         int                 // Max results (0 = no limit)
}

// ImportRunRepository handles import run tracking
type ImportRunRepository interface {
	// StartImportRun records the start of an import and returns the run ID
	StartImportRun(ctx context.Context, source string) (int64, error)

	// CompleteImportRun records counts, final status and error of a run
	CompleteImportRun(ctx context.Context, run *expense.ImportRun) error

	// ListImportRuns returns recent runs, newest first
	ListImportRuns(ctx context.Context, limit int) ([]*expense.ImportRun, error)

	// GetImportRun retrieves a run by ID
	GetImportRun(ctx context.Context, id int64) (*expense.ImportRun, error)
}

// MatchEventRepository handles the match audit log
type MatchEventRepository interface {
	// LogMatchEvent appends an event to the audit log
	LogMatchEvent(ctx context.Context, event *expense.MatchEvent) error

	// ListMatchEvents returns the events of one match, oldest first
	ListMatchEvents(ctx context.Context, matchID int64) ([]*expense.MatchEvent, error)
}
