// Package expense holds the domain model shared by the normalizer, matcher,
// services and storage: transactions, receipts, matches and their states.
package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one imported card-statement line.
// Amount is signed; negative means a debit.
type Transaction struct {
	ID                    int64               `json:"id"`
	Date                  Date                `json:"transaction_date"`
	Description           string              `json:"description"`
	Amount                decimal.Decimal     `json:"amount"`
	Category              string              `json:"category,omitempty"`
	CardLastFour          string              `json:"card_last_four,omitempty"`
	IssuerTransactionID   string              `json:"issuer_transaction_id,omitempty"`
	ExternalTransactionID string              `json:"external_transaction_id,omitempty"`
	SalesTax              decimal.NullDecimal `json:"sales_tax"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// AbsAmount returns the unsigned amount used for matching.
func (t *Transaction) AbsAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// Receipt is an uploaded document and whatever the OCR collaborator extracted from it.
type Receipt struct {
	ID                int64               `json:"id"`
	FileRef           string              `json:"file_ref"`
	OriginalFilename  string              `json:"original_filename"`
	FileSize          int64               `json:"file_size"`
	ContentType       string              `json:"content_type,omitempty"`
	UploadedAt        time.Time           `json:"upload_date"`
	OCRText           string              `json:"ocr_text,omitempty"`
	ExtractedAmount   decimal.NullDecimal `json:"extracted_amount"`
	ExtractedDate     Date                `json:"extracted_date"`
	ExtractedMerchant string              `json:"extracted_merchant,omitempty"`
	Status            ProcessingStatus    `json:"processing_status"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Matchable reports whether the receipt can enter the matching pipeline:
// OCR completed and both amount and date were extracted.
func (r *Receipt) Matchable() bool {
	return r.Status == ProcessingCompleted && r.ExtractedAmount.Valid && !r.ExtractedDate.IsZero()
}

// Match links one transaction to one receipt with a confidence in [0,100].
type Match struct {
	ID            int64           `json:"id"`
	TransactionID int64           `json:"transaction_id"`
	ReceiptID     int64           `json:"receipt_id"`
	Confidence    decimal.Decimal `json:"match_confidence"`
	Status        MatchStatus     `json:"match_status"`
	UserConfirmed bool            `json:"user_confirmed"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Apply moves m to target, keeping UserConfirmed in step with the status.
func (m *Match) Apply(target MatchStatus) (bool, error) {
	changed, err := m.Status.Transition(target)
	if err != nil || !changed {
		return changed, err
	}
	m.Status = target
	m.UserConfirmed = target == MatchConfirmed
	return true, nil
}

// MatchAction is the kind of change recorded in the match audit log.
type MatchAction string

const (
	ActionProposed  MatchAction = "proposed"
	ActionConfirmed MatchAction = "confirmed"
	ActionRejected  MatchAction = "rejected"
	ActionDeleted   MatchAction = "deleted"
)

// EventSource says who caused a match event.
type EventSource string

const (
	SourceUser    EventSource = "user"
	SourcePropose EventSource = "propose"
	SourceSweep   EventSource = "sweep"
)

// MatchEvent is an audit record; it outlives the match it refers to.
type MatchEvent struct {
	ID            int64           `json:"id"`
	MatchID       int64           `json:"match_id"`
	TransactionID int64           `json:"transaction_id"`
	ReceiptID     int64           `json:"receipt_id"`
	Action        MatchAction     `json:"action"`
	Source        EventSource     `json:"source"`
	Confidence    decimal.Decimal `json:"confidence"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ImportRun records one pass of the statement importer.
type ImportRun struct {
	ID          int64      `json:"id"`
	Source      string     `json:"source"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Total       int        `json:"total"`
	Imported    int        `json:"imported"`
	Duplicates  int        `json:"duplicates"`
	Malformed   int        `json:"malformed"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
}

// Import run statuses.
const (
	ImportRunning   = "running"
	ImportCompleted = "completed"
	ImportFailed    = "failed"
)
