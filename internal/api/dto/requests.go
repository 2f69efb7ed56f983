package dto

import (
	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/shopspring/decimal"
)

// DefaultAutoMatchThreshold applies when an auto-match request omits the threshold.
const DefaultAutoMatchThreshold = 70.0

// AutoMatchRequest is the body of POST /api/matches/auto-match.
type AutoMatchRequest struct {
	Threshold *float64 `json:"threshold"`
}

// CreateMatchRequest is the body of POST /api/matches.
type CreateMatchRequest struct {
	TransactionID int64 `json:"transaction_id"`
	ReceiptID     int64 `json:"receipt_id"`
}

// UpdateTransactionRequest is the body of PUT /api/transactions/{id}.
// Omitted fields are left unchanged.
type UpdateTransactionRequest struct {
	Date        *expense.Date    `json:"transaction_date"`
	Description *string          `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
	Category    *string          `json:"category"`
}

// UpdateReceiptRequest is the body of PUT /api/receipts/{id}.
// Omitted fields are left unchanged.
type UpdateReceiptRequest struct {
	ExtractedAmount   *decimal.Decimal `json:"extracted_amount"`
	ExtractedDate     *expense.Date    `json:"extracted_date"`
	ExtractedMerchant *string          `json:"extracted_merchant"`
}

// ExtractionRequest is posted by the OCR collaborator when it finishes a receipt.
type ExtractionRequest struct {
	Amount   decimal.NullDecimal `json:"extracted_amount"`
	Date     expense.Date        `json:"extracted_date"`
	Merchant string              `json:"extracted_merchant"`
	RawText  string              `json:"ocr_text"`
	Status   string              `json:"processing_status"`
}
