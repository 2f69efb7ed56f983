package dto

import "github.com/eshaffer321/expense-matcher/internal/domain/expense"

// TransactionListResponse is returned when listing transactions.
// Page is 1-based and derived from Offset and Limit.
type TransactionListResponse struct {
	Transactions []*expense.Transaction `json:"transactions"`
	TotalCount   int                    `json:"total_count"`
	Page         int                    `json:"page"`
	Limit        int                    `json:"limit"`
	Offset       int                    `json:"offset"`
}
