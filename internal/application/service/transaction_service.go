package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/eshaffer321/expense-matcher/internal/domain/normalizer"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
	"github.com/shopspring/decimal"
)

// TransactionEdit holds user changes to a transaction. Nil fields are left unchanged.
type TransactionEdit struct {
	Date        *expense.Date    `json:"transaction_date"`
	Description *string          `json:"description"`
	Amount      *decimal.Decimal `json:"amount"`
	Category    *string          `json:"category"`
}

// TransactionService exposes imported transactions to the API.
type TransactionService struct {
	storage storage.Repository
	logger  *slog.Logger
}

// NewTransactionService creates a new transaction service.
func NewTransactionService(store storage.Repository, logger *slog.Logger) *TransactionService {
	return &TransactionService{storage: store, logger: logger}
}

// Get returns one transaction.
func (s *TransactionService) Get(ctx context.Context, id int64) (*expense.Transaction, error) {
	return s.storage.GetTransaction(ctx, id)
}

// List returns a page of transactions, newest first.
func (s *TransactionService) List(ctx context.Context, filters storage.TransactionFilters) (*storage.TransactionListResult, error) {
	return s.storage.ListTransactions(ctx, filters)
}

// Update applies a user edit. An edit that would duplicate another
// transaction returns expense.ErrConflict.
func (s *TransactionService) Update(ctx context.Context, id int64, edit TransactionEdit) (*expense.Transaction, error) {
	tx, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	if edit.Date != nil {
		if edit.Date.IsZero() {
			return nil, fmt.Errorf("%w: transaction date is required", normalizer.ErrMalformed)
		}
		tx.Date = *edit.Date
	}
	if edit.Description != nil {
		desc := normalizer.CanonicalDescription(*edit.Description)
		if desc == "" {
			return nil, fmt.Errorf("%w: empty description", normalizer.ErrMalformed)
		}
		tx.Description = desc
	}
	if edit.Amount != nil {
		tx.Amount = edit.Amount.Round(2)
	}
	if edit.Category != nil {
		tx.Category = strings.TrimSpace(*edit.Category)
	}

	if err := s.storage.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	s.logger.Info("transaction updated", "transaction_id", id)
	return tx, nil
}

// Delete removes a transaction and its matches, returning how many matches went with it.
func (s *TransactionService) Delete(ctx context.Context, id int64) (int, error) {
	removed, err := s.storage.DeleteTransaction(ctx, id)
	if err != nil {
		return 0, err
	}
	s.logger.Info("transaction deleted", "transaction_id", id, "matches_removed", removed)
	return removed, nil
}
