package handlers

import (
	"log/slog"
	"net/http"

	"github.com/eshaffer321/expense-matcher/internal/api/dto"
	"github.com/eshaffer321/expense-matcher/internal/application/service"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
)

// ImportFormField is the multipart field carrying a bank statement CSV.
const ImportFormField = "csvFile"

// TransactionsHandler handles transaction-related HTTP requests.
type TransactionsHandler struct {
	*Base
	transactions *service.TransactionService
	imports      *service.ImportService
	maxUpload    int64
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(transactions *service.TransactionService, imports *service.ImportService, maxUpload int64, logger *slog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		Base:         NewBase(logger),
		transactions: transactions,
		imports:      imports,
		maxUpload:    maxUpload,
	}
}

// List handles GET /api/transactions.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	p := parsePaging(r)

	result, err := h.transactions.List(r.Context(), storage.TransactionFilters{
		Search: r.URL.Query().Get("search"),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		h.writeServiceError(w, r, "transaction", err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.TransactionListResponse{
		Transactions: result.Transactions,
		TotalCount:   result.TotalCount,
		Page:         p.Page,
		Limit:        result.Limit,
		Offset:       result.Offset,
	})
}

// Get handles GET /api/transactions/{id}.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	tx, err := h.transactions.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "transaction", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, tx)
}

// Update handles PUT /api/transactions/{id}.
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	var req dto.UpdateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	tx, err := h.transactions.Update(r.Context(), id, service.TransactionEdit{
		Date:        req.Date,
		Description: req.Description,
		Amount:      req.Amount,
		Category:    req.Category,
	})
	if err != nil {
		h.writeServiceError(w, r, "transaction", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, tx)
}

// Delete handles DELETE /api/transactions/{id}. Matches referencing the
// transaction are removed with it.
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	removed, err := h.transactions.Delete(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "transaction", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.DeleteResponse{Deleted: true, MatchesRemoved: removed})
}

// Import handles POST /api/transactions/import with a multipart CSV upload.
func (h *TransactionsHandler) Import(w http.ResponseWriter, r *http.Request) {
	file, header, ok := h.formFile(w, r, ImportFormField, h.maxUpload)
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.imports.ImportCSV(r.Context(), header.Filename, file)
	if err != nil {
		h.writeServiceError(w, r, "import", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}
