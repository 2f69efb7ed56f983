package handlers

import (
	"log/slog"
	"net/http"

	"github.com/eshaffer321/expense-matcher/internal/api/dto"
	"github.com/eshaffer321/expense-matcher/internal/application/service"
	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
)

// ImportsHandler handles import run history requests.
type ImportsHandler struct {
	*Base
	imports *service.ImportService
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(imports *service.ImportService, logger *slog.Logger) *ImportsHandler {
	return &ImportsHandler{
		Base:    NewBase(logger),
		imports: imports,
	}
}

// List handles GET /api/imports - returns the most recent import runs.
func (h *ImportsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)
	if limit <= 0 {
		limit = 20
	}

	runs, err := h.imports.ListRuns(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, "import run", err)
		return
	}

	response := dto.ImportRunListResponse{Runs: runs, Count: len(runs)}
	if response.Runs == nil {
		response.Runs = []*expense.ImportRun{}
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/imports/{id} - returns a single import run.
func (h *ImportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid import run ID"))
		return
	}

	run, err := h.imports.GetRun(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "import run", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, run)
}
