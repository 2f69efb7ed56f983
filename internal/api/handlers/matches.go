package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eshaffer321/expense-matcher/internal/api/dto"
	"github.com/eshaffer321/expense-matcher/internal/application/service"
	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
)

// MatchesHandler handles match lifecycle HTTP requests.
type MatchesHandler struct {
	*Base
	matches          *service.MatchService
	defaultThreshold float64
}

// NewMatchesHandler creates a new matches handler. defaultThreshold applies
// to auto-match requests that do not name one.
func NewMatchesHandler(matches *service.MatchService, defaultThreshold float64, logger *slog.Logger) *MatchesHandler {
	return &MatchesHandler{
		Base:             NewBase(logger),
		matches:          matches,
		defaultThreshold: defaultThreshold,
	}
}

// List handles GET /api/matches with optional status, receipt_id and
// transaction_id filters.
func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := storage.MatchFilters{Limit: ParseIntParam(r, "limit", 0)}

	if raw := q.Get("status"); raw != "" {
		status, err := expense.ParseMatchStatus(raw)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
			return
		}
		filters.Status = status
	}
	for name, dst := range map[string]*int64{"receipt_id": &filters.ReceiptID, "transaction_id": &filters.TransactionID} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid "+name))
			return
		}
		*dst = id
	}

	matches, err := h.matches.List(r.Context(), filters)
	if err != nil {
		h.writeServiceError(w, r, "match", err)
		return
	}
	h.writeMatches(w, matches)
}

// Pending handles GET /api/matches/pending.
func (h *MatchesHandler) Pending(w http.ResponseWriter, r *http.Request) {
	matches, err := h.matches.ListPending(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "match", err)
		return
	}
	h.writeMatches(w, matches)
}

func (h *MatchesHandler) writeMatches(w http.ResponseWriter, matches []*storage.MatchDetail) {
	if matches == nil {
		matches = []*storage.MatchDetail{}
	}
	h.WriteJSON(w, http.StatusOK, dto.MatchListResponse{Matches: matches, Count: len(matches)})
}

// Get handles GET /api/matches/{id}.
func (h *MatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	match, err := h.matches.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "match", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, match)
}

// Create handles POST /api/matches, proposing a user-chosen pair.
// It answers 201 when a new match was created and 200 when the pair
// already had one.
func (h *MatchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}
	if req.TransactionID <= 0 || req.ReceiptID <= 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("transaction_id and receipt_id are required"))
		return
	}

	proposal, err := h.matches.ProposePair(r.Context(), req.TransactionID, req.ReceiptID)
	if err != nil {
		h.writeServiceError(w, r, "transaction or receipt", err)
		return
	}

	status := http.StatusOK
	if proposal.Created {
		status = http.StatusCreated
	}
	h.WriteJSON(w, status, proposal)
}

// Find handles POST /api/matches/find/{receiptId}.
func (h *MatchesHandler) Find(w http.ResponseWriter, r *http.Request) {
	receiptID, err := parseID(r, "receiptId")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	proposals, err := h.matches.FindCandidates(r.Context(), receiptID)
	if err != nil {
		h.writeServiceError(w, r, "receipt", err)
		return
	}
	if proposals == nil {
		proposals = []*service.Proposal{}
	}
	h.WriteJSON(w, http.StatusOK, dto.NewCandidatesResponse(receiptID, proposals))
}

// AutoMatch handles POST /api/matches/auto-match. An empty body uses the
// default threshold.
func (h *MatchesHandler) AutoMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.AutoMatchRequest
	if err := decodeJSON(r, &req); err != nil && !isEmptyBody(err) {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	threshold := h.defaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	matched, err := h.matches.AutoMatch(r.Context(), threshold)
	if err != nil {
		h.writeServiceError(w, r, "match", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.AutoMatchResponse{Matched: matched, Threshold: threshold})
}

// Confirm handles PUT /api/matches/{id}/confirm.
func (h *MatchesHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.matches.Confirm)
}

// Reject handles PUT /api/matches/{id}/reject.
func (h *MatchesHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.matches.Reject)
}

func (h *MatchesHandler) decide(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id int64) (*expense.Match, error)) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	match, err := apply(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "match", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, match)
}

// Delete handles DELETE /api/matches/{id}.
func (h *MatchesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	if err := h.matches.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "match", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.DeleteResponse{Deleted: true, MatchesRemoved: 1})
}

// Events handles GET /api/matches/{id}/events. The log outlives the match,
// so a deleted match still answers with its history.
func (h *MatchesHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	events, err := h.matches.Events(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "match", err)
		return
	}
	if events == nil {
		events = []*expense.MatchEvent{}
	}
	h.WriteJSON(w, http.StatusOK, dto.MatchEventListResponse{Events: events, Count: len(events)})
}

// Stats handles GET /api/matches/stats.
func (h *MatchesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.matches.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "match", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, stats)
}

func isEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}
