package handlers_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/expense-matcher/internal/api/dto"
	"github.com/eshaffer321/expense-matcher/internal/api/handlers"
	"github.com/eshaffer321/expense-matcher/internal/application/service"
	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
)

func newMatchesHandler(t *testing.T, repo *storage.MockRepository) *handlers.MatchesHandler {
	t.Helper()
	return handlers.NewMatchesHandler(newMatchService(t, repo), dto.DefaultAutoMatchThreshold, discardLogger())
}

func idParam(id int64) map[string]string {
	return map[string]string{"id": strconv.FormatInt(id, 10)}
}

func TestMatchesHandler_Find(t *testing.T) {
	t.Run("proposes the Starbucks transaction", func(t *testing.T) {
		repo := storage.NewMockRepository()
		tx := addTransaction(repo, "STARBUCKS STORE #12345", "-4.50", jan15)
		receipt := addCompletedReceipt(repo, "4.50", jan15, "Starbucks")
		handler := newMatchesHandler(t, repo)

		req := httptest.NewRequest(http.MethodPost, "/api/matches/find/1", nil)
		req = withURLParams(req, map[string]string{"receiptId": strconv.FormatInt(receipt.ID, 10)})
		rec := httptest.NewRecorder()

		handler.Find(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		response := decode[dto.CandidatesResponse](t, rec)
		require.Equal(t, 1, response.Count)
		assert.Equal(t, 1, response.Created)
		assert.Equal(t, tx.ID, response.Candidates[0].Transaction.ID)
		assert.True(t, response.Candidates[0].Score.Confidence.GreaterThanOrEqual(decimal.NewFromInt(90)))
	})

	t.Run("receipt without extraction is unprocessable", func(t *testing.T) {
		repo := storage.NewMockRepository()
		receipt := repo.AddReceipt(&expense.Receipt{FileRef: "pending.jpg"})
		handler := newMatchesHandler(t, repo)

		req := withURLParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"receiptId": strconv.FormatInt(receipt.ID, 10)})
		rec := httptest.NewRecorder()

		handler.Find(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, dto.ErrCodeUnprocessable, decode[dto.APIError](t, rec).Code)
	})

	t.Run("missing receipt is 404", func(t *testing.T) {
		handler := newMatchesHandler(t, storage.NewMockRepository())

		req := withURLParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"receiptId": "42"})
		rec := httptest.NewRecorder()

		handler.Find(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-numeric id is 400", func(t *testing.T) {
		handler := newMatchesHandler(t, storage.NewMockRepository())

		req := withURLParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"receiptId": "abc"})
		rec := httptest.NewRecorder()

		handler.Find(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMatchesHandler_AutoMatch(t *testing.T) {
	t.Run("empty body uses the default threshold", func(t *testing.T) {
		repo := storage.NewMockRepository()
		addTransaction(repo, "STARBUCKS STORE #12345", "-4.50", jan15)
		addCompletedReceipt(repo, "4.50", jan15, "Starbucks")
		handler := newMatchesHandler(t, repo)

		req := httptest.NewRequest(http.MethodPost, "/api/matches/auto-match", nil)
		rec := httptest.NewRecorder()

		handler.AutoMatch(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		response := decode[dto.AutoMatchResponse](t, rec)
		assert.Equal(t, 1, response.Matched)
		assert.InDelta(t, 70.0, response.Threshold, 0.0001)
	})

	t.Run("threshold 100 creates nothing on imperfect data", func(t *testing.T) {
		repo := storage.NewMockRepository()
		addTransaction(repo, "SHELL OIL 5744", "-42.10", jan15.AddDays(1))
		addCompletedReceipt(repo, "42.10", jan15, "Shell")
		handler := newMatchesHandler(t, repo)

		req := httptest.NewRequest(http.MethodPost, "/api/matches/auto-match", strings.NewReader(`{"threshold": 100}`))
		rec := httptest.NewRecorder()

		handler.AutoMatch(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, decode[dto.AutoMatchResponse](t, rec).Matched)
		assert.Zero(t, repo.MatchCount())
	})

	t.Run("out of range threshold is 400", func(t *testing.T) {
		handler := newMatchesHandler(t, storage.NewMockRepository())

		req := httptest.NewRequest(http.MethodPost, "/api/matches/auto-match", strings.NewReader(`{"threshold": 150}`))
		rec := httptest.NewRecorder()

		handler.AutoMatch(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, dto.ErrCodeValidation, decode[dto.APIError](t, rec).Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		handler := newMatchesHandler(t, storage.NewMockRepository())

		req := httptest.NewRequest(http.MethodPost, "/api/matches/auto-match", strings.NewReader(`{"threshold": "high"}`))
		rec := httptest.NewRecorder()

		handler.AutoMatch(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMatchesHandler_ConfirmReject(t *testing.T) {
	repo := storage.NewMockRepository()
	tx := addTransaction(repo, "STARBUCKS STORE #12345", "-4.50", jan15)
	receipt := addCompletedReceipt(repo, "4.50", jan15, "Starbucks")
	_, err := repo.InsertMatchIfAbsent(t.Context(), &expense.Match{TransactionID: tx.ID, ReceiptID: receipt.ID, Confidence: decimal.NewFromInt(95)})
	require.NoError(t, err)
	match, err := repo.GetMatchByPair(t.Context(), tx.ID, receipt.ID)
	require.NoError(t, err)
	handler := newMatchesHandler(t, repo)

	// Confirm
	rec := httptest.NewRecorder()
	handler.Confirm(rec, withURLParams(httptest.NewRequest(http.MethodPut, "/", nil), idParam(match.ID)))
	require.Equal(t, http.StatusOK, rec.Code)
	confirmed := decode[expense.Match](t, rec)
	assert.Equal(t, expense.MatchConfirmed, confirmed.Status)
	assert.True(t, confirmed.UserConfirmed)

	// Confirm again is a no-op
	rec = httptest.NewRecorder()
	handler.Confirm(rec, withURLParams(httptest.NewRequest(http.MethodPut, "/", nil), idParam(match.ID)))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Reject after confirm conflicts
	rec = httptest.NewRecorder()
	handler.Reject(rec, withURLParams(httptest.NewRequest(http.MethodPut, "/", nil), idParam(match.ID)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, dto.ErrCodeConflict, decode[dto.APIError](t, rec).Code)

	stored, err := repo.GetMatch(t.Context(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, expense.MatchConfirmed, stored.Status)

	// Events
	rec = httptest.NewRecorder()
	handler.Events(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), idParam(match.ID)))
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[dto.MatchEventListResponse](t, rec)
	require.Equal(t, 1, events.Count)
	assert.Equal(t, expense.ActionConfirmed, events.Events[0].Action)
}

func TestMatchesHandler_Create(t *testing.T) {
	t.Run("creates a pending match for a user pair", func(t *testing.T) {
		repo := storage.NewMockRepository()
		tx := addTransaction(repo, "STARBUCKS STORE #12345", "-4.50", jan15)
		receipt := addCompletedReceipt(repo, "4.50", jan15, "Starbucks")
		handler := newMatchesHandler(t, repo)

		body := jsonBody(t, dto.CreateMatchRequest{TransactionID: tx.ID, ReceiptID: receipt.ID})
		rec := httptest.NewRecorder()
		handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/matches", body))

		assert.Equal(t, http.StatusCreated, rec.Code)
		proposal := decode[service.Proposal](t, rec)
		assert.True(t, proposal.Created)
		assert.Equal(t, expense.MatchPending, proposal.Status)

		// Same pair again returns the existing row
		body = jsonBody(t, dto.CreateMatchRequest{TransactionID: tx.ID, ReceiptID: receipt.ID})
		rec = httptest.NewRecorder()
		handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/matches", body))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, repo.MatchCount())
	})

	t.Run("pair below the floor is unprocessable", func(t *testing.T) {
		repo := storage.NewMockRepository()
		tx := addTransaction(repo, "HOME DEPOT", "-120.00", jan15.AddDays(5))
		receipt := addCompletedReceipt(repo, "4.50", jan15, "Starbucks")
		handler := newMatchesHandler(t, repo)

		body := jsonBody(t, dto.CreateMatchRequest{TransactionID: tx.ID, ReceiptID: receipt.ID})
		rec := httptest.NewRecorder()
		handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/matches", body))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Zero(t, repo.MatchCount())
	})

	t.Run("missing ids are rejected", func(t *testing.T) {
		handler := newMatchesHandler(t, storage.NewMockRepository())

		rec := httptest.NewRecorder()
		handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/matches", strings.NewReader(`{"receipt_id": 1}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMatchesHandler_ListAndDelete(t *testing.T) {
	repo := storage.NewMockRepository()
	tx := addTransaction(repo, "STARBUCKS STORE #12345", "-4.50", jan15)
	receipt := addCompletedReceipt(repo, "4.50", jan15, "Starbucks")
	_, err := repo.InsertMatchIfAbsent(t.Context(), &expense.Match{TransactionID: tx.ID, ReceiptID: receipt.ID, Confidence: decimal.NewFromInt(95)})
	require.NoError(t, err)
	handler := newMatchesHandler(t, repo)

	rec := httptest.NewRecorder()
	handler.Pending(rec, httptest.NewRequest(http.MethodGet, "/api/matches/pending", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[dto.MatchListResponse](t, rec)
	require.Equal(t, 1, pending.Count)
	assert.Equal(t, "Starbucks.jpg", pending.Matches[0].OriginalFilename)

	rec = httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/matches?status=confirmed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[dto.MatchListResponse](t, rec).Count)

	rec = httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/matches?status=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := pending.Matches[0].ID
	rec = httptest.NewRecorder()
	handler.Delete(rec, withURLParams(httptest.NewRequest(http.MethodDelete, "/", nil), idParam(id)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, repo.MatchCount())

	rec = httptest.NewRecorder()
	handler.Get(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), idParam(id)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMatchesHandler_Stats(t *testing.T) {
	t.Run("returns counts", func(t *testing.T) {
		repo := storage.NewMockRepository()
		addCompletedReceipt(repo, "4.50", jan15, "Starbucks")
		handler := newMatchesHandler(t, repo)

		rec := httptest.NewRecorder()
		handler.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/matches/stats", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		stats := decode[storage.MatchStats](t, rec)
		assert.Equal(t, 0, stats.TotalMatches)
		assert.Equal(t, 1, stats.UnmatchedReceipts)
	})

	t.Run("storage failure hides details", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.StatsErr = errors.New("disk I/O error at /var/lib/expenses.db")
		handler := newMatchesHandler(t, repo)

		rec := httptest.NewRecorder()
		handler.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/matches/stats", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "disk I/O")
		assert.Equal(t, dto.ErrCodeInternalError, decode[dto.APIError](t, rec).Code)
	})
}

func TestMatchesHandler_ConfirmStorageFailure(t *testing.T) {
	repo := storage.NewMockRepository()
	addTransaction(repo, "STARBUCKS STORE #12345", "-4.50", jan15)
	receipt := addCompletedReceipt(repo, "4.50", jan15, "Starbucks")
	proposals, err := newMatchService(t, repo).FindCandidates(t.Context(), receipt.ID)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	repo.TransitionErr = errors.New("SQLITE_BUSY: /var/lib/expenses.db")
	handler := newMatchesHandler(t, repo)

	rec := httptest.NewRecorder()
	handler.Confirm(rec, withURLParams(httptest.NewRequest(http.MethodPut, "/", nil), idParam(proposals[0].MatchID)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "SQLITE_BUSY")
	assert.Equal(t, 1, repo.TransitionCalls)
}
