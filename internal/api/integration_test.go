package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/expense-matcher/internal/api"
	"github.com/eshaffer321/expense-matcher/internal/api/dto"
	"github.com/eshaffer321/expense-matcher/internal/application/service"
	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/eshaffer321/expense-matcher/internal/domain/matcher"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/filestore"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
)

// =============================================================================
// API Integration Tests
// =============================================================================
// These tests use real SQLite databases and a real upload directory:
// HTTP request → Router → Handlers → Services → Storage → SQLite

func createTestServer(t *testing.T) (*httptest.Server, *storage.Storage) {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.NewStorage(filepath.Join(dir, "api_integration.db"), storage.WithLogger(logger))
	require.NoError(t, err)
	files, err := filestore.NewLocalStorage(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	m, err := matcher.NewMatcher(matcher.DefaultConfig())
	require.NoError(t, err)

	server := api.NewServer(api.DefaultConfig(), api.NewServices(store, files, m, logger), logger)
	ts := httptest.NewServer(server.Router())

	t.Cleanup(func() {
		ts.Close()
		_ = store.Close()
	})

	return ts, store
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postFile(t *testing.T, url, field, filename, content string, out any) int {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestAPI_Integration_HealthCheck(t *testing.T) {
	ts, _ := createTestServer(t)

	var health dto.HealthResponse
	status := doJSON(t, http.MethodGet, ts.URL+"/api/health", nil, &health)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Database)
}

func TestAPI_Integration_StarbucksFlow(t *testing.T) {
	ts, _ := createTestServer(t)

	// Import the statement
	statement := "Transaction Date,Post Date,Description,Category,Type,Amount,Memo\n" +
		"01/15/2024,01/16/2024,STARBUCKS STORE #12345,Food & Drink,Sale,-4.50,\n" +
		"01/20/2024,01/21/2024,AMAZON MKTPLACE,Shopping,Sale,-89.99,\n"
	var imported service.ImportResult
	status := postFile(t, ts.URL+"/api/transactions/import", "csvFile", "statement.csv", statement, &imported)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, imported.Imported)

	// Importing again adds nothing
	status = postFile(t, ts.URL+"/api/transactions/import", "csvFile", "statement.csv", statement, &imported)
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, imported.Imported)
	assert.Equal(t, 2, imported.Skipped)

	// Upload and extract the receipt
	var receipt expense.Receipt
	status = postFile(t, ts.URL+"/api/receipts/upload", "receipt", "starbucks.jpg", "jpeg", &receipt)
	require.Equal(t, http.StatusCreated, status)

	status = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/receipts/%d/extraction", ts.URL, receipt.ID), map[string]any{
		"extracted_amount":   "4.50",
		"extracted_date":     "2024-01-15",
		"extracted_merchant": "Starbucks",
		"processing_status":  "completed",
	}, &receipt)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, expense.ProcessingCompleted, receipt.Status)

	// Find candidates
	var candidates dto.CandidatesResponse
	status = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/matches/find/%d", ts.URL, receipt.ID), nil, &candidates)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, candidates.Count)
	top := candidates.Candidates[0]
	assert.Equal(t, "STARBUCKS STORE #12345", top.Transaction.Description)
	assert.True(t, top.Score.Confidence.GreaterThanOrEqual(decimal.NewFromInt(90)), "confidence %s", top.Score.Confidence)
	assert.Equal(t, expense.MatchPending, top.Status)

	// Auto-match finds nothing new
	var auto dto.AutoMatchResponse
	status = doJSON(t, http.MethodPost, ts.URL+"/api/matches/auto-match", map[string]any{"threshold": 70}, &auto)
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, auto.Matched)

	// Confirm, then a reject conflicts
	var confirmed expense.Match
	status = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/matches/%d/confirm", ts.URL, top.MatchID), nil, &confirmed)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, confirmed.UserConfirmed)

	var apiErr dto.APIError
	status = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/matches/%d/reject", ts.URL, top.MatchID), nil, &apiErr)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, dto.ErrCodeConflict, apiErr.Code)

	// Stats
	var stats storage.MatchStats
	status = doJSON(t, http.MethodGet, ts.URL+"/api/matches/stats", nil, &stats)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, stats.TotalMatches)
	assert.Equal(t, 1, stats.ConfirmedMatches)
	assert.Equal(t, 0, stats.UnmatchedReceipts)

	// Confirmed receipt leaves the unmatched list
	var unmatched []*expense.Receipt
	status = doJSON(t, http.MethodGet, ts.URL+"/api/receipts/unmatched/list", nil, &unmatched)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, unmatched)

	// Audit trail
	var events dto.MatchEventListResponse
	status = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/matches/%d/events", ts.URL, top.MatchID), nil, &events)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 2, events.Count)
	assert.Equal(t, expense.ActionProposed, events.Events[0].Action)
	assert.Equal(t, expense.ActionConfirmed, events.Events[1].Action)
}

func TestAPI_Integration_DeleteTransactionCascades(t *testing.T) {
	ts, _ := createTestServer(t)

	statement := "Date,Description,Amount\n2024-03-01,CORNER DELI,-12.00\n"
	var imported service.ImportResult
	require.Equal(t, http.StatusOK, postFile(t, ts.URL+"/api/transactions/import", "csvFile", "deli.csv", statement, &imported))
	require.Equal(t, 1, imported.Imported)

	var list dto.TransactionListResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/transactions", nil, &list))
	require.Len(t, list.Transactions, 1)
	txID := list.Transactions[0].ID

	var receipt expense.Receipt
	require.Equal(t, http.StatusCreated, postFile(t, ts.URL+"/api/receipts/upload", "receipt", "deli.pdf", "%PDF", &receipt))
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/receipts/%d/extraction", ts.URL, receipt.ID), map[string]any{
		"extracted_amount":   "12.00",
		"extracted_date":     "2024-03-01",
		"extracted_merchant": "Corner Deli",
	}, &receipt))

	var proposal service.Proposal
	status := doJSON(t, http.MethodPost, ts.URL+"/api/matches", dto.CreateMatchRequest{TransactionID: txID, ReceiptID: receipt.ID}, &proposal)
	require.Equal(t, http.StatusCreated, status)

	var deleted dto.DeleteResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/transactions/%d", ts.URL, txID), nil, &deleted))
	assert.Equal(t, 1, deleted.MatchesRemoved)

	var apiErr dto.APIError
	status = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/matches/%d", ts.URL, proposal.MatchID), nil, &apiErr)
	assert.Equal(t, http.StatusNotFound, status)

	var stats storage.MatchStats
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/matches/stats", nil, &stats))
	assert.Zero(t, stats.TotalMatches)
	assert.Equal(t, 1, stats.UnmatchedReceipts)
}

func TestAPI_Integration_ImportHistory(t *testing.T) {
	ts, _ := createTestServer(t)

	var imported service.ImportResult
	require.Equal(t, http.StatusOK, postFile(t, ts.URL+"/api/transactions/import", "csvFile", "a.csv", "Date,Description,Amount\n2024-03-01,TEA,-2.00\nbad,ROW,x\n", &imported))

	var runs dto.ImportRunListResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/api/imports", nil, &runs))
	require.Equal(t, 1, runs.Count)
	assert.Equal(t, "a.csv", runs.Runs[0].Source)
	assert.Equal(t, 1, runs.Runs[0].Malformed)
	assert.Equal(t, expense.ImportCompleted, runs.Runs[0].Status)
}
