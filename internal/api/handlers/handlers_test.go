package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/expense-matcher/internal/application/service"
	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/eshaffer321/expense-matcher/internal/domain/matcher"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/filestore"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
)

const testMaxUpload = 1 << 20

var jan15 = expense.NewDate(2024, time.January, 15)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMatchService(t *testing.T, repo storage.Repository) *service.MatchService {
	t.Helper()
	m, err := matcher.NewMatcher(matcher.DefaultConfig())
	require.NoError(t, err)
	return service.NewMatchService(repo, m, discardLogger())
}

func newReceiptService(t *testing.T, repo storage.Repository) *service.ReceiptService {
	t.Helper()
	files, err := filestore.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return service.NewReceiptService(repo, files, discardLogger())
}

// withURLParams attaches chi route parameters so handlers can be called directly.
func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func multipartBody(t *testing.T, field, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func addTransaction(repo *storage.MockRepository, description, amount string, date expense.Date) *expense.Transaction {
	return repo.AddTransaction(&expense.Transaction{
		Date:        date,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
	})
}

func addCompletedReceipt(repo *storage.MockRepository, amount string, date expense.Date, merchant string) *expense.Receipt {
	return repo.AddReceipt(&expense.Receipt{
		FileRef:           "ref-" + merchant,
		OriginalFilename:  merchant + ".jpg",
		ExtractedAmount:   decimal.NewNullDecimal(decimal.RequireFromString(amount)),
		ExtractedDate:     date,
		ExtractedMerchant: merchant,
		Status:            expense.ProcessingCompleted,
	})
}
