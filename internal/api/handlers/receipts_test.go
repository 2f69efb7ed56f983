package handlers_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/expense-matcher/internal/api/dto"
	"github.com/eshaffer321/expense-matcher/internal/api/handlers"
	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
)

func newReceiptsHandler(t *testing.T, repo *storage.MockRepository) *handlers.ReceiptsHandler {
	t.Helper()
	return handlers.NewReceiptsHandler(newReceiptService(t, repo), testMaxUpload, discardLogger())
}

func upload(t *testing.T, handler *handlers.ReceiptsHandler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, handlers.ReceiptFormField, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/receipts/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.Upload(rec, req)
	return rec
}

func TestReceiptsHandler_UploadAndFile(t *testing.T) {
	repo := storage.NewMockRepository()
	handler := newReceiptsHandler(t, repo)

	rec := upload(t, handler, "lunch.png", []byte("png-bytes"))

	require.Equal(t, http.StatusCreated, rec.Code)
	receipt := decode[expense.Receipt](t, rec)
	assert.Equal(t, expense.ProcessingPending, receipt.Status)
	assert.Equal(t, "lunch.png", receipt.OriginalFilename)
	assert.Equal(t, int64(9), receipt.FileSize)

	rec = httptest.NewRecorder()
	handler.File(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), idParam(receipt.ID)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "lunch.png")
}

func TestReceiptsHandler_UploadRejectsUnsupportedType(t *testing.T) {
	handler := newReceiptsHandler(t, storage.NewMockRepository())

	rec := upload(t, handler, "notes.txt", []byte("hello"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, dto.ErrCodeValidation, decode[dto.APIError](t, rec).Code)
}

func TestReceiptsHandler_OCRLifecycle(t *testing.T) {
	repo := storage.NewMockRepository()
	handler := newReceiptsHandler(t, repo)
	rec := upload(t, handler, "coffee.jpg", []byte("jpeg"))
	require.Equal(t, http.StatusCreated, rec.Code)
	receipt := decode[expense.Receipt](t, rec)

	// Processing
	rec = httptest.NewRecorder()
	handler.MarkProcessing(rec, withURLParams(httptest.NewRequest(http.MethodPost, "/", nil), idParam(receipt.ID)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, expense.ProcessingProcessing, decode[expense.Receipt](t, rec).Status)

	// Extraction
	body := `{"extracted_amount": "4.50", "extracted_date": "2024-01-15", "extracted_merchant": "Starbucks", "ocr_text": "STARBUCKS TOTAL 4.50"}`
	rec = httptest.NewRecorder()
	handler.RecordExtraction(rec, withURLParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), idParam(receipt.ID)))
	require.Equal(t, http.StatusOK, rec.Code)
	completed := decode[expense.Receipt](t, rec)
	assert.Equal(t, expense.ProcessingCompleted, completed.Status)
	assert.Equal(t, jan15, completed.ExtractedDate)
	assert.Equal(t, "4.50", completed.ExtractedAmount.Decimal.StringFixed(2))

	// A second result for a finished receipt conflicts
	rec = httptest.NewRecorder()
	handler.RecordExtraction(rec, withURLParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"processing_status": "failed"}`)), idParam(receipt.ID)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Appears in the unmatched list
	rec = httptest.NewRecorder()
	handler.Unmatched(rec, httptest.NewRequest(http.MethodGet, "/api/receipts/unmatched/list", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	unmatched := decode[[]*expense.Receipt](t, rec)
	require.Len(t, unmatched, 1)
	assert.Equal(t, receipt.ID, unmatched[0].ID)
}

func TestReceiptsHandler_RecordExtractionValidation(t *testing.T) {
	repo := storage.NewMockRepository()
	handler := newReceiptsHandler(t, repo)
	receipt := repo.AddReceipt(&expense.Receipt{FileRef: "r.jpg"})

	t.Run("unknown status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"processing_status": "done"}`))
		handler.RecordExtraction(rec, withURLParams(req, idParam(receipt.ID)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-terminal status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"processing_status": "processing"}`))
		handler.RecordExtraction(rec, withURLParams(req, idParam(receipt.ID)))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("bad date", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"extracted_date": "01/15/2024"}`))
		handler.RecordExtraction(rec, withURLParams(req, idParam(receipt.ID)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestReceiptsHandler_ListUpdateDelete(t *testing.T) {
	repo := storage.NewMockRepository()
	handler := newReceiptsHandler(t, repo)
	rec := upload(t, handler, "a.jpg", []byte("a"))
	require.Equal(t, http.StatusCreated, rec.Code)
	receipt := decode[expense.Receipt](t, rec)
	addCompletedReceipt(repo, "10.00", jan15, "Deli")

	rec = httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/receipts?status=pending", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[dto.ReceiptListResponse](t, rec)
	assert.Equal(t, 1, list.TotalCount)
	assert.Equal(t, 1, list.Page)

	rec = httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/receipts?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"extracted_merchant": " Corner Deli ", "extracted_amount": "12.50"}`))
	handler.Update(rec, withURLParams(req, idParam(receipt.ID)))
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[expense.Receipt](t, rec)
	assert.Equal(t, "Corner Deli", updated.ExtractedMerchant)
	assert.Equal(t, "12.50", updated.ExtractedAmount.Decimal.StringFixed(2))

	rec = httptest.NewRecorder()
	handler.Delete(rec, withURLParams(httptest.NewRequest(http.MethodDelete, "/", nil), idParam(receipt.ID)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.Get(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), idParam(receipt.ID)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReceiptsHandler_StorageFailures(t *testing.T) {
	repo := storage.NewMockRepository()
	addCompletedReceipt(repo, "4.50", jan15, "Starbucks")
	repo.ListReceiptsErr = errors.New("no such table: receipts")
	repo.GetReceiptErr = errors.New("no such table: receipts")
	handler := newReceiptsHandler(t, repo)

	for name, serve := range map[string]http.HandlerFunc{
		"list":      handler.List,
		"unmatched": handler.Unmatched,
		"get":       func(w http.ResponseWriter, r *http.Request) { handler.Get(w, withURLParams(r, idParam(1))) },
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			serve(rec, httptest.NewRequest(http.MethodGet, "/api/receipts", nil))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "no such table")
		})
	}
}
