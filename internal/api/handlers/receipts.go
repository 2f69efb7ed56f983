package handlers

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eshaffer321/expense-matcher/internal/api/dto"
	"github.com/eshaffer321/expense-matcher/internal/application/service"
	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
)

// ReceiptFormField is the multipart field carrying a receipt image or PDF.
const ReceiptFormField = "receipt"

var receiptExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".pdf":  true,
}

// ReceiptsHandler handles receipt-related HTTP requests.
type ReceiptsHandler struct {
	*Base
	receipts  *service.ReceiptService
	maxUpload int64
}

// NewReceiptsHandler creates a new receipts handler.
func NewReceiptsHandler(receipts *service.ReceiptService, maxUpload int64, logger *slog.Logger) *ReceiptsHandler {
	return &ReceiptsHandler{
		Base:      NewBase(logger),
		receipts:  receipts,
		maxUpload: maxUpload,
	}
}

// List handles GET /api/receipts.
func (h *ReceiptsHandler) List(w http.ResponseWriter, r *http.Request) {
	p := parsePaging(r)
	filters := storage.ReceiptFilters{Limit: p.Limit, Offset: p.Offset}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := expense.ParseProcessingStatus(raw)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
			return
		}
		filters.Status = status
	}

	result, err := h.receipts.List(r.Context(), filters)
	if err != nil {
		h.writeServiceError(w, r, "receipt", err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ReceiptListResponse{
		Receipts:   result.Receipts,
		TotalCount: result.TotalCount,
		Page:       p.Page,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Unmatched handles GET /api/receipts/unmatched/list.
func (h *ReceiptsHandler) Unmatched(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.receipts.ListUnmatched(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "receipt", err)
		return
	}
	if receipts == nil {
		receipts = []*expense.Receipt{}
	}
	h.WriteJSON(w, http.StatusOK, receipts)
}

// Get handles GET /api/receipts/{id}.
func (h *ReceiptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	receipt, err := h.receipts.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "receipt", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, receipt)
}

// File handles GET /api/receipts/{id}/file and streams the stored upload.
func (h *ReceiptsHandler) File(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	receipt, f, err := h.receipts.Open(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "receipt", err)
		return
	}
	defer func() { _ = f.Close() }()

	contentType := receipt.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": receipt.OriginalFilename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("streaming receipt file interrupted", "receipt_id", id, "error", err)
	}
}

// Upload handles POST /api/receipts/upload with a multipart file.
func (h *ReceiptsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, ok := h.formFile(w, r, ReceiptFormField, h.maxUpload)
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !receiptExtensions[ext] {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("unsupported receipt file type "+strconv.Quote(ext)))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.TypeByExtension(ext)
	}

	receipt, err := h.receipts.Register(r.Context(), header.Filename, contentType, file)
	if err != nil {
		h.writeServiceError(w, r, "receipt", err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, receipt)
}

// Update handles PUT /api/receipts/{id} with user corrections to extracted fields.
func (h *ReceiptsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	var req dto.UpdateReceiptRequest
	if err := decodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	receipt, err := h.receipts.UpdateDetails(r.Context(), id, service.ReceiptEdit{
		Amount:   req.ExtractedAmount,
		Date:     req.ExtractedDate,
		Merchant: req.ExtractedMerchant,
	})
	if err != nil {
		h.writeServiceError(w, r, "receipt", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, receipt)
}

// Delete handles DELETE /api/receipts/{id}.
func (h *ReceiptsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	removed, err := h.receipts.Delete(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "receipt", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.DeleteResponse{Deleted: true, MatchesRemoved: removed})
}

// MarkProcessing handles POST /api/receipts/{id}/processing, sent by the OCR
// worker when it picks a receipt up.
func (h *ReceiptsHandler) MarkProcessing(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	receipt, err := h.receipts.MarkProcessing(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "receipt", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, receipt)
}

// RecordExtraction handles POST /api/receipts/{id}/extraction with the OCR result.
func (h *ReceiptsHandler) RecordExtraction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	var req dto.ExtractionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	status := expense.ProcessingCompleted
	if req.Status != "" {
		status, err = expense.ParseProcessingStatus(req.Status)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
			return
		}
	}

	receipt, err := h.receipts.RecordExtraction(r.Context(), id, service.Extraction{
		Amount:   req.Amount,
		Date:     req.Date,
		Merchant: req.Merchant,
		RawText:  req.RawText,
		Status:   status,
	})
	if err != nil {
		h.writeServiceError(w, r, "receipt", err)
		return
	}
	h.WriteJSON(w, http.StatusOK, receipt)
}
