package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/expense-matcher/internal/api/dto"
	"github.com/eshaffer321/expense-matcher/internal/api/middleware"
	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/eshaffer321/expense-matcher/internal/domain/normalizer"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// Base provides shared functionality for all handlers.
type Base struct {
	logger *slog.Logger
}

// NewBase creates a new base handler. A nil logger falls back to slog.Default.
func NewBase(logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{logger: logger}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// writeServiceError maps domain errors onto HTTP statuses. Anything it does
// not recognise is logged and reported as a generic 500.
func (b *Base) writeServiceError(w http.ResponseWriter, r *http.Request, resource string, err error) {
	switch {
	case errors.Is(err, expense.ErrNotFound):
		b.WriteError(w, http.StatusNotFound, dto.NotFoundError(resource))
	case errors.Is(err, expense.ErrConflict), errors.Is(err, expense.ErrInvalidTransition):
		b.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
	case errors.Is(err, expense.ErrReceiptNotReady), errors.Is(err, expense.ErrBelowMinScore):
		b.WriteError(w, http.StatusUnprocessableEntity, dto.UnprocessableError(err.Error()))
	case errors.Is(err, expense.ErrInvalidThreshold),
		errors.Is(err, expense.ErrInvalidImport),
		errors.Is(err, normalizer.ErrMalformed):
		b.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
	default:
		b.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		b.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	}
}

// formFile opens the named multipart file, capping the request body at limit.
// It writes the error response itself and reports whether the caller may go on.
func (b *Base) formFile(w http.ResponseWriter, r *http.Request, field string, limit int64) (multipart.File, *multipart.FileHeader, bool) {
	if r.ContentLength > limit {
		b.WriteError(w, http.StatusRequestEntityTooLarge, dto.PayloadTooLargeError("upload exceeds size limit"))
		return nil, nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			b.WriteError(w, http.StatusRequestEntityTooLarge, dto.PayloadTooLargeError("upload exceeds size limit"))
			return nil, nil, false
		}
		b.WriteError(w, http.StatusBadRequest, dto.BadRequestError("missing "+field+" file"))
		return nil, nil, false
	}
	return file, header, true
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// parseID reads a positive int64 chi URL parameter.
func parseID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// paging is the limit/offset window of a list request. Callers may send
// either offset directly or a 1-based page.
type paging struct {
	Page   int
	Limit  int
	Offset int
}

func parsePaging(r *http.Request) paging {
	limit := ParseIntParam(r, "limit", defaultPageLimit)
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	offset := ParseIntParam(r, "offset", -1)
	if offset < 0 {
		page := ParseIntParam(r, "page", 1)
		if page < 1 {
			page = 1
		}
		offset = (page - 1) * limit
	}
	return paging{Page: offset/limit + 1, Limit: limit, Offset: offset}
}
