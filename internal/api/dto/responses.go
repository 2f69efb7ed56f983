package dto

import (
	"time"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
)

// Health check values
const (
	HealthOK          = "ok"
	HealthDegraded    = "degraded"
	HealthUnavailable = "unavailable"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response stamped with the current time.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    HealthOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// AutoMatchResponse is returned by the auto-match sweep.
type AutoMatchResponse struct {
	Matched   int     `json:"matched"`
	Threshold float64 `json:"threshold"`
}

// DeleteResponse is returned when a transaction, receipt or match is deleted.
type DeleteResponse struct {
	Deleted        bool `json:"deleted"`
	MatchesRemoved int  `json:"matches_removed"`
}

// ImportRunListResponse is returned when listing import runs.
type ImportRunListResponse struct {
	Runs  []*expense.ImportRun `json:"runs"`
	Count int                  `json:"count"`
}

// MatchEventListResponse is returned when listing the audit log of a match.
type MatchEventListResponse struct {
	Events []*expense.MatchEvent `json:"events"`
	Count  int                   `json:"count"`
}
