package dto

import (
	"github.com/eshaffer321/expense-matcher/internal/application/service"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
)

// CandidatesResponse is returned by POST /api/matches/find/{receiptId}.
type CandidatesResponse struct {
	ReceiptID  int64               `json:"receipt_id"`
	Candidates []*service.Proposal `json:"candidates"`
	Count      int                 `json:"count"`
	Created    int                 `json:"created"`
}

// NewCandidatesResponse counts the proposals that created a new match.
func NewCandidatesResponse(receiptID int64, proposals []*service.Proposal) CandidatesResponse {
	created := 0
	for _, p := range proposals {
		if p.Created {
			created++
		}
	}
	return CandidatesResponse{
		ReceiptID:  receiptID,
		Candidates: proposals,
		Count:      len(proposals),
		Created:    created,
	}
}

// MatchListResponse is returned when listing matches.
type MatchListResponse struct {
	Matches []*storage.MatchDetail `json:"matches"`
	Count   int                    `json:"count"`
}

// ReceiptListResponse is returned when listing receipts.
type ReceiptListResponse struct {
	Receipts   []*storage.ReceiptSummary `json:"receipts"`
	TotalCount int                       `json:"total_count"`
	Page       int                       `json:"page"`
	Limit      int                       `json:"limit"`
	Offset     int                       `json:"offset"`
}
