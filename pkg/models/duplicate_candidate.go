package models

import (
	"time"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/database"
)

// Confidence bands for duplicate scores
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// DuplicateCandidateStatus constants
const (
	DuplicateStatusPending   = "pending"
	DuplicateStatusConfirmed = "confirmed"
	DuplicateStatusDismissed = "dismissed"
)

// DuplicateCandidate is a scored potential duplicate pair queued for review
type DuplicateCandidate struct {
	ID               string                   `json:"id" db:"id"`
	TenantID         string                   `json:"tenant_id" db:"tenant_id"`
	DonorID          string                   `json:"donor_id" db:"donor_id"`
	CandidateDonorID string                   `json:"candidate_donor_id" db:"candidate_donor_id"`
	Score            float64                  `json:"score" db:"score"`
	Confidence       string                   `json:"confidence" db:"confidence"`
	MatchStrategy    string                   `json:"match_strategy" db:"match_strategy"`
	Reasons          database.JSONB[[]string] `json:"reasons" db:"reasons"`
	Status           string                   `json:"status" db:"status"`
	CreatedAt        time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at" db:"updated_at"`
	ResolvedAt       *time.Time               `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy       *string                  `json:"resolved_by,omitempty" db:"resolved_by"`
}

// ResolveDuplicateRequest confirms or dismisses a queued candidate
type ResolveDuplicateRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed dismissed"`
}

// DuplicateCandidateListResponse is the response for listing candidates
type DuplicateCandidateListResponse struct {
	Items      []DuplicateCandidate `json:"items"`
	TotalCount int                  `json:"total_count"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
}

// DuplicateMatch is one scored match returned by a duplicate check
type DuplicateMatch struct {
	Donor         Donor    `json:"donor"`
	Score         float64  `json:"score"`
	Confidence    string   `json:"confidence"`
	MatchStrategy string   `json:"match_strategy"`
	Reasons       []string `json:"reasons"`
}

// CheckDuplicatesResponse is the response for the check-duplicates endpoint
type CheckDuplicatesResponse struct {
	Matches []DuplicateMatch `json:"matches"`
}
