package models

import (
	"encoding/json"
	"time"
)

// SegmentStatus constants
const (
	SegmentStatusActive   = "active"
	SegmentStatusArchived = "archived"
)

// Segment is a saved donor segment: a name plus a boolean rule tree stored
// as JSONB. The tree is compiled by pkg/segments before evaluation.
type Segment struct {
	ID          string          `json:"id" db:"id"`
	TenantID    string          `json:"tenant_id" db:"tenant_id"`
	Name        string          `json:"name" db:"name"`
	Description *string         `json:"description,omitempty" db:"description"`
	Definition  json.RawMessage `json:"definition" db:"definition"`
	Status      string          `json:"status" db:"status"`
	CreatedBy   *string         `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CreateSegmentRequest is the request to create a segment
type CreateSegmentRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description *string         `json:"description,omitempty"`
	Definition  json.RawMessage `json:"definition" validate:"required"`
}

// UpdateSegmentRequest is the request to update a segment
type UpdateSegmentRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Definition  json.RawMessage `json:"definition,omitempty"`
	Status      *string         `json:"status,omitempty" validate:"omitempty,oneof=active archived"`
}

// SegmentListResponse is the response for listing segments
type SegmentListResponse struct {
	Items      []Segment `json:"items"`
	TotalCount int       `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
}

// SegmentCountResponse is the response for the member count endpoint
type SegmentCountResponse struct {
	SegmentID string    `json:"segment_id"`
	Count     int       `json:"count"`
	Cached    bool      `json:"cached"`
	CountedAt time.Time `json:"counted_at"`
}

// SegmentPreviewRequest evaluates an unsaved definition against live donors
type SegmentPreviewRequest struct {
	Definition json.RawMessage `json:"definition" validate:"required"`
	Limit      int             `json:"limit,omitempty"`
}

// SegmentPreviewResponse is the response for the preview endpoint
type SegmentPreviewResponse struct {
	Items      []Donor `json:"items"`
	MatchCount int     `json:"match_count"`
	Scanned    int     `json:"scanned"`
}

// SegmentValidationError describes one invalid rule in a definition
type SegmentValidationError struct {
	Path    string `json:"path"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// SegmentValidationResponse is the response for the validate endpoint
type SegmentValidationResponse struct {
	Valid  bool                     `json:"valid"`
	Errors []SegmentValidationError `json:"errors,omitempty"`
}
