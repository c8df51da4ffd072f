package models

import (
	"time"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/database"
)

// ImportJobStatus constants
const (
	ImportStatusPending   = "pending"
	ImportStatusRunning   = "running"
	ImportStatusCompleted = "completed"
	ImportStatusFailed    = "failed"
)

// ImportColumnMapping maps a CSV column onto a donor field. Source is either
// a bare header name or a JMESPath expression applied to a JSON cell.
type ImportColumnMapping struct {
	Source      string   `json:"source" validate:"required"`
	TargetField string   `json:"target_field" validate:"required"`
	Normalizers []string `json:"normalizers,omitempty"`
	JMESPath    bool     `json:"jmespath,omitempty"`
}

// ImportJob tracks one CSV import run
type ImportJob struct {
	ID           string                                `json:"id" db:"id"`
	TenantID     string                                `json:"tenant_id" db:"tenant_id"`
	FileName     string                                `json:"file_name" db:"file_name"`
	Status       string                                `json:"status" db:"status"`
	Mappings     database.JSONB[[]ImportColumnMapping] `json:"mappings" db:"mappings"`
	TotalRows    int                                   `json:"total_rows" db:"total_rows"`
	ImportedRows int                                   `json:"imported_rows" db:"imported_rows"`
	SkippedRows  int                                   `json:"skipped_rows" db:"skipped_rows"`
	ErrorRows    int                                   `json:"error_rows" db:"error_rows"`
	Error        *string                               `json:"error,omitempty" db:"error"`
	StartedAt    *time.Time                            `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  *time.Time                            `json:"completed_at,omitempty" db:"completed_at"`
	CreatedBy    *string                               `json:"created_by,omitempty" db:"created_by"`
	CreatedAt    time.Time                             `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time                             `json:"updated_at" db:"updated_at"`
}

// ImportRowError records why a single CSV row was rejected or skipped
type ImportRowError struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	JobID     string    `json:"job_id" db:"job_id"`
	RowNumber int       `json:"row_number" db:"row_number"`
	Reason    string    `json:"reason" db:"reason"`
	RawRow    *string   `json:"raw_row,omitempty" db:"raw_row"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CreateImportJobRequest is the request to start an import
type CreateImportJobRequest struct {
	FileName string                `json:"file_name" validate:"required"`
	Mappings []ImportColumnMapping `json:"mappings" validate:"required,min=1,dive"`
}

// ImportJobListResponse is the response for listing import jobs
type ImportJobListResponse struct {
	Items      []ImportJob `json:"items"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
}
