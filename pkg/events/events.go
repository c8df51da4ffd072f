// Package events defines the service's Kafka event envelopes and an emitter
// that routes each event family to its topic.
package events

import (
	"encoding/json"
	"time"
)

// Event type constants
const (
	DonorCreated = "donor.created"
	DonorUpdated = "donor.updated"
	DonorDeleted = "donor.deleted"

	SegmentCreated  = "segment.created"
	SegmentUpdated  = "segment.updated"
	SegmentArchived = "segment.archived"
	SegmentDeleted  = "segment.deleted"

	DuplicateQueued    = "duplicate.queued"
	DuplicateConfirmed = "duplicate.confirmed"
	DuplicateDismissed = "duplicate.dismissed"

	ImportCompleted = "import.completed"
	ImportFailed    = "import.failed"
)

// SchemaVersion is stamped on every message header
const SchemaVersion = "1.0"

// DonorEvent is published for donor lifecycle changes
type DonorEvent struct {
	EventType string          `json:"event_type"`
	TenantID  string          `json:"tenant_id"`
	DonorID   string          `json:"donor_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// SegmentEvent is published for segment lifecycle changes
type SegmentEvent struct {
	EventType string          `json:"event_type"`
	TenantID  string          `json:"tenant_id"`
	SegmentID string          `json:"segment_id"`
	Name      string          `json:"name,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// DuplicateEvent is published when a candidate is queued or resolved
type DuplicateEvent struct {
	EventType        string    `json:"event_type"`
	TenantID         string    `json:"tenant_id"`
	CandidateID      string    `json:"candidate_id"`
	DonorID          string    `json:"donor_id"`
	CandidateDonorID string    `json:"candidate_donor_id"`
	Score            float64   `json:"score"`
	Confidence       string    `json:"confidence"`
	Timestamp        time.Time `json:"timestamp"`
}

// ImportEvent is published when an import run finishes
type ImportEvent struct {
	EventType    string    `json:"event_type"`
	TenantID     string    `json:"tenant_id"`
	JobID        string    `json:"job_id"`
	FileName     string    `json:"file_name"`
	TotalRows    int       `json:"total_rows"`
	ImportedRows int       `json:"imported_rows"`
	SkippedRows  int       `json:"skipped_rows"`
	ErrorRows    int       `json:"error_rows"`
	Timestamp    time.Time `json:"timestamp"`
}
