package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/kafka"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
)

// Topics routes each event family to its Kafka topic
type Topics struct {
	Donor     string
	Segment   string
	Duplicate string
	Import    string
}

// Emitter publishes lifecycle events for donors, segments, duplicates and
// imports. Emission failures are logged and returned but callers treat them
// as non-fatal: the write already committed.
type Emitter struct {
	producer *kafka.Producer
	topics   Topics
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, topics Topics, logger ectologger.Logger) *Emitter {
	return &Emitter{producer: producer, topics: topics, logger: logger}
}

func headers(eventType, tenantID string) map[string]string {
	return map[string]string{
		"event_type":     eventType,
		"tenant_id":      tenantID,
		"schema_version": SchemaVersion,
	}
}

// EmitDonor emits a donor lifecycle event keyed by donor ID
func (e *Emitter) EmitDonor(ctx context.Context, eventType string, donor *models.Donor) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDonor")
	defer span.End()

	data, err := json.Marshal(donor)
	if err != nil {
		return err
	}

	event := &DonorEvent{
		EventType: eventType,
		TenantID:  donor.TenantID,
		DonorID:   donor.ID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	if err := e.producer.Publish(ctx, e.topics.Donor, donor.ID, event, headers(eventType, donor.TenantID)); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
			"donor_id":   donor.ID,
		}).Error("Failed to emit donor event")
		return err
	}
	return nil
}

// EmitSegment emits a segment lifecycle event keyed by segment ID
func (e *Emitter) EmitSegment(ctx context.Context, eventType string, segment *models.Segment) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitSegment")
	defer span.End()

	event := &SegmentEvent{
		EventType: eventType,
		TenantID:  segment.TenantID,
		SegmentID: segment.ID,
		Name:      segment.Name,
		Data:      segment.Definition,
		Timestamp: time.Now().UTC(),
	}

	if err := e.producer.Publish(ctx, e.topics.Segment, segment.ID, event, headers(eventType, segment.TenantID)); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
			"segment_id": segment.ID,
		}).Error("Failed to emit segment event")
		return err
	}
	return nil
}

// EmitDuplicate emits a duplicate queue event keyed by candidate ID
func (e *Emitter) EmitDuplicate(ctx context.Context, eventType string, candidate *models.DuplicateCandidate) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDuplicate")
	defer span.End()

	event := &DuplicateEvent{
		EventType:        eventType,
		TenantID:         candidate.TenantID,
		CandidateID:      candidate.ID,
		DonorID:          candidate.DonorID,
		CandidateDonorID: candidate.CandidateDonorID,
		Score:            candidate.Score,
		Confidence:       candidate.Confidence,
		Timestamp:        time.Now().UTC(),
	}

	if err := e.producer.Publish(ctx, e.topics.Duplicate, candidate.ID, event, headers(eventType, candidate.TenantID)); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type":   eventType,
			"candidate_id": candidate.ID,
		}).Error("Failed to emit duplicate event")
		return err
	}
	return nil
}

// EmitImport emits an import completion event keyed by job ID
func (e *Emitter) EmitImport(ctx context.Context, eventType string, job *models.ImportJob) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitImport")
	defer span.End()

	event := &ImportEvent{
		EventType:    eventType,
		TenantID:     job.TenantID,
		JobID:        job.ID,
		FileName:     job.FileName,
		TotalRows:    job.TotalRows,
		ImportedRows: job.ImportedRows,
		SkippedRows:  job.SkippedRows,
		ErrorRows:    job.ErrorRows,
		Timestamp:    time.Now().UTC(),
	}

	if err := e.producer.Publish(ctx, e.topics.Import, job.ID, event, headers(eventType, job.TenantID)); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
			"job_id":     job.ID,
		}).Error("Failed to emit import event")
		return err
	}
	return nil
}
