// Package segment implements saved segment operations: definition
// validation, live preview, membership listing and cached member counts.
package segment

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/events"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/metrics"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/segments"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
)

// Repo is the segment persistence surface the service needs
type Repo interface {
	Create(ctx context.Context, segment *models.Segment) (*models.Segment, error)
	Get(ctx context.Context, tenantID, id string) (*models.Segment, error)
	Update(ctx context.Context, segment *models.Segment) (*models.Segment, error)
	Delete(ctx context.Context, tenantID, id string) error
	List(ctx context.Context, tenantID, status string, page, pageSize int) ([]models.Segment, int, error)
}

// DonorScanner pages through a tenant's donors in stable order
type DonorScanner interface {
	ScanBatch(ctx context.Context, tenantID string, offset, limit int) ([]models.Donor, error)
}

// CountCache caches member counts per segment
type CountCache interface {
	Get(ctx context.Context, tenantID, segmentID string) (int, time.Time, bool)
	Set(ctx context.Context, tenantID, segmentID string, count int, countedAt time.Time)
	InvalidateSegment(ctx context.Context, tenantID, segmentID string)
}

// Emitter publishes segment lifecycle events
type Emitter interface {
	EmitSegment(ctx context.Context, eventType string, segment *models.Segment) error
}

// Options tunes evaluation batching and preview size
type Options struct {
	PreviewLimit int
	ScanBatch    int
}

// Service implements segment operations
type Service struct {
	repo      Repo
	donors    DonorScanner
	evaluator *segments.Evaluator
	counts    CountCache
	emitter   Emitter
	opts      Options
	logger    ectologger.Logger
}

// NewService creates a segment service
func NewService(repo Repo, donors DonorScanner, evaluator *segments.Evaluator, counts CountCache, emitter Emitter, opts Options, logger ectologger.Logger) *Service {
	if opts.PreviewLimit < 1 {
		opts.PreviewLimit = 25
	}
	if opts.ScanBatch < 1 {
		opts.ScanBatch = 1000
	}
	return &Service{
		repo:      repo,
		donors:    donors,
		evaluator: evaluator,
		counts:    counts,
		emitter:   emitter,
		opts:      opts,
		logger:    logger,
	}
}

// Validate checks a definition without saving it
func (s *Service) Validate(ctx context.Context, definition json.RawMessage) (*models.SegmentValidationResponse, error) {
	_, span := tracing.StartSpan(ctx, "segment.Service.Validate")
	defer span.End()

	root, err := segments.Parse(definition)
	if err != nil {
		return &models.SegmentValidationResponse{
			Valid:  false,
			Errors: []models.SegmentValidationError{{Path: "$", Message: err.Error()}},
		}, nil
	}

	verrs := segments.Validate(root)
	return &models.SegmentValidationResponse{Valid: len(verrs) == 0, Errors: verrs}, nil
}

// Create validates and saves a segment
func (s *Service) Create(ctx context.Context, tenantID, createdBy string, req *models.CreateSegmentRequest) (*models.Segment, error) {
	ctx, span := tracing.StartSpan(ctx, "segment.Service.Create")
	defer span.End()

	if _, err := segments.Compile(req.Definition); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	segment := &models.Segment{
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Definition:  req.Definition,
		Status:      models.SegmentStatusActive,
	}
	if createdBy != "" {
		segment.CreatedBy = &createdBy
	}

	created, err := s.repo.Create(ctx, segment)
	if err != nil {
		return nil, err
	}

	if err := s.emitter.EmitSegment(ctx, events.SegmentCreated, created); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit segment.created event")
	}
	return created, nil
}

// Get retrieves a segment
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.Segment, error) {
	ctx, span := tracing.StartSpan(ctx, "segment.Service.Get")
	defer span.End()

	return s.repo.Get(ctx, tenantID, id)
}

// List retrieves segments with paging
func (s *Service) List(ctx context.Context, tenantID, status string, page, pageSize int) ([]models.Segment, int, error) {
	ctx, span := tracing.StartSpan(ctx, "segment.Service.List")
	defer span.End()

	return s.repo.List(ctx, tenantID, status, page, pageSize)
}

// Update applies the non-nil fields of the request, revalidating a changed
// definition and dropping the stale cached count
func (s *Service) Update(ctx context.Context, tenantID, id string, req *models.UpdateSegmentRequest) (*models.Segment, error) {
	ctx, span := tracing.StartSpan(ctx, "segment.Service.Update")
	defer span.End()

	segment, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	archiving := false
	if req.Name != nil {
		segment.Name = *req.Name
	}
	if req.Description != nil {
		segment.Description = req.Description
	}
	if len(req.Definition) > 0 {
		if _, err := segments.Compile(req.Definition); err != nil {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		segment.Definition = req.Definition
	}
	if req.Status != nil {
		archiving = *req.Status == models.SegmentStatusArchived && segment.Status != models.SegmentStatusArchived
		segment.Status = *req.Status
	}

	updated, err := s.repo.Update(ctx, segment)
	if err != nil {
		return nil, err
	}

	s.counts.InvalidateSegment(ctx, tenantID, id)

	eventType := events.SegmentUpdated
	if archiving {
		eventType = events.SegmentArchived
	}
	if err := s.emitter.EmitSegment(ctx, eventType, updated); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warnf("Failed to emit %s event", eventType)
	}
	return updated, nil
}

// Delete soft-deletes a segment
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "segment.Service.Delete")
	defer span.End()

	segment, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	s.counts.InvalidateSegment(ctx, tenantID, id)
	if err := s.emitter.EmitSegment(ctx, events.SegmentDeleted, segment); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit segment.deleted event")
	}
	return nil
}

// Preview evaluates an unsaved definition and returns the first matches
func (s *Service) Preview(ctx context.Context, tenantID string, req *models.SegmentPreviewRequest) (*models.SegmentPreviewResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "segment.Service.Preview")
	defer span.End()

	root, err := segments.Compile(req.Definition)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	limit := req.Limit
	if limit < 1 || limit > s.opts.PreviewLimit {
		limit = s.opts.PreviewLimit
	}

	start := time.Now()
	resp := &models.SegmentPreviewResponse{Items: []models.Donor{}}

	err = s.scan(ctx, tenantID, func(donor *models.Donor) bool {
		resp.Scanned++
		if !s.evaluator.Matches(root, donor) {
			return true
		}
		resp.MatchCount++
		if len(resp.Items) < limit {
			resp.Items = append(resp.Items, *donor)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSegmentEvaluation(tenantID, "preview", time.Since(start).Seconds())
	return resp, nil
}

// Members lists the donors in a saved segment with paging
func (s *Service) Members(ctx context.Context, tenantID, segmentID string, page, pageSize int) ([]models.Donor, int, error) {
	ctx, span := tracing.StartSpan(ctx, "segment.Service.Members")
	defer span.End()

	segment, err := s.repo.Get(ctx, tenantID, segmentID)
	if err != nil {
		return nil, 0, err
	}
	root, err := segments.Compile(segment.Definition)
	if err != nil {
		// A stored definition that no longer compiles means the catalog
		// changed underneath it.
		return nil, 0, httperror.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}
	skip := (page - 1) * pageSize

	start := time.Now()
	var members []models.Donor
	total := 0

	err = s.scan(ctx, tenantID, func(donor *models.Donor) bool {
		if !s.evaluator.Matches(root, donor) {
			return true
		}
		if total >= skip && len(members) < pageSize {
			members = append(members, *donor)
		}
		total++
		return true
	})
	if err != nil {
		return nil, 0, err
	}

	metrics.RecordSegmentEvaluation(tenantID, "members", time.Since(start).Seconds())
	s.counts.Set(ctx, tenantID, segmentID, total, time.Now().UTC())

	return members, total, nil
}

// Count returns the segment's member count, from cache when fresh
func (s *Service) Count(ctx context.Context, tenantID, segmentID string) (*models.SegmentCountResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "segment.Service.Count")
	defer span.End()

	if count, countedAt, ok := s.counts.Get(ctx, tenantID, segmentID); ok {
		metrics.RecordCountCacheLookup("hit")
		return &models.SegmentCountResponse{
			SegmentID: segmentID,
			Count:     count,
			Cached:    true,
			CountedAt: countedAt,
		}, nil
	}

	metrics.RecordCountCacheLookup("miss")

	segment, err := s.repo.Get(ctx, tenantID, segmentID)
	if err != nil {
		return nil, err
	}
	root, err := segments.Compile(segment.Definition)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	start := time.Now()
	count := 0
	err = s.scan(ctx, tenantID, func(donor *models.Donor) bool {
		if s.evaluator.Matches(root, donor) {
			count++
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSegmentEvaluation(tenantID, "count", time.Since(start).Seconds())
	countedAt := time.Now().UTC()
	s.counts.Set(ctx, tenantID, segmentID, count, countedAt)

	return &models.SegmentCountResponse{
		SegmentID: segmentID,
		Count:     count,
		Cached:    false,
		CountedAt: countedAt,
	}, nil
}

// scan walks every live donor for the tenant in batches
func (s *Service) scan(ctx context.Context, tenantID string, visit func(*models.Donor) bool) error {
	offset := 0
	for {
		batch, err := s.donors.ScanBatch(ctx, tenantID, offset, s.opts.ScanBatch)
		if err != nil {
			return err
		}
		for i := range batch {
			if !visit(&batch[i]) {
				return nil
			}
		}
		if len(batch) < s.opts.ScanBatch {
			return nil
		}
		offset += len(batch)
	}
}
