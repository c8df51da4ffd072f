// Package importer runs CSV donor imports. One import runs per tenant at a
// time, enforced with a redis lock. Each row is mapped onto a donor create
// request, checked against existing donors, and either created, skipped as a
// duplicate, or recorded as a row error.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/database"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/events"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/expressions"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/matching"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/metrics"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/redis"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
)

var validate = validator.New()

// Repo is the import job persistence surface
type Repo interface {
	Create(ctx context.Context, job *models.ImportJob) (*models.ImportJob, error)
	Get(ctx context.Context, tenantID, id string) (*models.ImportJob, error)
	Update(ctx context.Context, job *models.ImportJob) (*models.ImportJob, error)
	List(ctx context.Context, tenantID string, page, pageSize int) ([]models.ImportJob, int, error)
	AddRowErrors(ctx context.Context, rowErrors []models.ImportRowError) error
	RowErrors(ctx context.Context, tenantID, jobID string, limit int) ([]models.ImportRowError, error)
}

// Donors is the slice of the donor service the importer uses
type Donors interface {
	CheckDuplicates(ctx context.Context, tenantID string, req *models.CreateDonorRequest) ([]matching.Match, error)
	Create(ctx context.Context, tenantID string, req *models.CreateDonorRequest) (*models.Donor, error)
}

// Emitter publishes import completion events
type Emitter interface {
	EmitImport(ctx context.Context, eventType string, job *models.ImportJob) error
}

// Options tunes import limits
type Options struct {
	LockTTL time.Duration
	MaxRows int
	// SkipBand is the lowest confidence band treated as a duplicate worth
	// skipping ("high" or "medium")
	SkipBand   string
	ErrorLimit int
}

// Service runs imports
type Service struct {
	repo      Repo
	donors    Donors
	locker    *redis.Locker
	emitter   Emitter
	evaluator *expressions.Evaluator
	opts      Options
	logger    ectologger.Logger
}

// NewService creates an import service
func NewService(repo Repo, donors Donors, locker *redis.Locker, emitter Emitter, opts Options, logger ectologger.Logger) *Service {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	if opts.MaxRows < 1 {
		opts.MaxRows = 50000
	}
	if opts.SkipBand == "" {
		opts.SkipBand = models.ConfidenceHigh
	}
	if opts.ErrorLimit < 1 {
		opts.ErrorLimit = 1000
	}
	return &Service{
		repo:      repo,
		donors:    donors,
		locker:    locker,
		emitter:   emitter,
		evaluator: expressions.NewEvaluator(),
		opts:      opts,
		logger:    logger,
	}
}

// Get retrieves an import job
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.ImportJob, error) {
	ctx, span := tracing.StartSpan(ctx, "importer.Service.Get")
	defer span.End()

	return s.repo.Get(ctx, tenantID, id)
}

// List retrieves import jobs, newest first
func (s *Service) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.ImportJob, int, error) {
	ctx, span := tracing.StartSpan(ctx, "importer.Service.List")
	defer span.End()

	return s.repo.List(ctx, tenantID, page, pageSize)
}

// RowErrors retrieves the recorded errors for a job
func (s *Service) RowErrors(ctx context.Context, tenantID, jobID string, limit int) ([]models.ImportRowError, error) {
	ctx, span := tracing.StartSpan(ctx, "importer.Service.RowErrors")
	defer span.End()

	if _, err := s.repo.Get(ctx, tenantID, jobID); err != nil {
		return nil, err
	}
	return s.repo.RowErrors(ctx, tenantID, jobID, limit)
}

// Run executes an import end to end. It holds the tenant's import lock for
// the duration, so a second concurrent import for the same tenant gets a
// conflict.
func (s *Service) Run(ctx context.Context, tenantID, createdBy string, req *models.CreateImportJobRequest, file io.Reader) (*models.ImportJob, error) {
	ctx, span := tracing.StartSpan(ctx, "importer.Service.Run")
	defer span.End()

	lock, err := s.locker.Acquire(ctx, "import:"+tenantID, s.opts.LockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			return nil, httperror.NewHTTPError(http.StatusConflict, "an import is already running for this tenant")
		}
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to release import lock")
		}
	}()

	now := time.Now().UTC()
	job := &models.ImportJob{
		TenantID:  tenantID,
		FileName:  req.FileName,
		Status:    models.ImportStatusRunning,
		Mappings:  database.NewJSONB(req.Mappings),
		StartedAt: &now,
	}
	if createdBy != "" {
		job.CreatedBy = &createdBy
	}
	job, err = s.repo.Create(ctx, job)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := s.process(ctx, job, file); err != nil {
		s.fail(ctx, job, err)
		return job, nil
	}

	metrics.ImportDuration.WithLabelValues(tenantID).Observe(time.Since(start).Seconds())

	completed := time.Now().UTC()
	job.Status = models.ImportStatusCompleted
	job.CompletedAt = &completed
	if job, err = s.repo.Update(ctx, job); err != nil {
		return nil, err
	}

	if err := s.emitter.EmitImport(ctx, events.ImportCompleted, job); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit import.completed event")
	}
	return job, nil
}

func (s *Service) process(ctx context.Context, job *models.ImportJob, file io.Reader) error {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	mapper, err := newRowMapper(header, job.Mappings.Data, s.evaluator)
	if err != nil {
		return err
	}

	log := &rowLog{job: job, limit: s.opts.ErrorLimit}
	rowNumber := 1 // header row

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNumber++
		if err != nil {
			job.TotalRows++
			log.fail(rowNumber, nil, err.Error())
			continue
		}

		job.TotalRows++
		if job.TotalRows > s.opts.MaxRows {
			return fmt.Errorf("file exceeds the %d row limit", s.opts.MaxRows)
		}

		s.processRow(ctx, job, mapper, rowNumber, record, log)

		if job.TotalRows%500 == 0 {
			s.flush(ctx, log)
			if _, err := s.repo.Update(ctx, job); err != nil {
				s.logger.WithContext(ctx).WithError(err).Warn("Failed to update import progress")
			}
		}
	}

	s.flush(ctx, log)
	return nil
}

// rowLog accumulates per-row outcomes for batch persistence. Skips are
// recorded alongside failures so reviewers can see what was left out, but
// only failures count toward ErrorRows.
type rowLog struct {
	job     *models.ImportJob
	limit   int
	pending []models.ImportRowError
}

func (l *rowLog) fail(row int, record []string, reason string) {
	l.job.ErrorRows++
	metrics.RecordImportRow(l.job.TenantID, "failed")
	l.record(row, record, reason)
}

func (l *rowLog) skip(row int, record []string, reason string) {
	l.job.SkippedRows++
	metrics.RecordImportRow(l.job.TenantID, "skipped_duplicate")
	l.record(row, record, reason)
}

func (l *rowLog) record(row int, record []string, reason string) {
	if l.job.ErrorRows+l.job.SkippedRows > l.limit {
		return
	}
	raw := strings.Join(record, ",")
	l.pending = append(l.pending, models.ImportRowError{
		TenantID:  l.job.TenantID,
		JobID:     l.job.ID,
		RowNumber: row,
		Reason:    reason,
		RawRow:    &raw,
	})
}

func (s *Service) flush(ctx context.Context, log *rowLog) {
	if len(log.pending) == 0 {
		return
	}
	if err := s.repo.AddRowErrors(ctx, log.pending); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to record import row errors")
	}
	log.pending = log.pending[:0]
}

func (s *Service) processRow(ctx context.Context, job *models.ImportJob, mapper *rowMapper, rowNumber int, record []string, log *rowLog) {
	req, err := mapper.mapRow(record)
	if err != nil {
		log.fail(rowNumber, record, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		log.fail(rowNumber, record, err.Error())
		return
	}

	matches, err := s.donors.CheckDuplicates(ctx, job.TenantID, req)
	if err != nil {
		log.fail(rowNumber, record, err.Error())
		return
	}
	if len(matches) > 0 && bandAtLeast(matches[0].Confidence, s.opts.SkipBand) {
		log.skip(rowNumber, record, fmt.Sprintf("skipped: %s confidence duplicate of donor %s (score %.2f)", matches[0].Confidence, matches[0].Donor.ID, matches[0].Score))
		return
	}

	// The skip decision already happened, so the create must not block.
	req.SkipDuplicateCheck = true
	if _, err := s.donors.Create(ctx, job.TenantID, req); err != nil {
		log.fail(rowNumber, record, err.Error())
		return
	}

	job.ImportedRows++
	metrics.RecordImportRow(job.TenantID, "created")
}

func (s *Service) fail(ctx context.Context, job *models.ImportJob, cause error) {
	s.logger.WithContext(ctx).WithError(cause).WithFields(map[string]any{
		"job_id": job.ID,
	}).Error("Import failed")

	now := time.Now().UTC()
	msg := cause.Error()
	job.Status = models.ImportStatusFailed
	job.Error = &msg
	job.CompletedAt = &now
	if _, err := s.repo.Update(ctx, job); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to mark import as failed")
	}

	if err := s.emitter.EmitImport(ctx, events.ImportFailed, job); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit import.failed event")
	}
}

var bandRank = map[string]int{
	models.ConfidenceLow:    1,
	models.ConfidenceMedium: 2,
	models.ConfidenceHigh:   3,
}

func bandAtLeast(confidence, band string) bool {
	return bandRank[confidence] >= bandRank[band] && bandRank[confidence] > 0
}
