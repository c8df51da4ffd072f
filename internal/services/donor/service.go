// Package donor implements donor lifecycle operations: CRUD with duplicate
// detection on create, the review queue for flagged pairs, and fan-out to
// the event stream and relationship graph.
package donor

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	donorrepo "github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/internal/repositories/donor"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/database"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/events"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/matching"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/metrics"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
)

// Repo is the donor persistence surface the service needs
type Repo interface {
	Create(ctx context.Context, donor *models.Donor) (*models.Donor, error)
	Get(ctx context.Context, tenantID, id string) (*models.Donor, error)
	Update(ctx context.Context, donor *models.Donor) (*models.Donor, error)
	Delete(ctx context.Context, tenantID, id string) error
	List(ctx context.Context, tenantID string, filter donorrepo.ListFilter) ([]models.Donor, int, error)
	FindCandidates(ctx context.Context, tenantID string, probe *models.Donor, limit int) ([]models.Donor, error)
}

// DuplicateQueue queues scored pairs for review
type DuplicateQueue interface {
	Create(ctx context.Context, candidate *models.DuplicateCandidate) (*models.DuplicateCandidate, error)
}

// Emitter publishes donor lifecycle events
type Emitter interface {
	EmitDonor(ctx context.Context, eventType string, donor *models.Donor) error
	EmitDuplicate(ctx context.Context, eventType string, candidate *models.DuplicateCandidate) error
}

// GraphWriter mirrors donors into the relationship graph
type GraphWriter interface {
	Upsert(ctx context.Context, donor *models.Donor) error
	Delete(ctx context.Context, tenantID, donorID string) error
}

// CountInvalidator drops cached segment counts when donor data changes
type CountInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string)
}

// Options tunes duplicate detection on create
type Options struct {
	// CandidateLimit caps the pre-filtered comparison set
	CandidateLimit int
	// MaxResults caps matches returned by a check
	MaxResults int
	// BlockOnHighConfidence rejects creates that match an existing donor at
	// high confidence unless the request opts out
	BlockOnHighConfidence bool
}

// Service implements donor operations
type Service struct {
	repo    Repo
	queue   DuplicateQueue
	engine  *matching.Engine
	emitter Emitter
	graph   GraphWriter
	counts  CountInvalidator
	opts    Options
	logger  ectologger.Logger
}

// NewService creates a donor service
func NewService(repo Repo, queue DuplicateQueue, engine *matching.Engine, emitter Emitter, graph GraphWriter, counts CountInvalidator, opts Options, logger ectologger.Logger) *Service {
	return &Service{
		repo:    repo,
		queue:   queue,
		engine:  engine,
		emitter: emitter,
		graph:   graph,
		counts:  counts,
		opts:    opts,
		logger:  logger,
	}
}

func donorFromCreateRequest(tenantID string, req *models.CreateDonorRequest) *models.Donor {
	donor := &models.Donor{
		TenantID:               tenantID,
		FirstName:              req.FirstName,
		LastName:               req.LastName,
		Email:                  req.Email,
		Phone:                  req.Phone,
		Address:                req.Address,
		City:                   req.City,
		State:                  req.State,
		Zip:                    req.Zip,
		DonorType:              req.DonorType,
		StudentName:            req.StudentName,
		GradeLevel:             req.GradeLevel,
		AlumniYear:             req.AlumniYear,
		GraduationYear:         req.GraduationYear,
		PreferredContactMethod: req.PreferredContactMethod,
		EmailSubscribed:        req.EmailSubscribed,
		PhoneSubscribed:        req.PhoneSubscribed,
		MailSubscribed:         req.MailSubscribed,
	}
	if req.CustomFields != nil {
		donor.CustomFields = database.NewJSONB(req.CustomFields)
	}
	return donor
}

// CheckDuplicates scores a probe against plausible existing donors without
// writing anything
func (s *Service) CheckDuplicates(ctx context.Context, tenantID string, req *models.CreateDonorRequest) ([]matching.Match, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Service.CheckDuplicates")
	defer span.End()

	return s.findDuplicates(ctx, tenantID, donorFromCreateRequest(tenantID, req))
}

func (s *Service) findDuplicates(ctx context.Context, tenantID string, probe *models.Donor) ([]matching.Match, error) {
	start := time.Now()

	candidates, err := s.repo.FindCandidates(ctx, tenantID, probe, s.opts.CandidateLimit)
	if err != nil {
		return nil, err
	}

	matches := s.engine.FindDuplicates(probe, candidates, matching.Options{MaxResults: s.opts.MaxResults})

	confidence := "none"
	if len(matches) > 0 {
		confidence = matches[0].Confidence
	}
	metrics.RecordDuplicateCheck(tenantID, confidence, time.Since(start).Seconds())

	return matches, nil
}

// Create inserts a donor after duplicate detection. A high confidence match
// blocks the create with a conflict unless the request opts out; lower
// confidence matches are queued for review and the create proceeds.
func (s *Service) Create(ctx context.Context, tenantID string, req *models.CreateDonorRequest) (*models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Service.Create")
	defer span.End()

	donor := donorFromCreateRequest(tenantID, req)

	var matches []matching.Match
	if !req.SkipDuplicateCheck {
		var err error
		matches, err = s.findDuplicates(ctx, tenantID, donor)
		if err != nil {
			return nil, err
		}
		if s.opts.BlockOnHighConfidence && len(matches) > 0 && matches[0].Confidence == models.ConfidenceHigh {
			return nil, httperror.NewHTTPErrorf(http.StatusConflict,
				"donor appears to duplicate existing donor %s (score %.2f); set skip_duplicate_check to create anyway",
				matches[0].Donor.ID, matches[0].Score)
		}
	}

	created, err := s.repo.Create(ctx, donor)
	if err != nil {
		return nil, err
	}

	s.queueMatches(ctx, created, matches)
	s.afterWrite(ctx, events.DonorCreated, created)

	return created, nil
}

// queueMatches records surviving matches for later review. Queue failures
// are logged, the donor is already committed.
func (s *Service) queueMatches(ctx context.Context, donor *models.Donor, matches []matching.Match) {
	for _, match := range matches {
		candidate := &models.DuplicateCandidate{
			TenantID:         donor.TenantID,
			DonorID:          donor.ID,
			CandidateDonorID: match.Donor.ID,
			Score:            match.Score,
			Confidence:       match.Confidence,
			MatchStrategy:    match.MatchStrategy,
			Reasons:          database.NewJSONB(match.Reasons),
		}
		queued, err := s.queue.Create(ctx, candidate)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"donor_id":           donor.ID,
				"candidate_donor_id": match.Donor.ID,
			}).Error("Failed to queue duplicate candidate")
			continue
		}
		if err := s.emitter.EmitDuplicate(ctx, events.DuplicateQueued, queued); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit duplicate.queued event")
		}
	}
}

// afterWrite fans a committed change out to the event stream, graph and
// count cache. All three are best-effort.
func (s *Service) afterWrite(ctx context.Context, eventType string, donor *models.Donor) {
	if err := s.emitter.EmitDonor(ctx, eventType, donor); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warnf("Failed to emit %s event", eventType)
	}
	if eventType == events.DonorDeleted {
		if err := s.graph.Delete(ctx, donor.TenantID, donor.ID); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to remove donor from graph")
		}
	} else {
		if err := s.graph.Upsert(ctx, donor); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to mirror donor to graph")
		}
	}
	s.counts.InvalidateTenant(ctx, donor.TenantID)
}

// Get retrieves a donor
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Service.Get")
	defer span.End()

	return s.repo.Get(ctx, tenantID, id)
}

// List retrieves donors with paging
func (s *Service) List(ctx context.Context, tenantID string, filter donorrepo.ListFilter) ([]models.Donor, int, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Service.List")
	defer span.End()

	return s.repo.List(ctx, tenantID, filter)
}

// Update applies the non-nil fields of the request to a donor
func (s *Service) Update(ctx context.Context, tenantID, id string, req *models.UpdateDonorRequest) (*models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Service.Update")
	defer span.End()

	donor, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	applyUpdate(donor, req)

	updated, err := s.repo.Update(ctx, donor)
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, events.DonorUpdated, updated)
	return updated, nil
}

// Delete soft-deletes a donor
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "donor.Service.Delete")
	defer span.End()

	donor, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	s.afterWrite(ctx, events.DonorDeleted, donor)
	return nil
}

func applyUpdate(donor *models.Donor, req *models.UpdateDonorRequest) {
	if req.FirstName != nil {
		donor.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		donor.LastName = *req.LastName
	}
	if req.Email != nil {
		donor.Email = *req.Email
	}
	if req.Phone != nil {
		donor.Phone = *req.Phone
	}
	if req.Address != nil {
		donor.Address = *req.Address
	}
	if req.City != nil {
		donor.City = *req.City
	}
	if req.State != nil {
		donor.State = *req.State
	}
	if req.Zip != nil {
		donor.Zip = *req.Zip
	}
	if req.DonorType != nil {
		donor.DonorType = *req.DonorType
	}
	if req.StudentName != nil {
		donor.StudentName = *req.StudentName
	}
	if req.GradeLevel != nil {
		donor.GradeLevel = *req.GradeLevel
	}
	if req.AlumniYear != nil {
		donor.AlumniYear = req.AlumniYear
	}
	if req.GraduationYear != nil {
		donor.GraduationYear = req.GraduationYear
	}
	if req.PreferredContactMethod != nil {
		donor.PreferredContactMethod = *req.PreferredContactMethod
	}
	if req.EmailSubscribed != nil {
		donor.EmailSubscribed = req.EmailSubscribed
	}
	if req.PhoneSubscribed != nil {
		donor.PhoneSubscribed = req.PhoneSubscribed
	}
	if req.MailSubscribed != nil {
		donor.MailSubscribed = req.MailSubscribed
	}
	if req.CustomFields != nil {
		donor.CustomFields = database.NewJSONB(req.CustomFields)
	}
}
