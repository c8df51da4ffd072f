// Package duplicate implements the review queue for medium-confidence
// duplicate candidates.
package duplicate

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/events"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
)

// Repo is the duplicate candidate persistence surface
type Repo interface {
	Get(ctx context.Context, tenantID, id string) (*models.DuplicateCandidate, error)
	List(ctx context.Context, tenantID, status, confidence string, page, pageSize int) ([]models.DuplicateCandidate, int, error)
	Resolve(ctx context.Context, tenantID, id, status, resolvedBy string) (*models.DuplicateCandidate, error)
}

// GraphMerger marks a confirmed duplicate node in the relationship graph
type GraphMerger interface {
	MergeInto(ctx context.Context, tenantID, duplicateID, survivorID string) error
}

// Emitter publishes duplicate queue events
type Emitter interface {
	EmitDuplicate(ctx context.Context, eventType string, candidate *models.DuplicateCandidate) error
}

// Service implements duplicate review operations
type Service struct {
	repo    Repo
	graph   GraphMerger
	emitter Emitter
	logger  ectologger.Logger
}

// NewService creates a duplicate review service
func NewService(repo Repo, graph GraphMerger, emitter Emitter, logger ectologger.Logger) *Service {
	return &Service{repo: repo, graph: graph, emitter: emitter, logger: logger}
}

// Get retrieves a queued candidate
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.DuplicateCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicate.Service.Get")
	defer span.End()

	return s.repo.Get(ctx, tenantID, id)
}

// List retrieves queued candidates, highest score first
func (s *Service) List(ctx context.Context, tenantID, status, confidence string, page, pageSize int) ([]models.DuplicateCandidate, int, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicate.Service.List")
	defer span.End()

	return s.repo.List(ctx, tenantID, status, confidence, page, pageSize)
}

// Resolve confirms or dismisses a pending candidate. Confirming marks the
// candidate donor as merged into the original in the relationship graph.
func (s *Service) Resolve(ctx context.Context, tenantID, id, resolvedBy string, req *models.ResolveDuplicateRequest) (*models.DuplicateCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicate.Service.Resolve")
	defer span.End()

	resolved, err := s.repo.Resolve(ctx, tenantID, id, req.Status, resolvedBy)
	if err != nil {
		return nil, err
	}

	eventType := events.DuplicateDismissed
	if resolved.Status == models.DuplicateStatusConfirmed {
		eventType = events.DuplicateConfirmed
		if err := s.graph.MergeInto(ctx, tenantID, resolved.CandidateDonorID, resolved.DonorID); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"candidate_id": resolved.ID,
				"donor_id":     resolved.DonorID,
			}).Warn("Failed to mark merge in relationship graph")
		}
	}

	if err := s.emitter.EmitDuplicate(ctx, eventType, resolved); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warnf("Failed to emit %s event", eventType)
	}
	return resolved, nil
}
