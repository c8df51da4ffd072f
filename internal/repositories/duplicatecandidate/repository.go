// Package duplicatecandidate persists the duplicate review queue.
package duplicatecandidate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/database"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
)

var candidateColumns = []string{
	"id", "tenant_id", "donor_id", "candidate_donor_id", "score", "confidence",
	"match_strategy", "reasons", "status", "created_at", "updated_at",
	"resolved_at", "resolved_by",
}

// Repository handles duplicate candidate persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new duplicate candidate repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Create queues a candidate pair. A pair already queued keeps its row; the
// score is raised if the new detection scored higher.
func (r *Repository) Create(ctx context.Context, candidate *models.DuplicateCandidate) (*models.DuplicateCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicatecandidate.Repository.Create")
	defer span.End()

	if candidate.ID == "" {
		candidate.ID = uuid.New().String()
	}
	if candidate.Status == "" {
		candidate.Status = models.DuplicateStatusPending
	}
	candidate.CreatedAt = time.Now().UTC()
	candidate.UpdatedAt = candidate.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("duplicate_candidates")
	sb.Cols("id", "tenant_id", "donor_id", "candidate_donor_id", "score", "confidence", "match_strategy", "reasons", "status", "created_at", "updated_at")
	sb.Values(candidate.ID, candidate.TenantID, candidate.DonorID, candidate.CandidateDonorID, candidate.Score, candidate.Confidence, candidate.MatchStrategy, candidate.Reasons, candidate.Status, candidate.CreatedAt, candidate.UpdatedAt)

	query, args := sb.Build()
	query += " ON CONFLICT (tenant_id, donor_id, candidate_donor_id) DO UPDATE SET score = GREATEST(duplicate_candidates.score, EXCLUDED.score), confidence = EXCLUDED.confidence, match_strategy = EXCLUDED.match_strategy, reasons = EXCLUDED.reasons, updated_at = EXCLUDED.updated_at"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"candidate_id": candidate.ID}).Error("Failed to queue duplicate candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to queue duplicate candidate")
	}

	return candidate, nil
}

// Get retrieves a candidate by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.DuplicateCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicatecandidate.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(candidateColumns...)
	sb.From("duplicate_candidates")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var candidate models.DuplicateCandidate
	if err := r.db.GetContext(ctx, &candidate, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("duplicate candidate %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get duplicate candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get duplicate candidate")
	}

	return &candidate, nil
}

// List retrieves candidates with paging, optionally filtered by status,
// highest scores first
func (r *Repository) List(ctx context.Context, tenantID, status, confidence string, page, pageSize int) ([]models.DuplicateCandidate, int, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicatecandidate.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	where := func(sb *sqlbuilder.SelectBuilder) {
		sb.Where(sb.Equal("tenant_id", tenantID))
		if status != "" {
			sb.Where(sb.Equal("status", status))
		}
		if confidence != "" {
			sb.Where(sb.Equal("confidence", confidence))
		}
	}

	countBuilder := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countBuilder.Select("COUNT(*)")
	countBuilder.From("duplicate_candidates")
	where(countBuilder)

	query, args := countBuilder.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count duplicate candidates")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list duplicate candidates")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(candidateColumns...)
	sb.From("duplicate_candidates")
	where(sb)
	sb.OrderBy("score DESC", "created_at DESC")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args = sb.Build()
	var candidates []models.DuplicateCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list duplicate candidates")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list duplicate candidates")
	}

	return candidates, total, nil
}

// Resolve marks a pending candidate confirmed or dismissed. Resolving twice
// is rejected so review decisions are immutable.
func (r *Repository) Resolve(ctx context.Context, tenantID, id, status, resolvedBy string) (*models.DuplicateCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicatecandidate.Repository.Resolve")
	defer span.End()

	now := time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("duplicate_candidates")
	ub.Set(
		ub.Assign("status", status),
		ub.Assign("resolved_at", now),
		ub.Assign("resolved_by", resolvedBy),
		ub.Assign("updated_at", now),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
		ub.Equal("status", models.DuplicateStatusPending),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to resolve duplicate candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to resolve duplicate candidate")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("duplicate candidate %s is not pending", id))
	}

	return r.Get(ctx, tenantID, id)
}
