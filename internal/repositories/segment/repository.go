// Package segment persists saved segment definitions.
package segment

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

var segmentColumns = []string{
	"id", "tenant_id", "name", "description", "definition", "status",
	"created_by", "created_at", "updated_at", "deleted_at",
}

// Repository handles segment persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new segment repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Create inserts a segment
func (r *Repository) Create(ctx context.Context, segment *models.Segment) (*models.Segment, error) {
	ctx, span := tracing.StartSpan(ctx, "segment.Repository.Create")
	defer span.End()

	if segment.ID == "" {
		segment.ID = uuid.New().String()
	}
	if segment.Status == "" {
		segment.Status = models.SegmentStatusActive
	}
	segment.CreatedAt = time.Now().UTC()
	segment.UpdatedAt = segment.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("segments")
	sb.Cols("id", "tenant_id", "name", "description", "definition", "status", "created_by", "created_at", "updated_at")
	sb.Values(segment.ID, segment.TenantID, segment.Name, segment.Description, []byte(segment.Definition), segment.Status, segment.CreatedBy, segment.CreatedAt, segment.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"segment_id": segment.ID}).Error("Failed to create segment")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create segment")
	}

	return segment, nil
}

// Get retrieves a segment by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Segment, error) {
	ctx, span := tracing.StartSpan(ctx, "segment.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(segmentColumns...)
	sb.From("segments")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var segment models.Segment
	if err := r.db.GetContext(ctx, &segment, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("segment %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get segment")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get segment")
	}

	return &segment, nil
}

// Update writes a segment's mutable fields
func (r *Repository) Update(ctx context.Context, segment *models.Segment) (*models.Segment, error) {
	ctx, span := tracing.StartSpan(ctx, "segment.Repository.Update")
	defer span.End()

	segment.UpdatedAt = time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("segments")
	ub.Set(
		ub.Assign("name", segment.Name),
		ub.Assign("description", segment.Description),
		ub.Assign("definition", []byte(segment.Definition)),
		ub.Assign("status", segment.Status),
		ub.Assign("updated_at", segment.UpdatedAt),
	)
	ub.Where(
		ub.Equal("id", segment.ID),
		ub.Equal("tenant_id", segment.TenantID),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"segment_id": segment.ID}).Error("Failed to update segment")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update segment")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("segment %s not found", segment.ID))
	}

	return segment, nil
}

// Delete soft-deletes a segment
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "segment.Repository.Delete")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("segments")
	ub.Set(
		ub.Assign("deleted_at", time.Now().UTC()),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete segment")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete segment")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("segment %s not found", id))
	}
	return nil
}

// List retrieves segments with paging, optionally filtered by status
func (r *Repository) List(ctx context.Context, tenantID, status string, page, pageSize int) ([]models.Segment, int, error) {
	ctx, span := tracing.StartSpan(ctx, "segment.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	where := func(sb *sqlbuilder.SelectBuilder) {
		sb.Where(
			sb.Equal("tenant_id", tenantID),
			sb.IsNull("deleted_at"),
		)
		if status != "" {
			sb.Where(sb.Equal("status", status))
		}
	}

	countBuilder := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countBuilder.Select("COUNT(*)")
	countBuilder.From("segments")
	where(countBuilder)

	query, args := countBuilder.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count segments")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list segments")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(segmentColumns...)
	sb.From("segments")
	where(sb)
	sb.OrderBy("name ASC", "id ASC")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args = sb.Build()
	var segments []models.Segment
	if err := r.db.SelectContext(ctx, &segments, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list segments")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list segments")
	}

	return segments, total, nil
}
