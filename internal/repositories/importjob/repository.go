// Package importjob persists CSV import runs and their row errors.
package importjob

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

var jobColumns = []string{
	"id", "tenant_id", "file_name", "status", "mappings",
	"total_rows", "imported_rows", "skipped_rows", "error_rows", "error",
	"started_at", "completed_at", "created_by", "created_at", "updated_at",
}

// Repository handles import job persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new import job repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Create inserts a pending job
func (r *Repository) Create(ctx context.Context, job *models.ImportJob) (*models.ImportJob, error) {
	ctx, span := tracing.StartSpan(ctx, "importjob.Repository.Create")
	defer span.End()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = models.ImportStatusPending
	}
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("import_jobs")
	sb.Cols("id", "tenant_id", "file_name", "status", "mappings", "created_by", "created_at", "updated_at")
	sb.Values(job.ID, job.TenantID, job.FileName, job.Status, job.Mappings, job.CreatedBy, job.CreatedAt, job.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": job.ID}).Error("Failed to create import job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create import job")
	}

	return job, nil
}

// Get retrieves a job by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.ImportJob, error) {
	ctx, span := tracing.StartSpan(ctx, "importjob.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(jobColumns...)
	sb.From("import_jobs")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var job models.ImportJob
	if err := r.db.GetContext(ctx, &job, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("import job %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get import job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get import job")
	}

	return &job, nil
}

// Update writes a job's progress fields
func (r *Repository) Update(ctx context.Context, job *models.ImportJob) (*models.ImportJob, error) {
	ctx, span := tracing.StartSpan(ctx, "importjob.Repository.Update")
	defer span.End()

	job.UpdatedAt = time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("import_jobs")
	ub.Set(
		ub.Assign("status", job.Status),
		ub.Assign("total_rows", job.TotalRows),
		ub.Assign("imported_rows", job.ImportedRows),
		ub.Assign("skipped_rows", job.SkippedRows),
		ub.Assign("error_rows", job.ErrorRows),
		ub.Assign("error", job.Error),
		ub.Assign("started_at", job.StartedAt),
		ub.Assign("completed_at", job.CompletedAt),
		ub.Assign("updated_at", job.UpdatedAt),
	)
	ub.Where(
		ub.Equal("id", job.ID),
		ub.Equal("tenant_id", job.TenantID),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": job.ID}).Error("Failed to update import job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update import job")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("import job %s not found", job.ID))
	}

	return job, nil
}

// List retrieves jobs with paging, newest first
func (r *Repository) List(ctx context.Context, tenantID string, page, pageSize int) ([]models.ImportJob, int, error) {
	ctx, span := tracing.StartSpan(ctx, "importjob.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	countBuilder := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countBuilder.Select("COUNT(*)")
	countBuilder.From("import_jobs")
	countBuilder.Where(countBuilder.Equal("tenant_id", tenantID))

	query, args := countBuilder.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count import jobs")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list import jobs")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(jobColumns...)
	sb.From("import_jobs")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args = sb.Build()
	var jobs []models.ImportJob
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list import jobs")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list import jobs")
	}

	return jobs, total, nil
}

// AddRowErrors records rejected rows for a job in one batch
func (r *Repository) AddRowErrors(ctx context.Context, rowErrors []models.ImportRowError) error {
	ctx, span := tracing.StartSpan(ctx, "importjob.Repository.AddRowErrors")
	defer span.End()

	if len(rowErrors) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("import_row_errors")
	sb.Cols("id", "tenant_id", "job_id", "row_number", "reason", "raw_row", "created_at")
	for i := range rowErrors {
		e := &rowErrors[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		e.CreatedAt = now
		sb.Values(e.ID, e.TenantID, e.JobID, e.RowNumber, e.Reason, e.RawRow, e.CreatedAt)
	}

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to record import row errors")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record import row errors")
	}

	return nil
}

// RowErrors retrieves the rejected rows for a job
func (r *Repository) RowErrors(ctx context.Context, tenantID, jobID string, limit int) ([]models.ImportRowError, error) {
	ctx, span := tracing.StartSpan(ctx, "importjob.Repository.RowErrors")
	defer span.End()

	if limit < 1 || limit > 1000 {
		limit = 200
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "job_id", "row_number", "reason", "raw_row", "created_at")
	sb.From("import_row_errors")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("job_id", jobID),
	)
	sb.OrderBy("row_number ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	var rowErrors []models.ImportRowError
	if err := r.db.SelectContext(ctx, &rowErrors, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list import row errors")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list import row errors")
	}

	return rowErrors, nil
}
