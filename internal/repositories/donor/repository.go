// Package donor persists donor records. Alongside the raw columns it
// maintains normalized lookup columns (email_normalized, phone_digits) used
// to pre-filter duplicate candidates without scanning the whole tenant.
package donor

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
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/normalizers"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
)

var donorColumns = []string{
	"id", "tenant_id", "first_name", "last_name", "email", "phone",
	"address", "city", "state", "zip",
	"donor_type", "student_name", "grade_level", "alumni_year", "graduation_year",
	"total_donated", "average_donation", "donation_count",
	"engagement_score", "engagement_level", "gift_size_tier",
	"preferred_contact_method", "is_recurring", "email_subscribed", "phone_subscribed", "mail_subscribed",
	"custom_fields", "created_at", "updated_at", "deleted_at",
}

// Repository handles donor persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new donor repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Create inserts a donor
func (r *Repository) Create(ctx context.Context, donor *models.Donor) (*models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.Create")
	defer span.End()

	if donor.ID == "" {
		donor.ID = uuid.New().String()
	}
	donor.CreatedAt = time.Now().UTC()
	donor.UpdatedAt = donor.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("donors")
	sb.Cols(
		"id", "tenant_id", "first_name", "last_name", "email", "phone",
		"address", "city", "state", "zip",
		"donor_type", "student_name", "grade_level", "alumni_year", "graduation_year",
		"preferred_contact_method", "is_recurring", "email_subscribed", "phone_subscribed", "mail_subscribed",
		"custom_fields", "email_normalized", "phone_digits", "created_at", "updated_at",
	)
	sb.Values(
		donor.ID, donor.TenantID, donor.FirstName, donor.LastName, donor.Email, donor.Phone,
		donor.Address, donor.City, donor.State, donor.Zip,
		donor.DonorType, donor.StudentName, donor.GradeLevel, donor.AlumniYear, donor.GraduationYear,
		donor.PreferredContactMethod, donor.IsRecurring, donor.EmailSubscribed, donor.PhoneSubscribed, donor.MailSubscribed,
		donor.CustomFields, normalizers.NormalizeEmail(donor.Email), normalizers.NormalizePhone(donor.Phone),
		donor.CreatedAt, donor.UpdatedAt,
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"donor_id": donor.ID}).Error("Failed to create donor")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create donor")
	}

	return donor, nil
}

// Get retrieves a donor by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(donorColumns...)
	sb.From("donors")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var donor models.Donor
	if err := r.db.GetContext(ctx, &donor, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("donor %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get donor")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get donor")
	}

	return &donor, nil
}

// Update writes a full donor row. Callers load, mutate, then update.
func (r *Repository) Update(ctx context.Context, donor *models.Donor) (*models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.Update")
	defer span.End()

	donor.UpdatedAt = time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("donors")
	ub.Set(
		ub.Assign("first_name", donor.FirstName),
		ub.Assign("last_name", donor.LastName),
		ub.Assign("email", donor.Email),
		ub.Assign("phone", donor.Phone),
		ub.Assign("address", donor.Address),
		ub.Assign("city", donor.City),
		ub.Assign("state", donor.State),
		ub.Assign("zip", donor.Zip),
		ub.Assign("donor_type", donor.DonorType),
		ub.Assign("student_name", donor.StudentName),
		ub.Assign("grade_level", donor.GradeLevel),
		ub.Assign("alumni_year", donor.AlumniYear),
		ub.Assign("graduation_year", donor.GraduationYear),
		ub.Assign("total_donated", donor.TotalDonated),
		ub.Assign("average_donation", donor.AverageDonation),
		ub.Assign("donation_count", donor.DonationCount),
		ub.Assign("engagement_score", donor.EngagementScore),
		ub.Assign("engagement_level", donor.EngagementLevel),
		ub.Assign("gift_size_tier", donor.GiftSizeTier),
		ub.Assign("preferred_contact_method", donor.PreferredContactMethod),
		ub.Assign("is_recurring", donor.IsRecurring),
		ub.Assign("email_subscribed", donor.EmailSubscribed),
		ub.Assign("phone_subscribed", donor.PhoneSubscribed),
		ub.Assign("mail_subscribed", donor.MailSubscribed),
		ub.Assign("custom_fields", donor.CustomFields),
		ub.Assign("email_normalized", normalizers.NormalizeEmail(donor.Email)),
		ub.Assign("phone_digits", normalizers.NormalizePhone(donor.Phone)),
		ub.Assign("updated_at", donor.UpdatedAt),
	)
	ub.Where(
		ub.Equal("id", donor.ID),
		ub.Equal("tenant_id", donor.TenantID),
		ub.IsNull("deleted_at"),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"donor_id": donor.ID}).Error("Failed to update donor")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update donor")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("donor %s not found", donor.ID))
	}

	return donor, nil
}

// Delete soft-deletes a donor
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.Delete")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("donors")
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
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete donor")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete donor")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("donor %s not found", id))
	}
	return nil
}

// ListFilter narrows and pages List results
type ListFilter struct {
	Search    string
	DonorType string
	Page      int
	PageSize  int
}

// List retrieves donors with paging. Search matches name and email.
func (r *Repository) List(ctx context.Context, tenantID string, filter ListFilter) ([]models.Donor, int, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.List")
	defer span.End()

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 500 {
		filter.PageSize = 50
	}

	where := func(sb *sqlbuilder.SelectBuilder) {
		sb.Where(
			sb.Equal("tenant_id", tenantID),
			sb.IsNull("deleted_at"),
		)
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			sb.Where(sb.Or(
				sb.ILike("first_name", pattern),
				sb.ILike("last_name", pattern),
				sb.ILike("email", pattern),
			))
		}
		if filter.DonorType != "" {
			sb.Where(sb.Equal("donor_type", filter.DonorType))
		}
	}

	countBuilder := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countBuilder.Select("COUNT(*)")
	countBuilder.From("donors")
	where(countBuilder)

	query, args := countBuilder.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count donors")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list donors")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(donorColumns...)
	sb.From("donors")
	where(sb)
	sb.OrderBy("last_name ASC", "first_name ASC", "id ASC")
	sb.Limit(filter.PageSize)
	sb.Offset((filter.Page - 1) * filter.PageSize)

	query, args = sb.Build()
	var donors []models.Donor
	if err := r.db.SelectContext(ctx, &donors, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list donors")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list donors")
	}

	return donors, total, nil
}

// FindCandidates pre-filters donors that could plausibly duplicate the
// probe: same normalized email, same phone digits, or a shared last-name
// prefix. The matching engine does the real scoring; this only trims the
// comparison set.
func (r *Repository) FindCandidates(ctx context.Context, tenantID string, probe *models.Donor, limit int) ([]models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.FindCandidates")
	defer span.End()

	if limit < 1 {
		limit = 200
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(donorColumns...)
	sb.From("donors")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	var conditions []string
	if email := normalizers.NormalizeEmail(probe.Email); email != "" {
		conditions = append(conditions, sb.Equal("email_normalized", email))
	}
	if phone := normalizers.NormalizePhone(probe.Phone); phone != "" {
		conditions = append(conditions, sb.Equal("phone_digits", phone))
	}
	if last := normalizers.NormalizeName(probe.LastName); len(last) >= 3 {
		conditions = append(conditions, sb.ILike("last_name", last[:3]+"%"))
	}
	if len(conditions) == 0 {
		return nil, nil
	}
	sb.Where(sb.Or(conditions...))
	sb.OrderBy("created_at ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	var donors []models.Donor
	if err := r.db.SelectContext(ctx, &donors, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find duplicate candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find duplicate candidates")
	}

	return donors, nil
}

// ScanBatch pages through every live donor for a tenant in stable order.
// Segment evaluation walks the tenant with repeated calls until the batch
// comes back short.
func (r *Repository) ScanBatch(ctx context.Context, tenantID string, offset, limit int) ([]models.Donor, error) {
	ctx, span := tracing.StartSpan(ctx, "donor.Repository.ScanBatch")
	defer span.End()

	if limit < 1 || limit > 5000 {
		limit = 1000
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(donorColumns...)
	sb.From("donors")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("id ASC")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	var donors []models.Donor
	if err := r.db.SelectContext(ctx, &donors, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to scan donors")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to scan donors")
	}

	return donors, nil
}
