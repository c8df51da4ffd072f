package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	donorrepo "github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/internal/repositories/donor"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/matching"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
)

// DonorService is the donor operations surface the handler needs
type DonorService interface {
	Create(ctx context.Context, tenantID string, req *models.CreateDonorRequest) (*models.Donor, error)
	Get(ctx context.Context, tenantID, id string) (*models.Donor, error)
	List(ctx context.Context, tenantID string, filter donorrepo.ListFilter) ([]models.Donor, int, error)
	Update(ctx context.Context, tenantID, id string, req *models.UpdateDonorRequest) (*models.Donor, error)
	Delete(ctx context.Context, tenantID, id string) error
	CheckDuplicates(ctx context.Context, tenantID string, req *models.CreateDonorRequest) ([]matching.Match, error)
}

// DonorHandler handles donor API endpoints
type DonorHandler struct {
	service DonorService
	logger  ectologger.Logger
}

// NewDonorHandler creates a new donor handler
func NewDonorHandler(service DonorService, logger ectologger.Logger) *DonorHandler {
	return &DonorHandler{service: service, logger: logger}
}

// Register registers donor routes
func (h *DonorHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.POST("/check-duplicates", h.CheckDuplicates)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// List returns the tenant's donors with optional search and type filters
func (h *DonorHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DonorHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	page, pageSize := Paging(c)
	filter := donorrepo.ListFilter{
		Search:    c.QueryParam("search"),
		DonorType: c.QueryParam("donor_type"),
		Page:      page,
		PageSize:  pageSize,
	}

	donors, total, err := h.service.List(ctx, tenantID, filter)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list donors")
		return err
	}

	return SuccessResponse(c, models.DonorListResponse{
		Items:      donors,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Create creates a donor, blocking on a high confidence duplicate unless the
// request opts out
func (h *DonorHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DonorHandler.Create")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req models.CreateDonorRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return BadRequest(err.Error())
	}
	if c.QueryParam("skip_duplicate_check") == "true" {
		req.SkipDuplicateCheck = true
	}

	donor, err := h.service.Create(ctx, tenantID, &req)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to create donor")
		return err
	}
	return CreatedResponse(c, donor)
}

// CheckDuplicates scores a prospective donor against existing donors without
// creating anything
func (h *DonorHandler) CheckDuplicates(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DonorHandler.CheckDuplicates")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req models.CreateDonorRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return BadRequest(err.Error())
	}

	matches, err := h.service.CheckDuplicates(ctx, tenantID, &req)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to check duplicates")
		return err
	}

	resp := models.CheckDuplicatesResponse{Matches: []models.DuplicateMatch{}}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, models.DuplicateMatch{
			Donor:         *m.Donor,
			Score:         m.Score,
			Confidence:    m.Confidence,
			MatchStrategy: m.MatchStrategy,
			Reasons:       m.Reasons,
		})
	}
	return SuccessResponse(c, resp)
}

// Get returns a single donor
func (h *DonorHandler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DonorHandler.Get")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	donor, err := h.service.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, donor)
}

// Update applies a partial update to a donor
func (h *DonorHandler) Update(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DonorHandler.Update")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	var req models.UpdateDonorRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return BadRequest(err.Error())
	}

	donor, err := h.service.Update(ctx, tenantID, id, &req)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to update donor")
		return err
	}
	return SuccessResponse(c, donor)
}

// Delete soft-deletes a donor
func (h *DonorHandler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DonorHandler.Delete")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.Delete(ctx, tenantID, id); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to delete donor")
		return err
	}
	return NoContentResponse(c)
}
