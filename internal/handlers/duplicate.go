package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
)

// DuplicateService is the review queue surface the handler needs
type DuplicateService interface {
	Get(ctx context.Context, tenantID, id string) (*models.DuplicateCandidate, error)
	List(ctx context.Context, tenantID, status, confidence string, page, pageSize int) ([]models.DuplicateCandidate, int, error)
	Resolve(ctx context.Context, tenantID, id, resolvedBy string, req *models.ResolveDuplicateRequest) (*models.DuplicateCandidate, error)
}

// DuplicateHandler handles duplicate review queue endpoints
type DuplicateHandler struct {
	service DuplicateService
	logger  ectologger.Logger
}

// NewDuplicateHandler creates a new duplicate handler
func NewDuplicateHandler(service DuplicateService, logger ectologger.Logger) *DuplicateHandler {
	return &DuplicateHandler{service: service, logger: logger}
}

// Register registers duplicate review routes
func (h *DuplicateHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Resolve)
}

// List returns queued candidates, highest score first. Defaults to pending.
func (h *DuplicateHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DuplicateHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	status := c.QueryParam("status")
	if status == "" {
		status = models.DuplicateStatusPending
	}

	page, pageSize := Paging(c)
	candidates, total, err := h.service.List(ctx, tenantID, status, c.QueryParam("confidence"), page, pageSize)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list duplicate candidates")
		return err
	}

	return SuccessResponse(c, models.DuplicateCandidateListResponse{
		Items:      candidates,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Get returns a single queued candidate
func (h *DuplicateHandler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DuplicateHandler.Get")
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

	candidate, err := h.service.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, candidate)
}

// Resolve confirms or dismisses a pending candidate
func (h *DuplicateHandler) Resolve(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "DuplicateHandler.Resolve")
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

	var req models.ResolveDuplicateRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return BadRequest(err.Error())
	}

	candidate, err := h.service.Resolve(ctx, tenantID, id, GetUserID(c), &req)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to resolve duplicate candidate")
		return err
	}
	return SuccessResponse(c, candidate)
}
