package handlers

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
)

// SegmentService is the segment operations surface the handler needs
type SegmentService interface {
	Create(ctx context.Context, tenantID, createdBy string, req *models.CreateSegmentRequest) (*models.Segment, error)
	Get(ctx context.Context, tenantID, id string) (*models.Segment, error)
	List(ctx context.Context, tenantID, status string, page, pageSize int) ([]models.Segment, int, error)
	Update(ctx context.Context, tenantID, id string, req *models.UpdateSegmentRequest) (*models.Segment, error)
	Delete(ctx context.Context, tenantID, id string) error
	Validate(ctx context.Context, definition json.RawMessage) (*models.SegmentValidationResponse, error)
	Preview(ctx context.Context, tenantID string, req *models.SegmentPreviewRequest) (*models.SegmentPreviewResponse, error)
	Members(ctx context.Context, tenantID, segmentID string, page, pageSize int) ([]models.Donor, int, error)
	Count(ctx context.Context, tenantID, segmentID string) (*models.SegmentCountResponse, error)
}

// SegmentHandler handles segment API endpoints
type SegmentHandler struct {
	service SegmentService
	logger  ectologger.Logger
}

// NewSegmentHandler creates a new segment handler
func NewSegmentHandler(service SegmentService, logger ectologger.Logger) *SegmentHandler {
	return &SegmentHandler{service: service, logger: logger}
}

// Register registers segment routes
func (h *SegmentHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.POST("/validate", h.Validate)
	g.POST("/preview", h.Preview)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/members", h.Members)
	g.GET("/:id/count", h.Count)
}

// List returns the tenant's segments
func (h *SegmentHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SegmentHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	page, pageSize := Paging(c)
	segments, total, err := h.service.List(ctx, tenantID, c.QueryParam("status"), page, pageSize)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list segments")
		return err
	}

	return SuccessResponse(c, models.SegmentListResponse{
		Items:      segments,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Create creates a segment after validating its definition
func (h *SegmentHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SegmentHandler.Create")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req models.CreateSegmentRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return BadRequest(err.Error())
	}

	segment, err := h.service.Create(ctx, tenantID, GetUserID(c), &req)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to create segment")
		return err
	}
	return CreatedResponse(c, segment)
}

// Validate checks a definition without saving it
func (h *SegmentHandler) Validate(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SegmentHandler.Validate")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	if _, err := GetTenantID(c); err != nil {
		return err
	}

	var req struct {
		Definition json.RawMessage `json:"definition" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if len(req.Definition) == 0 {
		return BadRequest("definition is required")
	}

	resp, err := h.service.Validate(ctx, req.Definition)
	if err != nil {
		return err
	}
	return SuccessResponse(c, resp)
}

// Preview evaluates an unsaved definition against live donors
func (h *SegmentHandler) Preview(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SegmentHandler.Preview")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req models.SegmentPreviewRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if len(req.Definition) == 0 {
		return BadRequest("definition is required")
	}

	resp, err := h.service.Preview(ctx, tenantID, &req)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to preview segment")
		return err
	}
	return SuccessResponse(c, resp)
}

// Get returns a single segment
func (h *SegmentHandler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SegmentHandler.Get")
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

	segment, err := h.service.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, segment)
}

// Update applies a partial update to a segment
func (h *SegmentHandler) Update(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SegmentHandler.Update")
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

	var req models.UpdateSegmentRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return BadRequest(err.Error())
	}

	segment, err := h.service.Update(ctx, tenantID, id, &req)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to update segment")
		return err
	}
	return SuccessResponse(c, segment)
}

// Delete soft-deletes a segment
func (h *SegmentHandler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SegmentHandler.Delete")
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
		h.logger.WithContext(ctx).WithError(err).Error("Failed to delete segment")
		return err
	}
	return NoContentResponse(c)
}

// Members returns the donors currently matching a saved segment
func (h *SegmentHandler) Members(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SegmentHandler.Members")
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

	page, pageSize := Paging(c)
	members, total, err := h.service.Members(ctx, tenantID, id, page, pageSize)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list segment members")
		return err
	}

	return SuccessResponse(c, models.DonorListResponse{
		Items:      members,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Count returns the segment's member count, cached when fresh
func (h *SegmentHandler) Count(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "SegmentHandler.Count")
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

	resp, err := h.service.Count(ctx, tenantID, id)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to count segment members")
		return err
	}
	return SuccessResponse(c, resp)
}
