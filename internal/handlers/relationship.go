package handlers

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/graph"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
)

// RelationshipService is the donor graph surface the handler needs
type RelationshipService interface {
	Relate(ctx context.Context, tenantID, fromID, toID, relType string) error
	Related(ctx context.Context, tenantID, donorID string) ([]graph.RelatedDonor, error)
}

// RelationshipHandler handles donor relationship endpoints backed by the
// graph database
type RelationshipHandler struct {
	service RelationshipService
	logger  ectologger.Logger
}

// NewRelationshipHandler creates a new relationship handler
func NewRelationshipHandler(service RelationshipService, logger ectologger.Logger) *RelationshipHandler {
	return &RelationshipHandler{service: service, logger: logger}
}

// Register registers relationship routes on the donors group
func (h *RelationshipHandler) Register(g *echo.Group) {
	g.GET("/:id/relationships", h.List)
	g.POST("/:id/relationships", h.Create)
}

// List returns the donors related to one donor
func (h *RelationshipHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RelationshipHandler.List")
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

	related, err := h.service.Related(ctx, tenantID, id)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list donor relationships")
		return err
	}
	if related == nil {
		related = []graph.RelatedDonor{}
	}
	for i := range related {
		related[i].Relationship = strings.ToLower(related[i].Relationship)
	}
	return SuccessResponse(c, related)
}

// Create records a relationship between two donors
func (h *RelationshipHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RelationshipHandler.Create")
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

	var req models.CreateRelationshipRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return BadRequest(err.Error())
	}
	if req.RelatedDonorID == id {
		return BadRequest("a donor cannot be related to themselves")
	}

	if err := h.service.Relate(ctx, tenantID, id, req.RelatedDonorID, strings.ToUpper(req.Type)); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to create donor relationship")
		return err
	}
	return CreatedResponse(c, map[string]string{
		"donor_id":         id,
		"related_donor_id": req.RelatedDonorID,
		"type":             req.Type,
	})
}
