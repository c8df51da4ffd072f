package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/schema"
)

// FieldHandler serves the donor field catalog that segment builders work from
type FieldHandler struct{}

// NewFieldHandler creates a new field handler
func NewFieldHandler() *FieldHandler {
	return &FieldHandler{}
}

// Register registers field catalog routes
func (h *FieldHandler) Register(g *echo.Group) {
	g.GET("", h.List)
}

// List returns every segmentable field with its type and legal operators
func (h *FieldHandler) List(c echo.Context) error {
	if _, err := GetTenantID(c); err != nil {
		return err
	}
	return SuccessResponse(c, schema.Fields())
}
