package handlers

import (
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/tracing"
)

// ImportService is the import operations surface the handler needs
type ImportService interface {
	Run(ctx context.Context, tenantID, createdBy string, req *models.CreateImportJobRequest, file io.Reader) (*models.ImportJob, error)
	Get(ctx context.Context, tenantID, id string) (*models.ImportJob, error)
	List(ctx context.Context, tenantID string, page, pageSize int) ([]models.ImportJob, int, error)
	RowErrors(ctx context.Context, tenantID, jobID string, limit int) ([]models.ImportRowError, error)
}

// ImportHandler handles CSV import endpoints
type ImportHandler struct {
	service   ImportService
	maxFileMB int
	logger    ectologger.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(service ImportService, maxFileMB int, logger ectologger.Logger) *ImportHandler {
	if maxFileMB < 1 {
		maxFileMB = 20
	}
	return &ImportHandler{service: service, maxFileMB: maxFileMB, logger: logger}
}

// Register registers import routes
func (h *ImportHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.GET("/:id/errors", h.RowErrors)
}

// Create accepts a multipart upload with a "file" part holding the CSV and a
// "mappings" part holding the JSON column mapping array, and runs the import.
func (h *ImportHandler) Create(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ImportHandler.Create")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return BadRequest("a csv file part named \"file\" is required")
	}
	if fileHeader.Size > int64(h.maxFileMB)<<20 {
		return BadRequest("file exceeds the " + strconv.Itoa(h.maxFileMB) + "MB limit")
	}

	mappingsJSON := c.FormValue("mappings")
	if mappingsJSON == "" {
		return BadRequest("a form field named \"mappings\" is required")
	}
	var mappings []models.ImportColumnMapping
	if err := json.Unmarshal([]byte(mappingsJSON), &mappings); err != nil {
		return BadRequest("mappings must be a JSON array of column mappings")
	}

	req := &models.CreateImportJobRequest{
		FileName: fileHeader.Filename,
		Mappings: mappings,
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	file, err := fileHeader.Open()
	if err != nil {
		return BadRequest("unable to read uploaded file")
	}
	defer file.Close()

	job, err := h.service.Run(ctx, tenantID, GetUserID(c), req, file)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to run import")
		return err
	}
	return CreatedResponse(c, job)
}

// List returns the tenant's import jobs, newest first
func (h *ImportHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ImportHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	page, pageSize := Paging(c)
	jobs, total, err := h.service.List(ctx, tenantID, page, pageSize)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list import jobs")
		return err
	}

	return SuccessResponse(c, models.ImportJobListResponse{
		Items:      jobs,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Get returns a single import job with its progress counters
func (h *ImportHandler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ImportHandler.Get")
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

	job, err := h.service.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, job)
}

// RowErrors returns the recorded row errors and skips for a job
func (h *ImportHandler) RowErrors(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "ImportHandler.RowErrors")
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

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	rowErrors, err := h.service.RowErrors(ctx, tenantID, id, limit)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list import row errors")
		return err
	}
	return SuccessResponse(c, rowErrors)
}
