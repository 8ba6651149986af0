package handler

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/contentforge/api/internal/model"
	"github.com/contentforge/api/internal/service"
	"github.com/contentforge/api/pkg/response"
)

// ContentService is the job lifecycle API the handlers depend on.
type ContentService interface {
	Generate(ctx context.Context, req model.ContentRequest) (*model.Job, error)
	StartGeneration(ctx context.Context, req model.ContentRequest) (*model.ContentAcceptedResponse, error)
	GetContent(ctx context.Context, jobID string) (*model.Job, error)
	GetStatus(ctx context.Context, jobID string) (*model.ContentStatusResponse, error)
	List(ctx context.Context, limit, offset int, status model.ContentStatus) (*model.ContentListResponse, error)
	Delete(ctx context.Context, jobID string) error
}

type ContentHandler struct {
	service   ContentService
	validator *validator.Validate
}

func NewContentHandler(svc ContentService, v *validator.Validate) *ContentHandler {
	return &ContentHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /api/content/generate
// @Summary      Generate content
// @Description  Run the full research, plan, write and edit pipeline and wait for the result
// @Tags         Content
// @Accept       json
// @Produce      json
// @Param        request body model.ContentRequest true "Content request"
// @Success      200 {object} model.ContentResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/content/generate [post]
func (h *ContentHandler) Generate(c *fiber.Ctx) error {
	var req model.ContentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.service.Generate(c.UserContext(), req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	if job.Status == model.StatusFailed {
		return response.GenerationFailed(c, job.Error, job.ToResponse())
	}
	return response.OK(c, job.ToResponse())
}

// GenerateAsync handles POST /api/content/generate/async
// @Summary      Queue content generation
// @Description  Queue a generation job and return its ID immediately
// @Tags         Content
// @Accept       json
// @Produce      json
// @Param        request body model.ContentRequest true "Content request"
// @Success      202 {object} model.ContentAcceptedResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/content/generate/async [post]
func (h *ContentHandler) GenerateAsync(c *fiber.Ctx) error {
	var req model.ContentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartGeneration(c.UserContext(), req)
	if errors.Is(err, service.ErrQueueUnavailable) {
		return response.Unavailable(c, err.Error())
	}
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Get handles GET /api/content/:id
func (h *ContentHandler) Get(c *fiber.Ctx) error {
	job, err := h.service.GetContent(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.lookupError(c, err)
	}
	return response.OK(c, job.ToResponse())
}

// Status handles GET /api/content/:id/status
func (h *ContentHandler) Status(c *fiber.Ctx) error {
	status, err := h.service.GetStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.lookupError(c, err)
	}
	return response.OK(c, status)
}

// List handles GET /api/content
func (h *ContentHandler) List(c *fiber.Ctx) error {
	status := model.ContentStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		return response.ValidationError(c, "Unknown status filter", fiber.Map{"status": string(status)})
	}

	result, err := h.service.List(c.UserContext(), c.QueryInt("limit", 10), c.QueryInt("offset", 0), status)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, result)
}

// Delete handles DELETE /api/content/:id
func (h *ContentHandler) Delete(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if err := h.service.Delete(c.UserContext(), jobID); err != nil {
		return h.lookupError(c, err)
	}
	return response.OK(c, model.ContentDeleteResponse{
		Message:   "Content deleted",
		ContentID: jobID,
	})
}

func (h *ContentHandler) lookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrNotFound) {
		return response.NotFound(c, "Content not found")
	}
	return response.ServiceError(c, err.Error())
}

func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string)
		for _, e := range validationErrors {
			fields[e.Field()] = e.Tag()
		}
		return fields
	}
	return nil
}
