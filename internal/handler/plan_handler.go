package handler

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/omar-mostafa205/Planna/internal/domain"
	"github.com/omar-mostafa205/Planna/internal/middleware"
	"github.com/rs/zerolog/log"
)

// PlanHandler handles HTTP requests for meal plan operations
type PlanHandler struct {
	planService domain.PlanService
	maxUploadMB int64
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(planService domain.PlanService, maxUploadMB int64) *PlanHandler {
	return &PlanHandler{
		planService: planService,
		maxUploadMB: maxUploadMB,
	}
}

// GeneratePlan handles POST /generate-plan
func (h *PlanHandler) GeneratePlan(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized - Please sign in")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid multipart form: "+err.Error())
	}

	profile := domain.PlanProfile{
		FullName:          formValue(form.Value, "fullName"),
		Age:               formValue(form.Value, "age"),
		Height:            formValue(form.Value, "height"),
		Gender:            formValue(form.Value, "gender"),
		ActivityLevel:     formValue(form.Value, "activityLevel"),
		Goals:             formValue(form.Value, "goals"),
		MedicalConditions: formValue(form.Value, "medicalConditions"),
	}
	if profile.FullName == "" || profile.Age == "" || profile.Height == "" ||
		profile.Gender == "" || profile.ActivityLevel == "" || profile.Goals == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Missing required fields")
	}

	req := domain.PlanRequest{Profile: profile}

	// Only the first image is used
	if files := form.File["images"]; len(files) > 0 {
		imageFile := files[0]

		maxBytes := h.maxUploadMB * 1024 * 1024
		if imageFile.Size > maxBytes {
			return errorJSON(c, fiber.StatusBadRequest, fmt.Sprintf("Image size exceeds %dMB limit", h.maxUploadMB))
		}

		fileHandle, err := imageFile.Open()
		if err != nil {
			return errorJSON(c, fiber.StatusInternalServerError, "failed to open uploaded file")
		}
		defer fileHandle.Close()

		imageData, err := io.ReadAll(io.LimitReader(fileHandle, maxBytes+1))
		if err != nil {
			return errorJSON(c, fiber.StatusInternalServerError, "failed to read uploaded file")
		}

		req.Image = &domain.UploadedImage{
			Data:     imageData,
			Size:     int64(len(imageData)),
			Filename: imageFile.Filename,
		}
	}

	plan, err := h.planService.GeneratePlan(c.UserContext(), userID, req)
	if err != nil {
		status, msg := planErrorResponse(err)
		if status >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("user_id", userID).Msg("generate plan failed")
		}
		return errorJSON(c, status, msg)
	}

	return c.Status(fiber.StatusOK).JSON(plan)
}

// GetPlan handles GET /get-plan
func (h *PlanHandler) GetPlan(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	plan, err := h.planService.GetPlan(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "No meal plan found")
		}
		log.Error().Err(err).Str("user_id", userID).Msg("get plan failed")
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to fetch meal plan")
	}

	return c.Status(fiber.StatusOK).JSON(plan)
}

// planErrorResponse maps pipeline errors to a status and a user-facing message
func planErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return fiber.StatusBadRequest, "Image size exceeds upload limit"
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "No meal plan found"
	case errors.Is(err, domain.ErrInvalidPlanFormat):
		return fiber.StatusInternalServerError, "Failed to generate valid meal plan"
	case errors.Is(err, domain.ErrImageProcessingFailed):
		return fiber.StatusInternalServerError, "Failed to process image"
	case errors.Is(err, domain.ErrPersistenceFailed):
		return fiber.StatusInternalServerError, "Failed to save meal plan"
	default:
		return fiber.StatusInternalServerError, "Failed to generate plan"
	}
}

func formValue(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}
