package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/omar-mostafa205/Planna/internal/domain"
	"github.com/omar-mostafa205/Planna/internal/middleware"
	"github.com/rs/zerolog/log"
)

// ProfileHandler handles first contact from the identity provider
type ProfileHandler struct {
	profileService domain.ProfileService
}

func NewProfileHandler(profileService domain.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

type syncProfileRequest struct {
	Email string `json:"email"`
}

// SyncProfile handles POST /v1/profile/sync.
// The token's email claim wins over the body.
func (h *ProfileHandler) SyncProfile(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return errorJSON(c, fiber.StatusUnauthorized, "User ID not found")
	}

	email := middleware.GetEmail(c)
	if email == "" && len(c.Body()) > 0 {
		var body syncProfileRequest
		if err := c.BodyParser(&body); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
		}
		email = body.Email
	}

	profile, err := h.profileService.SyncProfile(c.UserContext(), userID, email)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return errorJSON(c, fiber.StatusUnauthorized, "User ID not found")
		}
		log.Error().Err(err).Str("user_id", userID).Msg("profile sync failed")
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return c.Status(fiber.StatusOK).JSON(profile)
}
