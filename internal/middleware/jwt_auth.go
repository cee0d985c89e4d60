package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/omar-mostafa205/Planna/internal/domain"
)

// VerifyPlannaToken validates an HMAC-signed JWT and stores the caller identity.
// Sets the same locals as FirebaseAuth so handlers don't care which one ran.
func VerifyPlannaToken(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return unauthorized(c, "missing authorization token")
		}

		token, err := jwt.ParseWithClaims(tokenString, &domain.PlannaClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid signing method")
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			return unauthorized(c, "invalid or expired token")
		}

		claims, ok := token.Claims.(*domain.PlannaClaims)
		if !ok || !token.Valid || claims.Identity() == "" {
			return unauthorized(c, "invalid token claims")
		}

		c.Locals(userIDKey, claims.Identity())
		if claims.Email != "" {
			c.Locals(emailKey, claims.Email)
		}

		return c.Next()
	}
}
