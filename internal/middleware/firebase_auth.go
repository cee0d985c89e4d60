package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

const (
	userIDKey = "userID"
	emailKey  = "email"
)

// FirebaseAuthClient is the slice of the Firebase Auth client the middleware needs
type FirebaseAuthClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuth creates a Fiber middleware that validates Firebase ID tokens
func FirebaseAuth(authClient FirebaseAuthClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return unauthorized(c, "missing or malformed authorization header, expected 'Bearer <token>'")
		}

		decodedToken, err := authClient.VerifyIDToken(c.UserContext(), token)
		if err != nil {
			log.Debug().Err(err).Msg("firebase token rejected")
			if strings.Contains(err.Error(), "expired") {
				return unauthorized(c, "token expired")
			}
			return unauthorized(c, "invalid token")
		}
		if decodedToken.UID == "" {
			return unauthorized(c, "token carries no user")
		}

		c.Locals(userIDKey, decodedToken.UID)
		if email, ok := decodedToken.Claims["email"].(string); ok {
			c.Locals(emailKey, email)
		}

		return c.Next()
	}
}

// InitFirebase initializes Firebase Admin SDK with environment variables
func InitFirebase(projectID, privateKeyB64, clientEmail string) (*firebase.App, error) {
	privateKey, err := base64.StdEncoding.DecodeString(privateKeyB64)
	if err != nil {
		return nil, err
	}

	credentialsJSON := map[string]interface{}{
		"type":         "service_account",
		"project_id":   projectID,
		"private_key":  string(privateKey),
		"client_email": clientEmail,
	}

	return firebase.NewApp(context.Background(), nil, option.WithCredentialsJSON(mustMarshalJSON(credentialsJSON)))
}

// GetUserID extracts the user ID from Fiber context.
// Empty when no auth middleware ran.
func GetUserID(c *fiber.Ctx) string {
	userID, ok := c.Locals(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetEmail extracts the email claim, if the token had one
func GetEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(emailKey).(string)
	return email
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
	})
}

// mustMarshalJSON is a helper to marshal JSON or panic
func mustMarshalJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
