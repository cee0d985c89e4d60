package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	CorrelationIDHeader    = "X-Correlation-ID"
	IdempotentReplayHeader = "X-Idempotent-Replay"
)

// IdempotencyMiddleware replays a successful POST/PATCH/PUT response when the same
// caller resends the same X-Correlation-ID within the TTL.
// Keys are scoped per user, so it must run after the auth middleware.
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		correlationID := c.Get(CorrelationIDHeader)
		if correlationID == "" || redisClient == nil {
			return c.Next()
		}

		key := fmt.Sprintf("idempotency:%s:%s", GetUserID(c), correlationID)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		cached, err := redisClient.Get(ctx, key).Bytes()
		cancel()
		if err == nil && len(cached) > 0 {
			c.Set(IdempotentReplayHeader, "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(cached)
		}
		if err != nil && err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("idempotency lookup failed")
		}

		if err := c.Next(); err != nil {
			return err
		}

		statusCode := c.Response().StatusCode()
		if statusCode >= 200 && statusCode < 300 {
			body := c.Response().Body()
			if len(body) > 0 {
				// fasthttp reuses the response buffer
				stored := append([]byte(nil), body...)
				setCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := redisClient.Set(setCtx, key, stored, ttl).Err(); err != nil {
					log.Warn().Err(err).Str("key", key).Msg("failed to store idempotent response")
				}
			}
		}

		return nil
	}
}
