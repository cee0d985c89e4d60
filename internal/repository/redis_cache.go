package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/omar-mostafa205/Planna/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	currentPlanKeyPrefix = "plan:current:"
)

var ErrCacheMiss = errors.New("cache miss")

// RedisCacheRepository implements domain.PlanCache using Redis
type RedisCacheRepository struct {
	client *redis.Client
}

// NewRedisCacheRepository creates a new Redis cache repository
func NewRedisCacheRepository(client *redis.Client) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
	}
}

// SetPlan caches the current plan for a user with TTL
func (r *RedisCacheRepository) SetPlan(ctx context.Context, userID string, plan *domain.MealPlanDocument, ttl time.Duration) error {
	return r.Set(ctx, currentPlanKeyPrefix+userID, plan, ttl)
}

// FillPlan caches a plan read from the store unless an entry is already
// present, so a slow read can't replace a plan written after it started.
func (r *RedisCacheRepository) FillPlan(ctx context.Context, userID string, plan *domain.MealPlanDocument, ttl time.Duration) (bool, error) {
	return r.SetNX(ctx, currentPlanKeyPrefix+userID, plan, ttl)
}

// GetPlan retrieves the cached plan for a user. A miss returns nil, nil.
func (r *RedisCacheRepository) GetPlan(ctx context.Context, userID string) (*domain.MealPlanDocument, error) {
	var plan domain.MealPlanDocument
	if err := r.Get(ctx, currentPlanKeyPrefix+userID, &plan); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// InvalidatePlan removes the cached plan for a user
func (r *RedisCacheRepository) InvalidatePlan(ctx context.Context, userID string) error {
	return r.Delete(ctx, currentPlanKeyPrefix+userID)
}

// Get retrieves a value from cache by key with OTel tracing
func (r *RedisCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Get",
		trace.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			span.SetAttributes(attribute.String("cache.result", "miss"))
			return ErrCacheMiss
		}
		span.RecordError(err)
		return fmt.Errorf("redis get error: %w", err)
	}

	span.SetAttributes(attribute.String("cache.result", "hit"))
	if err := json.Unmarshal(data, dest); err != nil {
		span.RecordError(err)
		return fmt.Errorf("unmarshal error: %w", err)
	}

	return nil
}

// Set stores a value in cache with TTL and OTel tracing
func (r *RedisCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())),
		),
	)
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal error: %w", err)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

// SetNX stores a value only if the key does not exist, with OTel tracing
func (r *RedisCacheRepository) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.SetNX",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())),
		),
	)
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("marshal error: %w", err)
	}

	ok, err := r.client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("redis setnx error: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache.written", ok))

	return ok, nil
}

// Delete removes keys from cache with OTel tracing
func (r *RedisCacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tracer := otel.Tracer("redis")
	ctx, span := tracer.Start(ctx, "redis.Delete",
		trace.WithAttributes(attribute.Int("cache.key_count", len(keys))),
	)
	defer span.End()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis delete error: %w", err)
	}

	return nil
}
