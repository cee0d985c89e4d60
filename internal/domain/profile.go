package domain

import (
	"context"
	"time"
)

// Profile is the per-identity record holding the current meal plan.
// Subscription fields belong to billing and are only defaulted on insert.
type Profile struct {
	ID                   string            `bson:"_id,omitempty" json:"id"`
	UserID               string            `bson:"user_id" json:"userId"` // From the identity provider
	Email                string            `bson:"email,omitempty" json:"email,omitempty"`
	SubscriptionActive   bool              `bson:"subscription_active" json:"subscriptionActive"`
	SubscriptionTier     *string           `bson:"subscription_tier" json:"subscriptionTier"`
	StripeSubscriptionID *string           `bson:"stripe_subscription_id" json:"stripeSubscriptionId"`
	MealPlan             *MealPlanDocument `bson:"meal_plan" json:"mealPlan"`
	CreatedAt            time.Time         `bson:"created_at" json:"createdAt"`
	UpdatedAt            time.Time         `bson:"updated_at" json:"updatedAt"`
}

// ProfileRepository defines persistence for profiles and their current plan.
// Implementations must write a plan as a single atomic document update.
type ProfileRepository interface {
	// UpsertMealPlan creates the profile if absent, otherwise replaces only its meal plan
	UpsertMealPlan(ctx context.Context, userID string, plan *MealPlanDocument) error

	// GetMealPlan returns the current plan or ErrPlanNotFound
	GetMealPlan(ctx context.Context, userID string) (*MealPlanDocument, error)

	// UpsertProfile creates the profile if absent, otherwise updates only its email
	UpsertProfile(ctx context.Context, userID string, email string) (*Profile, error)

	// GetProfile returns the profile or ErrNotFound
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// PlanCache caches the current plan per identity.
// A nil plan with a nil error is a cache miss.
type PlanCache interface {
	GetPlan(ctx context.Context, userID string) (*MealPlanDocument, error)
	SetPlan(ctx context.Context, userID string, plan *MealPlanDocument, ttl time.Duration) error
	// FillPlan caches plan only if no entry exists; it reports whether it wrote
	FillPlan(ctx context.Context, userID string, plan *MealPlanDocument, ttl time.Duration) (bool, error)
	InvalidatePlan(ctx context.Context, userID string) error
}

// ProfileService handles first contact from the identity provider
type ProfileService interface {
	SyncProfile(ctx context.Context, userID string, email string) (*Profile, error)
}
