package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/omar-mostafa205/Planna/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoProfileRepository implements domain.ProfileRepository
type MongoProfileRepository struct {
	collection *mongo.Collection
}

func NewMongoProfileRepository(db *mongo.Database) *MongoProfileRepository {
	coll := db.Collection("profiles")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// One profile per identity; the upserts below rely on it
	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoProfileRepository{
		collection: coll,
	}
}

// insertDefaults is what a brand-new profile starts with. user_id comes from the filter.
func insertDefaults(now time.Time) bson.M {
	return bson.M{
		"_id":                    primitive.NewObjectID(),
		"subscription_active":    false,
		"subscription_tier":      nil,
		"stripe_subscription_id": nil,
		"created_at":             now,
	}
}

// UpsertMealPlan replaces the whole plan in a single document write,
// so readers see either the old plan or the new one.
func (r *MongoProfileRepository) UpsertMealPlan(ctx context.Context, userID string, plan *domain.MealPlanDocument) error {
	now := time.Now()
	update := bson.M{
		"$setOnInsert": insertDefaults(now),
		"$set": bson.M{
			"meal_plan":  plan,
			"updated_at": now,
		},
	}

	if _, err := r.upsert(ctx, userID, update); err != nil {
		return fmt.Errorf("failed to upsert meal plan: %w", err)
	}
	return nil
}

func (r *MongoProfileRepository) GetMealPlan(ctx context.Context, userID string) (*domain.MealPlanDocument, error) {
	opts := options.FindOne().SetProjection(bson.M{"meal_plan": 1})

	var profile domain.Profile
	if err := r.collection.FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&profile); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get meal plan: %w", err)
	}
	if profile.MealPlan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return profile.MealPlan, nil
}

// UpsertProfile creates the profile on first contact. An existing profile only
// gets its email refreshed, and only when one is given.
func (r *MongoProfileRepository) UpsertProfile(ctx context.Context, userID string, email string) (*domain.Profile, error) {
	now := time.Now()
	set := bson.M{"updated_at": now}
	if email != "" {
		set["email"] = email
	}
	update := bson.M{
		"$setOnInsert": insertDefaults(now),
		"$set":         set,
	}

	if _, err := r.upsert(ctx, userID, update); err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return r.GetProfile(ctx, userID)
}

func (r *MongoProfileRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var profile domain.Profile
	if err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&profile); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// upsert runs an upsert keyed on user_id. Two first-time writers can both miss
// the filter and race on insert; the loser hits the unique index and is retried
// once, at which point the document exists and the update applies.
func (r *MongoProfileRepository) upsert(ctx context.Context, userID string, update bson.M) (*mongo.UpdateResult, error) {
	filter := bson.M{"user_id": userID}
	opts := options.Update().SetUpsert(true)

	result, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		result, err = r.collection.UpdateOne(ctx, filter, update, opts)
	}
	return result, err
}
