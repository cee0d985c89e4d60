package domain

import "context"

// PlanProfile is the self-reported data a plan is built from.
// Values are kept as the user typed them.
type PlanProfile struct {
	FullName          string
	Age               string
	Height            string
	Gender            string
	ActivityLevel     string
	Goals             string
	MedicalConditions string
}

// UploadedImage is a raw scan image as received
type UploadedImage struct {
	Data     []byte
	Size     int64
	Filename string
}

// PlanRequest is one generation request
type PlanRequest struct {
	Profile PlanProfile
	Image   *UploadedImage // optional
}

// ProcessedImage is a normalized, model-consumable image
type ProcessedImage struct {
	Data      []byte
	MediaType string
	DataURI   string
	Width     int
	Height    int
}

// MetricExtractor pulls body-composition text out of a scan image
type MetricExtractor interface {
	// Extract returns free-form metrics text. A nil image yields "" without any call.
	Extract(ctx context.Context, image *ProcessedImage) (string, error)
}

// PlanGenerator asks a text model for a JSON meal plan
type PlanGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PlanService orchestrates plan generation and retrieval
type PlanService interface {
	// GeneratePlan runs the full pipeline and persists the result
	GeneratePlan(ctx context.Context, userID string, req PlanRequest) (*MealPlanDocument, error)

	// GetPlan returns the current plan or ErrPlanNotFound
	GetPlan(ctx context.Context, userID string) (*MealPlanDocument, error)
}
