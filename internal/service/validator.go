package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/omar-mostafa205/Planna/internal/domain"
)

// ValidatePlan parses the model output and checks the plan's structure.
// Every failure wraps domain.ErrInvalidPlanFormat.
func ValidatePlan(raw string) (*domain.MealPlanDocument, error) {
	body, err := extractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPlanFormat, err)
	}

	var shape map[string]json.RawMessage
	if err := json.Unmarshal(body, &shape); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPlanFormat, err)
	}

	mealsRaw, ok := shape["meals"]
	if !ok || isJSONNull(mealsRaw) {
		return nil, fmt.Errorf("%w: missing meals", domain.ErrInvalidPlanFormat)
	}
	if _, ok := shape["calories"]; !ok {
		return nil, fmt.Errorf("%w: missing calories", domain.ErrInvalidPlanFormat)
	}

	var slots map[string]json.RawMessage
	if err := json.Unmarshal(mealsRaw, &slots); err != nil {
		return nil, fmt.Errorf("%w: meals must be an object", domain.ErrInvalidPlanFormat)
	}
	meals, err := decodeMeals(slots)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPlanFormat, err)
	}

	var doc domain.MealPlanDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPlanFormat, err)
	}
	// encoding/json folds key case, so "Snack" could overwrite "snack".
	// Slots come from the exact-key decode only.
	doc.Meals = meals

	if doc.Calories == 0 {
		return nil, fmt.Errorf("%w: missing calories", domain.ErrInvalidPlanFormat)
	}
	if err := checkTotals(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPlanFormat, err)
	}
	for _, slot := range domain.MealSlots {
		if err := checkMeal(slot, doc.Meals.Slot(slot)); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPlanFormat, err)
		}
	}

	return &doc, nil
}

func decodeMeals(slots map[string]json.RawMessage) (domain.Meals, error) {
	var meals domain.Meals
	for _, slot := range domain.MealSlots {
		v, ok := slots[slot]
		if !ok || isJSONNull(v) {
			return meals, fmt.Errorf("missing meal slot %q", slot)
		}
		var meal domain.Meal
		if err := json.Unmarshal(v, &meal); err != nil {
			return meals, fmt.Errorf("meal %q: %v", slot, err)
		}
		switch slot {
		case domain.SlotBreakfast:
			meals.Breakfast = &meal
		case domain.SlotLunch:
			meals.Lunch = &meal
		case domain.SlotDinner:
			meals.Dinner = &meal
		case domain.SlotSnack:
			meals.Snack = &meal
		}
	}
	return meals, nil
}

func checkTotals(doc *domain.MealPlanDocument) error {
	fields := map[string]domain.Quantity{
		"calories":      doc.Calories,
		"protein":       doc.Protein,
		"carbs":         doc.Carbs,
		"fat":           doc.Fat,
		"currentWeight": doc.CurrentWeight,
		"bodyFat":       doc.BodyFat,
		"muscleMass":    doc.MuscleMass,
	}
	for name, v := range fields {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

func checkMeal(slot string, meal *domain.Meal) error {
	if meal == nil {
		return fmt.Errorf("missing meal slot %q", slot)
	}
	if strings.TrimSpace(meal.Title) == "" {
		return fmt.Errorf("meal %q has no title", slot)
	}
	if meal.Calories < 0 || meal.Protein < 0 || meal.Carbs < 0 || meal.Fat < 0 {
		return fmt.Errorf("meal %q has negative macros", slot)
	}
	if meal.Ingredients == nil {
		meal.Ingredients = []string{}
	}
	if meal.Instructions == nil {
		meal.Instructions = []string{}
	}
	return nil
}

// extractJSONObject trims chatty output (code fences, leading prose) down to
// the outermost JSON object.
func extractJSONObject(text string) ([]byte, error) {
	b := []byte(strings.TrimSpace(text))
	if json.Valid(b) {
		return b, nil
	}

	start := bytes.IndexByte(b, '{')
	end := bytes.LastIndexByte(b, '}')
	if start == -1 || end == -1 || start >= end {
		return nil, fmt.Errorf("no JSON object found in text")
	}

	candidate := b[start : end+1]
	if !json.Valid(candidate) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return candidate, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
