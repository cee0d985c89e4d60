package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Meal slot names. A MealPlanDocument always carries all four.
const (
	SlotBreakfast = "breakfast"
	SlotLunch     = "lunch"
	SlotDinner    = "dinner"
	SlotSnack     = "snack"
)

// MealSlots lists the fixed slots in display order
var MealSlots = []string{SlotBreakfast, SlotLunch, SlotDinner, SlotSnack}

// Quantity is a non-negative amount (kcal, grams, kg, percent).
// It decodes from a JSON number or a numeric string such as "2200" or "150g",
// and always encodes as a JSON number.
type Quantity float64

// UnmarshalJSON accepts numbers and numeric strings
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := parseLeadingNumber(s)
		if err != nil {
			return err
		}
		*q = Quantity(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("quantity must be a number: %w", err)
	}
	*q = Quantity(v)
	return nil
}

// parseLeadingNumber reads the numeric prefix of s ("150g" -> 150)
func parseLeadingNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, fmt.Errorf("quantity %q is not numeric", s)
	}
	return strconv.ParseFloat(s[:end], 64)
}

// Meal is one slot of a daily plan
type Meal struct {
	Title        string   `bson:"title" json:"title"`
	Calories     Quantity `bson:"calories" json:"calories"`
	Protein      Quantity `bson:"protein" json:"protein"`
	Carbs        Quantity `bson:"carbs" json:"carbs"`
	Fat          Quantity `bson:"fat" json:"fat"`
	Ingredients  []string `bson:"ingredients" json:"ingredients"`
	Instructions []string `bson:"instructions" json:"instructions"` // sequential steps
}

// Meals holds the four fixed slots
type Meals struct {
	Breakfast *Meal `bson:"breakfast" json:"breakfast"`
	Lunch     *Meal `bson:"lunch" json:"lunch"`
	Dinner    *Meal `bson:"dinner" json:"dinner"`
	Snack     *Meal `bson:"snack" json:"snack"`
}

// Slot returns the meal stored under a slot name, or nil
func (m Meals) Slot(name string) *Meal {
	switch name {
	case SlotBreakfast:
		return m.Breakfast
	case SlotLunch:
		return m.Lunch
	case SlotDinner:
		return m.Dinner
	case SlotSnack:
		return m.Snack
	}
	return nil
}

// MealPlanDocument is the validated one-day nutrition plan
type MealPlanDocument struct {
	// Daily totals
	Calories Quantity `bson:"calories" json:"calories"`
	Protein  Quantity `bson:"protein" json:"protein"`
	Carbs    Quantity `bson:"carbs" json:"carbs"`
	Fat      Quantity `bson:"fat" json:"fat"`

	// Estimates
	CurrentWeight Quantity `bson:"current_weight" json:"currentWeight"`
	BodyFat       Quantity `bson:"body_fat" json:"bodyFat"`
	MuscleMass    Quantity `bson:"muscle_mass" json:"muscleMass"`

	Goal  string `bson:"goal" json:"goal"`
	Meals Meals  `bson:"meals" json:"meals"`
}
