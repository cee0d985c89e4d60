package service

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/omar-mostafa205/Planna/internal/domain"
)

// planPromptTmplStr renders the client profile and the fixed JSON contract.
// The meal block is rendered once per slot so the four slot names can't drift.
const planPromptTmplStr = `Create a daily meal plan in JSON format for:
Name: {{.Profile.FullName}}
Age: {{.Profile.Age}}
Height: {{.Profile.Height}} cm
Gender: {{.Profile.Gender}}
Activity: {{.Profile.ActivityLevel}}
Goals: {{.Profile.Goals}}
Health Notes: {{.Profile.MedicalConditions}}
InBody Data: {{.Metrics}}

Return ONLY a single JSON object with EXACTLY this structure:
{
  "calories": number (total daily calories),
  "protein": number (total daily protein in grams),
  "carbs": number (total daily carbs in grams),
  "fat": number (total daily fat in grams),
  "currentWeight": number (estimated current weight in kg based on data),
  "bodyFat": number (estimated body fat percentage),
  "muscleMass": number (estimated muscle mass in kg),
  "goal": "string describing the main goal",
  "meals": {
{{- range $i, $slot := .Slots}}{{if $i}},{{end}}
    "{{$slot}}": {
      "title": "Meal name",
      "calories": number,
      "protein": number,
      "carbs": number,
      "fat": number,
      "ingredients": ["ingredient 1", "ingredient 2"],
      "instructions": ["step 1", "step 2"]
    }
{{- end}}
  }
}

The "meals" object must contain exactly the keys {{range $i, $slot := .Slots}}{{if $i}}, {{end}}"{{$slot}}"{{end}}.
Do NOT include any text, explanations, or markdown outside the JSON object.`

var planPromptTmpl = template.Must(template.New("plan").Parse(planPromptTmplStr))

type planPromptContext struct {
	Profile domain.PlanProfile
	Metrics string
	Slots   []string
}

// BuildPlanPrompt renders the generation instruction. It is pure: identical
// inputs always produce the identical string.
func BuildPlanPrompt(profile domain.PlanProfile, metrics string) (string, error) {
	var buf bytes.Buffer
	err := planPromptTmpl.Execute(&buf, planPromptContext{
		Profile: profile,
		Metrics: metrics,
		Slots:   domain.MealSlots,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate plan prompt: %w", err)
	}
	return buf.String(), nil
}
