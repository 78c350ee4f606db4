package ml

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/franckalain/mealscan/internal/models"
)

// parseEstimate validates a backend answer. Every schema field must be
// present with the right JSON type; numbers must be non-negative and
// confidence at most 100.
func parseEstimate(text string) (models.NutritionEstimate, error) {
	text = stripFences(text)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return models.NutritionEstimate{}, fmt.Errorf("response is not a JSON object: %w", err)
	}

	var est models.NutritionEstimate
	numbers := map[string]*float64{
		"calories":   &est.Calories,
		"protein":    &est.Protein,
		"carbs":      &est.Carbs,
		"fats":       &est.Fats,
		"weight":     &est.Weight,
		"confidence": &est.Confidence,
	}

	for _, f := range estimateFields {
		value, ok := raw[f.name]
		if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return models.NutritionEstimate{}, fmt.Errorf("missing required field '%s' in response", f.name)
		}

		var err error
		switch f.kind {
		case kindString:
			err = json.Unmarshal(value, &est.Name)
		case kindNumber:
			err = json.Unmarshal(value, numbers[f.name])
		case kindBoolean:
			err = json.Unmarshal(value, &est.IsFood)
		}
		if err != nil {
			return models.NutritionEstimate{}, fmt.Errorf("field '%s' has the wrong type: %w", f.name, err)
		}
	}

	est.Name = strings.TrimSpace(est.Name)
	if est.Name == "" {
		return models.NutritionEstimate{}, fmt.Errorf("field 'name' is blank")
	}
	for _, f := range estimateFields {
		if p, ok := numbers[f.name]; ok && *p < 0 {
			return models.NutritionEstimate{}, fmt.Errorf("field '%s' is negative: %v", f.name, *p)
		}
	}
	if est.Confidence > 100 {
		return models.NutritionEstimate{}, fmt.Errorf("confidence out of range: %v", est.Confidence)
	}
	return est, nil
}

// stripFences removes a surrounding markdown code block, if any.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
