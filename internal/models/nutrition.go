package models

import (
	"math"
	"time"
)

// TimeLayout is the hour:minute format used for human-readable meal times.
const TimeLayout = "03:04 PM"

// MacroBreakdown holds macronutrient estimates in grams.
// The three values are independent; they need not sum to the item weight.
type MacroBreakdown struct {
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fats    float64 `json:"fats"`
}

// Total returns protein + carbs + fats.
func (m MacroBreakdown) Total() float64 {
	return m.Protein + m.Carbs + m.Fats
}

// NutritionEstimate is the validated output of the recognition service for one image.
type NutritionEstimate struct {
	Name       string    `json:"name"`
	Calories   float64   `json:"calories"`   // kcal
	Protein    float64   `json:"protein"`    // grams
	Carbs      float64   `json:"carbs"`      // grams
	Fats       float64   `json:"fats"`       // grams
	Weight     float64   `json:"weight"`     // grams
	Confidence float64   `json:"confidence"` // percent, 0-100
	IsFood     bool      `json:"isFood"`
	CapturedAt time.Time `json:"capturedAt"`
	Time       string    `json:"time"`
}

// ScanDraft is a provisional diary entry held by a scan session between
// recognition and confirmation.
type ScanDraft struct {
	Name       string         `json:"name"`
	Calories   int            `json:"calories"`
	Macros     MacroBreakdown `json:"macros"`
	Weight     float64        `json:"weight"`
	Confidence float64        `json:"confidence"`
	Time       string         `json:"time"`
	CapturedAt time.Time      `json:"capturedAt"`
	IsFood     bool           `json:"isFood"`
}

// NewScanDraft converts an estimate into a draft. Calories are rounded to
// the nearest whole kcal.
func NewScanDraft(est NutritionEstimate) ScanDraft {
	return ScanDraft{
		Name:     est.Name,
		Calories: int(math.Round(est.Calories)),
		Macros: MacroBreakdown{
			Protein: est.Protein,
			Carbs:   est.Carbs,
			Fats:    est.Fats,
		},
		Weight:     est.Weight,
		Confidence: est.Confidence,
		Time:       est.Time,
		CapturedAt: est.CapturedAt,
		IsFood:     est.IsFood,
	}
}

// FoodEntry is a committed diary record. It owns its image.
type FoodEntry struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Calories   int            `json:"calories"`
	Time       string         `json:"time"`
	Image      ImageBuffer    `json:"image"`
	Macros     MacroBreakdown `json:"macros"`
	Weight     float64        `json:"weight"`
	Confidence float64        `json:"confidence"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// UserProfile is read from the profile store; the pipeline only uses DailyGoal.
type UserProfile struct {
	Name        string `json:"name" mapstructure:"name"`
	DailyGoal   int    `json:"dailyGoal" mapstructure:"daily_goal"`
	Streak      int    `json:"streak" mapstructure:"streak"`
	TotalScans  int    `json:"totalScans" mapstructure:"total_scans"`
	AvgCalories int    `json:"avgCalories" mapstructure:"avg_calories"`
	Avatar      string `json:"avatar" mapstructure:"avatar"`
}

// MacroTargets are the daily gram targets shown next to the calorie ring.
type MacroTargets struct {
	Protein float64 `json:"protein" mapstructure:"protein"`
	Carbs   float64 `json:"carbs" mapstructure:"carbs"`
	Fats    float64 `json:"fats" mapstructure:"fats"`
}
