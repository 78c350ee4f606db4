package diary

import (
	"math"

	"github.com/franckalain/mealscan/internal/models"
)

// Totals are the component-wise sums over every entry.
type Totals struct {
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
}

// Macros returns the macro part of the totals.
func (t Totals) Macros() models.MacroBreakdown {
	return models.MacroBreakdown{Protein: t.Protein, Carbs: t.Carbs, Fats: t.Fats}
}

// Progress compares consumed calories against the daily goal.
type Progress struct {
	Goal      int     `json:"goal"`
	Consumed  int     `json:"consumed"`
	Remaining int     `json:"remaining"`
	Percent   float64 `json:"percent"`
}

// MacroGoal is progress for a single macronutrient.
type MacroGoal struct {
	Consumed float64 `json:"consumed"`
	Target   float64 `json:"target"`
	Percent  float64 `json:"percent"`
}

// MacroProgress is per-macro progress against the daily targets.
type MacroProgress struct {
	Protein MacroGoal `json:"protein"`
	Carbs   MacroGoal `json:"carbs"`
	Fats    MacroGoal `json:"fats"`
}

// Ratios are integer percentages of the macro mass. They always sum to 100,
// or are all zero when there is no macro mass.
type Ratios struct {
	Protein int `json:"protein"`
	Carbs   int `json:"carbs"`
	Fats    int `json:"fats"`
}

// Totals recomputes the sums from the current entries.
func (d *Diary) Totals() Totals {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Sum(d.entries)
}

// Sum adds up entries component-wise. Callers that also show the entries
// should sum the same slice they show.
func Sum(entries []models.FoodEntry) Totals {
	var t Totals
	for _, e := range entries {
		t.Calories += e.Calories
		t.Protein += e.Macros.Protein
		t.Carbs += e.Macros.Carbs
		t.Fats += e.Macros.Fats
	}
	return t
}

// GoalProgress returns progress towards the profile's daily goal.
func (d *Diary) GoalProgress(profile models.UserProfile) Progress {
	return ComputeProgress(profile.DailyGoal, d.Totals().Calories)
}

// MacroProgress returns per-macro progress towards targets.
func (d *Diary) MacroProgress(targets models.MacroTargets) MacroProgress {
	return ComputeMacroProgress(d.Totals(), targets)
}

// ComputeMacroProgress compares totals against per-macro targets.
func ComputeMacroProgress(t Totals, targets models.MacroTargets) MacroProgress {
	return MacroProgress{
		Protein: macroGoal(t.Protein, targets.Protein),
		Carbs:   macroGoal(t.Carbs, targets.Carbs),
		Fats:    macroGoal(t.Fats, targets.Fats),
	}
}

// ComputeProgress derives remaining calories and percent for a goal.
// Remaining never goes below zero and percent is capped at 100, rounded to
// one decimal.
func ComputeProgress(goal, consumed int) Progress {
	p := Progress{Goal: goal, Consumed: consumed}
	if goal <= 0 {
		return p
	}
	p.Remaining = max(0, goal-consumed)
	p.Percent = roundTenth(min(100, float64(consumed)/float64(goal)*100))
	if p.Percent < 0 {
		p.Percent = 0
	}
	return p
}

// MacroRatios splits 100 percent across protein, carbs and fats. Protein
// and carbs are rounded; fats take the remainder.
func MacroRatios(m models.MacroBreakdown) Ratios {
	total := m.Total()
	if total <= 0 {
		return Ratios{}
	}

	r := Ratios{
		Protein: int(math.Round(m.Protein / total * 100)),
		Carbs:   int(math.Round(m.Carbs / total * 100)),
	}
	r.Fats = 100 - r.Protein - r.Carbs
	// Two half-up roundings can overshoot by one.
	if r.Fats < 0 {
		r.Carbs += r.Fats
		r.Fats = 0
	}
	return r
}

func macroGoal(consumed, target float64) MacroGoal {
	g := MacroGoal{Consumed: consumed, Target: target}
	if target > 0 {
		g.Percent = roundTenth(min(100, consumed/target*100))
	}
	return g
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
