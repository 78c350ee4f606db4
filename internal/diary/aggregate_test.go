package diary

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franckalain/mealscan/internal/models"
)

func TestDashboardFigures(t *testing.T) {
	ctx := context.Background()
	d := newTestDiary()
	for _, dr := range []models.ScanDraft{
		draft("Oatmeal", 320, 10, 54, 6),
		draft("Apple", 95, 0.5, 25, 0.3),
		draft("Chicken Salad", 240, 35, 8, 7),
	} {
		_, err := d.Commit(ctx, dr, jpeg(1))
		require.NoError(t, err)
	}

	totals := d.Totals()
	assert.Equal(t, 655, totals.Calories)
	assert.InDelta(t, 45.5, totals.Protein, 1e-9)
	assert.InDelta(t, 87.0, totals.Carbs, 1e-9)
	assert.InDelta(t, 13.3, totals.Fats, 1e-9)

	progress := d.GoalProgress(models.UserProfile{DailyGoal: 2100})
	assert.Equal(t, Progress{Goal: 2100, Consumed: 655, Remaining: 1445, Percent: 31.2}, progress)

	macros := d.MacroProgress(models.MacroTargets{Protein: 140, Carbs: 200, Fats: 70})
	assert.Equal(t, 32.5, macros.Protein.Percent)
	assert.Equal(t, 43.5, macros.Carbs.Percent)
	assert.Equal(t, 19.0, macros.Fats.Percent)
	assert.Equal(t, 140.0, macros.Protein.Target)
}

func TestSumMatchesEntries(t *testing.T) {
	ctx := context.Background()
	d := newTestDiary()
	for _, dr := range []models.ScanDraft{
		draft("Oatmeal", 320, 10, 54, 6),
		draft("Apple", 95, 0.5, 25, 0.3),
	} {
		_, err := d.Commit(ctx, dr, jpeg(1))
		require.NoError(t, err)
	}

	entries := d.Entries()
	assert.Equal(t, d.Totals(), Sum(entries))
	assert.Equal(t, Totals{}, Sum(nil))

	got := ComputeMacroProgress(Sum(entries), models.MacroTargets{Protein: 140, Carbs: 200, Fats: 70})
	assert.Equal(t, d.MacroProgress(models.MacroTargets{Protein: 140, Carbs: 200, Fats: 70}), got)
	assert.Equal(t, 39.5, got.Carbs.Percent)
}

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name     string
		goal     int
		consumed int
		want     Progress
	}{
		{"Empty", 2100, 0, Progress{Goal: 2100, Remaining: 2100}},
		{"Partial", 2100, 655, Progress{Goal: 2100, Consumed: 655, Remaining: 1445, Percent: 31.2}},
		{"Exact", 2000, 2000, Progress{Goal: 2000, Consumed: 2000, Remaining: 0, Percent: 100}},
		{"Over", 2000, 2600, Progress{Goal: 2000, Consumed: 2600, Remaining: 0, Percent: 100}},
		{"ZeroGoal", 0, 500, Progress{Goal: 0, Consumed: 500}},
		{"NegativeGoal", -10, 500, Progress{Goal: -10, Consumed: 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeProgress(tt.goal, tt.consumed)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.Remaining, 0)
			assert.LessOrEqual(t, got.Percent, 100.0)
		})
	}
}

func TestMacroRatios(t *testing.T) {
	tests := []struct {
		name   string
		macros models.MacroBreakdown
		want   Ratios
	}{
		{"Salad", models.MacroBreakdown{Protein: 45, Carbs: 12, Fats: 8}, Ratios{Protein: 69, Carbs: 18, Fats: 13}},
		{"Even", models.MacroBreakdown{Protein: 1, Carbs: 1, Fats: 1}, Ratios{Protein: 33, Carbs: 33, Fats: 34}},
		{"ProteinOnly", models.MacroBreakdown{Protein: 20}, Ratios{Protein: 100}},
		{"AllZero", models.MacroBreakdown{}, Ratios{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MacroRatios(tt.macros)
			assert.Equal(t, tt.want, got)
			if tt.macros.Total() > 0 {
				assert.Equal(t, 100, got.Protein+got.Carbs+got.Fats)
			}
		})
	}
}

func TestMacroRatiosAlwaysSumTo100(t *testing.T) {
	for p := 0.0; p <= 60; p += 2.5 {
		for c := 0.0; c <= 60; c += 3.5 {
			for _, f := range []float64{0, 0.5, 7, 49.5} {
				m := models.MacroBreakdown{Protein: p, Carbs: c, Fats: f}
				if m.Total() == 0 {
					continue
				}
				r := MacroRatios(m)
				assert.Equal(t, 100, r.Protein+r.Carbs+r.Fats, "macros %+v", m)
				assert.GreaterOrEqual(t, r.Fats, 0, "macros %+v", m)
				assert.GreaterOrEqual(t, r.Carbs, 0, "macros %+v", m)
			}
		}
	}
}
