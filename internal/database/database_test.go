package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/franckalain/mealscan/internal/errors"
	"github.com/franckalain/mealscan/internal/logging"
	"github.com/franckalain/mealscan/internal/models"
)

func openTestDB(t *testing.T) (*SQLiteDB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "mealscan.db")
	db, err := NewSQLiteDB(path, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, path
}

func entry(id string, createdAt time.Time) models.FoodEntry {
	return models.FoodEntry{
		ID:         id,
		Name:       "Entry " + id,
		Calories:   320,
		Time:       createdAt.Format(models.TimeLayout),
		Macros:     models.MacroBreakdown{Protein: 45, Carbs: 12, Fats: 8},
		Weight:     250,
		Confidence: 99,
		Image: models.ImageBuffer{
			Data:     []byte{0xff, 0xd8, 0xff},
			MIMEType: "image/jpeg",
			Width:    640,
			Height:   480,
			Origin:   models.OriginCamera,
		},
		CreatedAt: createdAt,
	}
}

func TestNewSQLiteDB(t *testing.T) {
	db, path := openTestDB(t)

	var walMode string
	require.NoError(t, db.SQL().QueryRow("PRAGMA journal_mode").Scan(&walMode))
	assert.Equal(t, "wal", walMode)

	var tables int
	require.NoError(t, db.SQL().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('food_entries', 'recognition_metrics')`,
	).Scan(&tables))
	assert.Equal(t, 2, tables)

	// Reopening an up-to-date database is a no-op.
	again, err := NewSQLiteDB(path, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestFoodEntries(t *testing.T) {
	ctx := context.Background()
	db, _ := openTestDB(t)

	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	breakfast := entry("a", base)
	lunch := entry("b", base.Add(4*time.Hour+500*time.Millisecond))
	dinner := entry("c", base.Add(10*time.Hour))
	for _, e := range []models.FoodEntry{lunch, breakfast, dinner} {
		require.NoError(t, db.SaveFoodEntry(ctx, &e))
	}

	t.Run("ListMostRecentFirst", func(t *testing.T) {
		got, err := db.ListFoodEntries(ctx, time.Time{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].ID, got[1].ID, got[2].ID})

		b := got[1]
		assert.Equal(t, lunch.Name, b.Name)
		assert.Equal(t, 320, b.Calories)
		assert.Equal(t, lunch.Macros, b.Macros)
		assert.Equal(t, lunch.Image, b.Image)
		assert.True(t, lunch.CreatedAt.Equal(b.CreatedAt))
	})

	t.Run("ListSince", func(t *testing.T) {
		got, err := db.ListFoodEntries(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "c", got[0].ID)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		dup := entry("a", base)
		assert.Error(t, db.SaveFoodEntry(ctx, &dup))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, db.DeleteFoodEntry(ctx, "b"))
		got, err := db.ListFoodEntries(ctx, time.Time{})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		err = db.DeleteFoodEntry(ctx, "b")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})
}
