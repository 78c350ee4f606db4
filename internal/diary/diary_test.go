package diary

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/franckalain/mealscan/internal/errors"
	"github.com/franckalain/mealscan/internal/logging"
	"github.com/franckalain/mealscan/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	saved   []models.FoodEntry
	deleted []string
	saveErr error
	delErr  error
}

func (s *fakeStore) SaveFoodEntry(_ context.Context, e *models.FoodEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, *e)
	return nil
}

func (s *fakeStore) DeleteFoodEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func draft(name string, kcal int, p, c, f float64) models.ScanDraft {
	return models.ScanDraft{
		Name:     name,
		Calories: kcal,
		Macros:   models.MacroBreakdown{Protein: p, Carbs: c, Fats: f},
		Time:     "12:30 PM",
		IsFood:   true,
	}
}

func jpeg(b ...byte) models.ImageBuffer {
	return models.ImageBuffer{Data: b, MIMEType: "image/jpeg", Origin: models.OriginCamera}
}

func newTestDiary(opts ...Option) *Diary {
	return New(append([]Option{WithLogger(logging.Discard())}, opts...)...)
}

func TestCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("NewEntryIsFirstWithUniqueID", func(t *testing.T) {
		d := newTestDiary()
		first, err := d.Commit(ctx, draft("Oatmeal", 320, 10, 54, 6), jpeg(1))
		require.NoError(t, err)
		second, err := d.Commit(ctx, draft("Apple", 95, 0.5, 25, 0.3), jpeg(2))
		require.NoError(t, err)

		entries := d.Entries()
		require.Len(t, entries, 2)
		assert.Equal(t, second.ID, entries[0].ID)
		assert.Equal(t, first.ID, entries[1].ID)
		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, "Apple", entries[0].Name)
	})

	t.Run("CopiesImage", func(t *testing.T) {
		d := newTestDiary()
		img := jpeg(1, 2, 3)
		entry, err := d.Commit(ctx, draft("Toast", 120, 4, 20, 2), img)
		require.NoError(t, err)

		img.Data[0] = 9
		assert.Equal(t, byte(1), entry.Image.Data[0])
	})

	t.Run("RetriesCollidingIDs", func(t *testing.T) {
		ids := []string{"a", "a", "", "b"}
		n := 0
		d := newTestDiary(WithIDGenerator(func() string {
			id := ids[n]
			n++
			return id
		}))

		e1, err := d.Commit(ctx, draft("One", 1, 0, 0, 0), jpeg(1))
		require.NoError(t, err)
		e2, err := d.Commit(ctx, draft("Two", 2, 0, 0, 0), jpeg(2))
		require.NoError(t, err)

		assert.Equal(t, "a", e1.ID)
		assert.Equal(t, "b", e2.ID)
	})

	t.Run("GivesUpWhenIDsExhausted", func(t *testing.T) {
		d := newTestDiary(WithIDGenerator(func() string { return "same" }))
		_, err := d.Commit(ctx, draft("One", 1, 0, 0, 0), jpeg(1))
		require.NoError(t, err)

		_, err = d.Commit(ctx, draft("Two", 2, 0, 0, 0), jpeg(2))
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrInternal))
		assert.Equal(t, 1, d.Len())
	})

	t.Run("FillsMissingTime", func(t *testing.T) {
		now := time.Date(2026, 3, 14, 8, 5, 0, 0, time.UTC)
		d := newTestDiary(WithClock(func() time.Time { return now }))
		dr := draft("Eggs", 150, 12, 1, 10)
		dr.Time = ""

		entry, err := d.Commit(ctx, dr, jpeg(1))
		require.NoError(t, err)
		assert.Equal(t, "08:05 AM", entry.Time)
		assert.Equal(t, now, entry.CreatedAt)
	})

	t.Run("RejectsInvalidDraft", func(t *testing.T) {
		d := newTestDiary()
		_, err := d.Commit(ctx, draft("  ", 100, 0, 0, 0), jpeg(1))
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))

		_, err = d.Commit(ctx, draft("Soup", -1, 0, 0, 0), jpeg(1))
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
		assert.Zero(t, d.Len())
	})

	t.Run("WritesThroughStore", func(t *testing.T) {
		store := &fakeStore{}
		d := newTestDiary(WithStore(store))
		entry, err := d.Commit(ctx, draft("Rice", 200, 4, 44, 0.4), jpeg(1))
		require.NoError(t, err)

		require.Len(t, store.saved, 1)
		assert.Equal(t, entry.ID, store.saved[0].ID)
	})

	t.Run("StoreFailureLeavesDiaryUnchanged", func(t *testing.T) {
		store := &fakeStore{saveErr: errors.New("disk full")}
		d := newTestDiary(WithStore(store))

		_, err := d.Commit(ctx, draft("Rice", 200, 4, 44, 0.4), jpeg(1))
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrDatabase))
		assert.Zero(t, d.Len())
	})

	t.Run("ConcurrentCommits", func(t *testing.T) {
		d := newTestDiary()
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := d.Commit(ctx, draft(fmt.Sprintf("Item %d", i), 10, 1, 1, 1), jpeg(byte(i)))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		entries := d.Entries()
		require.Len(t, entries, 50)
		seen := make(map[string]bool)
		for _, e := range entries {
			assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
			seen[e.ID] = true
		}
		assert.Equal(t, 500, d.Totals().Calories)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("RemovesByID", func(t *testing.T) {
		store := &fakeStore{}
		d := newTestDiary(WithStore(store))
		a, _ := d.Commit(ctx, draft("A", 100, 0, 0, 0), jpeg(1))
		b, _ := d.Commit(ctx, draft("B", 200, 0, 0, 0), jpeg(2))

		require.NoError(t, d.Delete(ctx, a.ID))

		_, ok := d.Get(a.ID)
		assert.False(t, ok)
		got, ok := d.Get(b.ID)
		assert.True(t, ok)
		assert.Equal(t, "B", got.Name)
		assert.Equal(t, []string{a.ID}, store.deleted)
		assert.Equal(t, 200, d.Totals().Calories)
	})

	t.Run("UnknownID", func(t *testing.T) {
		d := newTestDiary()
		err := d.Delete(ctx, "missing")
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("StoreFailureKeepsEntry", func(t *testing.T) {
		store := &fakeStore{}
		d := newTestDiary(WithStore(store))
		a, _ := d.Commit(ctx, draft("A", 100, 0, 0, 0), jpeg(1))
		store.delErr = errors.New("locked")

		err := d.Delete(ctx, a.ID)
		assert.True(t, apperrors.Is(err, apperrors.ErrDatabase))
		assert.Equal(t, 1, d.Len())
	})
}

func TestRestore(t *testing.T) {
	t.Run("ReplacesContents", func(t *testing.T) {
		d := newTestDiary()
		require.NoError(t, d.Restore([]models.FoodEntry{
			{ID: "2", Name: "Lunch", Calories: 500},
			{ID: "1", Name: "Breakfast", Calories: 300},
		}))

		entries := d.Entries()
		require.Len(t, entries, 2)
		assert.Equal(t, "2", entries[0].ID)
		assert.Equal(t, 800, d.Totals().Calories)

		// Restored ids stay reserved.
		n := 0
		d.newID = func() string {
			n++
			if n == 1 {
				return "1"
			}
			return "3"
		}
		e, err := d.Commit(context.Background(), draft("Snack", 50, 0, 0, 0), jpeg(1))
		require.NoError(t, err)
		assert.Equal(t, "3", e.ID)
	})

	t.Run("RejectsDuplicates", func(t *testing.T) {
		d := newTestDiary()
		err := d.Restore([]models.FoodEntry{{ID: "1"}, {ID: "1"}})
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
		assert.Zero(t, d.Len())
	})
}
