package metrics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franckalain/mealscan/internal/database"
	"github.com/franckalain/mealscan/internal/logging"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.db")
	db, err := database.NewSQLiteDB(path, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db.SQL()), path
}

func TestStore(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.Record(ExecutionMetric{Backend: "gemini", Model: "gemini-2.5-flash", PromptTokens: 258, CompletionTokens: 40, LatencyMS: 900, Outcome: OutcomeOK, Timestamp: now}))
	require.NoError(t, store.Record(ExecutionMetric{Backend: "gemini", Model: "gemini-2.5-flash", PromptTokens: 260, CompletionTokens: 10, LatencyMS: 1100, Outcome: OutcomeParseError, Timestamp: now}))
	require.NoError(t, store.Record(ExecutionMetric{Backend: "gemini", Outcome: OutcomeUnavailable, Timestamp: now.AddDate(0, 0, -2)}))
	require.NoError(t, store.Record(ExecutionMetric{Backend: "gemini", Outcome: OutcomeOK, Timestamp: now.AddDate(0, 0, -40)}))

	t.Run("DailyUsage", func(t *testing.T) {
		usage, err := store.GetDailyUsage(7)
		require.NoError(t, err)
		require.Len(t, usage, 2)

		today := usage[0]
		assert.Equal(t, now.Format("2006-01-02"), today.Date)
		assert.Equal(t, 518, today.TotalPrompt)
		assert.Equal(t, 50, today.TotalCompletion)
		assert.Equal(t, 2, today.TotalExecution)
		assert.Equal(t, 1, today.Failures)
		assert.Equal(t, int64(1000), today.AvgLatencyMS)

		assert.Equal(t, 1, usage[1].Failures)
	})

	t.Run("Cleanup", func(t *testing.T) {
		n, err := store.Cleanup(30)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		usage, err := store.GetDailyUsage(365)
		require.NoError(t, err)
		assert.Len(t, usage, 2)
	})
}

func TestGetSysHealth(t *testing.T) {
	_, path := newTestStore(t)
	h := GetSysHealth(path)
	assert.Positive(t, h.Goroutines)
	assert.NotEmpty(t, h.DBSize)
	assert.NotEqual(t, "0 B", h.DBSize)

	assert.Equal(t, "0 B", GetSysHealth(filepath.Join(t.TempDir(), "missing.db")).DBSize)
}
