package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franckalain/mealscan/internal/config"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("JSONFormat", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(config.LogConfig{Level: "debug", Format: "json"}, &buf)

		logger.WithField("session_id", "abc").Debug("session opened")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "session opened", entry["msg"])
		assert.Equal(t, "debug", entry["level"])
		assert.Equal(t, "abc", entry["session_id"])
	})

	t.Run("TextFormatRespectsLevel", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(config.LogConfig{Level: "warn", Format: "text"}, &buf)

		logger.Info("hidden")
		logger.Warn("shown")

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "shown")
	})

	t.Run("UnknownLevel", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewWithWriter(config.LogConfig{Level: "chatty"}, &buf)

		assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
		assert.True(t, strings.Contains(buf.String(), "unknown log level"))
	})
}
