package cmdutil

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name          string
		log           string
		expectedLevel slog.Level
		expectError   bool
	}{
		{
			name:          "lowercase debug level",
			log:           "debug",
			expectedLevel: slog.LevelDebug,
		},
		{
			name:          "mixed case info level",
			log:           "InFo",
			expectedLevel: slog.LevelInfo,
		},
		{
			name:          "capitalized warn level",
			log:           "Warn",
			expectedLevel: slog.LevelWarn,
		},
		{
			name:          "mixed case error level",
			log:           "erROR",
			expectedLevel: slog.LevelError,
		},
		{
			name:        "invalid level",
			log:         "Test",
			expectError: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logLevel, err := ParseLogLevel(tt.log)

			if tt.expectError {
				assert.ErrorContains(t, err, "unable to parse log level")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedLevel, logLevel)
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("visible", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}
