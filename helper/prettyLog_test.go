package helper

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyHandlerHandle(t *testing.T) {
	ctx := context.Background()

	levels := []struct {
		level slog.Level
		label string
	}{
		{slog.LevelDebug, "DEBUG:"},
		{slog.LevelInfo, "INFO:"},
		{slog.LevelWarn, "WARN:"},
		{slog.LevelError, "ERROR:"},
	}

	for _, l := range levels {
		t.Run("Handle "+l.label+" record", func(t *testing.T) {
			var buf bytes.Buffer
			handler := NewPrettyHandler(&buf, PrettyHandlerOptions{SlogOpts: slog.HandlerOptions{Level: slog.LevelDebug}})

			record := slog.NewRecord(time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC), l.level, "Sync iteration finished", 0)
			record.AddAttrs(slog.String("target", "courses"), slog.Int("embedded", 32))

			err := handler.Handle(ctx, record)
			require.NoError(t, err)

			output := buf.String()
			assert.Contains(t, output, l.label)
			assert.Contains(t, output, "[09:30:15.000]")
			assert.Contains(t, output, "Sync iteration finished")
			assert.Contains(t, output, `"target": "courses"`)
			assert.Contains(t, output, `"embedded": 32`)
		})
	}

	t.Run("Records below the level are disabled", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{SlogOpts: slog.HandlerOptions{Level: slog.LevelWarn}})

		assert.False(t, handler.Enabled(ctx, slog.LevelInfo))
		assert.True(t, handler.Enabled(ctx, slog.LevelError))
	})
}

func TestPrettyHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.With("target", "people").With("run", 3).Info("Starting sync loop", "interval", "6h")

	output := buf.String()
	assert.Contains(t, output, "Starting sync loop")
	assert.Contains(t, output, `"target": "people"`)
	assert.Contains(t, output, `"run": 3`)
	assert.Contains(t, output, `"interval": "6h"`)

	buf.Reset()
	logger.With("target", "people").Debug("hidden")
	assert.Empty(t, buf.String(), "Expected debug output to be filtered at info level")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"ERROR", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLogLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}
}
