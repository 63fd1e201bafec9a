package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrs_IncludesCategoryAndDataPairs(t *testing.T) {
	got := attrs("router", map[string]any{"broker_id": "saxoeu"})

	assert.Contains(t, got, "category")
	assert.Contains(t, got, "router")
	assert.Contains(t, got, "broker_id")
	assert.Contains(t, got, "saxoeu")
}

func TestAttrs_EmptyDataStillIncludesCategory(t *testing.T) {
	got := attrs("auth", nil)
	assert.Equal(t, []any{"category", "auth"}, got)
}

func TestSlogLogger_Info_WritesStructuredJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := &SlogLogger{base: slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	l.Info("router", "order submitted", map[string]any{"broker_id": "saxoeu"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "order submitted", line["msg"])
	assert.Equal(t, "router", line["category"])
	assert.Equal(t, "saxoeu", line["broker_id"])
}

func TestSlogLogger_Error_LevelIsError(t *testing.T) {
	var buf bytes.Buffer
	l := &SlogLogger{base: slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	l.Error("auth", "refresh failed", nil)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
}

func TestNew_DefaultsToStdoutTextHandler(t *testing.T) {
	l := New()
	assert.NotNil(t, l.base)
}

func TestNewJSON_DefaultsToStdoutJSONHandler(t *testing.T) {
	l := NewJSON()
	assert.NotNil(t, l.base)
}
