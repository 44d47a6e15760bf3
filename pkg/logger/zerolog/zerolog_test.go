package zerolog

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/raykavin/patternrun/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestAdapter_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "debug", JSON: true, Output: buf})
	require.NoError(t, err)

	log.WithField("pattern", "rsi=oversold").
		WithError(errors.New("boom")).
		Warnf("pattern %d skipped", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "pattern 3 skipped", entry["message"])
	require.Equal(t, "rsi=oversold", entry["pattern"])
	require.Equal(t, "boom", entry["error"])
}

func TestAdapter_Levels(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "info", JSON: true, Output: buf})
	require.NoError(t, err)
	require.Equal(t, logger.InfoLevel, log.GetLevel())

	log.Debug("hidden")
	require.Zero(t, buf.Len())

	log.SetLevel(logger.DebugLevel)
	require.Equal(t, logger.DebugLevel, log.GetLevel())
	log.Debug("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	require.Error(t, err)
}

func TestFormatters(t *testing.T) {
	require.Contains(t, formatLevel("info"), "INF")
	require.Contains(t, formatCaller("/tmp/some/engine.go:42"), "engine.go")
	require.Equal(t, ">", formatMessage(""))
}
