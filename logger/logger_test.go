package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var rec map[string]any

		require.NoError(t, json.Unmarshal([]byte(line), &rec))

		out = append(out, rec)
	}

	return out
}

func TestLogger(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem: "test",
		JSON:      true,
		Output:    &buf,
	})

	Get().Info("default subsystem")

	ctx := WithSubsystem(t.Context(), "overridden")
	Get(ctx).Info("overridden subsystem")

	ctx = With(ctx, "saga", "checkout")
	ctx = With(ctx, "step", "reserve")
	Get(ctx).Info("with values")

	Get(WithMuted(ctx, true)).Error("never printed")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 3)

	assert.Equal(t, "test", recs[0]["subsystem"])
	assert.Equal(t, "overridden", recs[1]["subsystem"])
	assert.Equal(t, "checkout", recs[2]["saga"])
	assert.Equal(t, "reserve", recs[2]["step"])
}

func TestAnnotateError(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem: "test",
		JSON:      true,
		Output:    &buf,
	})

	base := errors.New("boom") //nolint:err113 // Test error
	err := AnnotateError(base, "step", "refund")

	require.ErrorIs(t, err, base)
	assert.NoError(t, AnnotateError(nil, "k", "v"))

	Get().Error("compensation failed", "error", err, "attempt", 2)

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "boom", recs[0]["error"])
	assert.Equal(t, "refund", recs[0]["step"])
	assert.InDelta(t, 2, recs[0]["attempt"], 0)
}

func TestLegacy(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem:   "test",
		JSON:        true,
		MinLevel:    slog.LevelDebug,
		LegacyLevel: slog.LevelInfo,
		Output:      &buf,
	})

	log.Println("legacy line")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "legacy line", recs[0]["msg"])
}

func TestConfigureLoggingFromEnv(t *testing.T) {
	t.Setenv("LOG_JSON", "true")
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer

	ConfigureLogging(t.Context(), "resilience", WithOutput(&buf))

	Get().Info("filtered")
	Get().Warn("kept")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "kept", recs[0]["msg"])
	assert.Equal(t, "resilience", GetSubsystem(t.Context()))
}

func TestWithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	custom := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithSubsystem(WithLogger(t.Context(), custom), "breaker")
	ctx = With(ctx, "breaker", "payments")
	Get(ctx).Info("routed")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "routed", recs[0]["msg"])
	assert.Equal(t, "breaker", recs[0]["subsystem"])
	assert.Equal(t, "payments", recs[0]["breaker"])
}
