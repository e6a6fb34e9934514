package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseLevel(input), input)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	var jsonBuf bytes.Buffer
	New("json", "warn", &jsonBuf).Info("hidden")
	New("json", "warn", &jsonBuf).Warn("shown", "room_id", "r1")
	assert.NotContains(t, jsonBuf.String(), "hidden")
	assert.Contains(t, jsonBuf.String(), `"room_id":"r1"`)

	var textBuf bytes.Buffer
	New("text", "debug", &textBuf).Debug("hello")
	assert.Contains(t, textBuf.String(), "msg=hello")
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FromContext(context.Background()))

	logger := Discard()
	ctx := ContextWithLogger(context.Background(), logger)
	require.NotNil(t, FromContext(ctx))
	assert.Same(t, logger, FromContext(ctx))

	assert.Equal(t, context.Background(), ContextWithLogger(context.Background(), nil))
}
