package sessionevents_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-biteui-client/sessionevents"
)

func TestLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := sessionevents.NewLoggerAdapter(zerolog.New(&buf).Level(zerolog.InfoLevel))

	logger.With(watermill.LogFields{"topic": "biteui.session"}).
		Error("publish failed", errors.New("connection refused"), watermill.LogFields{"attempt": 2})
	logger.Debug("below level", nil)
	logger.Info("publisher started", watermill.LogFields{"stream": "events"})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2, "debug output is filtered by the zerolog level")

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.Equal(t, "error", first["level"])
	require.Equal(t, "publish failed", first["message"])
	require.Equal(t, "connection refused", first["error"])
	require.Equal(t, "biteui.session", first["topic"])
	require.EqualValues(t, 2, first["attempt"])

	var second map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &second))
	require.Equal(t, "info", second["level"])
	require.Equal(t, "events", second["stream"])
	require.NotContains(t, second, "topic", "With must not leak into the parent logger")
}
