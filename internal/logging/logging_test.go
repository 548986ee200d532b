package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New("warn", "json", &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec), "expected a single JSON record, got %q", buf.String())
	require.Equal(t, "shown", rec["msg"])
	require.Equal(t, "WARN", rec["level"])

	buf.Reset()
	logger, err = New("DEBUG", "text", &buf)
	require.NoError(t, err)
	logger.Debug("dbg")
	require.Contains(t, buf.String(), "msg=dbg")
}

func TestNewInvalid(t *testing.T) {
	t.Parallel()
	_, err := New("verbose", "text", &bytes.Buffer{})
	require.ErrorContains(t, err, "invalid log level")
	_, err = New("info", "yaml", &bytes.Buffer{})
	require.ErrorContains(t, err, "invalid log format")
}

func TestContextLogger(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), logger)
	require.Same(t, logger, FromContext(ctx))
	require.NotNil(t, FromContext(context.Background()))
}
