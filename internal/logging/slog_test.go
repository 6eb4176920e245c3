package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_WritesLevelsAndArgs(t *testing.T) {
	log, buf := newBufLogger(t)
	ctx := context.Background()

	log.Info(ctx, "pushing", "count", 3)
	log.Warn(ctx, "slow page")
	log.Error(ctx, "push failed", "status", 500)
	log.Debug(ctx, "detail")

	out := buf.String()
	assert.Contains(t, out, "pushing")
	assert.Contains(t, out, "count=3")
	assert.Contains(t, out, "slow page")
	assert.Contains(t, out, "status=500")
	assert.Contains(t, out, "detail")
}

func TestSlogLogger_WithAddsPermanentFields(t *testing.T) {
	log, buf := newBufLogger(t)

	child := log.With("table", "tasks")
	child.Info(context.Background(), "pulled page")

	require.Contains(t, buf.String(), "table=tasks")
}

func TestNopLogger_DoesNothing(t *testing.T) {
	var log Logger = NewNopLogger()
	log.Info(context.Background(), "ignored")
	assert.Equal(t, log, log.With("k", "v"))
}
