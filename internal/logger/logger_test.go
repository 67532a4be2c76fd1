package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, parseLevel("production"))
	assert.Equal(t, slog.LevelInfo, parseLevel("staging"))
	assert.Equal(t, slog.LevelDebug, parseLevel("development"))
	assert.Equal(t, slog.LevelDebug, parseLevel(""))
}

func TestNewCLI(t *testing.T) {
	var buf bytes.Buffer
	l := NewCLI(&buf, false)
	assert.False(t, l.Enabled(context.Background(), slog.LevelInfo))
	l.Warn("slow", "n", 1)
	assert.Contains(t, buf.String(), "msg=slow")

	assert.True(t, NewCLI(&buf, true).Enabled(context.Background(), slog.LevelDebug))
}
