package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/shellcache/internal/adapters/logger"
	"go.trai.ch/zerr"
)

// newTestLogger creates a logger with an injected buffer. NO_COLOR keeps the
// output free of ANSI escape codes.
func newTestLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	lg := logger.New()
	lg.SetOutput(buf)
	return lg, buf
}

func TestLogger_Levels(t *testing.T) {
	lg, buf := newTestLogger(t)

	lg.Debug("hidden")
	lg.Info("precached 10 assets into photobackup-cache-v1")
	lg.Warn("navigation offline")

	assert.Equal(t, "precached 10 assets into photobackup-cache-v1\n! navigation offline\n", buf.String())
}

func TestLogger_Verbose(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.SetVerbose(true)

	lg.Debug("GET /index.html 200")
	assert.Equal(t, "● GET /index.html 200\n", buf.String())
}

func TestLogger_ErrorChain(t *testing.T) {
	lg, buf := newTestLogger(t)

	err := zerr.Wrap(errors.New("connection refused"), "install failed")
	lg.Error(err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "✗ Error: install failed"), out)
	assert.Contains(t, out, "Caused by:")
	assert.Contains(t, out, "→ connection refused")
}

func TestLogger_ErrorNil(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Error(nil)
	assert.Empty(t, buf.String())
}

func TestLogger_JSON(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.SetJSON(true)

	lg.Info("serving")
	lg.Error(errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "serving", rec["msg"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "boom", rec["error"])
}

func TestLogger_SetOutputKeepsMode(t *testing.T) {
	lg, _ := newTestLogger(t)
	lg.SetJSON(true)

	buf := &bytes.Buffer{}
	lg.SetOutput(buf)
	lg.Warn("w")

	assert.True(t, strings.HasPrefix(buf.String(), "{"), buf.String())
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "plain error",
			err:  errors.New("simple"),
			want: "Error: simple",
		},
		{
			name: "zerr chain",
			err:  zerr.Wrap(zerr.Wrap(errors.New("root"), "middle"), "outer"),
			want: "Error: outer\n\n  Caused by:\n    → middle\n    → root",
		},
		{
			name: "multiline",
			err:  errors.New("first\nsecond"),
			want: "Error: first\n       second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.FormatError(tt.err))
		})
	}
}
