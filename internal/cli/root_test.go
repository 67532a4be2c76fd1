package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subygan/receiver/internal/hammer"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(strings.NewReader(""), &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func countingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var n atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	t.Cleanup(s.Close)
	return s, &n
}

func TestRoot_DefaultRun(t *testing.T) {
	s, n := countingServer(t, http.StatusOK)

	out, _, err := execute(t, "--url", s.URL+"/append/", "--no-color")
	require.NoError(t, err)
	assert.Equal(t, int32(hammer.DefaultRequests), n.Load())
	assert.Contains(t, out, "Sending 500 requests to "+s.URL+"/append/")
	assert.Contains(t, out, "succeeded: 500")
}

func TestRoot_FailuresExitZeroUnlessStrict(t *testing.T) {
	s, _ := countingServer(t, http.StatusInternalServerError)

	out, _, err := execute(t, "--url", s.URL, "-n", "5", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "failed:    5")

	_, _, err = execute(t, "--url", s.URL, "-n", "5", "--no-color", "--strict")
	assert.ErrorIs(t, err, ErrRequestsFailed)
}

func TestRoot_ExpectAndPayload(t *testing.T) {
	s, n := countingServer(t, http.StatusOK)
	tmpl := filepath.Join(t.TempDir(), "body.yaml")
	require.NoError(t, os.WriteFile(tmpl, []byte("data:\n  seq: \"{{index}}\"\n"), 0o644))

	out, _, err := execute(t, "--url", s.URL, "-n", "10", "-c", "2",
		"--payload", tmpl, "--expect", "$.status=success", "--no-color", "--strict")
	require.NoError(t, err)
	assert.Equal(t, int32(10), n.Load())
	assert.Contains(t, out, "succeeded: 10")
}

func TestRoot_TUI(t *testing.T) {
	s, n := countingServer(t, http.StatusOK)

	out, stderr, err := execute(t, "--url", s.URL, "-n", "8", "--tui", "--no-color")
	require.NoError(t, err)
	assert.Equal(t, int32(8), n.Load())
	assert.NotContains(t, out, "Sending")
	assert.Contains(t, stderr, "8/8")
}

func TestRoot_InvalidInput(t *testing.T) {
	_, _, err := execute(t, "-n", "0")
	assert.ErrorIs(t, err, hammer.ErrInvalidOptions)

	_, _, err = execute(t, "--expect", "status")
	assert.ErrorIs(t, err, hammer.ErrInvalidOptions)

	_, _, err = execute(t, "--payload", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = execute(t, "extra-arg")
	assert.Error(t, err)
}

func TestExecuteExitCode(t *testing.T) {
	ok, _ := countingServer(t, http.StatusOK)
	bad, _ := countingServer(t, http.StatusInternalServerError)
	ctx := context.Background()

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"success", []string{"--url", ok.URL, "-n", "3", "--no-color"}, 0},
		{"failures without strict", []string{"--url", bad.URL, "-n", "3", "--no-color"}, 0},
		{"failures with strict", []string{"--url", bad.URL, "-n", "3", "--no-color", "--strict"}, 1},
		{"invalid flag value", []string{"-n", "0"}, 1},
		{"unknown flag", []string{"--nope"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := Main(ctx, tt.args, strings.NewReader(""), &stdout, &stderr)
			assert.Equal(t, tt.code, code, stderr.String())
		})
	}
}
