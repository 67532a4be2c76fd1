package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subygan/receiver/internal/config"
	"github.com/subygan/receiver/internal/hammer"
	"github.com/subygan/receiver/internal/payload"
	"github.com/subygan/receiver/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type brokenSink struct{ calls int }

func (s *brokenSink) Append(context.Context, store.Entry) error {
	s.calls++
	return errors.New("read-only file system")
}

func (s *brokenSink) Close() error { return nil }

func testConfig(path string) config.Receiver {
	return config.Receiver{
		Addr:       "127.0.0.1:0",
		MaxConns:   1024,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		Sink:       store.Options{Kind: store.SinkFile, JSONLFile: path},
	}
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.jsonl")
	cfg := testConfig(path)
	app := store.NewAppender(store.NewFileSink(path), cfg.MaxRetries, cfg.RetryDelay, discard)
	return New(cfg, app, discard), path
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func readLines(t *testing.T, path string) []store.Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []store.Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e store.Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	for _, p := range []string{"/health/", "/health"} {
		rec := do(t, s.Handler(), http.MethodGet, p, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	}
}

func TestAppend_Success(t *testing.T) {
	s, path := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost, "/append/", `{"data":{"user":"a","n":1}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp appendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Data appended successfully", resp.Message)
	_, err := store.ParseTimestamp(resp.Timestamp)
	assert.NoError(t, err)

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.JSONEq(t, `{"user":"a","n":1}`, string(lines[0].Data))
}

func TestAppend_KeepsDataVerbatim(t *testing.T) {
	s, path := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost, "/append/", `{"data": {"b": 1, "a": 9007199254740993}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data":{"b":1,"a":9007199254740993}}`+"\n")
}

func TestAppend_ContentType(t *testing.T) {
	s, path := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/append/", strings.NewReader(`{"data":{"a":1}}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, readLines(t, path), 1)

	req = httptest.NewRequest(http.MethodPost, "/append/", strings.NewReader(`{"data":{"a":1}}`))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"detail":"body: expected JSON content"}`, rec.Body.String())
	assert.Len(t, readLines(t, path), 1)
}

func TestAppend_Validation(t *testing.T) {
	s, path := newTestServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing data", `{"other":1}`, http.StatusUnprocessableEntity},
		{"null data", `{"data":null}`, http.StatusUnprocessableEntity},
		{"array data", `{"data":[1,2]}`, http.StatusUnprocessableEntity},
		{"string data", `{"data":"x"}`, http.StatusUnprocessableEntity},
		{"malformed", `{"data":`, http.StatusUnprocessableEntity},
		{"empty body", ``, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/append/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["detail"])
		})
	}

	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist, "rejected bodies must not be written")
}

func TestAppend_WriteFailure(t *testing.T) {
	sink := &brokenSink{}
	cfg := testConfig("")
	s := New(cfg, store.NewAppender(sink, cfg.MaxRetries, cfg.RetryDelay, discard), discard)

	rec := do(t, s.Handler(), http.MethodPost, "/append/", `{"data":{}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 3, sink.calls)
	assert.JSONEq(t,
		`{"detail":"Failed to write to file after 3 attempts: read-only file system"}`,
		rec.Body.String())
}

func TestAppend_UnknownRoute(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "detail")
}

// TestServe_FiveHundredConcurrentPosts drives a live receiver with the load
// helper and checks every request produced exactly one line.
func TestServe_FiveHundredConcurrentPosts(t *testing.T) {
	s, path := newTestServer(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(l) }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, s.Shutdown(ctx))
		require.NoError(t, <-errc)
	}()

	exp, err := hammer.ParseExpectation("$.status=success")
	require.NoError(t, err)

	res, err := hammer.Run(context.Background(), hammer.Options{
		URL:      "http://" + l.Addr().String() + "/append/",
		Requests: hammer.DefaultRequests,
		Timeout:  30 * time.Second,
		Expect:   exp,
	}, payload.Default())
	require.NoError(t, err)
	assert.Equal(t, hammer.DefaultRequests, res.Succeeded, "errors: %v", res.Errors)

	lines := readLines(t, path)
	require.Len(t, lines, hammer.DefaultRequests)
	seen := make(map[int]bool)
	for _, e := range lines {
		var d struct {
			Request int `json:"request"`
		}
		require.NoError(t, json.Unmarshal(e.Data, &d))
		seen[d.Request] = true
	}
	assert.Len(t, seen, hammer.DefaultRequests)
}
