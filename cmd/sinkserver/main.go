// sinkserver is a throwaway POST target: it accepts anything, counts it and
// answers "ok". GET /count reports how many requests arrived.
package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/subygan/receiver/internal/config"
	"github.com/subygan/receiver/internal/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "err", err)
		os.Exit(1)
	}
	logr := logger.New(os.Getenv("SINK_ENV"))

	addr := ":8001"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	var count atomic.Int64
	hs := &http.Server{
		Addr:         addr,
		Handler:      newRouter(&count, logr),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logr.Info("sinkserver listening", "addr", addr)
	if err := hs.ListenAndServe(); err != nil {
		logr.Error("server error", "err", err)
		os.Exit(1)
	}
}

func newRouter(count *atomic.Int64, logr *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/count", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int64{"count": count.Load()})
	}).Methods(http.MethodGet)
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if _, err := io.Copy(io.Discard, req.Body); err != nil {
			logr.Warn("read body", "err", err)
		}
		n := count.Add(1)
		logr.Debug("hit", "path", req.URL.Path, "count", n)
		_, _ = io.WriteString(w, "ok")
	}).Methods(http.MethodPost)
	return r
}
