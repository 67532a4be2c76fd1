// Package server exposes the JSONL receiver over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"golang.org/x/net/netutil"

	"github.com/subygan/receiver/internal/config"
	"github.com/subygan/receiver/internal/store"
)

// Server wraps the echo router and the underlying http.Server.
type Server struct {
	cfg    config.Receiver
	logger *slog.Logger
	echo   *echo.Echo
	server *http.Server
}

// New builds the receiver routes on top of appender.
func New(cfg config.Receiver, appender *store.Appender, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(requestLogger(logger))

	h := &handler{appender: appender, logger: logger, now: time.Now}
	e.POST("/append/", h.append)
	e.POST("/append", h.append)
	e.GET("/health/", h.health)
	e.GET("/health", h.health)

	return &Server{
		cfg:    cfg,
		logger: logger,
		echo:   e,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      e,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Handler returns the HTTP handler serving the receiver routes.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ListenAndServe listens on the configured address and serves until
// Shutdown is called.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(l)
}

// Serve accepts connections on l, at most cfg.MaxConns at a time.
func (s *Server) Serve(l net.Listener) error {
	if s.cfg.MaxConns > 0 {
		l = netutil.LimitListener(l, s.cfg.MaxConns)
	}
	s.logger.Info("receiver listening", "addr", l.Addr().String(), "sink", s.cfg.Sink.Kind, "max_conns", s.cfg.MaxConns)
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down receiver")
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("receiver stopped")
	return nil
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			logger.Debug("request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"duration", time.Since(start),
			)
			return nil
		}
	}
}

// errorHandler renders errors as {"detail": "..."}.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		detail := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			detail = fmt.Sprint(he.Message)
		}
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", "path", c.Request().URL.Path, "err", err)
		}
		if c.Response().Committed {
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]string{"detail": detail})
		}
		if err != nil {
			logger.Error("write error response", "err", err)
		}
	}
}
