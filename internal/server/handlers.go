package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo"

	"github.com/subygan/receiver/internal/store"
)

type handler struct {
	appender *store.Appender
	logger   *slog.Logger
	now      func() time.Time
}

type appendRequest struct {
	Data json.RawMessage `json:"data"`
}

type appendResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// append accepts {"data": {...}} and stores it as one entry.
func (h *handler) append(c echo.Context) error {
	r := c.Request()
	if r.Header.Get(echo.HeaderContentType) == "" {
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	var req appendRequest
	if err := c.Bind(&req); err != nil {
		if he, ok := err.(*echo.HTTPError); ok && he.Code == http.StatusUnsupportedMediaType {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "body: expected JSON content")
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid JSON body")
	}

	raw := bytes.TrimSpace(req.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "data: field required")
	}
	data, err := store.CompactObject(raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "data: value is not a valid object")
	}

	if _, err := h.appender.Append(r.Context(), data); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, appendResponse{
		Status:    "success",
		Message:   "Data appended successfully",
		Timestamp: store.FormatTimestamp(h.now()),
	})
}

func (h *handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
