package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"OmniSpectrum/internal/domain/models"
	"OmniSpectrum/internal/service/ratelimit"
	xhttp "OmniSpectrum/pkg/http"
	xlogger "OmniSpectrum/pkg/logger"
)

// SnapshotRefresher runs a refresh on demand.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) (*models.RefreshResult, error)
}

// SnapshotSource reads the current snapshot without generating one.
type SnapshotSource interface {
	Get(ctx context.Context) (*models.Document, error)
	HasData(ctx context.Context) (bool, error)
}

type refreshResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type healthResponse struct {
	Status  string `json:"status"`
	HasData bool   `json:"hasData"`
	Message string `json:"message,omitempty"`
}

// SnapshotEchoHandler serves the snapshot read, refresh and health endpoints.
type SnapshotEchoHandler struct {
	logger      *xlogger.Logger
	source      SnapshotSource
	refresher   SnapshotRefresher
	limiter     *ratelimit.Limiter
	cacheMaxAge time.Duration
}

func NewSnapshotEchoHandler(
	logger *xlogger.Logger,
	source SnapshotSource,
	refresher SnapshotRefresher,
	limiter *ratelimit.Limiter,
	cacheMaxAge time.Duration,
) *SnapshotEchoHandler {
	return &SnapshotEchoHandler{
		logger:      logger,
		source:      source,
		refresher:   refresher,
		limiter:     limiter,
		cacheMaxAge: cacheMaxAge,
	}
}

func (h *SnapshotEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/snapshot", h.Snapshot)
	e.POST("/snapshot/refresh", h.Refresh)
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/omnispectrum", h.Snapshot)
	g.POST("/omnispectrum/refresh", h.Refresh)
	g.GET("/health", h.Health)
}

// Snapshot returns the stored snapshot bytes unchanged.
func (h *SnapshotEchoHandler) Snapshot(c echo.Context) error {
	doc, err := h.source.Get(c.Request().Context())
	if err != nil {
		if errors.Is(err, models.ErrSnapshotNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.InternalError("No data available", "No snapshot has been generated yet").WithError(err))
		}
		h.logger.Error("read snapshot", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("Failed to load market data", err.Error()).WithError(err))
	}
	if h.cacheMaxAge > 0 {
		c.Response().Header().Set(echo.HeaderCacheControl, fmt.Sprintf("public, max-age=%d", int(h.cacheMaxAge.Seconds())))
	}
	return xhttp.RawJSONResponse(c, http.StatusOK, doc.Bytes())
}

// Refresh runs inference and reports whether fresh data was produced.
func (h *SnapshotEchoHandler) Refresh(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP()) {
		h.logger.Warn("refresh rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("Refresh requested too often, try again later"))
	}

	res, err := h.refresher.Refresh(c.Request().Context())
	switch {
	case errors.Is(err, models.ErrRefreshBusy):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("Refresh busy", "A refresh is already running"))
	case errors.Is(err, models.ErrNoDataAvailable):
		h.logger.Error("refresh produced no data", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("No data available", "Backend inference failed and no cached data found").WithError(err))
	case err != nil:
		h.logger.Error("refresh failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("Refresh failed", err.Error()).WithError(err))
	}

	if res.Degraded {
		h.logger.Warn("refresh degraded", xlogger.String("refresh_id", res.ID), xlogger.Error(res.Cause))
		return xhttp.JSONResponse(c, http.StatusOK, refreshResponse{
			Success: false,
			Message: "Inference failed, returning cached data",
			Data:    res.Document.Bytes(),
		})
	}
	return xhttp.JSONResponse(c, http.StatusOK, refreshResponse{
		Success: true,
		Message: "Inference completed",
		Data:    res.Document.Bytes(),
	})
}

func (h *SnapshotEchoHandler) Health(c echo.Context) error {
	ok, err := h.source.HasData(c.Request().Context())
	if err != nil {
		h.logger.Error("health check", xlogger.Error(err))
		return xhttp.JSONResponse(c, http.StatusInternalServerError, healthResponse{Status: "error", Message: err.Error()})
	}
	return xhttp.JSONResponse(c, http.StatusOK, healthResponse{Status: "ok", HasData: ok})
}
