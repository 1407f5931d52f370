// Package api exposes the sentinel's HTTP surface: persisted records,
// the tracker scorecard, health, and a manual cycle trigger.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"StockSentinel/internal/domain/models"
	domrepo "StockSentinel/internal/domain/repository"
	"StockSentinel/internal/service/ratelimit"
	"StockSentinel/internal/tracker"
	"StockSentinel/internal/usecase"
	xhttp "StockSentinel/pkg/http"
	xlogger "StockSentinel/pkg/logger"
)

// Service is the analyzer surface the handlers need.
type Service interface {
	RunCycle(ctx context.Context, mode string) (*models.DailyRecord, error)
	Latest(ctx context.Context, mode string) (*models.DailyRecord, error)
	Range(ctx context.Context, mode string, days int) ([]*models.DailyRecord, error)
	Scorecard(ctx context.Context, mode string) (*tracker.Scorecard, error)
	BreakerStates() map[string]string
	StoreHealth(ctx context.Context) error
}

// SentinelHandler implements Echo-based HTTP handlers over the analyzer.
type SentinelHandler struct {
	logger  *xlogger.Logger
	service Service
	hub     *Hub
	rl      *ratelimit.Limiter
}

func NewSentinelHandler(logger *xlogger.Logger, service Service, hub *Hub) *SentinelHandler {
	return &SentinelHandler{logger: logger, service: service, hub: hub, rl: ratelimit.New()}
}

func (h *SentinelHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/records/latest", h.LatestRecord)
	g.GET("/records", h.RecordRange)
	g.GET("/scorecard", h.Scorecard)
	g.GET("/health", h.Health)
	g.POST("/cycle", h.TriggerCycle)
	if h.hub != nil {
		e.GET("/ws", h.hub.Serve)
	}
}

// modeQuery selects the cycle to read. The close cycle is the default
// because it is the one the tracker grades.
type modeQuery struct {
	Mode string `query:"mode" default:"close" validate:"oneof=midday close"`
}

// mode reads and validates the ?mode= query parameter for endpoints
// that bind the body instead of the query.
func mode(c echo.Context) (string, error) {
	m := c.QueryParam("mode")
	switch m {
	case "":
		return usecase.ModeClose, nil
	case usecase.ModeMidday, usecase.ModeClose:
		return m, nil
	default:
		return "", xhttp.BadRequestErrorf("unknown mode %q", m)
	}
}

func (h *SentinelHandler) LatestRecord(c echo.Context) error {
	req := &modeQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	m := req.Mode

	rec, err := h.service.Latest(c.Request().Context(), m)
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no %s record yet", m))
		}
		h.logger.Error("latest record lookup failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *SentinelHandler) RecordRange(c echo.Context) error {
	m, err := mode(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	days := xhttp.ParseIntDefault(c.QueryParam("days"), 7)
	if days < 1 || days > 90 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("days must be within 1..90, got %d", days))
	}

	records, err := h.service.Range(c.Request().Context(), m, days)
	if err != nil && !errors.Is(err, domrepo.ErrNotFound) {
		h.logger.Error("record range lookup failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, records, int64(len(records)))
}

func (h *SentinelHandler) Scorecard(c echo.Context) error {
	req := &modeQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	card, err := h.service.Scorecard(c.Request().Context(), req.Mode)
	if err != nil {
		h.logger.Error("scorecard build failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, card)
}

// HealthStatus reports store availability and per-source breaker states.
type HealthStatus struct {
	Status   string            `json:"status"`
	Store    string            `json:"store"`
	Breakers map[string]string `json:"breakers"`
}

func (h *SentinelHandler) Health(c echo.Context) error {
	status := &HealthStatus{
		Status:   "ok",
		Store:    "ok",
		Breakers: h.service.BreakerStates(),
	}
	if err := h.service.StoreHealth(c.Request().Context()); err != nil {
		status.Status = "degraded"
		status.Store = err.Error()
	}
	return xhttp.SuccessResponse(c, status)
}

// TriggerCycle runs a cycle on demand. Concurrent triggers for the same
// mode share one execution, so hammering the endpoint is harmless.
func (h *SentinelHandler) TriggerCycle(c echo.Context) error {
	m, err := mode(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if !h.rl.Allow(c.RealIP()+":cycle", 3, 0.2) {
		h.logger.Warn("cycle trigger rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	rec, err := h.service.RunCycle(c.Request().Context(), m)
	if err != nil {
		h.logger.Error("manual cycle failed", xlogger.String("mode", m), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("cycle failed: %v", err))
	}
	return xhttp.SuccessResponse(c, rec)
}
