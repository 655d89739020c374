package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"PriceLens/internal/domain/models"
	domrepo "PriceLens/internal/domain/repository"
	"PriceLens/internal/service/metrics"
	"PriceLens/internal/usecase"
	xhttp "PriceLens/pkg/http"
	xlogger "PriceLens/pkg/logger"
)

// ChartHandler exposes the chart use case over Echo.
type ChartHandler struct {
	logger *xlogger.Logger
	uc     *usecase.ChartUseCase
	mw     []echo.MiddlewareFunc
}

func NewChartHandler(logger *xlogger.Logger, uc *usecase.ChartUseCase, mw ...echo.MiddlewareFunc) *ChartHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ChartHandler{logger: logger, uc: uc, mw: mw}
}

func (h *ChartHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/chart", h.mw...)
	g.POST("/analyze", h.Analyze)
	g.POST("/geometry", h.Geometry)
	g.POST("/viewport", h.Viewport)
	g.POST("/hit", h.Hit)
	g.GET("/:symbol", h.Symbol)
}

func (h *ChartHandler) Analyze(c echo.Context) error {
	defer observe("analyze", time.Now())
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.Analyze(c.Request().Context(), req.SeriesInput)
	if err != nil {
		return h.fail(c, "analyze", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ChartHandler) Geometry(c echo.Context) error {
	defer observe("geometry", time.Now())
	req := &models.GeometryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.uc.Geometry(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "geometry", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ChartHandler) Viewport(c echo.Context) error {
	defer observe("viewport", time.Now())
	req := &models.ViewportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	state, err := h.uc.Viewport(*req)
	if err != nil {
		return h.fail(c, "viewport", err)
	}
	return xhttp.SuccessResponse(c, state)
}

func (h *ChartHandler) Hit(c echo.Context) error {
	defer observe("hit", time.Now())
	req := &models.HitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.uc.Hit(*req))
}

// Symbol serves a stored series. The body is cached briefly so chart
// reloads do not hit storage.
func (h *ChartHandler) Symbol(c echo.Context) error {
	defer observe("symbol", time.Now())
	req := &models.SymbolChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	body, cached, err := h.uc.SymbolChart(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "symbol", err)
	}
	if cached {
		c.Response().Header().Set("X-Cache", "HIT")
	} else {
		c.Response().Header().Set("X-Cache", "MISS")
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, json.RawMessage(body))
}

func (h *ChartHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.ChartErrors.WithLabelValues(endpoint).Inc()
	switch {
	case errors.Is(err, usecase.ErrInvalidRequest):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err).WithError(err))
	case errors.Is(err, domrepo.ErrNoSeries):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no data for %s", c.Param("symbol")).WithError(err))
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("series store timed out").WithError(err))
	}
	h.logger.Error("chart usecase error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}

func observe(endpoint string, start time.Time) {
	metrics.ChartLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
