package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceLens/internal/chart/forecast"
	"PriceLens/internal/chart/regime"
	"PriceLens/internal/chart/series"
	"PriceLens/internal/chart/transform"
	domrepo "PriceLens/internal/domain/repository"
	"PriceLens/internal/service/cache"
	"PriceLens/internal/service/ratelimit"
	"PriceLens/internal/services/analytics"
	"PriceLens/internal/usecase"
	pkgcache "PriceLens/pkg/cache"
	xhttp "PriceLens/pkg/http"
)

type mapStore map[string][]series.PricePoint

func (m mapStore) GetSeries(_ context.Context, symbol string, _, _ time.Time, _ time.Duration) ([]series.PricePoint, error) {
	pts, ok := m[symbol]
	if !ok {
		return nil, domrepo.ErrNoSeries
	}
	return pts, nil
}

var t0 = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func points(n int) []series.PricePoint {
	pts := make([]series.PricePoint, n)
	for i := range pts {
		pts[i] = series.PricePoint{Time: t0.Add(time.Duration(i) * time.Hour), Price: 100 + float64(i%7) - float64(i%3)}
	}
	return pts
}

func newServer(t *testing.T, mw ...echo.MiddlewareFunc) *xhttp.Server {
	t.Helper()
	engine := analytics.NewEngine(
		analytics.NewRegimeDetector(regime.DefaultParams()),
		analytics.NewBandForecaster(forecast.DefaultParams()),
	)
	t.Cleanup(func() { _ = engine.Close() })
	resp := pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0))
	t.Cleanup(func() { _ = resp.Close() })

	uc := usecase.NewChartUseCase(engine, analytics.NewProjector(transform.DefaultDensity()),
		mapStore{"AAPL": points(40), "SPY": points(40)},
		cache.NewServiceCache(resp, "chart"),
		usecase.ChartOptions{Benchmark: "SPY", HitRadius: 24, ResponseTTL: time.Minute},
		nil,
	)
	return xhttp.NewServer([]xhttp.Handler{NewChartHandler(nil, uc, mw...)}, xhttp.WithMetricsPath(""))
}

func call(t *testing.T, s *xhttp.Server, method, target string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var r *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	} else {
		r = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestAnalyzeEndpoint(t *testing.T) {
	s := newServer(t)
	rec, env := call(t, s, http.MethodPost, "/api/chart/analyze", map[string]interface{}{"points": points(30)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := env["data"].(map[string]interface{})
	assert.NotEmpty(t, data["key"])
	assert.NotNil(t, data["regimes"])

	rec, _ = call(t, s, http.MethodPost, "/api/chart/analyze", map[string]interface{}{"points": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGeometryEndpoint(t *testing.T) {
	s := newServer(t)
	rec, env := call(t, s, http.MethodPost, "/api/chart/geometry", map[string]interface{}{
		"points":   points(30),
		"layout":   map[string]float64{"width": 300, "height": 200, "margin": 10},
		"viewport": map[string]float64{"scale": 2, "translateX": -40},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := env["data"].(map[string]interface{})
	geo := data["geometry"].(map[string]interface{})
	assert.Len(t, geo["price"], 30)
	assert.EqualValues(t, 2, geo["frame"].(map[string]interface{})["scale"])

	rec, _ = call(t, s, http.MethodPost, "/api/chart/geometry", map[string]interface{}{
		"points":  points(30),
		"layout":  map[string]float64{"width": 300, "height": 200},
		"drivers": []map[string]interface{}{{"time": t0, "driver": "astrology"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSymbolEndpoint(t *testing.T) {
	s := newServer(t)
	rec, env := call(t, s, http.MethodGet, "/api/chart/AAPL?range=1W&width=320&height=200", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	data := env["data"].(map[string]interface{})
	assert.Equal(t, "AAPL", data["symbol"])
	assert.Equal(t, "1W", data["range"])
	assert.Equal(t, "SPY", data["benchmark"])
	assert.NotNil(t, data["geometry"])

	rec, _ = call(t, s, http.MethodGet, "/api/chart/AAPL?range=1W&width=320&height=200", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	rec, env = call(t, s, http.MethodGet, "/api/chart/ZZZZ", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.EqualValues(t, http.StatusNotFound, env["status"])

	rec, _ = call(t, s, http.MethodGet, "/api/chart/AAPL?range=5Y", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViewportAndHitEndpoints(t *testing.T) {
	s := newServer(t)
	rec, env := call(t, s, http.MethodPost, "/api/chart/viewport", map[string]interface{}{
		"events": []map[string]interface{}{
			{"type": "pinch_begin"},
			{"type": "pinch_update", "factor": 10},
			{"type": "pinch_end"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 3, env["data"].(map[string]interface{})["targetScale"])

	rec, _ = call(t, s, http.MethodPost, "/api/chart/viewport", map[string]interface{}{
		"events": []map[string]interface{}{{"type": "wiggle"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = call(t, s, http.MethodPost, "/api/chart/viewport", map[string]interface{}{
		"events": []map[string]interface{}{{"type": "tick", "dt": 5}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = call(t, s, http.MethodPost, "/api/chart/hit", map[string]interface{}{
		"markers": []map[string]interface{}{{"index": 2, "x": 50, "y": 50}},
		"x":       55,
		"y":       52,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	hit := env["data"].(map[string]interface{})
	assert.Equal(t, true, hit["hit"])
	assert.EqualValues(t, 2, hit["match"].(map[string]interface{})["index"])
}

func TestRateLimitedRoutes(t *testing.T) {
	lim := ratelimit.New(1, 2, time.Minute)
	s := newServer(t, lim.Middleware())
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec, _ := call(t, s, http.MethodPost, "/api/chart/hit", map[string]interface{}{"x": i})
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes, fmt.Sprint(codes))
}
