package analytics

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceLens/internal/chart/annotation"
	"PriceLens/internal/chart/forecast"
	"PriceLens/internal/chart/regime"
	"PriceLens/internal/chart/series"
	"PriceLens/internal/chart/transform"
	"PriceLens/internal/service/metrics"
	"PriceLens/pkg/cache"
)

var t0 = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

type countingDetector struct {
	calls atomic.Int32
	inner *RegimeDetector
}

func (c *countingDetector) Detect(ctx context.Context, p series.Prepared) ([]regime.Segment, error) {
	c.calls.Add(1)
	return c.inner.Detect(ctx, p)
}

type failingForecaster struct{}

func (failingForecaster) Forecast(context.Context, series.Prepared) (forecast.Bands, error) {
	return forecast.Bands{}, errors.New("boom")
}

func walk(n int, start float64) []series.PricePoint {
	pts := make([]series.PricePoint, n)
	p := start
	for i := range pts {
		p *= math.Exp(0.02 * math.Sin(float64(i)*1.7))
		pts[i] = series.PricePoint{Time: t0.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return pts
}

func newEngine(t *testing.T) (*Engine, *countingDetector) {
	t.Helper()
	det := &countingDetector{inner: NewRegimeDetector(regime.DefaultParams())}
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	e := NewEngine(det, NewBandForecaster(forecast.DefaultParams()), WithMemo(mc, time.Minute))
	t.Cleanup(func() { _ = e.Close() })
	return e, det
}

func TestAnalyzeMemoizesBySeriesIdentity(t *testing.T) {
	e, det := newEngine(t)
	ctx := context.Background()
	pts := walk(60, 100)

	a1, err := e.Analyze(ctx, Input{Points: pts})
	require.NoError(t, err)
	a2, err := e.Analyze(ctx, Input{Points: pts})
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	assert.EqualValues(t, 1, det.calls.Load())

	// a new tick changes the identity
	next := append(append([]series.PricePoint(nil), pts...), series.PricePoint{Time: t0.Add(60 * time.Hour), Price: 120})
	a3, err := e.Analyze(ctx, Input{Points: next})
	require.NoError(t, err)
	assert.NotSame(t, a1, a3)
	assert.EqualValues(t, 2, det.calls.Load())

	e.Invalidate(ctx, Input{Points: pts})
	_, err = e.Analyze(ctx, Input{Points: pts})
	require.NoError(t, err)
	assert.EqualValues(t, 3, det.calls.Load())
}

func TestAnalyzeContents(t *testing.T) {
	e, _ := newEngine(t)
	cost := 80.0
	pts := walk(60, 100)
	pts = append(pts, series.PricePoint{Time: t0.Add(100 * time.Hour), Price: math.NaN()})

	a, err := e.Analyze(context.Background(), Input{Points: pts, CostBasis: &cost, Label: "TEST"})
	require.NoError(t, err)

	assert.Equal(t, 60, a.Series.Len())
	assert.Equal(t, 1, a.Series.Dropped)
	assert.Equal(t, 1, a.Summary.Dropped)
	require.NotEmpty(t, a.Regimes)
	assert.Equal(t, 1, a.Regimes[0].StartIndex)
	assert.Equal(t, 59, a.Regimes[len(a.Regimes)-1].EndIndex)
	assert.Len(t, a.Bands.Outer.Upper, forecast.DefaultSteps)
	assert.Equal(t, cost, a.Bounds.MinPrice)
	assert.True(t, a.Bounds.MaxTime.After(a.Series.MaxTime))
	assert.GreaterOrEqual(t, a.Bounds.MaxPrice, a.Bands.Outer.Upper[len(a.Bands.Outer.Upper)-1].Price)
}

func TestDroppedPointsUseFixedLabels(t *testing.T) {
	e, _ := newEngine(t)
	bad := series.PricePoint{Time: t0.Add(200 * time.Hour), Price: -1}
	_, err := e.Analyze(context.Background(), Input{
		Points:    append(walk(30, 100), bad),
		Benchmark: append(walk(30, 10), bad),
		Label:     "DROPS",
	})
	require.NoError(t, err)

	assert.False(t, metrics.DroppedPoints.DeleteLabelValues("DROPS"))
	assert.False(t, metrics.DroppedPoints.DeleteLabelValues("DROPS:benchmark"))
	assert.True(t, metrics.DroppedPoints.DeleteLabelValues("series"))
	assert.True(t, metrics.DroppedPoints.DeleteLabelValues("benchmark"))
}

func TestAnalyzePropagatesErrors(t *testing.T) {
	e := NewEngine(NewRegimeDetector(regime.DefaultParams()), failingForecaster{})
	defer e.Close()
	_, err := e.Analyze(context.Background(), Input{Points: walk(30, 10)})
	assert.ErrorContains(t, err, "forecast bands")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e2, _ := newEngine(t)
	_, err = e2.Analyze(ctx, Input{Points: walk(30, 10)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRescaleBenchmark(t *testing.T) {
	base := series.Prepare(walk(20, 50))
	benchPts := walk(40, 400)
	for i := range benchPts {
		benchPts[i].Time = benchPts[i].Time.Add(-5 * time.Hour)
	}
	got, ok := RescaleBenchmark(series.Prepare(benchPts), base)
	require.True(t, ok)
	assert.InDelta(t, base.First().Price, got.First().Price, 1e-9)
	assert.False(t, got.MinTime.Before(base.MinTime))
	assert.False(t, got.MaxTime.After(base.MaxTime))

	_, ok = RescaleBenchmark(series.Prepare(nil), base)
	assert.False(t, ok)
}

func TestProjectGeometry(t *testing.T) {
	e, _ := newEngine(t)
	cost := 90.0
	pts := walk(48, 100)
	a, err := e.Analyze(context.Background(), Input{Points: pts, CostBasis: &cost, Benchmark: walk(48, 10)})
	require.NoError(t, err)
	require.NotNil(t, a.Benchmark)

	layout := transform.Layout{Width: 360, Height: 240, Margin: 12}
	pr := NewProjector(transform.DefaultDensity())
	ann := Annotations{
		Events:  []annotation.Event{{Time: pts[10].Time, Title: "earnings"}},
		Drivers: []annotation.Driver{{Time: pts[20].Time, Kind: annotation.DriverMacro}},
	}

	for _, f := range []transform.Frame{transform.Identity, {Scale: 2.5, TranslateX: -300}} {
		g := pr.Project(a, layout, f, ann)
		require.Len(t, g.Price, 48)
		assert.Len(t, g.Benchmark, 48)
		require.NotNil(t, g.CostBasisY)
		assert.Len(t, g.Outer, 2*forecast.DefaultSteps+2)
		assert.Len(t, g.Events, 1)
		assert.Len(t, g.Drivers, 1)
		assert.Len(t, g.Regimes, len(a.Regimes))

		all := append(append(append([]Pixel{}, g.Price...), g.Outer...), g.Inner...)
		for _, px := range all {
			assert.GreaterOrEqual(t, px.X, layout.Margin)
			assert.LessOrEqual(t, px.X, layout.Width-layout.Margin)
			assert.GreaterOrEqual(t, px.Y, layout.Margin)
			assert.LessOrEqual(t, px.Y, layout.Height-layout.Margin)
		}
		for i := 1; i < len(g.Price); i++ {
			assert.GreaterOrEqual(t, g.Price[i].X, g.Price[i-1].X)
		}
		for _, r := range g.Regimes {
			assert.LessOrEqual(t, r.X0, r.X1)
		}
	}

	// forecast lies to the right of the last price under identity
	g := pr.Project(a, layout, transform.Identity, Annotations{})
	assert.Greater(t, g.Outer[len(g.Outer)/2].X, g.Price[len(g.Price)-1].X)
}

func TestProjectEmptySeries(t *testing.T) {
	e, _ := newEngine(t)
	a, err := e.Analyze(context.Background(), Input{Points: []series.PricePoint{{Time: t0, Price: 5}}})
	require.NoError(t, err)

	g := NewProjector(transform.DefaultDensity()).Project(a, transform.Layout{Width: 100, Height: 50, Margin: 5}, transform.Identity, Annotations{})
	require.Len(t, g.Price, 1)
	assert.Equal(t, Pixel{X: 50, Y: 25}, g.Price[0])
	assert.Empty(t, g.Regimes)
	assert.Empty(t, g.Outer)
}
