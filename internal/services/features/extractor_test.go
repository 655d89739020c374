package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"PriceLens/internal/chart/series"
)

func TestRealizedVolatility(t *testing.T) {
	rets := []float64{0.01, -0.01, 0.01, -0.01}
	got := RealizedVolatility(rets, 4, 252)
	want := math.Sqrt((4*0.0001)/3*252)
	assert.InDelta(t, want, got, 1e-12)

	assert.Zero(t, RealizedVolatility(rets, 5, 252))
	assert.Zero(t, RealizedVolatility(rets, 1, 252))
}

func TestBarsPerYear(t *testing.T) {
	assert.InDelta(t, 365.0, BarsPerYear(24*time.Hour), 1e-9)
	assert.Zero(t, BarsPerYear(0))
}

func TestSummarize(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := series.Prepare([]series.PricePoint{
		{Time: t0, Price: 100},
		{Time: t0.Add(24 * time.Hour), Price: 110},
		{Time: t0.Add(48 * time.Hour), Price: 105},
		{Time: t0.Add(72 * time.Hour), Price: -1},
	})
	s := Summarize(p, 24*time.Hour, 20)

	assert.Equal(t, 3, s.Points)
	assert.Equal(t, 1, s.Dropped)
	assert.Equal(t, 5.0, s.Change)
	assert.InDelta(t, 5.0, s.ChangePct, 1e-12)
	assert.Equal(t, 110.0, s.High)
	assert.Greater(t, s.RealizedVol, 0.0)

	empty := Summarize(series.Prepare(nil), time.Hour, 20)
	assert.Zero(t, empty.Points)
}
