package regime

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceLens/internal/chart/series"
)

func build(prices ...float64) series.Prepared {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	pts := make([]series.PricePoint, len(prices))
	for i, p := range prices {
		pts[i] = series.PricePoint{Time: t0.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return series.Prepare(pts)
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestClassifyFlatIsChop(t *testing.T) {
	segs := Classify(build(flat(30, 50)...), DefaultParams())
	require.Len(t, segs, 1)
	assert.Equal(t, Segment{StartIndex: 1, EndIndex: 29, Kind: Chop}, segs[0])
}

func TestClassifyMonotonicIsTrend(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	segs := Classify(build(prices...), DefaultParams())
	require.Len(t, segs, 1)
	assert.Equal(t, Trend, segs[0].Kind)
	assert.Equal(t, 1, segs[0].StartIndex)
	assert.Equal(t, 19, segs[0].EndIndex)
}

func TestClassifySpikeIsShock(t *testing.T) {
	prices := flat(20, 100)
	prices[10] = 500
	segs := Classify(build(prices...), DefaultParams())
	require.NotEmpty(t, segs)

	var hit bool
	for _, s := range segs {
		if s.Kind == Shock && s.StartIndex <= 10 && 10 <= s.EndIndex {
			hit = true
		}
	}
	assert.True(t, hit, "expected a shock segment containing index 10: %+v", segs)
}

func TestClassifyTooShort(t *testing.T) {
	assert.Nil(t, Classify(build(1, 2, 3, 4, 5), DefaultParams()))
	assert.Nil(t, Classify(series.Prepare(nil), DefaultParams()))
}

func TestClassifyCoversSeries(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 25; trial++ {
		n := 10 + rng.Intn(200)
		prices := make([]float64, n)
		p := 100.0
		for i := range prices {
			p *= math.Exp(rng.NormFloat64() * 0.04)
			prices[i] = p
		}
		segs := Classify(build(prices...), DefaultParams())
		require.NotEmpty(t, segs)
		assert.Equal(t, 1, segs[0].StartIndex)
		assert.Equal(t, n-1, segs[len(segs)-1].EndIndex)
		for i := 1; i < len(segs); i++ {
			assert.Equal(t, segs[i-1].EndIndex+1, segs[i].StartIndex)
			assert.NotEqual(t, segs[i-1].Kind, segs[i].Kind)
		}
		total := 0
		for _, c := range Counts(segs) {
			total += c
		}
		assert.Equal(t, n-1, total)
	}
}

func TestClassifyParamsAreHonoured(t *testing.T) {
	prices := flat(20, 100)
	prices[10] = 500
	params := DefaultParams()
	params.NoiseFloor = 10
	for _, s := range Classify(build(prices...), params) {
		assert.NotEqual(t, Shock, s.Kind)
	}
}
