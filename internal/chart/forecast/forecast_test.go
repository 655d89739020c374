package forecast

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceLens/internal/chart/series"
)

var start = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func walk(n int, seed int64, vol float64) series.Prepared {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]series.PricePoint, n)
	p := 100.0
	for i := range pts {
		p *= math.Exp(rng.NormFloat64() * vol)
		pts[i] = series.PricePoint{Time: start.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return series.Prepare(pts)
}

func TestProjectBandsNest(t *testing.T) {
	p := walk(60, 3, 0.02)
	b := ProjectBands(p, DefaultParams())

	require.Len(t, b.Outer.Upper, DefaultSteps)
	require.Len(t, b.Inner.Upper, DefaultSteps)
	for k := range b.Outer.Upper {
		assert.GreaterOrEqual(t, b.Outer.Upper[k].Price, b.Inner.Upper[k].Price)
		assert.LessOrEqual(t, b.Outer.Lower[k].Price, b.Inner.Lower[k].Price)
		assert.Greater(t, b.Inner.Upper[k].Price, b.Inner.Lower[k].Price)
		assert.Equal(t, b.Outer.Upper[k].Time, b.Inner.Upper[k].Time)
	}
}

func TestProjectStepsUseMedianSpacing(t *testing.T) {
	p := walk(30, 1, 0.01)
	b := Project(p, Z80, 4)

	require.Len(t, b.Upper, 4)
	for i, u := range b.Upper {
		assert.Equal(t, i+1, u.Step)
		assert.Equal(t, p.Last().Time.Add(time.Duration(i+1)*time.Hour), u.Time)
	}
}

func TestProjectFormula(t *testing.T) {
	p := walk(40, 9, 0.03)
	mean, stdev := series.MeanStdev(p.Returns)
	b := Project(p, Z50, 3)
	require.Len(t, b.Upper, 3)

	last := p.Last().Price
	want := last * math.Exp(mean*3+Z50*stdev*math.Sqrt(3))
	assert.InDelta(t, want, b.Upper[2].Price, 1e-9)
	want = last * math.Exp(mean*3-Z50*stdev*math.Sqrt(3))
	assert.InDelta(t, want, b.Lower[2].Price, 1e-9)
}

func TestProjectAborts(t *testing.T) {
	// too few returns
	assert.True(t, Project(walk(8, 1, 0.02), Z80, 12).Empty())

	// zero volatility
	pts := make([]series.PricePoint, 30)
	for i := range pts {
		pts[i] = series.PricePoint{Time: start.Add(time.Duration(i) * time.Minute), Price: 42}
	}
	flat := ProjectBands(series.Prepare(pts), DefaultParams())
	assert.True(t, flat.Outer.Empty())
	assert.True(t, flat.Inner.Empty())
	assert.Nil(t, flat.Outer.Polygon())
}

func TestPolygonIsClosed(t *testing.T) {
	b := Project(walk(50, 5, 0.02), Z80, 5)
	poly := b.Polygon()

	require.Len(t, poly, 5*2+2)
	assert.Equal(t, b.Anchor, poly[0])
	assert.Equal(t, b.Anchor, poly[len(poly)-1])
	assert.Equal(t, b.Upper[4].Price, poly[5].Price)
	assert.Equal(t, b.Lower[4].Price, poly[6].Price)
	assert.Equal(t, b.Lower[0].Price, poly[10].Price)
}

func TestProjectSkipsOverflowSteps(t *testing.T) {
	b := Project(walk(40, 2, 0.05), 1e6, 3)
	assert.True(t, b.Empty())
}

func TestMedianSpacing(t *testing.T) {
	pts := []series.PricePoint{
		{Time: start, Price: 1},
		{Time: start.Add(time.Minute), Price: 1},
		{Time: start.Add(3 * time.Minute), Price: 1},
		{Time: start.Add(13 * time.Minute), Price: 1},
	}
	assert.Equal(t, 2*time.Minute, MedianSpacing(pts))
	assert.Zero(t, MedianSpacing(pts[:1]))
}
