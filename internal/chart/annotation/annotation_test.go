package annotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceLens/internal/chart/series"
	"PriceLens/internal/chart/transform"
)

var base = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func fixture() (series.Prepared, *transform.Transform) {
	pts := make([]series.PricePoint, 11)
	for i := range pts {
		pts[i] = series.PricePoint{Time: base.Add(time.Duration(i) * time.Hour), Price: 100 + float64(i)}
	}
	p := series.Prepare(pts)
	tr := transform.New(p.Times(), p.Bounds, transform.Layout{Width: 220, Height: 120, Margin: 10}, transform.DefaultDensity())
	return p, tr
}

func TestPlaceEventsOnPriceLine(t *testing.T) {
	p, tr := fixture()
	events := []Event{
		{Time: base.Add(5 * time.Hour), Title: "mid"},
		{Time: base.Add(-time.Hour), Title: "before"},
		{Time: base.Add(30 * time.Hour), Title: "after"},
		{Time: base.Add(90 * time.Minute), Title: "between"},
	}
	got := PlaceEvents(events, p, tr, transform.Identity)

	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.InDelta(t, 110, got[0].X, 1e-9)
	assert.InDelta(t, tr.Y(105), got[0].Y, 1e-9)
	assert.Equal(t, 3, got[1].Index)
	assert.InDelta(t, tr.Y(101.5), got[1].Y, 1e-9)
}

func TestPlaceDriversSkipsUnknownKinds(t *testing.T) {
	p, tr := fixture()
	drivers := []Driver{
		{Time: base.Add(2 * time.Hour), Kind: DriverMacro, Cause: "CPI"},
		{Time: base.Add(3 * time.Hour), Kind: "rumour"},
		{Time: base.Add(4 * time.Hour), Kind: DriverEarnings, Relevancy: 0.8},
	}
	got := PlaceDrivers(drivers, p, tr, transform.Identity)

	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Index)
	assert.Equal(t, 10.0, got[0].Top)
	assert.Equal(t, 110.0, got[0].Bottom)
	assert.InDelta(t, 50, got[0].X, 1e-9)
}

func TestHitTest(t *testing.T) {
	markers := []Marker{{Index: 0, X: 100, Y: 50}, {Index: 1, X: 160, Y: 40}}
	lines := []Line{{Index: 0, X: 130, Top: 0, Bottom: 200}}

	hit, ok := HitTest(markers, lines, 104, 53, 0)
	require.True(t, ok)
	assert.Equal(t, Hit{Kind: HitEvent, Index: 0, Distance: 5}, hit)

	// far vertically from markers but near the line
	hit, ok = HitTest(markers, lines, 128, 180, 24)
	require.True(t, ok)
	assert.Equal(t, HitDriver, hit.Kind)
	assert.Equal(t, 2.0, hit.Distance)

	_, ok = HitTest(markers, lines, 400, 400, 24)
	assert.False(t, ok)

	_, ok = HitTest(nil, nil, 0, 0, 10)
	assert.False(t, ok)
}

func TestHitTestTiePrefersMarker(t *testing.T) {
	markers := []Marker{{Index: 3, X: 10, Y: 0}}
	lines := []Line{{Index: 1, X: 20}}
	hit, ok := HitTest(markers, lines, 15, 0, 24)
	require.True(t, ok)
	assert.Equal(t, HitEvent, hit.Kind)
}

func TestDriverKindValid(t *testing.T) {
	for _, k := range []DriverKind{DriverNews, DriverMacro, DriverFlow, DriverOptions, DriverEarnings} {
		assert.True(t, k.Valid())
	}
	assert.False(t, DriverKind("").Valid())
}
