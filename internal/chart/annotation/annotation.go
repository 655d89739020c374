// Package annotation positions event markers and driver lines on a chart
// and resolves taps against them.
package annotation

import (
	"math"
	"time"

	"PriceLens/internal/chart/series"
	"PriceLens/internal/chart/transform"
)

// DefaultHitRadius is the tap tolerance in pixels.
const DefaultHitRadius = 24.0

// Event is a dated headline pinned to the price line.
type Event struct {
	Time    time.Time `json:"time" validate:"required"`
	Title   string    `json:"title" validate:"required"`
	Summary string    `json:"summary,omitempty"`
	Color   string    `json:"color,omitempty"`
}

// DriverKind classifies what moved the price.
type DriverKind string

const (
	DriverNews     DriverKind = "news"
	DriverMacro    DriverKind = "macro"
	DriverFlow     DriverKind = "flow"
	DriverOptions  DriverKind = "options"
	DriverEarnings DriverKind = "earnings"
)

// Valid reports whether k is a known driver kind.
func (k DriverKind) Valid() bool {
	switch k {
	case DriverNews, DriverMacro, DriverFlow, DriverOptions, DriverEarnings:
		return true
	}
	return false
}

// Driver is an attributed cause drawn as a vertical line.
type Driver struct {
	Time      time.Time  `json:"time" validate:"required"`
	Kind      DriverKind `json:"driver" validate:"required,oneof=news macro flow options earnings"`
	Cause     string     `json:"cause"`
	Relevancy float64    `json:"relevancy" validate:"gte=0,lte=1"`
}

// Marker is a placed event.
type Marker struct {
	Event Event   `json:"event"`
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Line is a placed driver spanning the plot height.
type Line struct {
	Driver Driver  `json:"driver"`
	Index  int     `json:"index"`
	X      float64 `json:"x"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// PlaceEvents pins events onto the price line. Events outside the series'
// time range are skipped; Index refers to the input slice.
func PlaceEvents(events []Event, p series.Prepared, tr *transform.Transform, f transform.Frame) []Marker {
	if p.Len() == 0 {
		return nil
	}
	out := make([]Marker, 0, len(events))
	for i, e := range events {
		if !inRange(e.Time, p) {
			continue
		}
		price, _ := p.PriceAt(e.Time)
		x, y := tr.ToPixel(e.Time, price, f)
		out = append(out, Marker{Event: e, Index: i, X: x, Y: y})
	}
	return out
}

// PlaceDrivers draws one vertical line per known driver inside the series'
// time range.
func PlaceDrivers(drivers []Driver, p series.Prepared, tr *transform.Transform, f transform.Frame) []Line {
	if p.Len() == 0 {
		return nil
	}
	l := tr.Layout()
	top, bottom := l.Margin, math.Max(l.Margin, l.Height-l.Margin)
	out := make([]Line, 0, len(drivers))
	for i, d := range drivers {
		if !d.Kind.Valid() || !inRange(d.Time, p) {
			continue
		}
		out = append(out, Line{Driver: d, Index: i, X: tr.X(d.Time, f), Top: top, Bottom: bottom})
	}
	return out
}

func inRange(t time.Time, p series.Prepared) bool {
	return !t.IsZero() && !t.Before(p.MinTime) && !t.After(p.MaxTime)
}

// HitKind says what a tap landed on.
type HitKind string

const (
	HitEvent  HitKind = "event"
	HitDriver HitKind = "driver"
)

// Hit is the nearest annotation to a tap.
type Hit struct {
	Kind     HitKind `json:"kind"`
	Index    int     `json:"index"`
	Distance float64 `json:"distance"`
}

// HitTest returns the nearest marker (Euclidean distance) or line
// (horizontal distance) within radius. Markers win ties. ok is false when
// nothing is close enough. A non-positive radius uses DefaultHitRadius.
func HitTest(markers []Marker, lines []Line, x, y, radius float64) (Hit, bool) {
	if radius <= 0 {
		radius = DefaultHitRadius
	}
	best := Hit{Distance: math.Inf(1)}
	for _, m := range markers {
		d := math.Hypot(m.X-x, m.Y-y)
		if d < best.Distance {
			best = Hit{Kind: HitEvent, Index: m.Index, Distance: d}
		}
	}
	for _, l := range lines {
		d := math.Abs(l.X - x)
		if d < best.Distance {
			best = Hit{Kind: HitDriver, Index: l.Index, Distance: d}
		}
	}
	if best.Distance > radius {
		return Hit{}, false
	}
	return best, true
}
