// Package transform maps (time, price) into pixel space under the current
// pan and zoom.
package transform

import (
	"math"
	"sort"
	"time"

	"PriceLens/internal/chart/series"
)

// Layout is the drawing surface in pixels.
type Layout struct {
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
	Margin float64 `json:"margin" validate:"gte=0"`
}

// PlotWidth is the horizontal extent inside the margins, never negative.
func (l Layout) PlotWidth() float64 { return math.Max(0, l.Width-2*l.Margin) }

// PlotHeight is the vertical extent inside the margins, never negative.
func (l Layout) PlotHeight() float64 { return math.Max(0, l.Height-2*l.Margin) }

// Frame is the pan/zoom applied on top of the base axis.
type Frame struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translateX"`
}

// Identity is the unpanned, unzoomed frame.
var Identity = Frame{Scale: 1}

// Transform holds the precomputed horizontal axis for one series and
// layout. Frames are applied per call so pan and zoom never rebuild it.
type Transform struct {
	layout Layout
	bounds series.Bounds
	times  []time.Time
	// cum[i] is the unscaled offset of times[i] from the left margin.
	cum []float64
}

// New folds the sample times into cumulative pixel offsets. Every gap
// starts from the same base width and is scaled by a stretch factor
// derived from how dense it is compared with uniform sampling, so a
// cluster of close samples keeps a readable share of the plot. Equal
// timestamps take no width. The total is normalized to the plot width.
// times must be sorted.
func New(times []time.Time, bounds series.Bounds, layout Layout, density DensityParams) *Transform {
	tr := &Transform{layout: layout, bounds: bounds, times: times}
	n := len(times)
	if n < 2 {
		return tr
	}
	span := float64(times[n-1].Sub(times[0]))
	if span <= 0 {
		return tr
	}
	uniform := span / float64(n-1)

	cum := make([]float64, n)
	var total float64
	for i := 1; i < n; i++ {
		if dt := float64(times[i].Sub(times[i-1])); dt > 0 {
			total += density.Stretch(density.ratio(dt, uniform))
		}
		cum[i] = total
	}
	if total <= 0 {
		return tr
	}
	w := layout.PlotWidth()
	for i := range cum {
		cum[i] = cum[i] / total * w
	}
	tr.cum = cum
	return tr
}

// Layout returns the layout the transform was built for.
func (t *Transform) Layout() Layout { return t.layout }

// Bounds returns the price/time domain.
func (t *Transform) Bounds() series.Bounds { return t.bounds }

// degenerateX reports whether the horizontal axis collapses to a point.
func (t *Transform) degenerateX() bool {
	return t.cum == nil || t.layout.PlotWidth() <= 0
}

// X maps an instant to a horizontal pixel, clamped to the plot area.
func (t *Transform) X(at time.Time, f Frame) float64 {
	mid := t.layout.Width / 2
	if t.degenerateX() || at.IsZero() {
		return mid
	}
	x := t.layout.Margin + t.offset(at)*scaleOf(f) + finiteOr(f.TranslateX, 0)
	return t.clampX(x)
}

// Y maps a price to a vertical pixel, higher prices nearer the top.
func (t *Transform) Y(price float64) float64 {
	mid := t.layout.Height / 2
	rng := t.bounds.PriceRange()
	h := t.layout.PlotHeight()
	if rng <= 0 || h <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return mid
	}
	y := t.layout.Margin + (1-(price-t.bounds.MinPrice)/rng)*h
	return clamp(y, t.layout.Margin, t.layout.Height-t.layout.Margin)
}

// ToPixel maps a (time, price) pair.
func (t *Transform) ToPixel(at time.Time, price float64, f Frame) (x, y float64) {
	return t.X(at, f), t.Y(price)
}

// TimeAt inverts X for the given frame. Pixels outside the axis return
// the nearest end. The zero time is returned for a degenerate axis.
func (t *Transform) TimeAt(x float64, f Frame) time.Time {
	if t.degenerateX() {
		if len(t.times) > 0 {
			return t.times[len(t.times)/2]
		}
		return time.Time{}
	}
	off := (x - t.layout.Margin - finiteOr(f.TranslateX, 0)) / scaleOf(f)
	n := len(t.cum)
	if off <= 0 {
		return t.times[0]
	}
	if off >= t.cum[n-1] {
		return t.times[n-1]
	}
	i := sort.SearchFloat64s(t.cum, off)
	if i == 0 {
		return t.times[0]
	}
	a, b := t.cum[i-1], t.cum[i]
	if b <= a {
		return t.times[i]
	}
	frac := (off - a) / (b - a)
	return t.times[i-1].Add(time.Duration(frac * float64(t.times[i].Sub(t.times[i-1]))))
}

// offset interpolates the unscaled axis position of at. Instants before
// the first sample map to 0 and after the last to the full width.
func (t *Transform) offset(at time.Time) float64 {
	n := len(t.times)
	if !at.After(t.times[0]) {
		return 0
	}
	if !at.Before(t.times[n-1]) {
		return t.cum[n-1]
	}
	i := sort.Search(n, func(i int) bool { return !t.times[i].Before(at) })
	a, b := t.times[i-1], t.times[i]
	span := b.Sub(a)
	if span <= 0 {
		return t.cum[i]
	}
	frac := float64(at.Sub(a)) / float64(span)
	return t.cum[i-1] + (t.cum[i]-t.cum[i-1])*frac
}

func (t *Transform) clampX(x float64) float64 {
	return clamp(x, t.layout.Margin, t.layout.Width-t.layout.Margin)
}

func scaleOf(f Frame) float64 {
	if f.Scale <= 0 || math.IsNaN(f.Scale) || math.IsInf(f.Scale, 0) {
		return 1
	}
	return f.Scale
}

func finiteOr(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(hi, v))
}
