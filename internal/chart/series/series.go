// Package series prepares raw price samples for charting: validation,
// ordering, log-returns and domain bounds.
package series

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PricePoint is a single price observation.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// Valid reports whether the point can take part in the chart.
func (p PricePoint) Valid() bool {
	return !p.Time.IsZero() && !math.IsNaN(p.Price) && !math.IsInf(p.Price, 0) && p.Price > 0
}

// Bounds is the time/price domain a chart is drawn against.
type Bounds struct {
	MinTime  time.Time `json:"minTime"`
	MaxTime  time.Time `json:"maxTime"`
	MinPrice float64   `json:"minPrice"`
	MaxPrice float64   `json:"maxPrice"`
}

// IncludePrice widens the price range to contain p. Non-finite or
// non-positive levels are ignored.
func (b Bounds) IncludePrice(p float64) Bounds {
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return b
	}
	if b.MinPrice == 0 && b.MaxPrice == 0 {
		b.MinPrice, b.MaxPrice = p, p
		return b
	}
	if p < b.MinPrice {
		b.MinPrice = p
	}
	if p > b.MaxPrice {
		b.MaxPrice = p
	}
	return b
}

// IncludeTime widens the time range to contain t.
func (b Bounds) IncludeTime(t time.Time) Bounds {
	if t.IsZero() {
		return b
	}
	if b.MinTime.IsZero() || t.Before(b.MinTime) {
		b.MinTime = t
	}
	if b.MaxTime.IsZero() || t.After(b.MaxTime) {
		b.MaxTime = t
	}
	return b
}

// PriceRange returns MaxPrice - MinPrice.
func (b Bounds) PriceRange() float64 { return b.MaxPrice - b.MinPrice }

// TimeSpan returns MaxTime - MinTime.
func (b Bounds) TimeSpan() time.Duration { return b.MaxTime.Sub(b.MinTime) }

// Prepared is the validated, time-ordered form of a series. It is never
// mutated after Prepare returns it.
type Prepared struct {
	Points  []PricePoint `json:"points"`
	Returns []float64    `json:"returns"`

	MinTime  time.Time `json:"minTime"`
	MaxTime  time.Time `json:"maxTime"`
	MinPrice float64   `json:"minPrice"`
	MaxPrice float64   `json:"maxPrice"`

	// Bounds is the drawing domain: the point extents padded by any
	// reference levels passed to Prepare.
	Bounds Bounds `json:"bounds"`

	// Dropped counts input samples rejected during validation.
	Dropped int `json:"dropped"`
}

// Len returns the number of valid points.
func (p Prepared) Len() int { return len(p.Points) }

// Empty reports whether fewer than two valid points survived.
func (p Prepared) Empty() bool { return len(p.Points) < 2 }

// First returns the earliest point. It panics on a series with no points.
func (p Prepared) First() PricePoint { return p.Points[0] }

// Last returns the latest point. It panics on a series with no points.
func (p Prepared) Last() PricePoint { return p.Points[len(p.Points)-1] }

// Times returns the timestamps of all points in order.
func (p Prepared) Times() []time.Time {
	out := make([]time.Time, len(p.Points))
	for i, pt := range p.Points {
		out[i] = pt.Time
	}
	return out
}

// PriceAt linearly interpolates the price at t. Instants outside the
// series return the nearest endpoint price. ok is false on an empty series.
func (p Prepared) PriceAt(t time.Time) (float64, bool) {
	n := len(p.Points)
	if n == 0 {
		return 0, false
	}
	if !t.After(p.Points[0].Time) {
		return p.Points[0].Price, true
	}
	if !t.Before(p.Points[n-1].Time) {
		return p.Points[n-1].Price, true
	}
	i := sort.Search(n, func(i int) bool { return !p.Points[i].Time.Before(t) })
	a, b := p.Points[i-1], p.Points[i]
	span := b.Time.Sub(a.Time)
	if span <= 0 {
		return b.Price, true
	}
	f := float64(t.Sub(a.Time)) / float64(span)
	return a.Price + (b.Price-a.Price)*f, true
}

// Fingerprint builds a cache key identifying a raw series without walking
// it: sample count, first and last timestamps, last price and any
// reference levels.
func Fingerprint(points []PricePoint, refs ...float64) string {
	if len(points) == 0 {
		return fmt.Sprintf("n=0|refs=%v", refs)
	}
	first, last := points[0], points[len(points)-1]
	return fmt.Sprintf("n=%d|t0=%d|t1=%d|p1=%g|refs=%v",
		len(points), first.Time.UnixNano(), last.Time.UnixNano(), last.Price, refs)
}
