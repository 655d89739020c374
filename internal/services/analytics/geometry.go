package analytics

import (
	"time"

	"PriceLens/internal/chart/annotation"
	"PriceLens/internal/chart/regime"
	"PriceLens/internal/chart/series"
	"PriceLens/internal/chart/transform"
)

// Pixel is a projected point.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RegimeRect is the background span of one regime segment.
type RegimeRect struct {
	Kind   regime.Kind `json:"kind"`
	X0     float64     `json:"x0"`
	X1     float64     `json:"x1"`
	Top    float64     `json:"top"`
	Bottom float64     `json:"bottom"`
}

// Geometry is everything a renderer needs for one frame.
type Geometry struct {
	Layout     transform.Layout    `json:"layout"`
	Frame      transform.Frame     `json:"frame"`
	Price      []Pixel             `json:"price"`
	Benchmark  []Pixel             `json:"benchmark,omitempty"`
	CostBasisY *float64            `json:"costBasisY,omitempty"`
	Regimes    []RegimeRect        `json:"regimes"`
	Outer      []Pixel             `json:"outerBand,omitempty"`
	Inner      []Pixel             `json:"innerBand,omitempty"`
	Events     []annotation.Marker `json:"events,omitempty"`
	Drivers    []annotation.Line   `json:"drivers,omitempty"`
}

// Annotations are the optional overlays placed on a frame.
type Annotations struct {
	Events  []annotation.Event
	Drivers []annotation.Driver
}

// Projector turns an Analysis into pixel geometry.
type Projector struct {
	density transform.DensityParams
}

func NewProjector(density transform.DensityParams) *Projector {
	return &Projector{density: density}
}

// Transform builds the coordinate transform for a and layout. The forecast
// horizon is part of the time axis so the envelope gets its own width.
func (p *Projector) Transform(a *Analysis, layout transform.Layout) *transform.Transform {
	return transform.New(axisTimes(a), a.Bounds, layout, p.density)
}

// Project maps the analysis into pixels for one frame. The cost is linear
// in the number of samples and nothing is reclassified or reprojected.
func (p *Projector) Project(a *Analysis, layout transform.Layout, f transform.Frame, ann Annotations) Geometry {
	tr := p.Transform(a, layout)
	g := Geometry{Layout: layout, Frame: f}

	g.Price = projectPoints(tr, f, a.Series.Points)
	if a.Benchmark != nil {
		g.Benchmark = projectPoints(tr, f, a.Benchmark.Points)
	}
	if a.CostBasis != nil {
		y := tr.Y(*a.CostBasis)
		g.CostBasisY = &y
	}

	top, bottom := layout.Margin, layout.Height-layout.Margin
	if bottom < top {
		top, bottom = layout.Height/2, layout.Height/2
	}
	pts := a.Series.Points
	for _, seg := range a.Regimes {
		if seg.StartIndex < 1 || seg.EndIndex >= len(pts) {
			continue
		}
		g.Regimes = append(g.Regimes, RegimeRect{
			Kind:   seg.Kind,
			X0:     tr.X(pts[seg.StartIndex-1].Time, f),
			X1:     tr.X(pts[seg.EndIndex].Time, f),
			Top:    top,
			Bottom: bottom,
		})
	}

	g.Outer = projectPoints(tr, f, a.Bands.Outer.Polygon())
	g.Inner = projectPoints(tr, f, a.Bands.Inner.Polygon())

	g.Events = annotation.PlaceEvents(ann.Events, a.Series, tr, f)
	g.Drivers = annotation.PlaceDrivers(ann.Drivers, a.Series, tr, f)
	return g
}

func projectPoints(tr *transform.Transform, f transform.Frame, pts []series.PricePoint) []Pixel {
	if len(pts) == 0 {
		return nil
	}
	out := make([]Pixel, len(pts))
	for i, pt := range pts {
		x, y := tr.ToPixel(pt.Time, pt.Price, f)
		out[i] = Pixel{X: x, Y: y}
	}
	return out
}

// axisTimes is the series timeline followed by the forecast steps.
func axisTimes(a *Analysis) []time.Time {
	times := a.Series.Times()
	horizon := a.Bands.Inner
	if len(a.Bands.Outer.Upper) > len(horizon.Upper) {
		horizon = a.Bands.Outer
	}
	return append(times, horizon.Times()...)
}
