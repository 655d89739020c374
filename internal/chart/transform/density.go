package transform

import "math"

// Knot is one control point of the stretch curve.
type Knot struct {
	Density float64 `yaml:"density" json:"density"`
	Stretch float64 `yaml:"stretch" json:"stretch"`
}

// DensityParams shape the horizontal compression.
type DensityParams struct {
	// Pivot is the density ratio a uniformly sampled series has. It maps
	// to a stretch of 1.
	Pivot float64 `yaml:"pivot" json:"pivot" default:"0.3" validate:"gt=0,lt=1"`
	// Curve must be sorted by Density and span [0, 1].
	Curve []Knot `yaml:"curve" json:"curve"`
}

// DefaultDensity returns the stock curve: 0.5x for sparse regions, 1x at
// the pivot and 2x for dense regions.
func DefaultDensity() DensityParams {
	return DensityParams{
		Pivot: 0.3,
		Curve: []Knot{
			{Density: 0, Stretch: 0.5},
			{Density: 0.3, Stretch: 1.0},
			{Density: 1, Stretch: 2.0},
		},
	}
}

// Stretch evaluates the piecewise-linear curve at d, clamping d to the
// curve's domain.
func (p DensityParams) Stretch(d float64) float64 {
	c := p.Curve
	if len(c) == 0 {
		return 1
	}
	if d <= c[0].Density {
		return c[0].Stretch
	}
	for i := 1; i < len(c); i++ {
		if d <= c[i].Density {
			a, b := c[i-1], c[i]
			if b.Density == a.Density {
				return b.Stretch
			}
			f := (d - a.Density) / (b.Density - a.Density)
			return a.Stretch + (b.Stretch-a.Stretch)*f
		}
	}
	return c[len(c)-1].Stretch
}

// ratio is the local density of a gap dt against the uniform gap u.
func (p DensityParams) ratio(dt, u float64) float64 {
	if dt <= 0 {
		return 1
	}
	return math.Max(0, math.Min(1, p.Pivot*u/dt))
}
