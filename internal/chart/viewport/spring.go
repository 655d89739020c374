package viewport

import "math"

// Spring is a damped harmonic oscillator used to settle released values.
type Spring struct {
	Stiffness float64 `yaml:"stiffness" json:"stiffness" default:"180" validate:"gt=0"`
	Damping   float64 `yaml:"damping" json:"damping" default:"22" validate:"gte=0"`
	Mass      float64 `yaml:"mass" json:"mass" default:"1" validate:"gt=0"`
	RestDelta float64 `yaml:"rest_delta" json:"restDelta" default:"0.001" validate:"gt=0"`
	RestSpeed float64 `yaml:"rest_speed" json:"restSpeed" default:"0.01" validate:"gt=0"`
}

// DefaultSpring returns a slightly under-damped spring.
func DefaultSpring() Spring {
	return Spring{Stiffness: 180, Damping: 22, Mass: 1, RestDelta: 0.001, RestSpeed: 0.01}
}

const maxSubstep = 1.0 / 240

// MaxTickDT caps how many seconds one Tick may integrate, which bounds the
// sub-steps per event.
const MaxTickDT = 1.0

// step advances one value toward target with semi-implicit Euler.
func (sp Spring) step(x, v, target, dt float64) (float64, float64) {
	a := (-sp.Stiffness*(x-target) - sp.Damping*v) / sp.Mass
	v += a * dt
	x += v * dt
	return x, v
}

func (sp Spring) atRest(x, v, target float64) bool {
	return math.Abs(x-target) <= sp.RestDelta && math.Abs(v) <= sp.RestSpeed
}

// settle integrates both channels for at most MaxTickDT seconds and snaps
// to the targets once both are at rest. A channel that leaves the finite
// range snaps as well.
func settle(s State, dt float64, sp Spring) State {
	dt = math.Min(dt, MaxTickDT)
	for dt > 0 {
		h := math.Min(dt, maxSubstep)
		s.Scale, s.ScaleVelocity = sp.step(s.Scale, s.ScaleVelocity, s.TargetScale, h)
		s.TranslateX, s.TranslateVel = sp.step(s.TranslateX, s.TranslateVel, s.TargetTranslateX, h)
		dt -= h
		if !finite(s.Scale, s.ScaleVelocity, s.TranslateX, s.TranslateVel) {
			return snap(s)
		}
		if sp.atRest(s.Scale, s.ScaleVelocity, s.TargetScale) && sp.atRest(s.TranslateX, s.TranslateVel, s.TargetTranslateX) {
			return snap(s)
		}
	}
	return s
}

// snap ends settling at the targets.
func snap(s State) State {
	s.Scale = finiteOr(s.TargetScale, 1)
	s.TranslateX = finiteOr(s.TargetTranslateX, 0)
	s.TargetScale, s.TargetTranslateX = s.Scale, s.TranslateX
	s.ScaleVelocity, s.TranslateVel = 0, 0
	s.Phase = Idle
	return s
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func finiteOr(v, def float64) float64 {
	if finite(v) {
		return v
	}
	return def
}
