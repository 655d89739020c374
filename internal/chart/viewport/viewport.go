// Package viewport is the pan/pinch-zoom state machine. Every transition is
// a pure function of the previous state, an event and the configuration.
package viewport

import (
	"math"

	"PriceLens/internal/chart/transform"
)

// Phase is the coarse gesture state.
type Phase string

const (
	Idle      Phase = "idle"
	Gesturing Phase = "gesturing"
	Settling  Phase = "settling"
)

// PanStatus tracks horizontal pan recognition.
type PanStatus string

const (
	PanNone    PanStatus = ""
	PanPending PanStatus = "pending"
	PanActive  PanStatus = "active"
	PanFailed  PanStatus = "failed"
)

// Config bounds zoom, gates pan recognition and tunes the settle spring.
type Config struct {
	MinScale        float64 `yaml:"min_scale" json:"minScale" default:"0.5" validate:"gt=0"`
	MaxScale        float64 `yaml:"max_scale" json:"maxScale" default:"3" validate:"gtfield=MinScale"`
	ActivateOffsetX float64 `yaml:"activate_offset_x" json:"activateOffsetX" default:"10" validate:"gte=0"`
	FailOffsetY     float64 `yaml:"fail_offset_y" json:"failOffsetY" default:"10" validate:"gte=0"`
	Spring          Spring  `yaml:"spring" json:"spring"`
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		MinScale:        0.5,
		MaxScale:        3,
		ActivateOffsetX: 10,
		FailOffsetY:     10,
		Spring:          DefaultSpring(),
	}
}

// ClampScale limits s to [MinScale, MaxScale].
func (c Config) ClampScale(s float64) float64 {
	return math.Max(c.MinScale, math.Min(c.MaxScale, s))
}

const (
	// overshoot is how far past the scale limits a live pinch may go
	// before it is held.
	overshoot = 4
	// maxTranslate bounds every horizontal offset in pixels.
	maxTranslate = 1e9
	// maxSpeed bounds spring velocities.
	maxSpeed = 1e6
)

// liveScale limits a scale that is still under the finger.
func (c Config) liveScale(s float64) float64 {
	return math.Max(c.MinScale/overshoot, math.Min(c.MaxScale*overshoot, s))
}

// State is the full viewport state. Scale and TranslateX are what the
// renderer reads; the Committed pair is what Cancel restores.
type State struct {
	Phase      Phase   `json:"phase"`
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translateX"`

	CommittedScale      float64 `json:"committedScale"`
	CommittedTranslateX float64 `json:"committedTranslateX"`

	Pan      PanStatus `json:"pan,omitempty"`
	Pinching bool      `json:"pinching,omitempty"`

	// Gesture baselines captured at begin.
	PanOrigin   float64 `json:"panOrigin"`
	PinchOrigin float64 `json:"pinchOrigin"`

	// Spring targets and velocities while settling.
	TargetScale      float64 `json:"targetScale"`
	TargetTranslateX float64 `json:"targetTranslateX"`
	ScaleVelocity    float64 `json:"scaleVelocity"`
	TranslateVel     float64 `json:"translateVelocity"`
}

// Initial is the resting, unzoomed state.
func Initial() State {
	return State{
		Phase:          Idle,
		Scale:          1,
		CommittedScale: 1,
		TargetScale:    1,
		PinchOrigin:    1,
	}
}

// Frame extracts what the coordinate transform needs.
func (s State) Frame() transform.Frame {
	return transform.Frame{Scale: s.Scale, TranslateX: s.TranslateX}
}

// Sanitize returns s with every field inside the range the reducer can
// produce, for state that arrives from outside the process. Non-finite
// numbers fall back to the resting values and resting scales are clamped
// to the configured limits.
func Sanitize(s State, cfg Config) State {
	switch s.Phase {
	case Idle, Gesturing, Settling:
	default:
		s.Phase = Idle
	}
	switch s.Pan {
	case PanNone, PanPending, PanActive, PanFailed:
	default:
		s.Pan = PanNone
	}

	s.Scale = cfg.liveScale(positiveOr(s.Scale, 1))
	s.PinchOrigin = cfg.liveScale(positiveOr(s.PinchOrigin, s.Scale))
	s.TargetScale = cfg.ClampScale(positiveOr(s.TargetScale, 1))
	s.CommittedScale = cfg.ClampScale(positiveOr(s.CommittedScale, 1))

	s.TranslateX = bound(s.TranslateX, maxTranslate)
	s.PanOrigin = bound(s.PanOrigin, maxTranslate)
	s.TargetTranslateX = bound(s.TargetTranslateX, maxTranslate)
	s.CommittedTranslateX = bound(s.CommittedTranslateX, maxTranslate)

	s.ScaleVelocity = bound(s.ScaleVelocity, maxSpeed)
	s.TranslateVel = bound(s.TranslateVel, maxSpeed)
	return s
}

func positiveOr(v, def float64) float64 {
	if finitePositive(v) {
		return v
	}
	return def
}

// bound maps non-finite v to 0 and clamps the rest to [-limit, limit].
func bound(v, limit float64) float64 {
	if !finite(v) {
		return 0
	}
	return math.Max(-limit, math.Min(limit, v))
}

func (s State) gesturing() bool { return s.Pan == PanPending || s.Pan == PanActive || s.Pinching }

// Event is a gesture or clock input.
type Event interface{ isEvent() }

type (
	// PanBegin starts a horizontal pan candidate.
	PanBegin struct{}
	// PanUpdate carries the cumulative translation since PanBegin.
	PanUpdate struct {
		TranslationX float64 `json:"translationX"`
		TranslationY float64 `json:"translationY"`
	}
	// PanEnd releases the pan.
	PanEnd struct{}
	// PinchBegin starts a pinch.
	PinchBegin struct{}
	// PinchUpdate carries the cumulative scale factor since PinchBegin.
	PinchUpdate struct {
		Factor float64 `json:"factor"`
	}
	// PinchEnd releases the pinch.
	PinchEnd struct{}
	// Cancel aborts every active gesture.
	Cancel struct{}
	// Tick advances the settle spring by DT seconds.
	Tick struct {
		DT float64 `json:"dt"`
	}
)

func (PanBegin) isEvent()    {}
func (PanUpdate) isEvent()   {}
func (PanEnd) isEvent()      {}
func (PinchBegin) isEvent()  {}
func (PinchUpdate) isEvent() {}
func (PinchEnd) isEvent()    {}
func (Cancel) isEvent()      {}
func (Tick) isEvent()        {}

// Reduce applies one event. Unknown events return s unchanged.
func Reduce(s State, e Event, cfg Config) State {
	switch ev := e.(type) {
	case PanBegin:
		s.Pan = PanPending
		s.PanOrigin = s.TranslateX
		s.TranslateVel = 0
		s.Phase = Gesturing

	case PanUpdate:
		s = panUpdate(s, ev, cfg)

	case PanEnd:
		if s.Pan == PanActive {
			s.CommittedTranslateX = s.TranslateX
			s.TargetTranslateX = s.TranslateX
		}
		s.Pan = PanNone
		s = release(s)

	case PinchBegin:
		s.Pinching = true
		s.PinchOrigin = s.Scale
		s.ScaleVelocity = 0
		s.Phase = Gesturing

	case PinchUpdate:
		if !s.Pinching || !finitePositive(ev.Factor) {
			return s
		}
		next := s.PinchOrigin * ev.Factor
		if finitePositive(next) {
			s.Scale = cfg.liveScale(next)
		}

	case PinchEnd:
		if !s.Pinching {
			return s
		}
		s.Pinching = false
		s.TargetScale = cfg.ClampScale(s.Scale)
		s.CommittedScale = s.TargetScale
		s = release(s)

	case Cancel:
		s.Scale = s.CommittedScale
		s.TranslateX = s.CommittedTranslateX
		s.TargetScale = s.CommittedScale
		s.TargetTranslateX = s.CommittedTranslateX
		s.ScaleVelocity, s.TranslateVel = 0, 0
		s.Pan = PanNone
		s.Pinching = false
		s.Phase = Idle

	case Tick:
		if s.Phase != Settling || !finitePositive(ev.DT) {
			return s
		}
		s = settle(s, ev.DT, cfg.Spring)
	}
	return s
}

// ReduceAll folds events over s in order.
func ReduceAll(s State, cfg Config, events ...Event) State {
	for _, e := range events {
		s = Reduce(s, e, cfg)
	}
	return s
}

func panUpdate(s State, ev PanUpdate, cfg Config) State {
	dx, dy := ev.TranslationX, ev.TranslationY
	if math.IsNaN(dx) || math.IsInf(dx, 0) {
		return s
	}
	switch s.Pan {
	case PanPending:
		ady, adx := math.Abs(dy), math.Abs(dx)
		if ady >= cfg.FailOffsetY && ady > adx {
			s.Pan = PanFailed
			return s
		}
		if adx < cfg.ActivateOffsetX {
			return s
		}
		s.Pan = PanActive
		fallthrough
	case PanActive:
		s.TranslateX = bound(s.PanOrigin+dx, maxTranslate)
	}
	return s
}

// release moves to settling or idle once no gesture remains active.
func release(s State) State {
	if s.gesturing() {
		return s
	}
	if s.Scale != s.TargetScale || s.TranslateX != s.TargetTranslateX {
		s.Phase = Settling
		return s
	}
	s.Phase = Idle
	return s
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Controller holds a State for a single interactive surface. It is not
// safe for concurrent use.
type Controller struct {
	cfg   Config
	state State
}

// NewController starts at the initial state.
func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg, state: Initial()}
}

// Dispatch applies events and returns the resulting state.
func (c *Controller) Dispatch(events ...Event) State {
	c.state = ReduceAll(c.state, c.cfg, events...)
	return c.state
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Frame returns the current transform frame.
func (c *Controller) Frame() transform.Frame { return c.state.Frame() }
