package analytics

import (
	"context"
	"fmt"
	"time"

	"PriceLens/internal/chart/forecast"
	"PriceLens/internal/chart/regime"
	"PriceLens/internal/chart/series"
	domsvc "PriceLens/internal/domain/service"
	"PriceLens/internal/service/metrics"
	"PriceLens/internal/services/features"
	"PriceLens/pkg/cache"
	"PriceLens/pkg/logger"
)

// Input is everything an analysis depends on.
type Input struct {
	Points    []series.PricePoint
	CostBasis *float64
	Benchmark []series.PricePoint
	// Label tags dropped-point metrics, e.g. a symbol. Optional.
	Label string
}

// Key returns the memo key for in. It only inspects the ends of each
// series, so it is cheap enough to compute on every gesture frame.
func (in Input) Key() string {
	var refs []float64
	if in.CostBasis != nil {
		refs = append(refs, *in.CostBasis)
	}
	return cache.HashKey(series.Fingerprint(in.Points, refs...) + "|bench:" + series.Fingerprint(in.Benchmark))
}

// Analysis is the memoized, layout-independent result for one series.
type Analysis struct {
	Key        string           `json:"key"`
	Series     series.Prepared  `json:"series"`
	Benchmark  *series.Prepared `json:"benchmark,omitempty"`
	CostBasis  *float64         `json:"costBasis,omitempty"`
	Regimes    []regime.Segment `json:"regimes"`
	Bands      forecast.Bands   `json:"bands"`
	Bounds     series.Bounds    `json:"bounds"`
	Summary    features.Summary `json:"summary"`
	ComputedAt time.Time        `json:"computedAt"`
}

// Engine prepares, classifies and projects series, caching results by
// series identity.
type Engine struct {
	detector   domsvc.RegimeDetector
	forecaster domsvc.BandForecaster
	memo       *cache.MemoryCache
	memoTTL    time.Duration
	volWindow  int
	log        *logger.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMemo sets the analysis cache and its entry TTL.
func WithMemo(mc *cache.MemoryCache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.memo = mc
		e.memoTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithVolWindow sets how many returns the summary volatility uses.
func WithVolWindow(n int) Option {
	return func(e *Engine) { e.volWindow = n }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(detector domsvc.RegimeDetector, forecaster domsvc.BandForecaster, opts ...Option) *Engine {
	e := &Engine{
		detector:   detector,
		forecaster: forecaster,
		memoTTL:    10 * time.Minute,
		volWindow:  20,
		log:        logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.memo == nil {
		e.memo = cache.NewMemoryCache(cache.WithMemoryMaxSize(128), cache.WithMemoryTTL(e.memoTTL))
	}
	return e
}

// Close releases the memo cache.
func (e *Engine) Close() error { return e.memo.Close() }

// Analyze returns the analysis for in, computing it only when no analysis
// with the same key is cached.
func (e *Engine) Analyze(ctx context.Context, in Input) (*Analysis, error) {
	key := in.Key()
	if v, ok := e.memo.Load(key); ok {
		if a, ok := v.(*Analysis); ok {
			metrics.MemoLookups.WithLabelValues("hit").Inc()
			return a, nil
		}
	}
	metrics.MemoLookups.WithLabelValues("miss").Inc()

	a, err := e.compute(ctx, in)
	if err != nil {
		return nil, err
	}
	a.Key = key
	e.memo.Store(key, a, e.memoTTL)
	return a, nil
}

// Invalidate drops a cached analysis.
func (e *Engine) Invalidate(ctx context.Context, in Input) {
	_ = e.memo.Delete(ctx, in.Key())
}

func (e *Engine) compute(ctx context.Context, in Input) (*Analysis, error) {
	start := e.now()
	var refs []float64
	if in.CostBasis != nil {
		refs = append(refs, *in.CostBasis)
	}
	p := series.Prepare(in.Points, refs...)
	e.recordDropped("series", in.Label, p.Dropped)

	regimes, err := e.detector.Detect(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("detect regimes: %w", err)
	}
	bands, err := e.forecaster.Forecast(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("forecast bands: %w", err)
	}

	a := &Analysis{
		Series:     p,
		CostBasis:  in.CostBasis,
		Regimes:    regimes,
		Bands:      bands,
		ComputedAt: start,
	}
	if len(in.Benchmark) > 0 && !p.Empty() {
		bench := series.Prepare(in.Benchmark)
		e.recordDropped("benchmark", in.Label, bench.Dropped)
		if rescaled, ok := RescaleBenchmark(bench, p); ok {
			a.Benchmark = &rescaled
		}
	}
	a.Bounds = analysisBounds(a)
	a.Summary = features.Summarize(p, forecast.MedianSpacing(p.Points), e.volWindow)

	took := e.now().Sub(start)
	metrics.AnalysisDuration.Observe(took.Seconds())
	e.log.Debug("series analyzed",
		logger.String("label", in.Label),
		logger.Int("points", p.Len()),
		logger.Int("dropped", p.Dropped),
		logger.Int("regimes", len(regimes)),
		logger.Int("forecast_steps", len(bands.Outer.Upper)),
		logger.Duration("took", took),
	)
	return a, nil
}

// recordDropped counts rejected samples under a fixed role label. The
// symbol only goes to the log.
func (e *Engine) recordDropped(role, label string, n int) {
	if n <= 0 {
		return
	}
	metrics.DroppedPoints.WithLabelValues(role).Add(float64(n))
	e.log.Debug("dropped invalid samples",
		logger.String("role", role),
		logger.String("label", label),
		logger.Int("dropped", n),
	)
}

// analysisBounds pads the series bounds so overlays and the forecast fit.
func analysisBounds(a *Analysis) series.Bounds {
	b := a.Series.Bounds
	if a.Benchmark != nil {
		b = b.IncludePrice(a.Benchmark.MinPrice).IncludePrice(a.Benchmark.MaxPrice)
	}
	for _, band := range []forecast.Band{a.Bands.Outer, a.Bands.Inner} {
		for i := range band.Upper {
			b = b.IncludePrice(band.Upper[i].Price).IncludePrice(band.Lower[i].Price).IncludeTime(band.Upper[i].Time)
		}
	}
	return b
}

// RescaleBenchmark restricts bench to the series' time range and scales
// it so both start at the same price, making relative performance visible
// on one axis. ok is false when nothing overlaps.
func RescaleBenchmark(bench, base series.Prepared) (series.Prepared, bool) {
	if bench.Len() == 0 || base.Len() == 0 {
		return series.Prepared{}, false
	}
	pts := make([]series.PricePoint, 0, bench.Len())
	for _, pt := range bench.Points {
		if pt.Time.Before(base.MinTime) || pt.Time.After(base.MaxTime) {
			continue
		}
		pts = append(pts, pt)
	}
	if len(pts) == 0 {
		return series.Prepared{}, false
	}
	factor := base.First().Price / pts[0].Price
	for i := range pts {
		pts[i].Price *= factor
	}
	out := series.Prepare(pts)
	out.Dropped = bench.Dropped
	return out, true
}
