package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"PriceLens/internal/chart/annotation"
	"PriceLens/internal/chart/series"
	"PriceLens/internal/chart/transform"
	"PriceLens/internal/chart/viewport"
	"PriceLens/internal/domain/models"
	domrepo "PriceLens/internal/domain/repository"
	"PriceLens/internal/service/cache"
	"PriceLens/internal/services/analytics"
	"PriceLens/pkg/logger"
)

// ErrInvalidRequest marks input the use case cannot act on.
var ErrInvalidRequest = errors.New("invalid request")

// GeometryResult is one rendered frame plus the viewport it was drawn with.
type GeometryResult struct {
	Key      string             `json:"key"`
	Viewport viewport.State     `json:"viewport"`
	Geometry analytics.Geometry `json:"geometry"`
}

// SymbolChart is the cached body of a stored-series chart.
type SymbolChart struct {
	Symbol    string              `json:"symbol"`
	Range     domrepo.Range       `json:"range"`
	Benchmark string              `json:"benchmark,omitempty"`
	Analysis  *analytics.Analysis `json:"analysis"`
	Geometry  *analytics.Geometry `json:"geometry,omitempty"`
	Errors    map[string]string   `json:"errors,omitempty"`
}

// ChartOptions tunes a ChartUseCase.
type ChartOptions struct {
	Benchmark   string
	HitRadius   float64
	Viewport    viewport.Config
	ResponseTTL time.Duration
	Timeout     time.Duration
}

// ChartUseCase serves analyses, geometry and viewport math.
type ChartUseCase struct {
	engine    *analytics.Engine
	projector *analytics.Projector
	store     domrepo.SeriesStore
	cache     cache.BytesCache
	opts      ChartOptions
	log       *logger.Logger
	now       func() time.Time
}

func NewChartUseCase(engine *analytics.Engine, projector *analytics.Projector, store domrepo.SeriesStore, bc cache.BytesCache, opts ChartOptions, log *logger.Logger) *ChartUseCase {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Viewport.MaxScale == 0 {
		opts.Viewport = viewport.DefaultConfig()
	}
	return &ChartUseCase{
		engine:    engine,
		projector: projector,
		store:     store,
		cache:     bc,
		opts:      opts,
		log:       log.With(logger.String("component", "chart")),
		now:       time.Now,
	}
}

// Analyze runs the memoized analysis on caller-supplied points.
func (uc *ChartUseCase) Analyze(ctx context.Context, in models.SeriesInput) (*analytics.Analysis, error) {
	return uc.engine.Analyze(ctx, analytics.Input{
		Points:    in.Points,
		CostBasis: in.CostBasis,
		Benchmark: in.Benchmark,
	})
}

// Geometry analyzes the series (reusing a cached analysis when the series
// is unchanged) and projects it for the request's layout and viewport.
func (uc *ChartUseCase) Geometry(ctx context.Context, req models.GeometryRequest) (*GeometryResult, error) {
	for _, d := range req.Drivers {
		if !d.Kind.Valid() {
			return nil, fmt.Errorf("%w: driver kind %q", ErrInvalidRequest, d.Kind)
		}
	}
	a, err := uc.Analyze(ctx, req.SeriesInput)
	if err != nil {
		return nil, err
	}
	state := viewport.Initial()
	if req.Viewport != nil {
		state = viewport.Sanitize(*req.Viewport, uc.opts.Viewport)
		state.Scale = uc.opts.Viewport.ClampScale(state.Scale)
	}
	g := uc.projector.Project(a, req.Layout, state.Frame(), analytics.Annotations{
		Events:  req.Events,
		Drivers: req.Drivers,
	})
	return &GeometryResult{Key: a.Key, Viewport: state, Geometry: g}, nil
}

// Viewport folds events into state, starting from the resting state when
// none is given. Client state is sanitized first so a forged spring target
// or velocity cannot push the result out of the finite range.
func (uc *ChartUseCase) Viewport(req models.ViewportRequest) (viewport.State, error) {
	state := viewport.Initial()
	if req.State != nil {
		state = viewport.Sanitize(*req.State, uc.opts.Viewport)
	}
	events := make([]viewport.Event, 0, len(req.Events))
	for _, we := range req.Events {
		ev, err := we.ToEvent()
		if err != nil {
			return state, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		events = append(events, ev)
	}
	return viewport.ReduceAll(state, uc.opts.Viewport, events...), nil
}

// Hit resolves a tap against placed markers and driver lines.
func (uc *ChartUseCase) Hit(req models.HitRequest) models.HitResponse {
	radius := req.Radius
	if radius <= 0 {
		radius = uc.opts.HitRadius
	}
	h, ok := annotation.HitTest(req.Markers, req.Lines, req.X, req.Y, radius)
	if !ok {
		return models.HitResponse{}
	}
	return models.HitResponse{Hit: true, Match: &h}
}

// SymbolChart returns the encoded chart for a stored symbol. Bodies are
// cached for ResponseTTL; cached reports whether this one was.
func (uc *ChartUseCase) SymbolChart(ctx context.Context, req models.SymbolChartRequest) (body []byte, cached bool, err error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, false, fmt.Errorf("%w: symbol required", ErrInvalidRequest)
	}
	rng := domrepo.NormalizeRange(req.Range)
	key := fmt.Sprintf("chart:%s:%s:b%t:c%g:%gx%g+%g", symbol, rng, !req.NoBenchmark, req.CostBasis, req.Width, req.Height, req.Margin)

	fill := func(ctx context.Context) ([]byte, error) {
		sc, err := uc.build(ctx, symbol, rng, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sc)
	}
	if uc.cache == nil || uc.opts.ResponseTTL <= 0 {
		b, err := fill(ctx)
		return b, false, err
	}
	return cache.Remember(ctx, uc.cache, key, uc.opts.ResponseTTL, fill)
}

func (uc *ChartUseCase) build(ctx context.Context, symbol string, rng domrepo.Range, req models.SymbolChartRequest) (*SymbolChart, error) {
	bench := uc.opts.Benchmark
	if req.NoBenchmark || strings.EqualFold(bench, symbol) {
		bench = ""
	}
	pts, benchPts, errs, err := uc.fetch(ctx, symbol, bench, rng)
	if err != nil {
		return nil, err
	}

	in := analytics.Input{Points: pts, Benchmark: benchPts, Label: symbol}
	if req.CostBasis > 0 {
		cb := req.CostBasis
		in.CostBasis = &cb
	}
	a, err := uc.engine.Analyze(ctx, in)
	if err != nil {
		return nil, err
	}

	sc := &SymbolChart{Symbol: symbol, Range: rng, Analysis: a, Errors: errs}
	if a.Benchmark != nil {
		sc.Benchmark = bench
	}
	if req.Width > 0 && req.Height > 0 {
		g := uc.projector.Project(a, transform.Layout{Width: req.Width, Height: req.Height, Margin: req.Margin}, transform.Identity, analytics.Annotations{})
		sc.Geometry = &g
	}
	return sc, nil
}

// fetch loads the symbol and its benchmark concurrently. A failed
// benchmark is reported in errs and does not fail the chart.
func (uc *ChartUseCase) fetch(ctx context.Context, symbol, bench string, rng domrepo.Range) (pts, benchPts []series.PricePoint, errs map[string]string, err error) {
	ctx, cancel := context.WithTimeout(ctx, uc.opts.Timeout)
	defer cancel()
	from, to := rng.Window(uc.now())

	type item struct {
		name string
		pts  []series.PricePoint
		err  error
	}
	ch := make(chan item, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.store.GetSeries(ctx, symbol, from, to, rng.Bucket())
		ch <- item{"series", v, err}
	}()
	if bench != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := uc.store.GetSeries(ctx, bench, from, to, rng.Bucket())
			ch <- item{"benchmark", v, err}
		}()
	}

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		switch it.name {
		case "series":
			pts, err = it.pts, it.err
		case "benchmark":
			if it.err != nil {
				uc.log.Warn("benchmark unavailable", logger.String("benchmark", bench), logger.Error(it.err))
				errs = map[string]string{"benchmark": it.err.Error()}
				continue
			}
			benchPts = it.pts
		}
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("series %s: %w", symbol, err)
	}
	return pts, benchPts, errs, nil
}

// Warm computes and memoizes the analysis for symbol over rng so the next
// chart request skips classification.
func (uc *ChartUseCase) Warm(ctx context.Context, symbol string, rng domrepo.Range) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	_, err := uc.build(ctx, symbol, rng, models.SymbolChartRequest{Symbol: symbol})
	return err
}
