package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domrepo "PriceLens/internal/domain/repository"
	"PriceLens/pkg/logger"
	"PriceLens/pkg/queue"
)

// WarmMessageType is the queue message type of chart warm-ups.
const WarmMessageType = "chart.warm"

// WarmPayload names the chart to precompute.
type WarmPayload struct {
	Symbol string        `json:"symbol"`
	Range  domrepo.Range `json:"range"`
}

// Warmer is the part of ChartUseCase a WarmJob drives.
type Warmer interface {
	Warm(ctx context.Context, symbol string, rng domrepo.Range) error
}

// WarmJob precomputes analyses when new ticks land.
type WarmJob struct {
	warmer Warmer
	log    *logger.Logger
}

var _ queue.Job = (*WarmJob)(nil)

func NewWarmJob(w Warmer, log *logger.Logger) *WarmJob {
	if log == nil {
		log = logger.Nop()
	}
	return &WarmJob{warmer: w, log: log}
}

func (j *WarmJob) Name() string { return "chart-warm" }

func (j *WarmJob) Type() string { return WarmMessageType }

func (j *WarmJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.ParsePayload[WarmPayload](payload)
	if err != nil {
		return err
	}
	if p.Symbol == "" {
		return fmt.Errorf("warm payload without symbol")
	}
	rng := domrepo.NormalizeRange(string(p.Range))
	start := time.Now()
	if err := j.warmer.Warm(ctx, p.Symbol, rng); err != nil {
		return fmt.Errorf("warm %s %s: %w", p.Symbol, rng, err)
	}
	j.log.Debug("chart warmed",
		logger.String("symbol", p.Symbol),
		logger.String("range", string(rng)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// OnceEnqueuer enqueues a message at most once per dedupe window.
type OnceEnqueuer interface {
	EnqueueOnce(ctx context.Context, msgType, dedupe string, window time.Duration, payload interface{}) (bool, error)
}

// WarmScheduler turns store notifications into debounced warm jobs.
type WarmScheduler struct {
	q        OnceEnqueuer
	debounce time.Duration
	ranges   []domrepo.Range
	log      *logger.Logger
}

// NewWarmScheduler schedules warm-ups for ranges (the default range when
// empty), at most once per symbol and range every debounce.
func NewWarmScheduler(q OnceEnqueuer, debounce time.Duration, ranges []domrepo.Range, log *logger.Logger) *WarmScheduler {
	if len(ranges) == 0 {
		ranges = []domrepo.Range{domrepo.DefaultRange()}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WarmScheduler{q: q, debounce: debounce, ranges: ranges, log: log}
}

// Notify is called with the symbols of every stored batch.
func (s *WarmScheduler) Notify(ctx context.Context, symbols []string) {
	for _, sym := range symbols {
		for _, rng := range s.ranges {
			dedupe := sym + ":" + string(rng)
			if _, err := s.q.EnqueueOnce(ctx, WarmMessageType, dedupe, s.debounce, WarmPayload{Symbol: sym, Range: rng}); err != nil {
				s.log.Warn("enqueue warm failed", logger.String("symbol", sym), logger.Error(err))
			}
		}
	}
}
