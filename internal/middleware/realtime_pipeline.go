package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"PriceLens/internal/domain/models"
	domrepo "PriceLens/internal/domain/repository"
	"PriceLens/pkg/logger"
)

// BatchProc is the downstream the pipeline flushes into.
type BatchProc interface {
	ProcessBatch(ctx context.Context, ticks []*models.Tick) error
}

// RealtimePipeline sits between a market stream and storage. It validates
// and throttles ticks per symbol, then flushes them in batches by size or
// age. Failed batches are retried with backoff and dropped once the buffer
// cap is reached.
type RealtimePipeline struct {
	proc      BatchProc
	metrics   domrepo.Metrics
	log       *logger.Logger
	maxRPS    int
	batchSize int
	flushAge  time.Duration
	maxBuffer int
	transform func(*models.Tick) *models.Tick

	in       chan *models.Tick
	stopCh   chan struct{}
	done     chan struct{}
	mu       sync.Mutex
	started  bool
	lastSeen map[string]time.Time
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS caps accepted ticks per second per symbol. Zero disables it.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) { p.maxRPS = n }
}

// WithBatch sets the flush size and the maximum age of a pending batch.
func WithBatch(size int, age time.Duration) PipelineOption {
	return func(p *RealtimePipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if age > 0 {
			p.flushAge = age
		}
	}
}

// WithBufferSize caps how many ticks wait for a failing downstream.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.maxBuffer = n
		}
	}
}

// WithTransform sets a hook that rewrites ticks before validation.
func WithTransform(fn func(*models.Tick) *models.Tick) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *RealtimePipeline) { p.log = l }
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc BatchProc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:      proc,
		metrics:   metrics,
		log:       logger.Nop(),
		maxRPS:    20,
		batchSize: 500,
		flushAge:  time.Second,
		maxBuffer: 10000,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		lastSeen:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.in = make(chan *models.Tick, p.batchSize*2)
	return p
}

// Start launches the batching loop. Calling it twice is a no-op.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	go p.loop(ctx)
}

// Stop flushes what is pending and waits for the loop to exit.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.done
}

// Process validates and throttles t and queues it for the next batch.
// Throttled ticks are dropped without error.
func (p *RealtimePipeline) Process(ctx context.Context, t *models.Tick) error {
	if p.transform != nil && t != nil {
		t = p.transform(t)
	}
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(t.Symbol, time.UnixMilli(t.Timestamp)) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}
	select {
	case p.in <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return errors.New("pipeline stopped")
	}
}

func (p *RealtimePipeline) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.flushAge)
	defer ticker.Stop()

	var pending []*models.Tick
	backoff := time.Duration(0)
	var retryAt time.Time

	flush := func(force bool) {
		if len(pending) == 0 || (!force && time.Now().Before(retryAt)) {
			return
		}
		start := time.Now()
		if err := p.proc.ProcessBatch(ctx, pending); err != nil {
			p.metrics.RecordError("pipeline_flush")
			backoff = min(max(2*backoff, 50*time.Millisecond), 5*time.Second)
			retryAt = time.Now().Add(backoff)
			if over := len(pending) - p.maxBuffer; over > 0 {
				pending = pending[over:]
				p.metrics.RecordError("pipeline_buffer_drop")
				p.log.Warn("pipeline buffer full, dropping oldest", logger.Int("dropped", over))
			}
			p.log.Debug("pipeline flush failed", logger.Int("pending", len(pending)), logger.Error(err))
			return
		}
		p.metrics.RecordLatency("pipeline_flush", time.Since(start).Seconds())
		pending = pending[:0]
		backoff = 0
		retryAt = time.Time{}
	}

	for {
		select {
		case <-p.stopCh:
			for {
				select {
				case t := <-p.in:
					pending = append(pending, t)
				default:
					flush(true)
					return
				}
			}
		case <-ctx.Done():
			return
		case t := <-p.in:
			pending = append(pending, t)
			if len(pending) >= p.batchSize {
				flush(false)
			}
		case <-ticker.C:
			flush(false)
		}
	}
}

func validateTick(t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick nil")
	}
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0 {
		return fmt.Errorf("price invalid: %v", t.Price)
	}
	if t.Volume < 0 {
		return fmt.Errorf("negative volume")
	}
	return nil
}

// allow admits at most maxRPS ticks per second of event time per symbol.
func (p *RealtimePipeline) allow(symbol string, at time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[symbol]
	if ok && at.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = at
	return true
}
