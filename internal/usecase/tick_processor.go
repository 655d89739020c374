package usecase

import (
	"context"
	"fmt"
	"time"

	"PriceLens/internal/domain/models"
	drepo "PriceLens/internal/domain/repository"
)

// Backends a TickProcessor can route to.
const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// TickProcessor routes tick batches to the configured backend.
type TickProcessor struct {
	pub      drepo.Publisher
	store    drepo.Storage
	metrics  drepo.Metrics
	backend  string
	onStored func(ctx context.Context, symbols []string)
}

// NewTickProcessor creates a new TickProcessor instance.
func NewTickProcessor(pub drepo.Publisher, store drepo.Storage, metrics drepo.Metrics, backend string) *TickProcessor {
	return &TickProcessor{pub: pub, store: store, metrics: metrics, backend: backend}
}

// OnStored registers a callback receiving the distinct symbols of every
// successfully routed batch.
func (p *TickProcessor) OnStored(fn func(ctx context.Context, symbols []string)) {
	p.onStored = fn
}

// ProcessBatch processes multiple ticks in a batch.
func (p *TickProcessor) ProcessBatch(ctx context.Context, ticks []*models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	start := time.Now()
	var err error
	switch p.backend {
	case BackendKafka:
		if p.pub == nil {
			return fmt.Errorf("kafka backend has no publisher")
		}
		err = p.pub.PublishBatch(ctx, ticks)
	case BackendClickHouse:
		if p.store == nil {
			return fmt.Errorf("clickhouse backend has no storage")
		}
		err = p.store.StoreBatch(ctx, ticks)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	seen := make(map[string]struct{}, 4)
	symbols := make([]string, 0, 4)
	for _, t := range ticks {
		p.metrics.RecordMessageSent(p.backend, t.Symbol)
		if _, ok := seen[t.Symbol]; !ok {
			seen[t.Symbol] = struct{}{}
			symbols = append(symbols, t.Symbol)
		}
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	if p.onStored != nil {
		p.onStored(ctx, symbols)
	}
	return nil
}

// Close closes underlying resources if available.
func (p *TickProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
