package usecase

import (
	"context"
	"sync"
	"time"

	"PriceLens/internal/domain/models"
	drepo "PriceLens/internal/domain/repository"
	mid "PriceLens/internal/middleware"
	"PriceLens/pkg/logger"
)

// TickCollector pumps a market stream into the realtime pipeline and
// reconnects when the stream fails.
type TickCollector struct {
	stream  drepo.MarketStream
	pipe    *mid.RealtimePipeline
	metrics drepo.Metrics
	log     *logger.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewTickCollector creates a new TickCollector instance.
func NewTickCollector(stream drepo.MarketStream, pipe *mid.RealtimePipeline, metrics drepo.Metrics, log *logger.Logger) *TickCollector {
	if log == nil {
		log = logger.Nop()
	}
	return &TickCollector{stream: stream, pipe: pipe, metrics: metrics, log: log.With(logger.String("component", "collector"))}
}

// IsConnected returns true if the market stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and consumes in the background until ctx ends
// or Shutdown is called.
func (c *TickCollector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	if err := c.stream.Connect(ctx); err != nil {
		c.cancel()
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		c.cancel()
		return err
	}
	// Shutdown stops the pipeline itself so pending ticks get flushed.
	c.pipe.Start(context.WithoutCancel(ctx))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
	return nil
}

func (c *TickCollector) run(ctx context.Context) {
	for ctx.Err() == nil {
		ticks, errs := c.stream.Read(ctx)
		c.consume(ctx, ticks)
		if err := <-errs; err != nil && ctx.Err() == nil {
			c.metrics.RecordError("stream")
			c.log.Warn("stream failed, reconnecting", logger.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
		for ctx.Err() == nil {
			if err := c.stream.Reconnect(ctx); err != nil {
				c.metrics.RecordError("reconnect")
				c.log.Warn("reconnect failed", logger.Error(err))
				continue
			}
			break
		}
	}
}

func (c *TickCollector) consume(ctx context.Context, ticks <-chan *models.Tick) {
	for t := range ticks {
		if err := c.pipe.Process(ctx, t); err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		c.metrics.RecordLastPrice(t.Symbol, t.Price)
		if !t.Received.IsZero() {
			c.metrics.RecordLatency("stream_lag", time.Since(t.Time()).Seconds())
		}
	}
}

// Shutdown stops consumption, flushes the pipeline and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.stream.Close()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.pipe.Stop()
	return err
}
