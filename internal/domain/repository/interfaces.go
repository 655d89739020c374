package repository

import (
	"context"
	"errors"
	"time"

	"PriceLens/internal/chart/series"
	"PriceLens/internal/domain/models"
)

// ErrNoSeries is returned when a store has no samples for the request.
var ErrNoSeries = errors.New("no series data")

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Publisher interface {
	Publish(ctx context.Context, t *models.Tick) error
	PublishBatch(ctx context.Context, ticks []*models.Tick) error
	Close() error
}

// Storage persists raw ticks.
type Storage interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, ticks []*models.Tick) error
	Health(ctx context.Context) error
	Close() error
}

// SeriesStore serves downsampled close prices for charting.
type SeriesStore interface {
	GetSeries(ctx context.Context, symbol string, from, to time.Time, bucket time.Duration) ([]series.PricePoint, error)
}

type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
