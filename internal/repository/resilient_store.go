package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"PriceLens/internal/chart/series"
	domrepo "PriceLens/internal/domain/repository"
	"PriceLens/pkg/logger"
)

// BreakerSettings tunes the circuit breaker around the primary store.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// ResilientSeriesStore reads from primary behind a circuit breaker and
// falls back when the breaker is open, the primary fails or has no data.
type ResilientSeriesStore struct {
	primary  domrepo.SeriesStore
	fallback domrepo.SeriesStore
	cb       *gobreaker.CircuitBreaker
	log      *logger.Logger
}

var _ domrepo.SeriesStore = (*ResilientSeriesStore)(nil)

// NewResilientSeriesStore wraps primary. fallback may be nil.
func NewResilientSeriesStore(primary, fallback domrepo.SeriesStore, bs BreakerSettings, log *logger.Logger) *ResilientSeriesStore {
	if log == nil {
		log = logger.Nop()
	}
	threshold := bs.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "series-store",
		MaxRequests: bs.MaxRequests,
		Interval:    bs.Interval,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return &ResilientSeriesStore{primary: primary, fallback: fallback, cb: cb, log: log}
}

// State reports the breaker state.
func (s *ResilientSeriesStore) State() gobreaker.State { return s.cb.State() }

func (s *ResilientSeriesStore) GetSeries(ctx context.Context, symbol string, from, to time.Time, bucket time.Duration) ([]series.PricePoint, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		pts, err := s.primary.GetSeries(ctx, symbol, from, to, bucket)
		if errors.Is(err, domrepo.ErrNoSeries) {
			// an empty store is healthy
			return []series.PricePoint(nil), nil
		}
		return pts, err
	})
	if err == nil {
		if pts, _ := res.([]series.PricePoint); len(pts) > 0 {
			return pts, nil
		}
		err = domrepo.ErrNoSeries
	}
	if s.fallback == nil || ctx.Err() != nil {
		return nil, err
	}
	s.log.Debug("series fallback", logger.String("symbol", symbol), logger.Error(err))
	pts, ferr := s.fallback.GetSeries(ctx, symbol, from, to, bucket)
	if ferr != nil {
		return nil, fmt.Errorf("fallback after %v: %w", err, ferr)
	}
	return pts, nil
}
