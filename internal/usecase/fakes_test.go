package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"PriceLens/internal/chart/series"
	"PriceLens/internal/domain/models"
	domrepo "PriceLens/internal/domain/repository"
)

type fakeMetrics struct {
	mu     sync.Mutex
	sent   map[string]int
	errors map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{sent: map[string]int{}, errors: map[string]int{}}
}

func (m *fakeMetrics) RecordMessageSent(backend, symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[backend+":"+symbol]++
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordLastPrice(string, float64) {}
func (m *fakeMetrics) RecordLatency(string, float64)   {}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type fakeStorage struct {
	mu     sync.Mutex
	ticks  []*models.Tick
	err    error
	closed bool
}

func (s *fakeStorage) Init(context.Context) error   { return nil }
func (s *fakeStorage) Health(context.Context) error { return nil }

func (s *fakeStorage) StoreBatch(_ context.Context, ticks []*models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.ticks = append(s.ticks, ticks...)
	return nil
}

func (s *fakeStorage) Close() error {
	s.closed = true
	return nil
}

func (s *fakeStorage) stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

type fakePublisher struct {
	batches [][]*models.Tick
}

func (p *fakePublisher) Publish(ctx context.Context, t *models.Tick) error {
	return p.PublishBatch(ctx, []*models.Tick{t})
}

func (p *fakePublisher) PublishBatch(_ context.Context, ticks []*models.Tick) error {
	p.batches = append(p.batches, ticks)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

// fakeSeriesStore serves fixed series per symbol and counts calls.
type fakeSeriesStore struct {
	mu    sync.Mutex
	data  map[string][]series.PricePoint
	errs  map[string]error
	calls map[string]int
}

func (s *fakeSeriesStore) GetSeries(_ context.Context, symbol string, _, _ time.Time, _ time.Duration) ([]series.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[symbol]++
	if err := s.errs[symbol]; err != nil {
		return nil, err
	}
	pts, ok := s.data[symbol]
	if !ok {
		return nil, domrepo.ErrNoSeries
	}
	return pts, nil
}

func (s *fakeSeriesStore) callCount(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[symbol]
}

var errDown = errors.New("store down")
