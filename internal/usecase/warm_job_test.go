package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceLens/internal/chart/series"
	domrepo "PriceLens/internal/domain/repository"
)

type onceRecorder struct {
	seen  map[string]bool
	calls []WarmPayload
}

func (r *onceRecorder) EnqueueOnce(_ context.Context, msgType, dedupe string, _ time.Duration, payload interface{}) (bool, error) {
	if r.seen == nil {
		r.seen = map[string]bool{}
	}
	if r.seen[msgType+dedupe] {
		return false, nil
	}
	r.seen[msgType+dedupe] = true
	r.calls = append(r.calls, payload.(WarmPayload))
	return true, nil
}

func TestWarmSchedulerDebounces(t *testing.T) {
	q := &onceRecorder{}
	s := NewWarmScheduler(q, time.Second, []domrepo.Range{domrepo.Range1D, domrepo.Range1M}, nil)

	s.Notify(context.Background(), []string{"AAPL"})
	s.Notify(context.Background(), []string{"AAPL", "MSFT"})

	assert.Equal(t, []WarmPayload{
		{Symbol: "AAPL", Range: domrepo.Range1D},
		{Symbol: "AAPL", Range: domrepo.Range1M},
		{Symbol: "MSFT", Range: domrepo.Range1D},
		{Symbol: "MSFT", Range: domrepo.Range1M},
	}, q.calls)
}

func TestWarmJobPrimesAnalysis(t *testing.T) {
	store := &fakeSeriesStore{data: map[string][]series.PricePoint{
		"AAPL": walk(30, 180),
		"SPY":  walk(30, 500),
	}}
	uc := newChartUseCase(t, store, 0)
	job := NewWarmJob(uc, nil)
	assert.Equal(t, WarmMessageType, job.Type())

	payload, err := json.Marshal(WarmPayload{Symbol: "aapl", Range: "bogus"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), payload))
	assert.Equal(t, 1, store.callCount("AAPL"))

	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`{"range":"1M"}`)))
	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`{"symbol":"NOPE"}`)))
}
