package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type warmPayload struct {
	Symbol string `json:"symbol"`
}

type recordingJob struct {
	handled atomic.Int32
	last    atomic.Value
	err     error
}

func (j *recordingJob) Name() string { return "warm" }
func (j *recordingJob) Type() string { return "chart.warm" }

func (j *recordingJob) Handle(_ context.Context, payload json.RawMessage) error {
	p, err := ParsePayload[warmPayload](payload)
	if err != nil {
		return err
	}
	j.last.Store(p.Symbol)
	j.handled.Add(1)
	return j.err
}

func newQueue(t *testing.T, job *recordingJob, cfg *QueueConfig) (*RedisQueue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := NewRedisConsumer(nil, cfg, client, []Job{job}, WithKeyPrefix("test:queue"))
	return q, client
}

func TestQueueDeliversAndDedupes(t *testing.T) {
	job := &recordingJob{}
	q, _ := newQueue(t, job, &QueueConfig{Workers: 2})
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())

	ctx := context.Background()
	ok, err := q.EnqueueOnce(ctx, "chart.warm", "AAPL", time.Minute, warmPayload{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = q.EnqueueOnce(ctx, "chart.warm", "AAPL", time.Minute, warmPayload{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.False(t, ok)

	require.Eventually(t, func() bool { return job.handled.Load() == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "AAPL", job.last.Load())

	assert.Error(t, q.Enqueue(ctx, "unknown", nil))
}

func TestQueueRetriesThenDeadLetters(t *testing.T) {
	job := &recordingJob{err: errors.New("store down")}
	q, client := newQueue(t, job, &QueueConfig{RetryLimit: 1, RetryDelay: time.Millisecond})
	ctx := context.Background()

	msg := Message{ID: "m1", Type: "chart.warm", Payload: json.RawMessage(`{"symbol":"MSFT"}`)}
	q.processMessage(msg)
	n, err := client.ZCard(ctx, q.getRetryKey()).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	q.processRetryMessages()
	n, err = client.LLen(ctx, q.getQueueKey()).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	msg.Attempts = 1
	q.processMessage(msg)
	dead, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "m1", dead[0].ID)
	assert.EqualValues(t, 2, job.handled.Load())
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload[warmPayload](json.RawMessage(`{"symbol":"SPY"}`))
	require.NoError(t, err)
	assert.Equal(t, "SPY", p.Symbol)

	_, err = ParsePayload[warmPayload](nil)
	assert.Error(t, err)
	_, err = ParsePayload[warmPayload](json.RawMessage(`[`))
	assert.Error(t, err)
}
