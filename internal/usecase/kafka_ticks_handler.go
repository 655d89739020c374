package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PriceLens/internal/domain/models"
	domrepo "PriceLens/internal/domain/repository"
	pkgkafka "PriceLens/pkg/kafka"
)

// KafkaTicksHandler consumes tick messages and writes them to storage.
type KafkaTicksHandler struct {
	topic    string
	storage  domrepo.Storage
	metrics  domrepo.Metrics
	onStored func(ctx context.Context, symbols []string)
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)

func NewKafkaTicksHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, storage: storage, metrics: metrics}
}

// OnStored registers a callback for each stored symbol.
func (h *KafkaTicksHandler) OnStored(fn func(ctx context.Context, symbols []string)) {
	h.onStored = fn
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// DecodeTick parses the topic schema {symbol, t, c, v}. Timestamps below
// 1e11 are taken as seconds.
func DecodeTick(b []byte) (*models.Tick, error) {
	var t models.Tick
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	if t.Symbol == "" || t.Timestamp <= 0 || t.Price <= 0 {
		return nil, fmt.Errorf("incomplete tick %q", b)
	}
	if t.Timestamp < 1e11 {
		t.Timestamp *= 1000
	}
	if t.Source == "" {
		t.Source = "kafka"
	}
	return &t, nil
}

// Handle stores one tick. Malformed payloads are permanent failures so the
// consumer dead-letters them instead of retrying.
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	t, err := DecodeTick(b)
	if err != nil {
		h.metrics.RecordError("consumer_decode")
		return fmt.Errorf("%w: %v", pkgkafka.ErrPermanent, err)
	}
	h.metrics.RecordLatency("ingest_e2e", time.Since(t.Time()).Seconds())

	start := time.Now()
	err = h.storage.StoreBatch(ctx, []*models.Tick{t})
	h.metrics.RecordLatency("ch_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", t.Symbol)
	if h.onStored != nil {
		h.onStored(ctx, []string{t.Symbol})
	}
	return nil
}
