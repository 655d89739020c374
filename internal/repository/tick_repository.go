package repository

import (
	"context"
	"fmt"
	"strings"

	"PriceLens/internal/domain/models"
	"PriceLens/internal/domain/repository"
	pkgch "PriceLens/pkg/clickhouse"
	pkgkafka "PriceLens/pkg/kafka"
)

// TicksTable is the raw tick table inside the configured database.
const TicksTable = "rt_ticks_raw"

const insertChunk = 2000

// Schema returns the idempotent DDL for database.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    ts       DateTime64(3, 'UTC'),
    symbol   LowCardinality(String),
    price    Float64,
    volume   Float64,
    source   LowCardinality(String),
    event_id String,
    seq      UInt64
) ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (symbol, ts, event_id)`, database, TicksTable),
	}
}

// ClickHouseStorage implements Storage for ClickHouse.
type ClickHouseStorage struct {
	client *pkgch.Client
	table  string
}

var _ repository.Storage = (*ClickHouseStorage)(nil)

// NewClickHouseStorage creates ClickHouse storage writing to
// <database>.rt_ticks_raw.
func NewClickHouseStorage(client *pkgch.Client) *ClickHouseStorage {
	return &ClickHouseStorage{client: client, table: client.Database() + "." + TicksTable}
}

// Init creates the database and tick table when missing.
func (s *ClickHouseStorage) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, Schema(s.client.Database()))
}

// StoreBatch inserts ticks with multi-row VALUES statements. Ticks without
// a symbol or timestamp are skipped.
func (s *ClickHouseStorage) StoreBatch(ctx context.Context, ticks []*models.Tick) error {
	for start := 0; start < len(ticks); start += insertChunk {
		end := min(start+insertChunk, len(ticks))
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, t := range ticks[start:end] {
			if t == nil || t.Symbol == "" || t.Timestamp <= 0 {
				continue
			}
			eventID := t.EventID
			if eventID == "" {
				eventID = fmt.Sprintf("%s-%d", t.Symbol, t.Timestamp)
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, t.Time(), t.Symbol, t.Price, t.Volume, t.Source, eventID, t.Seq)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, price, volume, source, event_id, seq) VALUES %s",
			s.table, strings.Join(values, ", "))
		if _, err := s.client.DB().ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert ticks: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close is a no-op; the pool belongs to the client owner.
func (s *ClickHouseStorage) Close() error { return nil }

// KafkaPublisher implements Publisher for Kafka. Ticks are keyed by symbol
// so one symbol stays ordered within a partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ repository.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, t *models.Tick) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Symbol), t)
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, ticks []*models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(ticks))
	for i, t := range ticks {
		msgs[i] = pkgkafka.Message{Key: []byte(t.Symbol), Value: t}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared and closed by its owner.
func (p *KafkaPublisher) Close() error { return nil }
