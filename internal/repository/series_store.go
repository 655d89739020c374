package repository

import (
	"context"
	"fmt"
	"time"

	"PriceLens/internal/chart/series"
	domrepo "PriceLens/internal/domain/repository"
	pkgch "PriceLens/pkg/clickhouse"
	"PriceLens/pkg/logger"
)

// CHSeriesStore downsamples raw ticks into bucket closes.
type CHSeriesStore struct {
	client    *pkgch.Client
	table     string
	maxPoints int
	log       *logger.Logger
}

var _ domrepo.SeriesStore = (*CHSeriesStore)(nil)

func NewCHSeriesStore(client *pkgch.Client, maxPoints int, log *logger.Logger) *CHSeriesStore {
	if log == nil {
		log = logger.Nop()
	}
	return &CHSeriesStore{
		client:    client,
		table:     client.Database() + "." + TicksTable,
		maxPoints: maxPoints,
		log:       log.With(logger.String("component", "ch_series_store")),
	}
}

const seriesQuery = `
        SELECT toStartOfInterval(ts, INTERVAL %d SECOND) AS bucket, argMax(price, ts) AS close
        FROM %s
        WHERE symbol = ? AND ts >= ? AND ts < ?
        GROUP BY bucket
        ORDER BY bucket ASC
        LIMIT ?
    `

// GetSeries returns one close per bucket in [from, to), oldest first.
func (s *CHSeriesStore) GetSeries(ctx context.Context, symbol string, from, to time.Time, bucket time.Duration) ([]series.PricePoint, error) {
	start := time.Now()
	secs := int64(bucket / time.Second)
	if secs < 1 {
		secs = 1
	}
	q := fmt.Sprintf(seriesQuery, secs, s.table)
	rows, err := s.client.DB().QueryContext(ctx, q, symbol, from.UTC(), to.UTC(), s.maxPoints)
	if err != nil {
		s.log.Error("series query failed", logger.String("symbol", symbol), logger.Error(err))
		return nil, fmt.Errorf("get series: %w", err)
	}
	defer rows.Close()

	out := make([]series.PricePoint, 0, 256)
	for rows.Next() {
		var pt series.PricePoint
		if err := rows.Scan(&pt.Time, &pt.Price); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		pt.Time = pt.Time.UTC()
		out = append(out, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(out) == 0 {
		return nil, domrepo.ErrNoSeries
	}
	s.log.Debug("series loaded",
		logger.String("symbol", symbol),
		logger.Duration("bucket", bucket),
		logger.Int("rows", len(out)),
		logger.Duration("took", time.Since(start)),
	)
	return out, nil
}
