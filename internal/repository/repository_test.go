package repository

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceLens/internal/chart/series"
	"PriceLens/internal/domain/models"
	domrepo "PriceLens/internal/domain/repository"
	pkgch "PriceLens/pkg/clickhouse"
)

var t0 = time.Date(2024, 4, 1, 14, 30, 0, 0, time.UTC)

func newMock(t *testing.T) (*pkgch.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return pkgch.NewClientWithDB(db, "pricelens"), mock
}

func TestStoreBatchSkipsInvalidTicks(t *testing.T) {
	client, mock := newMock(t)
	s := NewClickHouseStorage(client)

	ticks := []*models.Tick{
		{Symbol: "AAPL", Timestamp: t0.UnixMilli(), Price: 189.1, Volume: 5, Source: "finnhub", Seq: 1},
		nil,
		{Symbol: "", Timestamp: t0.UnixMilli()},
		{Symbol: "MSFT", Timestamp: t0.UnixMilli(), Price: 410, EventID: "e-2"},
	}
	mock.ExpectExec(`INSERT INTO pricelens\.rt_ticks_raw \(ts, symbol, price, volume, source, event_id, seq\) VALUES \(\?, \?, \?, \?, \?, \?, \?\), \(\?, \?, \?, \?, \?, \?, \?\)`).
		WithArgs(t0, "AAPL", 189.1, 5.0, "finnhub", "AAPL-"+strconv.FormatInt(t0.UnixMilli(), 10), uint64(1),
			t0, "MSFT", 410.0, 0.0, "", "e-2", uint64(0)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, s.StoreBatch(context.Background(), ticks))
	require.NoError(t, s.StoreBatch(context.Background(), []*models.Tick{nil}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitCreatesSchema(t *testing.T) {
	client, mock := newMock(t)
	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS pricelens").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS pricelens.rt_ticks_raw").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, NewClickHouseStorage(client).Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSeries(t *testing.T) {
	client, mock := newMock(t)
	store := NewCHSeriesStore(client, 500, nil)
	from, to := t0.Add(-24*time.Hour), t0

	rows := sqlmock.NewRows([]string{"bucket", "close"}).
		AddRow(t0.Add(-2*time.Hour), 100.5).
		AddRow(t0.Add(-time.Hour), 101.25)
	mock.ExpectQuery(`toStartOfInterval\(ts, INTERVAL 3600 SECOND\).*FROM pricelens\.rt_ticks_raw`).
		WithArgs("AAPL", from, to, 500).
		WillReturnRows(rows)

	pts, err := store.GetSeries(context.Background(), "AAPL", from, to, time.Hour)
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, 101.25, pts[1].Price)

	mock.ExpectQuery("toStartOfInterval").WillReturnRows(sqlmock.NewRows([]string{"bucket", "close"}))
	_, err = store.GetSeries(context.Background(), "NONE", from, to, time.Hour)
	assert.ErrorIs(t, err, domrepo.ErrNoSeries)

	mock.ExpectQuery("toStartOfInterval").WillReturnError(errors.New("connection refused"))
	_, err = store.GetSeries(context.Background(), "AAPL", from, to, time.Hour)
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

type stubStore struct {
	pts   []series.PricePoint
	err   error
	calls int
}

func (s *stubStore) GetSeries(context.Context, string, time.Time, time.Time, time.Duration) ([]series.PricePoint, error) {
	s.calls++
	return s.pts, s.err
}

func TestResilientStoreFallsBack(t *testing.T) {
	good := []series.PricePoint{{Time: t0, Price: 1}}
	primary := &stubStore{err: errors.New("down")}
	fallback := &stubStore{pts: good}
	rs := NewResilientSeriesStore(primary, fallback, BreakerSettings{FailureThreshold: 2, Timeout: time.Hour}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		pts, err := rs.GetSeries(ctx, "AAPL", t0, t0, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, good, pts)
	}
	// the breaker opened after two failures, so the third call skipped primary
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, 3, fallback.calls)
	assert.Equal(t, gobreaker.StateOpen, rs.State())
}

func TestResilientStoreEmptyPrimaryIsHealthy(t *testing.T) {
	primary := &stubStore{err: domrepo.ErrNoSeries}
	fallback := &stubStore{err: domrepo.ErrNoSeries}
	rs := NewResilientSeriesStore(primary, fallback, BreakerSettings{FailureThreshold: 1}, nil)

	for i := 0; i < 2; i++ {
		_, err := rs.GetSeries(context.Background(), "ZZZ", t0, t0, time.Hour)
		assert.ErrorIs(t, err, domrepo.ErrNoSeries)
	}
	assert.Equal(t, gobreaker.StateClosed, rs.State())
	assert.Equal(t, 2, primary.calls)

	rs = NewResilientSeriesStore(&stubStore{err: errors.New("down")}, nil, BreakerSettings{}, nil)
	_, err := rs.GetSeries(context.Background(), "AAPL", t0, t0, time.Hour)
	assert.EqualError(t, err, "down")
}
