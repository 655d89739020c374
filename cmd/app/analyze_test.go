package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceLens/internal/chart/forecast"
	"PriceLens/internal/chart/regime"
	"PriceLens/internal/chart/series"
	"PriceLens/internal/services/analytics"
)

func TestDecodeCSVSeries(t *testing.T) {
	pts, err := decodeCSVSeries(strings.NewReader("time,price\n2024-01-02,10.5\n1704240000,11\nbad,12\n2024-01-05,x\n"))
	require.NoError(t, err)
	require.Len(t, pts, 4)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), pts[0].Time)
	assert.Equal(t, 11.0, pts[1].Price)

	p := series.Prepare(pts)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, 2, p.Dropped)

	_, err = decodeCSVSeries(strings.NewReader("2024-01-02\n"))
	assert.Error(t, err)
}

func TestDecodeJSONSeries(t *testing.T) {
	pts, err := decodeJSONSeries(strings.NewReader(`[{"time":"2024-01-02T00:00:00Z","price":3},{"time":1704240000000,"price":4}]`))
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, int64(1704240000), pts[1].Time.Unix())

	_, err = decodeJSONSeries(strings.NewReader(`{"time":1}`))
	assert.Error(t, err)
}

func TestLoadSeriesFileByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.csv")
	require.NoError(t, os.WriteFile(path, []byte("2024-01-02,1\n2024-01-03,2\n"), 0o600))
	pts, err := loadSeriesFile(path)
	require.NoError(t, err)
	assert.Len(t, pts, 2)

	_, err = loadSeriesFile(filepath.Join(dir, "s.xlsx"))
	assert.Error(t, err)
}

func TestWriteAnalysisTable(t *testing.T) {
	pts := make([]series.PricePoint, 60)
	p := 100.0
	for i := range pts {
		p *= math.Exp(0.02 * math.Sin(float64(i)))
		pts[i] = series.PricePoint{Time: time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC), Price: p}
	}
	e := analytics.NewEngine(analytics.NewRegimeDetector(regime.DefaultParams()), analytics.NewBandForecaster(forecast.DefaultParams()))
	defer e.Close()
	a, err := e.Analyze(context.Background(), analytics.Input{Points: pts})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeAnalysis(&buf, a, "table"))
	out := buf.String()
	assert.Contains(t, out, "points 60 (dropped 0)")
	assert.Contains(t, out, "REGIME")
	assert.Contains(t, out, "forecast 12 steps")

	buf.Reset()
	require.NoError(t, writeAnalysis(&buf, a, "json"))
	assert.Contains(t, buf.String(), `"regimes"`)

	assert.Error(t, writeAnalysis(&buf, a, "xml"))
}
