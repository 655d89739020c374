package finnhub

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PriceLens/internal/chart/series"
	drepo "PriceLens/internal/domain/repository"
	apphttp "PriceLens/pkg/http"
)

// CandleClient reads historical closes from the Finnhub REST API. It
// serves as the SeriesStore of last resort when local storage is down.
type CandleClient struct {
	baseURL string
	apiKey  string
	http    *apphttp.Client
}

var _ drepo.SeriesStore = (*CandleClient)(nil)

func NewCandleClient(baseURL, apiKey string, client *apphttp.Client) *CandleClient {
	if client == nil {
		client = apphttp.NewClient()
	}
	return &CandleClient{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: client}
}

type candleResponse struct {
	Close []float64 `json:"c"`
	Time  []int64   `json:"t"`
	S     string    `json:"s"`
}

// Resolution maps a bucket onto the nearest Finnhub candle resolution not
// coarser than it.
func Resolution(bucket time.Duration) string {
	switch {
	case bucket >= 24*time.Hour:
		return "D"
	case bucket >= time.Hour:
		return "60"
	case bucket >= 30*time.Minute:
		return "30"
	case bucket >= 15*time.Minute:
		return "15"
	case bucket >= 5*time.Minute:
		return "5"
	default:
		return "1"
	}
}

// GetSeries implements SeriesStore.
func (c *CandleClient) GetSeries(ctx context.Context, symbol string, from, to time.Time, bucket time.Duration) ([]series.PricePoint, error) {
	var resp candleResponse
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method:  apphttp.MethodGet,
		URL:     c.baseURL + "/stock/candle",
		Headers: map[string]string{"X-Finnhub-Token": c.apiKey},
		QueryParams: map[string][]string{
			"symbol":     {symbol},
			"resolution": {Resolution(bucket)},
			"from":       {strconv.FormatInt(from.Unix(), 10)},
			"to":         {strconv.FormatInt(to.Unix(), 10)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("finnhub candles %s: %w", symbol, err)
	}
	if resp.S == "no_data" {
		return nil, drepo.ErrNoSeries
	}
	if resp.S != "ok" {
		return nil, fmt.Errorf("finnhub candles %s: status %q", symbol, resp.S)
	}
	if len(resp.Close) != len(resp.Time) {
		return nil, fmt.Errorf("finnhub candles %s: %d closes for %d timestamps", symbol, len(resp.Close), len(resp.Time))
	}
	out := make([]series.PricePoint, len(resp.Time))
	for i, ts := range resp.Time {
		out[i] = series.PricePoint{Time: time.Unix(ts, 0).UTC(), Price: resp.Close[i]}
	}
	return out, nil
}
