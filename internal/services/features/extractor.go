package features

import (
	"math"
	"time"

	"PriceLens/internal/chart/series"
)

const year = 365 * 24 * time.Hour

// RealizedVolatility computes annualized volatility of the last window
// log returns using the sample variance. Returns 0 when the window is not
// filled.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window || barsPerYear <= 0 {
		return 0
	}
	sum, sum2 := 0.0, 0.0
	for _, r := range logReturns[len(logReturns)-window:] {
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYear returns how many bars of the given spacing fit in a year.
func BarsPerYear(spacing time.Duration) float64 {
	if spacing <= 0 {
		return 0
	}
	return float64(year) / float64(spacing)
}

// Summary describes a prepared series at a glance.
type Summary struct {
	Points      int       `json:"points"`
	Dropped     int       `json:"dropped"`
	First       float64   `json:"first"`
	Last        float64   `json:"last"`
	Change      float64   `json:"change"`
	ChangePct   float64   `json:"changePct"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	RealizedVol float64   `json:"realizedVol"`
	Spacing     string    `json:"spacing"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
}

// Summarize computes headline statistics. spacing is the typical bar
// spacing used to annualize volatility over up to volWindow returns.
func Summarize(p series.Prepared, spacing time.Duration, volWindow int) Summary {
	s := Summary{Points: p.Len(), Dropped: p.Dropped, Spacing: spacing.String()}
	if p.Len() == 0 {
		return s
	}
	s.First, s.Last = p.First().Price, p.Last().Price
	s.Change = s.Last - s.First
	s.ChangePct = s.Change / s.First * 100
	s.High, s.Low = p.MaxPrice, p.MinPrice
	s.From, s.To = p.MinTime, p.MaxTime
	w := volWindow
	if len(p.Returns) < w {
		w = len(p.Returns)
	}
	s.RealizedVol = RealizedVolatility(p.Returns, w, BarsPerYear(spacing))
	return s
}
