package repository

import (
	"strings"
	"time"
)

// Range is a chart lookback window selectable by the client.
type Range string

const (
	Range1D Range = "1D"
	Range1W Range = "1W"
	Range1M Range = "1M"
	Range3M Range = "3M"
	Range6M Range = "6M"
	Range1Y Range = "1Y"
)

// Ranges lists every supported range, shortest first.
var Ranges = []Range{Range1D, Range1W, Range1M, Range3M, Range6M, Range1Y}

// IsValidRange returns true if r is a supported range.
func IsValidRange(r Range) bool {
	switch r {
	case Range1D, Range1W, Range1M, Range3M, Range6M, Range1Y:
		return true
	default:
		return false
	}
}

// DefaultRange returns the default range.
func DefaultRange() Range { return Range1M }

// NormalizeRange converts raw input to a valid range (or the default).
func NormalizeRange(s string) Range {
	r := Range(strings.ToUpper(strings.TrimSpace(s)))
	if IsValidRange(r) {
		return r
	}
	return DefaultRange()
}

// Lookback is how far back the range reaches from now.
func (r Range) Lookback() time.Duration {
	const day = 24 * time.Hour
	switch r {
	case Range1D:
		return day
	case Range1W:
		return 7 * day
	case Range3M:
		return 91 * day
	case Range6M:
		return 182 * day
	case Range1Y:
		return 365 * day
	default:
		return 30 * day
	}
}

// Bucket is the sampling interval used to downsample stored ticks.
func (r Range) Bucket() time.Duration {
	switch r {
	case Range1D:
		return 5 * time.Minute
	case Range1W:
		return time.Hour
	case Range1M:
		return 4 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Window returns the [from, to) interval ending at now, aligned to the
// bucket size.
func (r Range) Window(now time.Time) (time.Time, time.Time) {
	b := r.Bucket()
	to := now.UTC().Truncate(b).Add(b)
	return to.Add(-r.Lookback()), to
}
