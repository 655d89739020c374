package series

import (
	"math"
	"sort"
)

// Prepare validates, orders and summarizes raw samples.
//
// Invalid samples (zero time, non-finite or non-positive price) are
// dropped and counted. The input slice is not modified. Reference levels
// such as a cost basis widen Bounds but not MinPrice/MaxPrice. With fewer
// than two valid points the result is empty: no returns, zero bounds
// unless a single point remains.
func Prepare(points []PricePoint, refs ...float64) Prepared {
	valid := make([]PricePoint, 0, len(points))
	for _, p := range points {
		if p.Valid() {
			valid = append(valid, p)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Time.Before(valid[j].Time) })

	out := Prepared{
		Points:  valid,
		Dropped: len(points) - len(valid),
	}
	if len(valid) == 0 {
		return out
	}

	out.MinTime = valid[0].Time
	out.MaxTime = valid[len(valid)-1].Time
	out.MinPrice, out.MaxPrice = valid[0].Price, valid[0].Price
	for _, p := range valid[1:] {
		out.MinPrice = math.Min(out.MinPrice, p.Price)
		out.MaxPrice = math.Max(out.MaxPrice, p.Price)
	}

	out.Bounds = Bounds{
		MinTime:  out.MinTime,
		MaxTime:  out.MaxTime,
		MinPrice: out.MinPrice,
		MaxPrice: out.MaxPrice,
	}
	for _, r := range refs {
		out.Bounds = out.Bounds.IncludePrice(r)
	}

	if len(valid) < 2 {
		return out
	}
	out.Returns = LogReturns(valid)
	return out
}

// LogReturns computes ln(p[i+1]/p[i]) for consecutive points. Callers are
// expected to pass validated points.
func LogReturns(points []PricePoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, len(points)-1)
	for i := 1; i < len(points); i++ {
		out[i-1] = math.Log(points[i].Price / points[i-1].Price)
	}
	return out
}

// MeanStdev returns the population mean and standard deviation of xs.
func MeanStdev(xs []float64) (mean, stdev float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}
