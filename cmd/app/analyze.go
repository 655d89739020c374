package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"PriceLens/internal/chart/series"
	"PriceLens/internal/services/analytics"
	"PriceLens/pkg/config"
	"PriceLens/pkg/util"
)

var (
	analyzeFile      string
	analyzeBenchmark string
	analyzeCostBasis float64
	analyzeFormat    string
	analyzeConfig    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a price series file offline",
	Long: `Run regime classification and forecast bands on a CSV or JSON file.

CSV files hold "time,price" rows (a header row is optional). JSON files hold
an array of {"time": ..., "price": ...} objects. Times may be RFC3339, a
date, or unix seconds/milliseconds.

Example usage:
  pricelens analyze --file aapl.csv
  pricelens analyze --file aapl.json --benchmark spy.csv --cost-basis 150
  pricelens analyze --file aapl.csv --format=table`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "price series file (.csv or .json)")
	analyzeCmd.Flags().StringVar(&analyzeBenchmark, "benchmark", "", "optional benchmark series file")
	analyzeCmd.Flags().Float64Var(&analyzeCostBasis, "cost-basis", 0, "optional cost basis price")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "output format: json, table")
	analyzeCmd.Flags().StringVar(&analyzeConfig, "config", "", "config file with chart thresholds")
	_ = analyzeCmd.MarkFlagRequired("file")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if analyzeConfig != "" {
		var err error
		if cfg, err = config.Load(analyzeConfig); err != nil {
			return err
		}
	}

	pts, err := loadSeriesFile(analyzeFile)
	if err != nil {
		return err
	}
	in := analytics.Input{Points: pts, Label: filepath.Base(analyzeFile)}
	if analyzeBenchmark != "" {
		if in.Benchmark, err = loadSeriesFile(analyzeBenchmark); err != nil {
			return err
		}
	}
	if analyzeCostBasis > 0 {
		in.CostBasis = &analyzeCostBasis
	}

	engine := analytics.NewEngine(
		analytics.NewRegimeDetector(cfg.Chart.Regime),
		analytics.NewBandForecaster(cfg.Chart.Forecast),
		analytics.WithVolWindow(cfg.Chart.Regime.VolWindow),
	)
	defer engine.Close()

	a, err := engine.Analyze(context.Background(), in)
	if err != nil {
		return err
	}
	return writeAnalysis(cmd.OutOrStdout(), a, analyzeFormat)
}

func writeAnalysis(w io.Writer, a *analytics.Analysis, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	case "table":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	s := a.Summary
	fmt.Fprintf(w, "points %d (dropped %d)  %s .. %s  spacing %s\n",
		s.Points, s.Dropped, s.From.Format(time.RFC3339), s.To.Format(time.RFC3339), s.Spacing)
	fmt.Fprintf(w, "first %.4f  last %.4f  change %+.2f%%  vol %.2f%%\n\n",
		s.First, s.Last, s.ChangePct, s.RealizedVol*100)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REGIME\tFROM\tTO\tBARS")
	for _, seg := range a.Regimes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", seg.Kind,
			a.Series.Points[seg.StartIndex-1].Time.Format(time.RFC3339),
			a.Series.Points[seg.EndIndex].Time.Format(time.RFC3339),
			seg.EndIndex-seg.StartIndex+1)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if n := len(a.Bands.Outer.Upper); n > 0 {
		last := n - 1
		fmt.Fprintf(w, "\nforecast %d steps to %s: 80%% [%.4f, %.4f]  50%% [%.4f, %.4f]\n", n,
			a.Bands.Outer.Upper[last].Time.Format(time.RFC3339),
			a.Bands.Outer.Lower[last].Price, a.Bands.Outer.Upper[last].Price,
			a.Bands.Inner.Lower[last].Price, a.Bands.Inner.Upper[last].Price)
	}
	return nil
}

// loadSeriesFile reads a CSV or JSON series. Rows that fail to parse are
// kept as invalid points so preparation counts them as dropped.
func loadSeriesFile(path string) ([]series.PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return decodeJSONSeries(f)
	case ".csv", ".txt":
		return decodeCSVSeries(f)
	}
	return nil, fmt.Errorf("unsupported series file %q", path)
}

func decodeJSONSeries(r io.Reader) ([]series.PricePoint, error) {
	var rows []struct {
		Time  json.RawMessage `json:"time"`
		Price float64         `json:"price"`
	}
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}
	pts := make([]series.PricePoint, len(rows))
	for i, row := range rows {
		raw := strings.Trim(string(row.Time), `"`)
		t, _ := util.ParseTime(raw)
		pts[i] = series.PricePoint{Time: t, Price: row.Price}
	}
	return pts, nil
}

func decodeCSVSeries(r io.Reader) ([]series.PricePoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var pts []series.PricePoint
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read series: %w", err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: want time,price", line)
		}
		t, tok := util.ParseTime(rec[0])
		p, perr := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if line == 1 && !tok && perr != nil {
			continue
		}
		pts = append(pts, series.PricePoint{Time: t, Price: p})
	}
	return pts, nil
}
