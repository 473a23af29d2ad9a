package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/Sandy01030103/gold-price-etl/internal/extractor"
	"github.com/Sandy01030103/gold-price-etl/internal/storage"
)

var (
	goldColor   = drawing.Color{R: 212, G: 175, B: 55, A: 255}
	buyingColor = drawing.Color{R: 70, G: 130, B: 180, A: 255}
)

type trendSeries struct {
	name   string
	values []float64
	color  drawing.Color
}

type trendPlot struct {
	title  string
	yName  string
	width  int
	height int
	times  []time.Time
	series []trendSeries
}

// Chart plots the latest stored headline prices and returns the PNG path. An
// absent or empty store prints a message and returns an empty path.
func (a *App) Chart(ctx context.Context, opts ChartOptions) (string, error) {
	limit := a.Config.ResolveChartLimit(opts.Limit)

	store, closeStore, err := a.openHistory(ctx)
	switch {
	case errors.Is(err, errNoDatabase):
		fmt.Fprintf(a.Out, "database file not found at %q; run the ETL first to collect some data\n", a.Config.Database.Path)
		return "", nil
	case errors.Is(err, errNoTable):
		fmt.Fprintln(a.Out, "no data available to generate a chart")
		return "", nil
	case err != nil:
		return "", err
	}
	defer closeStore()

	records, err := store.ListRecent(ctx, limit)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no data available to generate a chart")
		return "", nil
	}
	reverse(records)

	path := opts.Output
	if path == "" {
		name := fmt.Sprintf("trend_chart_%s.png", a.now().Format("20060102_150405"))
		path = filepath.Join(a.Config.Chart.OutputDir, name)
	}

	plot := trendPlot{
		width:  a.Config.Chart.Width,
		height: a.Config.Chart.Height,
		times:  make([]time.Time, len(records)),
	}
	values := make([]float64, len(records))
	for i, rec := range records {
		plot.times[i] = rec.FetchTime
		values[i] = rec.Headline()
	}
	if store.Shape() == extractor.ShapeSingle {
		plot.title = "Gold Price Trend"
		plot.yName = "Price (TWD)"
		plot.series = []trendSeries{{name: "Price", values: values, color: goldColor}}
	} else {
		plot.title = "Gold Price Trend (Bank Selling Price)"
		plot.yName = "Bank Selling Price (TWD)"
		plot.series = []trendSeries{{name: "Bank Selling", values: values, color: goldColor}}
	}

	if err := renderTrend(path, plot); err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}

	a.Logger.Info().Str("path", path).Int("points", len(records)).Msg("trend chart written")
	fmt.Fprintf(a.Out, "trend chart saved to %q\n", path)
	return path, nil
}

// reverse flips newest-first rows into plotting order.
func reverse(records []storage.PriceRecord) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}

func renderTrend(path string, plot trendPlot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}

	graph := chart.Chart{
		Title:  plot.title,
		Width:  plot.width,
		Height: plot.height,
		XAxis: chart.XAxis{
			Name:           "Date and Time",
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04"),
		},
		YAxis: chart.YAxis{
			Name:           plot.yName,
			ValueFormatter: priceFormatter,
		},
	}

	minY, maxY := valueBounds(plot.series)
	if len(plot.times) > 0 && plot.times[0].Equal(plot.times[len(plot.times)-1]) {
		// a single timestamp has no x extent; pad it by an hour on each side
		center := float64(plot.times[0].UnixNano())
		pad := float64(time.Hour)
		graph.XAxis.Range = &chart.ContinuousRange{Min: center - pad, Max: center + pad}
	}
	if minY == maxY {
		graph.YAxis.Range = &chart.ContinuousRange{Min: minY - 1, Max: maxY + 1}
	}

	for _, s := range plot.series {
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name: s.name,
			Style: chart.Style{
				StrokeColor: s.color,
				StrokeWidth: 2,
				DotColor:    s.color,
				DotWidth:    4,
			},
			XValues: plot.times,
			YValues: s.values,
		})
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := graph.Render(chart.PNG, file); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}

func valueBounds(series []trendSeries) (float64, float64) {
	first := true
	var lo, hi float64
	for _, s := range series {
		for _, v := range s.values {
			if first {
				lo, hi = v, v
				first = false
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
