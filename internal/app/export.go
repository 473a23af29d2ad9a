package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/Sandy01030103/gold-price-etl/internal/extractor"
	"github.com/Sandy01030103/gold-price-etl/internal/storage"
)

// Export renders stored readings as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openHistory(ctx)
	switch {
	case errors.Is(err, errNoDatabase):
		return fmt.Errorf("%w at %q; cannot export", errNoDatabase, a.Config.Database.Path)
	case errors.Is(err, errNoTable):
		a.Logger.Info().Msg("no readings found for export window")
		return nil
	case err != nil:
		return err
	}
	defer closeStore()

	interval := a.Config.Scheduler.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	to := a.now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	records, err := store.ListBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Msg("no readings found for export window")
		return nil
	}

	downsampled := downsampleRecords(records, opts.MaxPoints)
	a.Logger.Info().Int("total", len(records)).Int("exported", len(downsampled)).Msg("exporting readings")

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, store.Shape(), downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeRecordsPNG(opts.PNGPath, store.Shape(), downsampled, a.Config.Chart.Width, a.Config.Chart.Height); err != nil {
			return err
		}
	}

	return nil
}

func downsampleRecords(records []storage.PriceRecord, max int) []storage.PriceRecord {
	if max <= 0 || len(records) <= max {
		return records
	}
	if max == 1 {
		return records[len(records)-1:]
	}

	result := make([]storage.PriceRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeRecordsCSV(path string, shape extractor.Shape, records []storage.PriceRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeCSV(file, shape, records); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}

func writeCSV(w io.Writer, shape extractor.Shape, records []storage.PriceRecord) error {
	writer := csv.NewWriter(w)

	header := []string{"id", "fetch_time", "bank_selling_price", "bank_buying_price", "status"}
	if shape == extractor.ShapeSingle {
		header = []string{"id", "fetch_time", "price", "status"}
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{strconv.FormatInt(rec.ID, 10), rec.FetchTime.UTC().Format(time.RFC3339)}
		if shape == extractor.ShapeSingle {
			row = append(row, formatPrice(rec.Price))
		} else {
			row = append(row, formatPrice(rec.Selling), formatPrice(rec.Buying))
		}
		row = append(row, rec.Status)
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeRecordsPNG(path string, shape extractor.Shape, records []storage.PriceRecord, width, height int) error {
	plot := trendPlot{
		title:  "Gold Price Export",
		yName:  "Price (TWD)",
		width:  width,
		height: height,
		times:  make([]time.Time, len(records)),
	}

	price := make([]float64, len(records))
	selling := make([]float64, len(records))
	buying := make([]float64, len(records))
	for i, rec := range records {
		plot.times[i] = rec.FetchTime
		price[i] = rec.Price
		selling[i] = rec.Selling
		buying[i] = rec.Buying
	}

	if shape == extractor.ShapeSingle {
		plot.series = []trendSeries{{name: "Price", values: price, color: goldColor}}
	} else {
		plot.series = []trendSeries{
			{name: "Bank Selling", values: selling, color: goldColor},
			{name: "Bank Buying", values: buying, color: buyingColor},
		}
	}
	return renderTrend(path, plot)
}
