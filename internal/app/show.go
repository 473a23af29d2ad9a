package app

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Sandy01030103/gold-price-etl/internal/extractor"
)

// Show prints the most recent stored readings.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openHistory(ctx)
	switch {
	case errors.Is(err, errNoDatabase):
		fmt.Fprintf(a.Out, "database file not found at %q; run the ETL first\n", a.Config.Database.Path)
		return nil
	case errors.Is(err, errNoTable):
		fmt.Fprintln(a.Out, "no readings found")
		return nil
	case err != nil:
		return err
	}
	defer closeStore()

	records, err := store.ListRecent(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no readings found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	if store.Shape() == extractor.ShapeSingle {
		fmt.Fprintln(writer, "ID\tTime (UTC)\tPrice\tStatus")
	} else {
		fmt.Fprintln(writer, "ID\tTime (UTC)\tSelling\tBuying\tStatus")
	}

	for _, rec := range records {
		ts := rec.FetchTime.UTC().Format(time.RFC3339)
		if rec.Shape == extractor.ShapeSingle {
			fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", rec.ID, ts, formatPrice(rec.Price), rec.Status)
			continue
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\n", rec.ID, ts, formatPrice(rec.Selling), formatPrice(rec.Buying), rec.Status)
	}

	return writer.Flush()
}

func formatPrice(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
