package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Sandy01030103/gold-price-etl/internal/extractor"
	"github.com/Sandy01030103/gold-price-etl/internal/normalizer"
)

// Inspect parses a saved page with the configured layout and prints what a
// run would extract and store. Nothing is fetched or persisted.
func (a *App) Inspect(ctx context.Context, path string) (normalizer.Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return normalizer.Result{}, fmt.Errorf("open page: %w", err)
	}
	defer file.Close()

	raw, err := extractor.Parse(file, "", a.layout())
	if err != nil {
		return normalizer.Result{}, err
	}

	result := normalizer.Normalize(raw)

	fmt.Fprintf(a.Out, "shape:   %s\n", raw.Shape)
	if raw.Shape == extractor.ShapeSingle {
		fmt.Fprintf(a.Out, "price:   %q\n", raw.Price)
	} else {
		fmt.Fprintf(a.Out, "selling: %q\n", raw.Selling)
		fmt.Fprintf(a.Out, "buying:  %q\n", raw.Buying)
	}
	if len(raw.Duplicates) > 0 {
		fmt.Fprintf(a.Out, "duplicate rows: %s (last match used)\n", strings.Join(raw.Duplicates, ", "))
	}

	fmt.Fprintf(a.Out, "status:  %s\n", result.Status())
	if reading, ok := result.Reading(); ok {
		if reading.Shape() == extractor.ShapeSingle {
			fmt.Fprintf(a.Out, "value:   %s\n", formatPrice(reading.Price()))
		} else {
			fmt.Fprintf(a.Out, "value:   selling=%s buying=%s\n", formatPrice(reading.Selling()), formatPrice(reading.Buying()))
		}
	} else {
		fmt.Fprintf(a.Out, "reason:  %s\n", result.Reason())
	}

	return result, nil
}
