package storage

import (
	"time"

	"github.com/Sandy01030103/gold-price-etl/internal/extractor"
)

// PriceRecord is one persisted row.
type PriceRecord struct {
	ID        int64
	FetchTime time.Time
	Shape     extractor.Shape
	Price     float64
	Selling   float64
	Buying    float64
	Status    string
}

// Headline is the price plotted on trend charts: the bank selling price for
// dual rows, the single price otherwise.
func (r PriceRecord) Headline() float64 {
	if r.Shape == extractor.ShapeSingle {
		return r.Price
	}
	return r.Selling
}
