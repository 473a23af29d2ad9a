// Package normalizer turns raw price text into validated readings.
package normalizer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Sandy01030103/gold-price-etl/internal/extractor"
)

// Status classifies a run.
type Status string

const (
	StatusOK      Status = "OK"
	StatusWarning Status = "Warning"
)

var (
	errMissing     = errors.New("missing")
	errNotPositive = errors.New("not greater than zero")
)

// Reading is a validated payload. Its fields are only set by Normalize, so a
// Reading always holds strictly positive prices for its shape.
type Reading struct {
	shape   extractor.Shape
	price   float64
	selling float64
	buying  float64
}

// Shape reports which fields the reading carries.
func (r Reading) Shape() extractor.Shape { return r.shape }

// Price is set for the single shape.
func (r Reading) Price() float64 { return r.price }

// Selling is the bank selling price, set for the dual shape.
func (r Reading) Selling() float64 { return r.selling }

// Buying is the bank buying price, set for the dual shape.
func (r Reading) Buying() float64 { return r.buying }

// Result is either an OK reading or a Warning with no payload.
type Result struct {
	reading Reading
	ok      bool
	reason  string
}

// Status returns OK or Warning.
func (r Result) Status() Status {
	if r.ok {
		return StatusOK
	}
	return StatusWarning
}

// Reading returns the validated payload; the bool is false for a Warning.
func (r Result) Reading() (Reading, bool) {
	return r.reading, r.ok
}

// Reason explains a Warning. Empty for OK results.
func (r Result) Reason() string { return r.reason }

func warning(field string, err error) Result {
	return Result{reason: fmt.Sprintf("%s: %v", field, err)}
}

// Normalize validates every field of raw. Any failing field demotes the whole
// run to Warning; no partial payload is returned.
func Normalize(raw extractor.Raw) Result {
	switch raw.Shape {
	case extractor.ShapeSingle:
		price, err := ParsePrice(raw.Price)
		if err != nil {
			return warning("price", err)
		}
		return Result{ok: true, reading: Reading{shape: extractor.ShapeSingle, price: price}}

	case extractor.ShapeDual:
		selling, err := ParsePrice(raw.Selling)
		if err != nil {
			return warning("selling", err)
		}
		buying, err := ParsePrice(raw.Buying)
		if err != nil {
			return warning("buying", err)
		}
		return Result{ok: true, reading: Reading{shape: extractor.ShapeDual, selling: selling, buying: buying}}

	default:
		return Result{reason: fmt.Sprintf("unknown shape %q", raw.Shape)}
	}
}

// ParsePrice strips thousands separators and converts text to a positive
// float64. NaN, infinities and hex forms are rejected.
func ParsePrice(text string) (float64, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if cleaned == "" {
		return 0, errMissing
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("not numeric: %q", text)
	}
	if !d.IsPositive() {
		return 0, errNotPositive
	}
	v := d.InexactFloat64()
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("out of range: %q", text)
	}
	return v, nil
}
