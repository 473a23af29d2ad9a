// Package extractor fetches the gold rate page and pulls raw price text out of
// its rate table. It is the only package that knows the page's markup shape.
package extractor

import (
	"context"
	"errors"
	"fmt"
)

// Shape selects how many price fields a page yields.
type Shape string

const (
	// ShapeSingle yields one price: the rightmost price cell of the product row.
	ShapeSingle Shape = "single"
	// ShapeDual yields the bank selling and bank buying prices.
	ShapeDual Shape = "dual"
)

// Raw carries uninterpreted price text. An empty field means it was absent
// from the page.
type Raw struct {
	Shape   Shape
	Price   string
	Selling string
	Buying  string

	// Duplicates lists labels that matched more than one row. The last
	// matching row wins.
	Duplicates []string
}

// Extractor retrieves raw price fields for one run.
type Extractor interface {
	Extract(ctx context.Context) (Raw, error)
}

// ErrUnexpectedStatus is wrapped by FetchError for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected http status")

// ErrBodyTooLarge is wrapped by FetchError when the page exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// FetchError reports a transport level failure: DNS, refused connection,
// timeout or a non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports that an expected element of the page is missing, which
// usually means the source changed its markup.
type ParseError struct {
	Element string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.Element, e.Err)
	}
	return fmt.Sprintf("parse: %s not found", e.Element)
}

func (e *ParseError) Unwrap() error { return e.Err }
