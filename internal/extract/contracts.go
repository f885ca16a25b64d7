// Package extract turns a document into structured records by calling an
// external document-understanding service.
package extract

import (
	"context"
	"errors"
	"time"
)

// Record is one line item as returned by the extraction service, after
// normalization. It carries no job identity; the worker tags it.
type Record struct {
	OccurredAt time.Time // date only, UTC midnight
	Label      string
	Value      float64
	Unit       string
	Primary    string
	Detailed   string
	Confidence string
}

// Extractor is what the worker depends on. One input, two outcomes.
type Extractor interface {
	Extract(ctx context.Context, document []byte) ([]Record, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(ctx context.Context, document []byte) ([]Record, error)

func (f ExtractorFunc) Extract(ctx context.Context, document []byte) ([]Record, error) {
	return f(ctx, document)
}

var ErrDisabled = errors.New("extraction is disabled")

// Disabled fails every call. It backs EXTRACT_DRIVER=none.
var Disabled Extractor = ExtractorFunc(func(context.Context, []byte) ([]Record, error) {
	return nil, ErrDisabled
})

// WithTimeout bounds each call to next by d. A non-positive d returns next unchanged.
func WithTimeout(next Extractor, d time.Duration) Extractor {
	if d <= 0 {
		return next
	}
	return ExtractorFunc(func(ctx context.Context, document []byte) ([]Record, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next.Extract(ctx, document)
	})
}
