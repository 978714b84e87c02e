// Package ocr converts stored document blobs into markdown text for
// downstream classification and analysis.
package ocr

import (
	"context"
	"errors"
	"fmt"
)

// ErrExtraction is returned when a document's content cannot be parsed.
var ErrExtraction = errors.New("content extraction failed")

// ErrUnsupportedFormat is returned for formats with no text extractor.
var ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrExtraction)

// System extracts markdown text from a stored document.
type System interface {
	// Extract downloads the blob at key and converts it to markdown.
	// The format is the document's original file extension without the dot.
	Extract(ctx context.Context, key, format string) (string, error)
}
