package api

import (
	"github.com/fundsight/tally/internal/ai"
	"github.com/fundsight/tally/internal/documents"
	"github.com/fundsight/tally/internal/extraction"
	"github.com/fundsight/tally/internal/metrics"
	"github.com/fundsight/tally/internal/ocr"
	"github.com/fundsight/tally/internal/tags"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Documents  documents.System
	Tags       tags.System
	Extraction extraction.System
	Metrics    metrics.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	docsSystem := documents.New(
		runtime.Database.Connection(),
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	tagsSystem := tags.New(
		runtime.Database.Connection(),
		runtime.Logger,
	)

	classifier := ai.New(runtime.AI, runtime.Logger)
	ocrSystem := ocr.New(runtime.Storage, runtime.Logger)

	extractionSystem := extraction.New(
		&runtime.Extraction,
		docsSystem,
		tagsSystem,
		ocrSystem,
		classifier,
		runtime.Tasks,
		runtime.Pipeline,
		runtime.Logger,
	)

	metricsSystem := metrics.New(
		runtime.Database.Connection(),
		tagsSystem,
		classifier,
		runtime.Logger,
	)

	return &Domain{
		Documents:  docsSystem,
		Tags:       tagsSystem,
		Extraction: extractionSystem,
		Metrics:    metricsSystem,
	}
}
