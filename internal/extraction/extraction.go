// Package extraction coordinates the OCR and AI pipeline that turns an
// uploaded document into parsed content and detected tags.
package extraction

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/fundsight/tally/internal/ai"
	"github.com/fundsight/tally/internal/documents"
	"github.com/fundsight/tally/internal/observability"
	"github.com/fundsight/tally/internal/ocr"
	"github.com/fundsight/tally/internal/tags"
	"github.com/fundsight/tally/pkg/tasks"
)

// Fallback confidence assigned when no period can be determined and the
// pipeline degrades to the current calendar month.
const fallbackConfidence = 50

// Result summarizes one extraction run.
type Result struct {
	ID         uuid.UUID        `json:"id"`
	Status     documents.Status `json:"status"`
	Periods    []tags.Period    `json:"periods"`
	Tags       []string         `json:"tags"`
	Confidence int              `json:"confidence"`
	Degraded   bool             `json:"degraded"`
}

// System defines the public contract for extraction pipeline operations.
type System interface {
	Handler() *Handler

	// Dispatch submits a background run for the document. It reports
	// whether the run was accepted; a full queue or an already pending run
	// is rejected.
	Dispatch(id uuid.UUID) bool

	// Process runs the pipeline synchronously: transition to analyzing,
	// extract text, persist parsed content, detect periods and type tags,
	// apply the detection atomically, and complete. Runs for the same
	// document are collapsed; a reprocess cannot race a running extraction.
	Process(ctx context.Context, id uuid.UUID) (*Result, error)

	// AnalyzePeriod re-runs period detection on the stored parsed content
	// without touching the document status. Fails with ErrContentMissing
	// when the document has not been processed.
	AnalyzePeriod(ctx context.Context, id uuid.UUID) (*Result, error)
}

type coordinator struct {
	docs       documents.System
	tags       tags.System
	ocr        ocr.System
	classifier ai.Classifier
	dispatcher *tasks.Dispatcher
	pipeline   *observability.Pipeline
	logger     *slog.Logger
	fallback   bool

	group singleflight.Group
}

// New creates the extraction coordinator.
func New(
	cfg *Config,
	docs documents.System,
	tagSys tags.System,
	ocrSys ocr.System,
	classifier ai.Classifier,
	dispatcher *tasks.Dispatcher,
	pipeline *observability.Pipeline,
	logger *slog.Logger,
) System {
	return &coordinator{
		docs:       docs,
		tags:       tagSys,
		ocr:        ocrSys,
		classifier: classifier,
		dispatcher: dispatcher,
		pipeline:   pipeline,
		logger:     logger.With("system", "extraction"),
		fallback:   cfg.PeriodFallback,
	}
}

func (c *coordinator) Handler() *Handler {
	return NewHandler(c, c.logger)
}

func (c *coordinator) Dispatch(id uuid.UUID) bool {
	return c.dispatcher.Submit(tasks.Task{
		Key: "extract:" + id.String(),
		Run: func(ctx context.Context) error {
			_, err := c.Process(ctx, id)
			return err
		},
	})
}

func (c *coordinator) Process(ctx context.Context, id uuid.UUID) (*Result, error) {
	v, err, _ := c.group.Do(id.String(), func() (any, error) {
		return c.run(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// run is the single-flight body of Process. Collaborator failures after the
// analyzing transition move the document to error and are returned to the
// caller; background callers log them, synchronous callers surface the
// document status.
func (c *coordinator) run(ctx context.Context, id uuid.UUID) (*Result, error) {
	done := c.pipeline.Track()

	doc, err := c.docs.Transition(ctx, id, documents.StatusAnalyzing)
	if err != nil {
		done(observability.OutcomeError)
		return nil, err
	}

	text, err := c.ocr.Extract(ctx, doc.StorageKey, doc.OriginalFormat)
	if err != nil {
		c.fail(ctx, id, documents.ParseFailed, err)
		done(observability.OutcomeError)
		return nil, err
	}

	if err := c.docs.ReplaceContent(ctx, id, text, documents.ParseSuccess); err != nil {
		c.fail(ctx, id, "", err)
		done(observability.OutcomeError)
		return nil, err
	}

	detection, err := c.classifier.DetectPeriods(ctx, text, doc.Filename)
	if err != nil {
		c.fail(ctx, id, "", err)
		done(observability.OutcomeError)
		return nil, err
	}

	periods, confidence, degraded := c.resolvePeriods(detection)

	if err := c.tags.ApplyExtraction(ctx, id, periods, detection.Tags, confidence); err != nil {
		c.fail(ctx, id, "", err)
		done(observability.OutcomeError)
		return nil, err
	}

	outcome := observability.OutcomeComplete
	if degraded {
		outcome = observability.OutcomeDegraded
	}
	done(outcome)

	c.logger.Info(
		"document processed",
		"document_id", id,
		"periods", len(periods),
		"confidence", confidence,
		"degraded", degraded,
	)

	return &Result{
		ID:         id,
		Status:     documents.StatusComplete,
		Periods:    periods,
		Tags:       detection.Tags,
		Confidence: confidence,
		Degraded:   degraded,
	}, nil
}

func (c *coordinator) AnalyzePeriod(ctx context.Context, id uuid.UUID) (*Result, error) {
	content, err := c.docs.Content(ctx, id)
	if err != nil {
		return nil, err
	}
	if content.ParseStatus != documents.ParseSuccess || content.MarkdownText == "" {
		return nil, documents.ErrContentMissing
	}

	doc, err := c.docs.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	detection, err := c.classifier.DetectPeriods(ctx, content.MarkdownText, doc.Filename)
	if err != nil {
		return nil, err
	}

	periods, confidence, degraded := c.resolvePeriods(detection)

	if err := c.tags.ApplyDetection(ctx, id, periods, detection.Tags, confidence); err != nil {
		return nil, err
	}

	return &Result{
		ID:         id,
		Status:     doc.Status,
		Periods:    periods,
		Tags:       detection.Tags,
		Confidence: confidence,
		Degraded:   degraded,
	}, nil
}

// resolvePeriods converts detected periods to tag periods. When the model
// answered but found no period and fallback is enabled, the current calendar
// month is substituted at reduced confidence.
func (c *coordinator) resolvePeriods(d *ai.Detection) ([]tags.Period, int, bool) {
	if len(d.Periods) == 0 && c.fallback {
		now := time.Now()
		conf := fallbackConfidence
		return []tags.Period{{
			Year:       now.Year(),
			Month:      int(now.Month()),
			Confidence: &conf,
		}}, fallbackConfidence, true
	}

	periods := make([]tags.Period, len(d.Periods))
	for i, p := range d.Periods {
		conf := p.Confidence
		periods[i] = tags.Period{Year: p.Year, Month: p.Month, Confidence: &conf}
	}
	return periods, d.Confidence, false
}

// fail moves the document to error status. A failed parse is recorded on
// the content row when parseStatus is set.
func (c *coordinator) fail(ctx context.Context, id uuid.UUID, parseStatus documents.ParseStatus, cause error) {
	if parseStatus != "" {
		if err := c.docs.ReplaceContent(ctx, id, "", parseStatus); err != nil {
			c.logger.Error("failed to record parse status", "document_id", id, "error", err)
		}
	}

	if _, err := c.docs.Transition(ctx, id, documents.StatusError); err != nil {
		c.logger.Error("failed to mark document errored", "document_id", id, "error", err)
	}

	c.logger.Error("document processing failed", "document_id", id, "error", cause)
}

// MapHTTPStatus maps extraction errors to HTTP status codes, deferring to
// the document mapping for lifecycle errors.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ocr.ErrExtraction) || errors.Is(err, ai.ErrClassification) {
		return http.StatusBadGateway
	}
	return documents.MapHTTPStatus(err)
}
