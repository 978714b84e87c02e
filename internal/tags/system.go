package tags

import (
	"context"

	"github.com/google/uuid"
)

// System defines the public contract for tagging engine operations.
type System interface {
	Handler() *Handler

	List(ctx context.Context, documentID uuid.UUID, kind *Kind) ([]Tag, error)

	// Periods returns the document's period tags that carry both year and
	// month, i.e. the periods eligible for metric membership.
	Periods(ctx context.Context, documentID uuid.UUID) ([]Period, error)

	// ReplacePeriodTags deletes the document's AI-detected period tags and
	// inserts the given set flagged with aiDetected. Manually entered period
	// tags are never touched.
	ReplacePeriodTags(ctx context.Context, documentID uuid.UUID, periods []Period, aiDetected bool) error

	// ReplaceTypeTags is the kind=type analogue of ReplacePeriodTags.
	ReplaceTypeTags(ctx context.Context, documentID uuid.UUID, values []string, aiDetected bool, confidence *int) error

	// SetCustomTags replaces the document's custom tags (always manual).
	SetCustomTags(ctx context.Context, documentID uuid.UUID, values []string) error

	// SetStatusTag replaces the document's status marker tag.
	SetStatusTag(ctx context.Context, documentID uuid.UUID, value string) error

	// ApplyExtraction atomically replaces the AI-detected period and type
	// tags, records the run confidence on the document, and completes the
	// analyzing status in one transaction. Nothing is applied on failure.
	ApplyExtraction(ctx context.Context, documentID uuid.UUID, periods []Period, types []string, confidence int) error

	// ApplyDetection is the re-detection variant of ApplyExtraction: same
	// tag replacement and confidence update, but without touching the
	// document status. Used when periods are re-analyzed on an already
	// processed document.
	ApplyDetection(ctx context.Context, documentID uuid.UUID, periods []Period, types []string, confidence int) error

	// UpdateTags applies a manual correction: the document is detached from
	// every metric whose period no longer matches, then its period tags are
	// replaced with the manually supplied set. The new periods are not added
	// to any metric; that requires an explicit add-to-records call.
	UpdateTags(ctx context.Context, documentID uuid.UUID, cmd UpdateCommand) error
}
