package metrics

import (
	"context"

	"github.com/google/uuid"
)

// System defines the public contract for metric aggregation operations.
type System interface {
	Handler() *Handler

	// AddToRecords enrolls the document in the metric of every complete
	// period tag it carries (get-or-create per period, idempotent) and
	// marks it with the added_to_records status tag. When analyze is set,
	// every affected period is recomputed from its member documents.
	AddToRecords(ctx context.Context, documentID uuid.UUID, analyze bool) (*AddResult, error)

	// Get returns the metric for a period. A valid period with no metric
	// yields a zero result with Exists false, never a not-found error.
	Get(ctx context.Context, year, month int) (*PeriodResult, error)

	// Table returns twelve month cells for the year.
	Table(ctx context.Context, year int) (*YearTable, error)

	// AnalyzePeriod recomputes a period's figures from the parsed content
	// of the given documents, or of all documents period-tagged for it
	// when ids is empty. No documents resolvable yields a soft result and
	// no metric row.
	AnalyzePeriod(ctx context.Context, year, month int, ids []uuid.UUID) (*AnalyzeResult, error)

	// ForceAssociate rewrites a metric's membership to exactly the given
	// documents (or the period-tagged set when ids is empty) without
	// recomputing figures.
	ForceAssociate(ctx context.Context, year, month int, ids []uuid.UUID) (*AssociateResult, error)
}
