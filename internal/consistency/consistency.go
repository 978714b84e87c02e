// Package consistency enforces cross-entity invariants between documents,
// period tags, and financial metric membership. Its helpers are
// transaction-scoped: callers invoke them inside the same transaction as the
// mutation that triggered them (re-tag or delete), so membership never
// drifts partially.
package consistency

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/fundsight/tally/pkg/repository"
)

// Period identifies a (year, month) reporting period a document should
// remain attached to.
type Period struct {
	Year  int
	Month int
}

// DetachMismatched removes the document from every financial metric whose
// (year, month) is absent from keep. Metric figures are left as previously
// computed; they stay stale until the next explicit analysis. Returns the
// number of memberships removed.
func DetachMismatched(ctx context.Context, e repository.Executor, docID uuid.UUID, keep []Period) (int64, error) {
	q := `
		DELETE FROM metric_documents md
		USING financial_metrics m
		WHERE md.metric_id = m.id
		  AND md.document_id = $1`

	args := []any{docID}
	if len(keep) > 0 {
		clauses := make([]string, 0, len(keep))
		for _, p := range keep {
			y := strconv.Itoa(len(args) + 1)
			m := strconv.Itoa(len(args) + 2)
			clauses = append(clauses, "(m.year = $"+y+" AND m.month = $"+m+")")
			args = append(args, p.Year, p.Month)
		}
		q += "\n\t\t  AND NOT (" + strings.Join(clauses, " OR ") + ")"
	}

	result, err := e.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("detach mismatched metrics: %w", err)
	}
	return result.RowsAffected()
}

// DetachAll removes the document from every financial metric's membership
// set. Used by document deletion; the metric rows themselves are retained
// even when their membership becomes empty.
func DetachAll(ctx context.Context, e repository.Executor, docID uuid.UUID) (int64, error) {
	result, err := e.ExecContext(ctx, "DELETE FROM metric_documents WHERE document_id = $1", docID)
	if err != nil {
		return 0, fmt.Errorf("detach all metrics: %w", err)
	}
	return result.RowsAffected()
}
