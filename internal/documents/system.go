package documents

import (
	"context"

	"github.com/google/uuid"

	"github.com/fundsight/tally/pkg/pagination"
)

// DispatchFunc submits a document for background extraction.
// It reports whether the work was accepted.
type DispatchFunc func(id uuid.UUID) bool

// System defines the public contract for document registry operations.
type System interface {
	Handler(dispatch DispatchFunc, maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Recent(ctx context.Context, limit int) ([]Document, error)
	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	Create(ctx context.Context, cmd CreateCommand) (*Document, error)

	// Transition moves the document along a legal status edge.
	// Illegal edges fail with ErrInvalidTransition.
	Transition(ctx context.Context, id uuid.UUID, to Status) (*Document, error)

	Content(ctx context.Context, id uuid.UUID) (*ParsedContent, error)
	ReplaceContent(ctx context.Context, id uuid.UUID, text string, status ParseStatus) error

	// Delete removes the document, its tags, its parsed content, and its
	// membership in every financial metric as one transaction. Blob removal
	// is best-effort.
	Delete(ctx context.Context, id uuid.UUID) error
}
