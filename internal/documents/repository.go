package documents

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/fundsight/tally/internal/consistency"
	"github.com/fundsight/tally/pkg/pagination"
	"github.com/fundsight/tally/pkg/query"
	"github.com/fundsight/tally/pkg/repository"
	"github.com/fundsight/tally/pkg/storage"
)

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a document repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "documents"),
		pagination: pagination,
	}
}

func (r *repo) Handler(dispatch DispatchFunc, maxUploadSize int64) *Handler {
	return NewHandler(r, dispatch, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	docs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	result := pagination.NewPageResult(docs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Recent(ctx context.Context, limit int) ([]Document, error) {
	if limit < 1 {
		limit = 10
	}
	if limit > r.pagination.MaxPageSize {
		limit = r.pagination.MaxPageSize
	}

	q, args := query.NewBuilder(projection, defaultSort).BuildPage(1, limit)
	docs, err := repository.QueryMany(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query recent documents: %w", err)
	}
	return docs, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Document, error) {
	id := uuid.New()
	key := buildStorageKey(id, sanitizeFilename(cmd.Filename))

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), contentType(cmd.Filename)); err != nil {
		return nil, fmt.Errorf("upload document blob: %w", err)
	}

	q := `
		INSERT INTO documents(id, filename, storage_key, original_format, page_count, size_bytes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, filename, storage_key, original_format, page_count, size_bytes, status, ai_confidence, uploaded_at, updated_at`

	insertArgs := []any{
		id,
		cmd.Filename,
		key,
		originalFormat(cmd.Filename),
		cmd.PageCount,
		int64(len(cmd.Data)),
		StatusUploading,
	}

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		return repository.QueryOne(ctx, tx, q, insertArgs, scanDocument)
	})

	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("document created", "id", d.ID, "filename", d.Filename)
	return &d, nil
}

func (r *repo) Transition(ctx context.Context, id uuid.UUID, to Status) (*Document, error) {
	doc, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if !doc.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, doc.Status, to)
	}

	q := `
		UPDATE documents
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING id, filename, storage_key, original_format, page_count, size_bytes, status, ai_confidence, uploaded_at, updated_at`

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		return repository.QueryOne(ctx, tx, q, []any{to, id, doc.Status}, scanDocument)
	})

	if err != nil {
		// The guard on the previous status failed: someone else moved the
		// document between our read and the update.
		if errors.Is(repository.MapError(err, ErrNotFound, ErrDuplicate), ErrNotFound) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, doc.Status, to)
		}
		return nil, err
	}

	r.logger.Info("document status changed", "id", id, "from", doc.Status, "to", to)
	return &d, nil
}

func (r *repo) Content(ctx context.Context, id uuid.UUID) (*ParsedContent, error) {
	q := `
		SELECT document_id, markdown_text, parse_status, parsed_at
		FROM parsed_content
		WHERE document_id = $1`

	c, err := repository.QueryOne(ctx, r.db, q, []any{id}, scanContent)
	if err != nil {
		return nil, repository.MapError(err, ErrContentMissing, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) ReplaceContent(ctx context.Context, id uuid.UUID, text string, status ParseStatus) error {
	q := `
		INSERT INTO parsed_content(document_id, markdown_text, parse_status, parsed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (document_id) DO UPDATE SET
			markdown_text = EXCLUDED.markdown_text,
			parse_status = EXCLUDED.parse_status,
			parsed_at = NOW()`

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(ctx, q, id, text, status); err != nil {
			return struct{}{}, fmt.Errorf("replace parsed content: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		detached, err := consistency.DetachAll(ctx, tx, id)
		if err != nil {
			return struct{}{}, err
		}
		if detached > 0 {
			r.logger.Info("document detached from metrics", "id", id, "memberships", detached)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM document_tags WHERE document_id = $1", id); err != nil {
			return struct{}{}, fmt.Errorf("delete tags: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM parsed_content WHERE document_id = $1", id); err != nil {
			return struct{}{}, fmt.Errorf("delete parsed content: %w", err)
		}

		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM documents WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if delErr := r.storage.Delete(ctx, doc.StorageKey); delErr != nil {
		r.logger.Warn(
			"blob delete failed after DB delete",
			"key", doc.StorageKey,
			"error", delErr,
		)
	}

	r.logger.Info("document deleted", "id", id)
	return nil
}

func buildStorageKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("documents/%s/%s", id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" {
		name = "document"
	}
	return url.PathEscape(name)
}

func originalFormat(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return "unknown"
	}
	return ext
}

func contentType(filename string) string {
	switch originalFormat(filename) {
	case "pdf":
		return "application/pdf"
	case "xlsx", "xls":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "csv":
		return "text/csv"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "txt", "md":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
