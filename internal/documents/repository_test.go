package documents_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/fundsight/tally/internal/documents"
	"github.com/fundsight/tally/pkg/lifecycle"
	"github.com/fundsight/tally/pkg/pagination"
)

// stubStorage satisfies storage.System, recording deleted keys.
type stubStorage struct {
	deleted   []string
	deleteErr error
}

func (s *stubStorage) Start(*lifecycle.Coordinator) error { return nil }

func (s *stubStorage) Upload(context.Context, string, io.Reader, string) error { return nil }

func (s *stubStorage) Download(context.Context, string) (io.ReadCloser, error) { return nil, nil }

func (s *stubStorage) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return s.deleteErr
}

func (s *stubStorage) Exists(context.Context, string) (bool, error) { return false, nil }

var docColumns = []string{
	"id", "filename", "storage_key", "original_format", "page_count",
	"size_bytes", "status", "ai_confidence", "uploaded_at", "updated_at",
}

func docRow(id uuid.UUID, storageKey string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(docColumns).
		AddRow(id.String(), "report.pdf", storageKey, "pdf", 3, int64(2048), "complete", 90, now, now)
}

func newTestRepo(t *testing.T) (documents.System, sqlmock.Sqlmock, *stubStorage) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := &stubStorage{}
	sys := documents.New(
		db,
		store,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
	return sys, mock, store
}

const findDocumentQuery = `SELECT d\.id, (.+) FROM public\.documents d WHERE d\.id = \$1`

func TestRepoDelete(t *testing.T) {
	docID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	storageKey := "documents/" + docID.String() + "/report.pdf"

	t.Run("cascades within one transaction", func(t *testing.T) {
		sys, mock, store := newTestRepo(t)

		mock.ExpectQuery(findDocumentQuery).
			WithArgs(docID).
			WillReturnRows(docRow(docID, storageKey))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM metric_documents WHERE document_id = \$1`).
			WithArgs(docID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`DELETE FROM document_tags WHERE document_id = \$1`).
			WithArgs(docID).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec(`DELETE FROM parsed_content WHERE document_id = \$1`).
			WithArgs(docID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM documents WHERE id = \$1`).
			WithArgs(docID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		if err := sys.Delete(context.Background(), docID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(store.deleted) != 1 || store.deleted[0] != storageKey {
			t.Errorf("deleted blobs = %v, want [%s]", store.deleted, storageKey)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
	})

	t.Run("second delete reports not found", func(t *testing.T) {
		sys, mock, store := newTestRepo(t)

		mock.ExpectQuery(findDocumentQuery).
			WithArgs(docID).
			WillReturnError(sql.ErrNoRows)

		if err := sys.Delete(context.Background(), docID); !errors.Is(err, documents.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
		if len(store.deleted) != 0 {
			t.Errorf("deleted blobs = %v, want none", store.deleted)
		}
	})

	t.Run("row vanished mid-transaction reports not found", func(t *testing.T) {
		sys, mock, store := newTestRepo(t)

		mock.ExpectQuery(findDocumentQuery).
			WithArgs(docID).
			WillReturnRows(docRow(docID, storageKey))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM metric_documents WHERE document_id = \$1`).
			WithArgs(docID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM document_tags WHERE document_id = \$1`).
			WithArgs(docID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM parsed_content WHERE document_id = \$1`).
			WithArgs(docID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM documents WHERE id = \$1`).
			WithArgs(docID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		if err := sys.Delete(context.Background(), docID); !errors.Is(err, documents.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
		if len(store.deleted) != 0 {
			t.Errorf("deleted blobs = %v, want none", store.deleted)
		}
	})

	t.Run("blob delete failure does not fail the delete", func(t *testing.T) {
		sys, mock, store := newTestRepo(t)
		store.deleteErr = errors.New("blob gone")

		mock.ExpectQuery(findDocumentQuery).
			WithArgs(docID).
			WillReturnRows(docRow(docID, storageKey))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM metric_documents WHERE document_id = \$1`).
			WithArgs(docID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM document_tags WHERE document_id = \$1`).
			WithArgs(docID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM parsed_content WHERE document_id = \$1`).
			WithArgs(docID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM documents WHERE id = \$1`).
			WithArgs(docID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		if err := sys.Delete(context.Background(), docID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
