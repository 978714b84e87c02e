package metrics_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/fundsight/tally/internal/ai"
	"github.com/fundsight/tally/internal/metrics"
	"github.com/fundsight/tally/internal/tags"
)

// stubTags satisfies tags.System with canned periods and a status recorder.
type stubTags struct {
	periods  []tags.Period
	statuses []string
}

func (s *stubTags) Handler() *tags.Handler { return nil }

func (s *stubTags) List(context.Context, uuid.UUID, *tags.Kind) ([]tags.Tag, error) {
	return nil, nil
}

func (s *stubTags) Periods(context.Context, uuid.UUID) ([]tags.Period, error) {
	return s.periods, nil
}

func (s *stubTags) ReplacePeriodTags(context.Context, uuid.UUID, []tags.Period, bool) error {
	return nil
}

func (s *stubTags) ReplaceTypeTags(context.Context, uuid.UUID, []string, bool, *int) error {
	return nil
}

func (s *stubTags) SetCustomTags(context.Context, uuid.UUID, []string) error { return nil }

func (s *stubTags) SetStatusTag(_ context.Context, _ uuid.UUID, value string) error {
	s.statuses = append(s.statuses, value)
	return nil
}

func (s *stubTags) ApplyExtraction(context.Context, uuid.UUID, []tags.Period, []string, int) error {
	return nil
}

func (s *stubTags) ApplyDetection(context.Context, uuid.UUID, []tags.Period, []string, int) error {
	return nil
}

func (s *stubTags) UpdateTags(context.Context, uuid.UUID, tags.UpdateCommand) error { return nil }

type stubClassifier struct{}

func (stubClassifier) DetectPeriods(context.Context, string, string) (*ai.Detection, error) {
	return nil, errors.New("not used")
}

func (stubClassifier) ExtractFinancials(context.Context, string, int, int) (*ai.Financials, error) {
	return nil, errors.New("not used")
}

func newMetricRepo(t *testing.T, tagSys tags.System) (metrics.System, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return metrics.New(db, tagSys, stubClassifier{}, logger), mock
}

const (
	lockMetricQuery   = `SELECT id FROM financial_metrics WHERE year = \$1 AND month = \$2 FOR UPDATE`
	createMetricQuery = `INSERT INTO financial_metrics \(id, year, month\) VALUES \(\$1, \$2, \$3\) ON CONFLICT \(year, month\) DO UPDATE SET year = EXCLUDED\.year RETURNING id`
	attachStmt        = `INSERT INTO metric_documents \(metric_id, document_id\) VALUES \(\$1, \$2\) ON CONFLICT DO NOTHING`
)

func TestRepoAddToRecords(t *testing.T) {
	docID := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	juneID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	julyID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	t.Run("attaches every period idempotently", func(t *testing.T) {
		tagSys := &stubTags{periods: []tags.Period{
			{Year: 2024, Month: 6},
			{Year: 2024, Month: 7},
		}}
		sys, mock := newMetricRepo(t, tagSys)

		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM documents WHERE id = \$1\)`).
			WithArgs(docID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		// June: the metric row already exists and gets locked.
		mock.ExpectBegin()
		mock.ExpectQuery(lockMetricQuery).
			WithArgs(2024, 6).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(juneID.String()))
		mock.ExpectExec(attachStmt).
			WithArgs(juneID, docID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		// July: no metric row yet, so one is created.
		mock.ExpectBegin()
		mock.ExpectQuery(lockMetricQuery).
			WithArgs(2024, 7).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(createMetricQuery).
			WithArgs(sqlmock.AnyArg(), 2024, 7).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(julyID.String()))
		mock.ExpectExec(attachStmt).
			WithArgs(julyID, docID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		result, err := sys.AddToRecords(context.Background(), docID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Periods != 2 {
			t.Errorf("periods = %d, want 2", result.Periods)
		}
		if result.Status != metrics.StatusAddedToRecords {
			t.Errorf("status = %q, want %q", result.Status, metrics.StatusAddedToRecords)
		}
		if result.Analyzed {
			t.Error("analyzed = true, want false")
		}

		if len(tagSys.statuses) != 1 || tagSys.statuses[0] != metrics.StatusAddedToRecords {
			t.Errorf("status tags = %v, want [%s]", tagSys.statuses, metrics.StatusAddedToRecords)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
	})

	t.Run("unknown document", func(t *testing.T) {
		tagSys := &stubTags{}
		sys, mock := newMetricRepo(t, tagSys)

		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM documents WHERE id = \$1\)`).
			WithArgs(docID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		if _, err := sys.AddToRecords(context.Background(), docID, false); !errors.Is(err, metrics.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
		if len(tagSys.statuses) != 0 {
			t.Errorf("status tags = %v, want none", tagSys.statuses)
		}
	})

	t.Run("no periods still marks the document", func(t *testing.T) {
		tagSys := &stubTags{}
		sys, mock := newMetricRepo(t, tagSys)

		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM documents WHERE id = \$1\)`).
			WithArgs(docID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		result, err := sys.AddToRecords(context.Background(), docID, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Periods != 0 {
			t.Errorf("periods = %d, want 0", result.Periods)
		}
		if result.Analyzed {
			t.Error("analyzed = true, want false for a document with no periods")
		}
		if len(tagSys.statuses) != 1 {
			t.Errorf("status tags = %v, want one entry", tagSys.statuses)
		}
	})
}
