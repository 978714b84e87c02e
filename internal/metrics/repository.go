package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fundsight/tally/internal/ai"
	"github.com/fundsight/tally/internal/tags"
	"github.com/fundsight/tally/pkg/repository"
)

// StatusAddedToRecords is the status tag value marking enrolled documents.
const StatusAddedToRecords = "added_to_records"

// contentFetchConcurrency bounds parallel parsed-content lookups.
const contentFetchConcurrency = 8

type repo struct {
	db         *sql.DB
	tags       tags.System
	classifier ai.Classifier
	logger     *slog.Logger
}

// New creates a metric repository implementing the System interface.
func New(db *sql.DB, tagSys tags.System, classifier ai.Classifier, logger *slog.Logger) System {
	return &repo{
		db:         db,
		tags:       tagSys,
		classifier: classifier,
		logger:     logger.With("system", "metrics"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) AddToRecords(ctx context.Context, documentID uuid.UUID, analyze bool) (*AddResult, error) {
	if err := r.ensureDocument(ctx, documentID); err != nil {
		return nil, err
	}

	periods, err := r.tags.Periods(ctx, documentID)
	if err != nil {
		return nil, err
	}

	for _, p := range periods {
		_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
			metricID, err := lockMetric(ctx, tx, p.Year, p.Month)
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, attachDocuments(ctx, tx, metricID, []uuid.UUID{documentID})
		})
		if err != nil {
			return nil, err
		}
	}

	if err := r.tags.SetStatusTag(ctx, documentID, StatusAddedToRecords); err != nil {
		return nil, err
	}

	if analyze {
		for _, p := range periods {
			if _, err := r.AnalyzePeriod(ctx, p.Year, p.Month, nil); err != nil {
				return nil, err
			}
		}
	}

	r.logger.Info(
		"document added to records",
		"document_id", documentID,
		"periods", len(periods),
		"analyzed", analyze,
	)

	return &AddResult{
		ID:       documentID,
		Status:   StatusAddedToRecords,
		Periods:  len(periods),
		Analyzed: analyze && len(periods) > 0,
	}, nil
}

func (r *repo) Get(ctx context.Context, year, month int) (*PeriodResult, error) {
	if err := ValidatePeriod(year, month); err != nil {
		return nil, err
	}

	metric, err := repository.QueryOne(
		ctx, r.db,
		"SELECT "+metricColumns+" FROM financial_metrics WHERE year = $1 AND month = $2",
		[]any{year, month},
		scanMetric,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &PeriodResult{Year: year, Month: month, Documents: []DocumentSummary{}}, nil
		}
		return nil, fmt.Errorf("query metric: %w", err)
	}

	docs, err := r.memberSummaries(ctx, metric.ID)
	if err != nil {
		return nil, err
	}

	return &PeriodResult{
		Year:   year,
		Month:  month,
		Exists: true,
		Figures: Figures{
			Revenue:  metric.Revenue,
			Expenses: metric.Expenses,
			Profit:   metric.Profit,
			CashFlow: metric.CashFlow,
		},
		Documents:      docs,
		LastAnalyzedAt: metric.LastAnalyzedAt,
	}, nil
}

func (r *repo) Table(ctx context.Context, year int) (*YearTable, error) {
	if year < 1900 || year > 2100 {
		return nil, fmt.Errorf("%w: year must be between 1900 and 2100", ErrValidation)
	}

	rows, err := repository.QueryMany(
		ctx, r.db,
		"SELECT "+metricColumns+" FROM financial_metrics WHERE year = $1 ORDER BY month",
		[]any{year},
		scanMetric,
	)
	if err != nil {
		return nil, fmt.Errorf("query year metrics: %w", err)
	}

	byMonth := make(map[int]Metric, len(rows))
	for _, m := range rows {
		byMonth[m.Month] = m
	}

	table := &YearTable{Year: year, Months: make([]MonthCell, 12)}
	for month := 1; month <= 12; month++ {
		cell := MonthCell{
			Month:     month,
			Name:      MonthName(month),
			Documents: []DocumentSummary{},
		}

		if m, ok := byMonth[month]; ok {
			docs, err := r.memberSummaries(ctx, m.ID)
			if err != nil {
				return nil, err
			}
			cell.HasData = true
			cell.Metrics = Figures{
				Revenue:  m.Revenue,
				Expenses: m.Expenses,
				Profit:   m.Profit,
				CashFlow: m.CashFlow,
			}
			cell.Documents = docs
			cell.LastAnalyzedAt = m.LastAnalyzedAt
		}

		table.Months[month-1] = cell
	}

	return table, nil
}

func (r *repo) AnalyzePeriod(ctx context.Context, year, month int, ids []uuid.UUID) (*AnalyzeResult, error) {
	if err := ValidatePeriod(year, month); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		resolved, err := r.periodDocuments(ctx, year, month)
		if err != nil {
			return nil, err
		}
		ids = resolved
	}

	if len(ids) == 0 {
		return &AnalyzeResult{
			Year:    year,
			Month:   month,
			Message: "no documents found for this period",
		}, nil
	}

	contents, err := r.fetchContents(ctx, ids)
	if err != nil {
		return nil, err
	}

	fin, err := r.classifier.ExtractFinancials(ctx, combine(contents), year, month)
	if err != nil {
		return nil, err
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		metricID, err := lockMetric(ctx, tx, year, month)
		if err != nil {
			return struct{}{}, err
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE financial_metrics
			 SET revenue = $1, expenses = $2, profit = $3, cash_flow = $4,
			     analysis_notes = $5, last_analyzed_at = NOW()
			 WHERE id = $6`,
			fin.Revenue, fin.Expenses, fin.Profit, fin.CashFlow, fin.Notes, metricID,
		); err != nil {
			return struct{}{}, fmt.Errorf("update metric figures: %w", err)
		}

		return struct{}{}, attachDocuments(ctx, tx, metricID, ids)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info(
		"period analyzed",
		"year", year,
		"month", month,
		"documents", len(contents),
		"revenue", fin.Revenue,
	)

	return &AnalyzeResult{
		Year:  year,
		Month: month,
		Figures: Figures{
			Revenue:  fin.Revenue,
			Expenses: fin.Expenses,
			Profit:   fin.Profit,
			CashFlow: fin.CashFlow,
		},
		AnalysisNotes: fin.Notes,
		DocumentCount: len(contents),
	}, nil
}

func (r *repo) ForceAssociate(ctx context.Context, year, month int, ids []uuid.UUID) (*AssociateResult, error) {
	if err := ValidatePeriod(year, month); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		resolved, err := r.periodDocuments(ctx, year, month)
		if err != nil {
			return nil, err
		}
		ids = resolved
	}

	if len(ids) == 0 {
		return &AssociateResult{
			Year:        year,
			Month:       month,
			DocumentIDs: []uuid.UUID{},
			Message:     fmt.Sprintf("no documents found for period %d/%d", month, year),
		}, nil
	}

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		metricID, err := lockMetric(ctx, tx, year, month)
		if err != nil {
			return struct{}{}, err
		}

		// Forced association rewrites membership outright.
		if _, err := tx.ExecContext(
			ctx,
			"DELETE FROM metric_documents WHERE metric_id = $1",
			metricID,
		); err != nil {
			return struct{}{}, fmt.Errorf("clear memberships: %w", err)
		}

		return struct{}{}, attachDocuments(ctx, tx, metricID, ids)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("documents force-associated", "year", year, "month", month, "documents", len(ids))

	return &AssociateResult{
		Year:        year,
		Month:       month,
		DocumentIDs: ids,
	}, nil
}

const metricColumns = "id, year, month, revenue, expenses, profit, cash_flow, analysis_notes, last_analyzed_at"

func (r *repo) ensureDocument(ctx context.Context, documentID uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRowContext(
		ctx,
		"SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1)",
		documentID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check document: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// periodDocuments resolves the documents period-tagged for (year, month).
func (r *repo) periodDocuments(ctx context.Context, year, month int) ([]uuid.UUID, error) {
	ids, err := repository.QueryMany(
		ctx, r.db,
		`SELECT DISTINCT document_id FROM document_tags
		 WHERE kind = 'period' AND year = $1 AND month = $2`,
		[]any{year, month},
		func(s repository.Scanner) (uuid.UUID, error) {
			var id uuid.UUID
			err := s.Scan(&id)
			return id, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("resolve period documents: %w", err)
	}
	return ids, nil
}

type memberContent struct {
	id       uuid.UUID
	filename string
	text     string
}

// fetchContents loads successfully parsed member texts in bounded parallel.
// Documents without usable content are skipped.
func (r *repo) fetchContents(ctx context.Context, ids []uuid.UUID) ([]memberContent, error) {
	var mu sync.Mutex
	contents := make([]memberContent, 0, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(contentFetchConcurrency)

	for _, id := range ids {
		g.Go(func() error {
			var filename, text string
			err := r.db.QueryRowContext(
				gctx,
				`SELECT d.filename, pc.markdown_text
				 FROM documents d
				 JOIN parsed_content pc ON pc.document_id = d.id
				 WHERE d.id = $1 AND pc.parse_status = 'success'`,
				id,
			).Scan(&filename, &text)
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch content %s: %w", id, err)
			}
			if text == "" {
				return nil
			}

			mu.Lock()
			contents = append(contents, memberContent{id: id, filename: filename, text: text})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(contents, func(i, j int) bool { return contents[i].filename < contents[j].filename })
	return contents, nil
}

func combine(contents []memberContent) string {
	var builder strings.Builder
	for _, c := range contents {
		builder.WriteString("### ")
		builder.WriteString(c.filename)
		builder.WriteString("\n\n")
		builder.WriteString(c.text)
		builder.WriteString("\n\n")
	}
	return strings.TrimSpace(builder.String())
}

// lockMetric returns the metric row id for (year, month), creating the row
// when absent. The returned row is locked for the transaction so concurrent
// committers to the same period serialize.
func lockMetric(ctx context.Context, tx *sql.Tx, year, month int) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRowContext(
		ctx,
		"SELECT id FROM financial_metrics WHERE year = $1 AND month = $2 FOR UPDATE",
		year, month,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("lock metric: %w", err)
	}

	err = tx.QueryRowContext(
		ctx,
		`INSERT INTO financial_metrics (id, year, month) VALUES ($1, $2, $3)
		 ON CONFLICT (year, month) DO UPDATE SET year = EXCLUDED.year
		 RETURNING id`,
		uuid.New(), year, month,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create metric: %w", err)
	}
	return id, nil
}

func attachDocuments(ctx context.Context, tx *sql.Tx, metricID uuid.UUID, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO metric_documents (metric_id, document_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			metricID, id,
		); err != nil {
			return fmt.Errorf("attach document %s: %w", id, err)
		}
	}
	return nil
}

func (r *repo) memberSummaries(ctx context.Context, metricID uuid.UUID) ([]DocumentSummary, error) {
	docs, err := repository.QueryMany(
		ctx, r.db,
		`SELECT d.id, d.filename
		 FROM metric_documents md
		 JOIN documents d ON d.id = md.document_id
		 WHERE md.metric_id = $1
		 ORDER BY d.filename, d.id`,
		[]any{metricID},
		func(s repository.Scanner) (DocumentSummary, error) {
			var d DocumentSummary
			err := s.Scan(&d.ID, &d.Filename)
			return d, err
		},
	)
	if err != nil {
		return nil, fmt.Errorf("query member documents: %w", err)
	}
	return docs, nil
}

func scanMetric(s repository.Scanner) (Metric, error) {
	var m Metric
	err := s.Scan(
		&m.ID,
		&m.Year,
		&m.Month,
		&m.Revenue,
		&m.Expenses,
		&m.Profit,
		&m.CashFlow,
		&m.AnalysisNotes,
		&m.LastAnalyzedAt,
	)
	return m, err
}
