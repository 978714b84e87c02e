package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fundsight/tally/internal/consistency"
	"github.com/fundsight/tally/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a tag repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "tags"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

const tagColumns = "id, document_id, kind, value, ai_detected, confidence, year, month, created_at"

func (r *repo) List(ctx context.Context, documentID uuid.UUID, kind *Kind) ([]Tag, error) {
	q := "SELECT " + tagColumns + " FROM document_tags WHERE document_id = $1"
	args := []any{documentID}

	if kind != nil {
		q += " AND kind = $2"
		args = append(args, *kind)
	}
	q += " ORDER BY created_at, id"

	tags, err := repository.QueryMany(ctx, r.db, q, args, scanTag)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	return tags, nil
}

func (r *repo) Periods(ctx context.Context, documentID uuid.UUID) ([]Period, error) {
	q := `
		SELECT year, month, confidence
		FROM document_tags
		WHERE document_id = $1 AND kind = 'period'
		  AND year IS NOT NULL AND month IS NOT NULL
		ORDER BY year, month`

	periods, err := repository.QueryMany(ctx, r.db, q, []any{documentID}, scanPeriod)
	if err != nil {
		return nil, fmt.Errorf("query period tags: %w", err)
	}
	return periods, nil
}

func (r *repo) ReplacePeriodTags(ctx context.Context, documentID uuid.UUID, periods []Period, aiDetected bool) error {
	for _, p := range periods {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := ensureDocument(ctx, tx, documentID); err != nil {
			return struct{}{}, err
		}

		if _, err := tx.ExecContext(
			ctx,
			"DELETE FROM document_tags WHERE document_id = $1 AND kind = 'period' AND ai_detected = TRUE",
			documentID,
		); err != nil {
			return struct{}{}, fmt.Errorf("clear period tags: %w", err)
		}

		return struct{}{}, insertPeriodTags(ctx, tx, documentID, periods, aiDetected)
	})

	if err != nil {
		return err
	}

	r.logger.Info("period tags replaced", "document_id", documentID, "count", len(periods), "ai_detected", aiDetected)
	return nil
}

func (r *repo) ReplaceTypeTags(ctx context.Context, documentID uuid.UUID, values []string, aiDetected bool, confidence *int) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := ensureDocument(ctx, tx, documentID); err != nil {
			return struct{}{}, err
		}

		if _, err := tx.ExecContext(
			ctx,
			"DELETE FROM document_tags WHERE document_id = $1 AND kind = 'type' AND ai_detected = TRUE",
			documentID,
		); err != nil {
			return struct{}{}, fmt.Errorf("clear type tags: %w", err)
		}

		return struct{}{}, insertValueTags(ctx, tx, documentID, KindType, values, aiDetected, confidence)
	})
	return err
}

func (r *repo) SetCustomTags(ctx context.Context, documentID uuid.UUID, values []string) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := ensureDocument(ctx, tx, documentID); err != nil {
			return struct{}{}, err
		}

		if _, err := tx.ExecContext(
			ctx,
			"DELETE FROM document_tags WHERE document_id = $1 AND kind = 'custom'",
			documentID,
		); err != nil {
			return struct{}{}, fmt.Errorf("clear custom tags: %w", err)
		}

		return struct{}{}, insertValueTags(ctx, tx, documentID, KindCustom, values, false, nil)
	})
	return err
}

func (r *repo) SetStatusTag(ctx context.Context, documentID uuid.UUID, value string) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := ensureDocument(ctx, tx, documentID); err != nil {
			return struct{}{}, err
		}

		if _, err := tx.ExecContext(
			ctx,
			"DELETE FROM document_tags WHERE document_id = $1 AND kind = 'status'",
			documentID,
		); err != nil {
			return struct{}{}, fmt.Errorf("clear status tag: %w", err)
		}

		return struct{}{}, insertValueTags(ctx, tx, documentID, KindStatus, []string{value}, false, nil)
	})
	return err
}

func (r *repo) ApplyExtraction(ctx context.Context, documentID uuid.UUID, periods []Period, types []string, confidence int) error {
	for _, p := range periods {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(
			ctx,
			"DELETE FROM document_tags WHERE document_id = $1 AND kind IN ('period', 'type') AND ai_detected = TRUE",
			documentID,
		); err != nil {
			return struct{}{}, fmt.Errorf("clear detected tags: %w", err)
		}

		if err := insertPeriodTags(ctx, tx, documentID, periods, true); err != nil {
			return struct{}{}, err
		}

		if err := insertValueTags(ctx, tx, documentID, KindType, types, true, &confidence); err != nil {
			return struct{}{}, err
		}

		err := repository.ExecExpectOne(
			ctx, tx,
			"UPDATE documents SET ai_confidence = $1, status = 'complete', updated_at = NOW() WHERE id = $2 AND status = 'analyzing'",
			confidence, documentID,
		)
		if errors.Is(err, sql.ErrNoRows) {
			// The status guard missed: the document is not analyzing.
			return struct{}{}, ErrInvalidStatus
		}
		if err != nil {
			return struct{}{}, fmt.Errorf("complete document: %w", err)
		}

		return struct{}{}, nil
	})

	if err != nil {
		return err
	}

	r.logger.Info(
		"extraction applied",
		"document_id", documentID,
		"periods", len(periods),
		"types", len(types),
		"confidence", confidence,
	)
	return nil
}

func (r *repo) ApplyDetection(ctx context.Context, documentID uuid.UUID, periods []Period, types []string, confidence int) error {
	for _, p := range periods {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := ensureDocument(ctx, tx, documentID); err != nil {
			return struct{}{}, err
		}

		if _, err := tx.ExecContext(
			ctx,
			"DELETE FROM document_tags WHERE document_id = $1 AND kind IN ('period', 'type') AND ai_detected = TRUE",
			documentID,
		); err != nil {
			return struct{}{}, fmt.Errorf("clear detected tags: %w", err)
		}

		if err := insertPeriodTags(ctx, tx, documentID, periods, true); err != nil {
			return struct{}{}, err
		}

		if err := insertValueTags(ctx, tx, documentID, KindType, types, true, &confidence); err != nil {
			return struct{}{}, err
		}

		if _, err := tx.ExecContext(
			ctx,
			"UPDATE documents SET ai_confidence = $1, updated_at = NOW() WHERE id = $2",
			confidence, documentID,
		); err != nil {
			return struct{}{}, fmt.Errorf("update confidence: %w", err)
		}

		return struct{}{}, nil
	})

	if err != nil {
		return err
	}

	r.logger.Info(
		"detection applied",
		"document_id", documentID,
		"periods", len(periods),
		"types", len(types),
		"confidence", confidence,
	)
	return nil
}

func (r *repo) UpdateTags(ctx context.Context, documentID uuid.UUID, cmd UpdateCommand) error {
	if cmd.Empty() {
		return fmt.Errorf("%w: no tags provided", ErrValidation)
	}

	periods, err := cmd.Periods()
	if err != nil {
		return err
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := ensureDocument(ctx, tx, documentID); err != nil {
			return struct{}{}, err
		}

		if len(periods) > 0 {
			keep := make([]consistency.Period, len(periods))
			for i, p := range periods {
				keep[i] = consistency.Period{Year: p.Year, Month: p.Month}
			}

			detached, err := consistency.DetachMismatched(ctx, tx, documentID, keep)
			if err != nil {
				return struct{}{}, err
			}
			if detached > 0 {
				r.logger.Info("document detached from stale metrics", "document_id", documentID, "memberships", detached)
			}

			// Manual correction redefines the document's period outright,
			// replacing AI-detected and earlier manual tags alike.
			if _, err := tx.ExecContext(
				ctx,
				"DELETE FROM document_tags WHERE document_id = $1 AND kind = 'period'",
				documentID,
			); err != nil {
				return struct{}{}, fmt.Errorf("clear period tags: %w", err)
			}

			if err := insertPeriodTags(ctx, tx, documentID, periods, false); err != nil {
				return struct{}{}, err
			}
		}

		if len(cmd.CustomTags) > 0 {
			if _, err := tx.ExecContext(
				ctx,
				"DELETE FROM document_tags WHERE document_id = $1 AND kind = 'custom'",
				documentID,
			); err != nil {
				return struct{}{}, fmt.Errorf("clear custom tags: %w", err)
			}

			if err := insertValueTags(ctx, tx, documentID, KindCustom, cmd.CustomTags, false, nil); err != nil {
				return struct{}{}, err
			}
		}

		return struct{}{}, nil
	})

	if err != nil {
		return err
	}

	r.logger.Info("tags updated", "document_id", documentID, "periods", len(periods), "custom", len(cmd.CustomTags))
	return nil
}

func ensureDocument(ctx context.Context, tx *sql.Tx, documentID uuid.UUID) error {
	var exists bool
	if err := tx.QueryRowContext(
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

func insertPeriodTags(ctx context.Context, tx *sql.Tx, documentID uuid.UUID, periods []Period, aiDetected bool) error {
	for _, p := range periods {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO document_tags(id, document_id, kind, value, ai_detected, confidence, year, month)
			 VALUES ($1, $2, 'period', $3, $4, $5, $6, $7)`,
			uuid.New(), documentID, p.Value(), aiDetected, p.Confidence, p.Year, p.Month,
		); err != nil {
			return fmt.Errorf("insert period tag: %w", err)
		}
	}
	return nil
}

func insertValueTags(ctx context.Context, tx *sql.Tx, documentID uuid.UUID, kind Kind, values []string, aiDetected bool, confidence *int) error {
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO document_tags(id, document_id, kind, value, ai_detected, confidence)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), documentID, kind, v, aiDetected, confidence,
		); err != nil {
			return fmt.Errorf("insert %s tag: %w", kind, err)
		}
	}
	return nil
}

func scanTag(s repository.Scanner) (Tag, error) {
	var t Tag
	err := s.Scan(
		&t.ID,
		&t.DocumentID,
		&t.Kind,
		&t.Value,
		&t.AIDetected,
		&t.Confidence,
		&t.Year,
		&t.Month,
		&t.CreatedAt,
	)
	return t, err
}

func scanPeriod(s repository.Scanner) (Period, error) {
	var p Period
	err := s.Scan(&p.Year, &p.Month, &p.Confidence)
	return p, err
}
