// Package tags implements the tagging engine for Tally. Tags are labeled
// facts about a document: the reporting period(s) it covers, its detected
// type, user-supplied custom labels, and record-keeping status markers.
// Mutation follows delete-then-insert replacement semantics scoped per kind,
// with AI-detected and manually entered tags kept apart so that automated
// re-analysis never clobbers a manual correction.
package tags

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the tag categories stored in document_tags.
type Kind string

const (
	KindPeriod Kind = "period"
	KindType   Kind = "type"
	KindCustom Kind = "custom"
	KindStatus Kind = "status"
)

// ParseKind validates a raw string as a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPeriod, KindType, KindCustom, KindStatus:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: unknown tag kind %q", ErrValidation, s)
	}
}

// Tag is a single labeled fact about a document.
type Tag struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Kind       Kind      `json:"kind"`
	Value      string    `json:"value"`
	AIDetected bool      `json:"ai_detected"`
	Confidence *int      `json:"confidence"`
	Year       *int      `json:"year"`
	Month      *int      `json:"month"`
	CreatedAt  time.Time `json:"created_at"`
}

// Period is a (year, month) reporting period with an optional confidence
// score for AI-derived detections.
type Period struct {
	Year       int  `json:"year"`
	Month      int  `json:"month"`
	Confidence *int `json:"confidence,omitempty"`
}

// Validate rejects periods outside the supported calendar range.
func (p Period) Validate() error {
	if p.Year < 1900 || p.Year > 2100 {
		return fmt.Errorf("%w: year must be between 1900 and 2100", ErrValidation)
	}
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month must be between 1 and 12", ErrValidation)
	}
	return nil
}

// Value renders the canonical tag value for the period, e.g. "7/2024".
func (p Period) Value() string {
	return fmt.Sprintf("%d/%d", p.Month, p.Year)
}

// UpdateCommand carries a manual tag correction. Either the single
// Year/Month pair or PeriodTags may specify the new reporting periods;
// CustomTags replaces the document's custom labels. All resulting tags are
// stored with ai_detected=false.
type UpdateCommand struct {
	Year       *int     `json:"year,omitempty"`
	Month      *int     `json:"month,omitempty"`
	PeriodTags []Period `json:"period_tags,omitempty"`
	CustomTags []string `json:"custom_tags,omitempty"`
}

// Periods resolves the command to the full set of requested periods.
func (c UpdateCommand) Periods() ([]Period, error) {
	periods := make([]Period, 0, len(c.PeriodTags)+1)

	if c.Year != nil || c.Month != nil {
		if c.Year == nil || c.Month == nil {
			return nil, fmt.Errorf("%w: year and month must be provided together", ErrValidation)
		}
		periods = append(periods, Period{Year: *c.Year, Month: *c.Month})
	}

	periods = append(periods, c.PeriodTags...)

	for _, p := range periods {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	return periods, nil
}

// Empty reports whether the command carries no changes at all.
func (c UpdateCommand) Empty() bool {
	return c.Year == nil && c.Month == nil && len(c.PeriodTags) == 0 && len(c.CustomTags) == 0
}
