// Package ai implements the AI classifier collaborator: period detection and
// financial figure extraction over an OpenAI-compatible chat completions
// endpoint. Calls are guarded by a circuit breaker and a client-side rate
// limit; there are no automatic retries, reprocessing is always explicit.
package ai

import (
	"context"
	"errors"
)

// Period is a detected reporting period with a 0-100 confidence score.
type Period struct {
	Year       int `json:"year"`
	Month      int `json:"month"`
	Confidence int `json:"confidence"`
}

// Detection is the result of period classification for one document.
// Periods may be empty when the model cannot determine a reporting period.
type Detection struct {
	Periods    []Period `json:"periods"`
	Tags       []string `json:"tags"`
	Confidence int      `json:"confidence"`
}

// Financials holds the extracted aggregate figures for one period.
type Financials struct {
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
	Profit   float64 `json:"profit"`
	CashFlow float64 `json:"cash_flow"`
	Notes    string  `json:"analysis_notes"`
}

// Classifier is the contract consumed by the extraction coordinator and the
// metrics aggregator.
type Classifier interface {
	// DetectPeriods classifies which reporting period(s) the document text
	// refers to. The filename is passed as a hint.
	DetectPeriods(ctx context.Context, text, filename string) (*Detection, error)

	// ExtractFinancials computes aggregate financial figures for the given
	// period from the concatenated text of its member documents.
	ExtractFinancials(ctx context.Context, text string, year, month int) (*Financials, error)
}

// ErrClassification wraps every failure mode of the classifier: transport
// errors, non-2xx responses, open circuit, and unparseable model output.
var ErrClassification = errors.New("classification failed")
