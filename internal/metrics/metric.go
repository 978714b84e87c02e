// Package metrics aggregates per-period financial figures from the parsed
// content of member documents.
package metrics

import (
	"time"

	"github.com/google/uuid"
)

// Metric is one (year, month) aggregation row.
type Metric struct {
	ID             uuid.UUID  `json:"id"`
	Year           int        `json:"year"`
	Month          int        `json:"month"`
	Revenue        float64    `json:"revenue"`
	Expenses       float64    `json:"expenses"`
	Profit         float64    `json:"profit"`
	CashFlow       float64    `json:"cash_flow"`
	AnalysisNotes  string     `json:"analysis_notes"`
	LastAnalyzedAt *time.Time `json:"last_analyzed_at"`
}

// DocumentSummary identifies a member document in metric responses.
type DocumentSummary struct {
	ID       uuid.UUID `json:"id"`
	Filename string    `json:"filename"`
}

// Figures holds the four aggregate values of a metric.
type Figures struct {
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
	Profit   float64 `json:"profit"`
	CashFlow float64 `json:"cash_flow"`
}

// PeriodResult is the response for a single period lookup. A valid period
// with no metric row yields a zero-valued result with Exists false rather
// than a not-found error.
type PeriodResult struct {
	Year   int  `json:"year"`
	Month  int  `json:"month"`
	Exists bool `json:"exists"`
	Figures
	Documents      []DocumentSummary `json:"documents"`
	LastAnalyzedAt *time.Time        `json:"last_analyzed_at"`
}

// MonthCell is one row of a yearly table.
type MonthCell struct {
	Month          int               `json:"month"`
	Name           string            `json:"name"`
	HasData        bool              `json:"hasData"`
	Metrics        Figures           `json:"metrics"`
	Documents      []DocumentSummary `json:"documents"`
	LastAnalyzedAt *time.Time        `json:"lastAnalysisDate"`
}

// YearTable holds twelve month cells for a year.
type YearTable struct {
	Year   int         `json:"year"`
	Months []MonthCell `json:"months"`
}

// AnalyzeResult is the response of a period analysis run. Message is set
// when no documents could be resolved and no metric was written.
type AnalyzeResult struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Figures
	AnalysisNotes string `json:"analysis_notes,omitempty"`
	DocumentCount int    `json:"document_count"`
	Message       string `json:"message,omitempty"`
}

// AddResult acknowledges an add-to-records call.
type AddResult struct {
	ID       uuid.UUID `json:"id"`
	Status   string    `json:"status"`
	Periods  int       `json:"periods"`
	Analyzed bool      `json:"analyzed"`
}

// AssociateResult acknowledges a forced membership association.
type AssociateResult struct {
	Year        int         `json:"year"`
	Month       int         `json:"month"`
	DocumentIDs []uuid.UUID `json:"document_ids"`
	Message     string      `json:"message,omitempty"`
}

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthName returns the English name for month 1 through 12.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month-1]
}
