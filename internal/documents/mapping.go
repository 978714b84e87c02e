package documents

import (
	"net/url"

	"github.com/fundsight/tally/pkg/query"
	"github.com/fundsight/tally/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "documents", "d").
	Project("id", "ID").
	Project("filename", "Filename").
	Project("storage_key", "StorageKey").
	Project("original_format", "OriginalFormat").
	Project("page_count", "PageCount").
	Project("size_bytes", "SizeBytes").
	Project("status", "Status").
	Project("ai_confidence", "AIConfidence").
	Project("uploaded_at", "UploadedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "UploadedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for document queries.
// Nil fields are ignored. Status and OriginalFormat use exact matching;
// Filename uses case-insensitive contains matching.
type Filters struct {
	Status         *string `json:"status,omitempty"`
	Filename       *string `json:"filename,omitempty"`
	OriginalFormat *string `json:"original_format,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereContains("Filename", f.Filename).
		WhereEquals("OriginalFormat", f.OriginalFormat)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}

	if of := values.Get("original_format"); of != "" {
		f.OriginalFormat = &of
	}

	return f
}

func scanDocument(s repository.Scanner) (Document, error) {
	var d Document
	err := s.Scan(
		&d.ID,
		&d.Filename,
		&d.StorageKey,
		&d.OriginalFormat,
		&d.PageCount,
		&d.SizeBytes,
		&d.Status,
		&d.AIConfidence,
		&d.UploadedAt,
		&d.UpdatedAt,
	)
	return d, err
}

func scanContent(s repository.Scanner) (ParsedContent, error) {
	var c ParsedContent
	err := s.Scan(
		&c.DocumentID,
		&c.MarkdownText,
		&c.ParseStatus,
		&c.ParsedAt,
	)
	return c, err
}
