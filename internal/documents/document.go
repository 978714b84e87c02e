// Package documents implements the document registry for Tally.
// It provides types, data access, and business logic for document upload,
// metadata, parsed content, the status state machine, and cascade deletion.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document represents an uploaded artifact with its metadata and blob storage reference.
type Document struct {
	ID             uuid.UUID `json:"id"`
	Filename       string    `json:"filename"`
	StorageKey     string    `json:"storage_key"`
	OriginalFormat string    `json:"original_format"`
	PageCount      *int      `json:"page_count"`
	SizeBytes      int64     `json:"size_bytes"`
	Status         Status    `json:"status"`
	AIConfidence   *int      `json:"ai_confidence"`
	UploadedAt     time.Time `json:"uploaded_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ParseStatus describes the outcome of text extraction for a document.
type ParseStatus string

const (
	ParsePending ParseStatus = "pending"
	ParseSuccess ParseStatus = "success"
	ParseFailed  ParseStatus = "failed"
)

// ParsedContent holds the extracted text for a document. One row per
// document; reprocessing replaces it rather than appending.
type ParsedContent struct {
	DocumentID   uuid.UUID   `json:"document_id"`
	MarkdownText string      `json:"markdown_text"`
	ParseStatus  ParseStatus `json:"parse_status"`
	ParsedAt     time.Time   `json:"parsed_at"`
}

// CreateCommand carries the data needed to upload and register a new document.
// Data holds the raw file bytes. PageCount is optional and may be extracted
// by the caller via pdfcpu; nil values are stored as NULL.
type CreateCommand struct {
	Data      []byte
	Filename  string
	PageCount *int
}
