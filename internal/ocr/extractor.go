package ocr

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/fundsight/tally/pkg/storage"
)

type extractor struct {
	store  storage.System
	logger *slog.Logger
}

// New creates an extraction system that reads blobs from the given store
// and parses them locally.
func New(store storage.System, logger *slog.Logger) System {
	return &extractor{
		store:  store,
		logger: logger.With("system", "ocr"),
	}
}

func (e *extractor) Extract(ctx context.Context, key, format string) (string, error) {
	reader, err := e.store.Download(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: download %s: %w", ErrExtraction, key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", ErrExtraction, key, err)
	}

	text, err := Convert(data, format)
	if err != nil {
		return "", err
	}

	e.logger.Info("content extracted", "key", key, "format", format, "chars", len(text))
	return text, nil
}

// Convert parses raw file data in the given format into markdown text.
func Convert(data []byte, format string) (string, error) {
	switch strings.ToLower(format) {
	case "pdf":
		return convertPDF(data)
	case "xlsx", "xls":
		return convertExcel(data)
	case "csv":
		return convertCSV(data)
	case "txt", "md":
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func convertPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %w", ErrExtraction, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: read pdf text: %w", ErrExtraction, err)
	}

	var builder strings.Builder
	if _, err := io.Copy(&builder, plain); err != nil {
		return "", fmt.Errorf("%w: read pdf text: %w", ErrExtraction, err)
	}

	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", fmt.Errorf("%w: pdf contains no extractable text", ErrExtraction)
	}
	return text, nil
}

func convertExcel(data []byte) (string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: open workbook: %w", ErrExtraction, err)
	}
	defer file.Close()

	var builder strings.Builder
	for _, sheet := range file.GetSheetList() {
		rows, err := file.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("%w: read sheet %s: %w", ErrExtraction, sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		builder.WriteString("## ")
		builder.WriteString(sheet)
		builder.WriteString("\n\n")
		writeTable(&builder, rows)
		builder.WriteString("\n")
	}

	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", fmt.Errorf("%w: workbook contains no data", ErrExtraction)
	}
	return text, nil
}

func convertCSV(data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("%w: parse csv: %w", ErrExtraction, err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("%w: csv contains no data", ErrExtraction)
	}

	var builder strings.Builder
	writeTable(&builder, rows)
	return strings.TrimSpace(builder.String()), nil
}

// writeTable renders rows as a markdown table using the first row as the
// header. Ragged rows are padded to the header width.
func writeTable(builder *strings.Builder, rows [][]string) {
	width := len(rows[0])
	for _, row := range rows[1:] {
		if len(row) > width {
			width = len(row)
		}
	}

	writeRow(builder, rows[0], width)

	builder.WriteString("|")
	for range width {
		builder.WriteString(" --- |")
	}
	builder.WriteString("\n")

	for _, row := range rows[1:] {
		writeRow(builder, row, width)
	}
}

func writeRow(builder *strings.Builder, row []string, width int) {
	builder.WriteString("|")
	for i := range width {
		cell := ""
		if i < len(row) {
			cell = strings.ReplaceAll(row[i], "|", "\\|")
		}
		builder.WriteString(" ")
		builder.WriteString(cell)
		builder.WriteString(" |")
	}
	builder.WriteString("\n")
}
