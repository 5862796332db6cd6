package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a basic tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
// Registers with many columns switch to landscape so name columns keep
// enough room.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	orientation, tableWidth := "P", 190.0
	if len(data.Headers) > 5 {
		orientation, tableWidth = "L", 277.0
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	widths := columnWidths(data, tableWidth)

	pdf.SetFont("Arial", "B", 10)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			value := row[header]
			pdf.CellFormat(widths[i], 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths shares the table width by the longest value each column
// holds, so name columns get more room than status or date columns.
func columnWidths(data Dataset, tableWidth float64) []float64 {
	longest := make([]int, len(data.Headers))
	total := 0
	for i, header := range data.Headers {
		longest[i] = len(header)
		for _, row := range data.Rows {
			if n := len(row[header]); n > longest[i] {
				longest[i] = n
			}
		}
		total += longest[i]
	}
	widths := make([]float64, len(data.Headers))
	minShare := float64(total) / float64(len(data.Headers)) / 2
	scaled := 0.0
	for i := range widths {
		widths[i] = float64(longest[i])
		if widths[i] < minShare {
			widths[i] = minShare
		}
		scaled += widths[i]
	}
	for i := range widths {
		widths[i] = tableWidth * widths[i] / scaled
	}
	return widths
}
