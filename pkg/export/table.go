// Package export renders availability reports as downloadable files.
package export

import (
	"fmt"
	"time"
)

// Format identifies a rendered report encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat normalises a query value, defaulting to CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported report format %q", raw)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Table is an ordered grid of report cells.
type Table struct {
	Title       string
	Subtitle    string
	Columns     []string
	Rows        [][]string
	GeneratedAt time.Time
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("report requires at least one column")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// Filename builds an attachment name like "availability-user-1-20240301.csv".
func Filename(prefix string, day time.Time, f Format) string {
	return fmt.Sprintf("%s-%s.%s", prefix, day.Format("20060102"), f)
}

// Renderer encodes a table.
type Renderer interface {
	Render(Table) ([]byte, error)
}

// For returns the renderer registered for the format.
func For(f Format) Renderer {
	if f == FormatPDF {
		return NewPDFRenderer()
	}
	return NewCSVRenderer()
}
