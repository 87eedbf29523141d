package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVExporter streams a timetable dataset as CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render writes the dataset to w, header row first. Rows narrower than
// the header set are right-padded so every record has the same width.
func (e *CSVExporter) Render(w io.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("dataset has no headers")
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(data.Headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range data.Rows {
		record := row
		if len(record) != len(data.Headers) {
			padded := make([]string, len(data.Headers))
			copy(padded, record)
			record = padded
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
