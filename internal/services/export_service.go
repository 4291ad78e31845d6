package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

// WriteResultsCSV writes one line per result row. The header is the
// union of all keys seen across rows; within each row new keys are added
// in sorted order so the column layout is deterministic. encoding/csv
// handles quoting (commas quoted, embedded quotes doubled).
func WriteResultsCSV(w io.Writer, rows []ResultRow) error {
	var header []string
	seen := make(map[string]bool)
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for key := range row {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if !seen[key] {
				seen[key] = true
				header = append(header, key)
			}
		}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, len(header))
		for i, key := range header {
			record[i] = csvCell(row[key])
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func csvCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(raw)
	}
}

// MarshalResultJSON pretty-prints the full envelope, not just the rows.
func MarshalResultJSON(envelope interface{}) ([]byte, error) {
	return json.MarshalIndent(envelope, "", "  ")
}

// WriteResultsPDF renders a compact tabular report of the discovered
// shows for offline sharing.
func WriteResultsPDF(w io.Writer, query string, rows []ResultRow) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, "Guest Booker - Deep Research Report")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 8, fmt.Sprintf("Query: %s", query))
	pdf.Ln(10)

	columns := []struct {
		key   string
		label string
		width float64
	}{
		{"name", "Name", 70},
		{"host", "Host", 50},
		{"platform", "Platform", 30},
		{"contact_email", "Contact", 70},
		{"subscriber_count", "Subscribers", 30},
	}

	pdf.SetFont("Arial", "B", 9)
	for _, col := range columns {
		pdf.CellFormat(col.width, 7, col.label, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range rows {
		for _, col := range columns {
			pdf.CellFormat(col.width, 6, csvCell(row[col.key]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}
