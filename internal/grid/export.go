package grid

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	utf8BOM         = "\ufeff"
	exportIndex     = "Datetime"
	exportTimestamp = "2006-01-02 15:04:05-07:00"
)

// ExportCSV writes the set as semicolon-separated text with comma decimals and a UTF-8 BOM.
// Timestamps are rendered in loc; missing values are left empty.
func ExportCSV(w io.Writer, ss SeriesSet, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'

	labels := ss.Labels()
	header := append([]string{exportIndex}, labels...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, ts := range ss.Timestamps() {
		record := make([]string, 0, len(labels)+1)
		record = append(record, ts.In(loc).Format(exportTimestamp))
		for _, v := range ss.Row(ts) {
			record = append(record, formatDecimal(v))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportFilename is the download name for a date selection.
func ExportFilename(start, end Date) string {
	return fmt.Sprintf("Hellas_Grid_%s_to_%s.csv", start, end)
}

func formatDecimal(v NullFloat) string {
	if !v.Valid {
		return ""
	}
	return strings.Replace(decimal.NewFromFloat(v.Float64).String(), ".", ",", 1)
}
