package model

import (
	"encoding/csv"
	"io"
	"strings"
)

// WriteCSV serializes rows back to CSV form, emitting a header row
// whenever the schema changes between consecutive rows. Re-parsing the
// output yields field-identical rows.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	var current string
	for _, row := range rows {
		header := row.Header()
		sig := strings.Join(header, ",")
		if sig != current {
			if err := cw.Write(header); err != nil {
				return err
			}
			current = sig
		}
		if err := cw.Write(row.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
