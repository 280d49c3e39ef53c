// Package tabular is the CSV collaborator boundary: it hands the
// engine a header row plus field-by-header rows, and maps arbitrary
// vendor headers onto semantic roles.
package tabular

import (
	"encoding/csv"
	"errors"
	"io"
)

// Row is one data row keyed by the original (unnormalized) header.
type Row map[string]string

// Table is the parsed form of one uploaded export: the header row as
// given plus every data row. Short rows are padded with empty fields;
// long rows keep only the headered columns.
type Table struct {
	Filename string
	Headers  []string
	Rows     []Row
}

// ErrNoHeader reports a file whose header row could not be read. This
// is the only artifact-level failure a CSV upload can produce.
var ErrNoHeader = errors.New("tabular: no header row")

// ReadCSV decodes one export file into a Table. Byte-encoding
// fallbacks are the upload layer's concern; r must already yield text.
func ReadCSV(filename string, r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return Table{Filename: filename}, ErrNoHeader
	}

	t := Table{Filename: filename, Headers: headers}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Malformed rows degrade to a skip; row-level defects are
			// never fatal.
			continue
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Get returns the trimmed-as-given field for a header, tolerating a
// missing column.
func (r Row) Get(header string) string {
	if header == "" {
		return ""
	}
	return r[header]
}
