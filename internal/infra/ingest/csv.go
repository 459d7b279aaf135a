package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pandemetrix/pandemetrix/internal/domain/dataset"
)

// CSVDecoder turns a raw CSV stream into a table. Cells stay strings;
// type coercion belongs to the repair stage.
type CSVDecoder struct{}

// NewCSVDecoder constructs the decoder.
func NewCSVDecoder() *CSVDecoder {
	return &CSVDecoder{}
}

// Decode reads the header and all rows. Ragged rows are tolerated:
// short rows get missing cells, long rows are truncated to the header.
func (d *CSVDecoder) Decode(r io.Reader) (*dataset.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := dataset.New(header...)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		row := make(map[string]any, len(header))
		for i, name := range header {
			if i >= len(record) {
				break
			}
			cell := strings.TrimSpace(record[i])
			if cell == "" {
				continue
			}
			row[name] = cell
		}
		table.AppendRow(row)
	}
	return table, nil
}
