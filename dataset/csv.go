package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// LoadMetadataJSON decodes dataset metadata from r. Unknown keys are
// rejected (spec §9: "unknown fields should be rejected"), matching the
// rest of this module's functional-options validate-early policy.
func LoadMetadataJSON(r io.Reader) (Metadata, error) {
	var meta Metadata
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&meta); err != nil {
		return Metadata{}, fmt.Errorf("dataset: decoding metadata: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// LoadCSV reads numeric rows from r. The header row, if present, must match
// meta.Columns in order; headerPresent controls whether the first record is
// treated as a header (and checked) or as data.
func LoadCSV(r io.Reader, meta Metadata, headerPresent bool, opts ...Option) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(meta.Columns)

	var rows [][]float64
	first := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: reading csv: %w", err)
		}
		if first && headerPresent {
			first = false
			if err := checkHeader(record, meta.Columns); err != nil {
				return nil, err
			}
			continue
		}
		first = false
		row := make([]float64, len(record))
		for i, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("dataset: parsing field %d (%q): %w", i, field, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return New(meta, rows, opts...)
}

func checkHeader(record, columns []string) error {
	if len(record) != len(columns) {
		return fmt.Errorf("%w: header has %d fields, want %d", ErrRowWidthMismatch, len(record), len(columns))
	}
	for i := range columns {
		if record[i] != columns[i] {
			return fmt.Errorf("dataset: header field %d is %q, want %q", i, record[i], columns[i])
		}
	}
	return nil
}
