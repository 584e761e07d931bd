// Package dataset defines the tabular data a Seldonian run operates on:
// a dataset's metadata (regime, columns, sensitive columns, label column),
// the row table itself, and the candidate/safety split used by the
// selection driver.
//
// A Dataset is immutable once built by New/LoadCSV: rows are read-only
// slices shared across splits, and splits are disjoint index ranges rather
// than copies.
//
// Errors:
//
//	ErrEmptyColumns      - metadata declared zero columns.
//	ErrUnknownRegime     - regime is neither supervised_learning nor reinforcement_learning.
//	ErrMissingLabelCol   - supervised regime with no label_column set.
//	ErrRowWidthMismatch  - a row passed to New, or a CSV header, does not have len(columns) fields
//	                       (LoadCSV's reader rejects short or long CSV data rows with its own error).
//	ErrUnknownColumn     - a sensitive/label/episode column name not in columns.
//	ErrFracOutOfRange    - split fraction outside (0,1).
package dataset

import (
	"errors"
	"fmt"
)

// Regime is the class of machine-learning problem the dataset was
// collected for.
type Regime string

const (
	RegimeSupervised Regime = "supervised_learning"
	RegimeRL         Regime = "reinforcement_learning"
)

// SubRegime further qualifies RegimeSupervised.
type SubRegime string

const (
	SubRegimeClassification SubRegime = "classification"
	SubRegimeRegression     SubRegime = "regression"
)

// Sentinel errors for dataset construction and splitting.
var (
	ErrEmptyColumns     = errors.New("dataset: metadata declares zero columns")
	ErrUnknownRegime    = errors.New("dataset: unrecognized regime")
	ErrMissingLabelCol  = errors.New("dataset: supervised regime requires label_column")
	ErrRowWidthMismatch = errors.New("dataset: row width does not match column count")
	ErrUnknownColumn    = errors.New("dataset: column name not present in metadata columns")
	ErrFracOutOfRange   = errors.New("dataset: split fraction must be in (0,1)")
)

// Metadata is the on-disk JSON schema describing a dataset's shape (spec §6).
type Metadata struct {
	Regime            Regime    `json:"regime"`
	SubRegime         SubRegime `json:"sub_regime,omitempty"`
	Columns           []string  `json:"columns"`
	SensitiveColumns  []string  `json:"sensitive_columns,omitempty"`
	LabelColumn       string    `json:"label_column,omitempty"`
	EpisodeIndexCol   string    `json:"episode_index_column,omitempty"`
	RewardCol         string    `json:"reward_column,omitempty"`
}

// Validate checks internal consistency of the metadata, independent of any
// loaded rows.
func (m Metadata) Validate() error {
	if len(m.Columns) == 0 {
		return ErrEmptyColumns
	}
	switch m.Regime {
	case RegimeSupervised:
		if m.LabelColumn == "" {
			return ErrMissingLabelCol
		}
	case RegimeRL:
		// no additional required fields
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRegime, m.Regime)
	}
	colIndex := columnIndex(m.Columns)
	for _, c := range m.SensitiveColumns {
		if _, ok := colIndex[c]; !ok {
			return fmt.Errorf("%w: sensitive column %q", ErrUnknownColumn, c)
		}
	}
	if m.LabelColumn != "" {
		if _, ok := colIndex[m.LabelColumn]; !ok {
			return fmt.Errorf("%w: label column %q", ErrUnknownColumn, m.LabelColumn)
		}
	}
	return nil
}

func columnIndex(columns []string) map[string]int {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return idx
}

// Option configures a Dataset at construction time.
type Option func(*Dataset)

// WithIncludeSensitiveColumns keeps sensitive columns among predictive
// features instead of dropping them (spec §3, include_sensitive_columns).
func WithIncludeSensitiveColumns() Option {
	return func(d *Dataset) { d.IncludeSensitiveColumns = true }
}

// WithIncludeIntercept prepends a column of 1s to assembled feature rows
// (spec §3, include_intercept_term).
func WithIncludeIntercept() Option {
	return func(d *Dataset) { d.IncludeIntercept = true }
}

// Dataset is an immutable table of rows plus the metadata describing them.
//
// Rows holds every row in column order exactly as loaded; Dataset never
// mutates it after construction, so splits can share the backing slice.
type Dataset struct {
	Meta                    Metadata
	Rows                    [][]float64
	IncludeSensitiveColumns bool
	IncludeIntercept        bool

	columnIndex map[string]int
}

// New builds a Dataset from metadata and already-parsed numeric rows.
// Every row must have len(meta.Columns) fields.
func New(meta Metadata, rows [][]float64, opts ...Option) (*Dataset, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != len(meta.Columns) {
			return nil, fmt.Errorf("%w: row %d has %d fields, want %d", ErrRowWidthMismatch, i, len(row), len(meta.Columns))
		}
	}
	d := &Dataset{
		Meta:        meta,
		Rows:        rows,
		columnIndex: columnIndex(meta.Columns),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ColumnIndex returns the zero-based position of a column name.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	i, ok := d.columnIndex[name]
	return i, ok
}

// NRows returns the number of rows in the dataset.
func (d *Dataset) NRows() int { return len(d.Rows) }

// Split partitions the dataset into a candidate split (fraction
// 1-fracSafety) and a safety split (fracSafety), in row order, matching
// spec §4.5's setup. fracSafety must be in (0,1).
func (d *Dataset) Split(fracSafety float64) (candidate, safety *Dataset, err error) {
	if fracSafety <= 0 || fracSafety >= 1 {
		return nil, nil, ErrFracOutOfRange
	}
	n := len(d.Rows)
	nSafety := int(float64(n) * fracSafety)
	nCandidate := n - nSafety

	candidate = &Dataset{
		Meta:                    d.Meta,
		Rows:                    d.Rows[:nCandidate],
		IncludeSensitiveColumns: d.IncludeSensitiveColumns,
		IncludeIntercept:        d.IncludeIntercept,
		columnIndex:             d.columnIndex,
	}
	safety = &Dataset{
		Meta:                    d.Meta,
		Rows:                    d.Rows[nCandidate:],
		IncludeSensitiveColumns: d.IncludeSensitiveColumns,
		IncludeIntercept:        d.IncludeIntercept,
		columnIndex:             d.columnIndex,
	}
	return candidate, safety, nil
}

// MaskRows returns the subset of rows for which every named conditional
// column equals 1 (spec §4.3's AND mask). An empty conditionalColumns
// returns all rows.
func (d *Dataset) MaskRows(conditionalColumns []string) ([][]float64, error) {
	if len(conditionalColumns) == 0 {
		return d.Rows, nil
	}
	colIdx := make([]int, len(conditionalColumns))
	for i, c := range conditionalColumns {
		idx, ok := d.ColumnIndex(c)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
		colIdx[i] = idx
	}
	out := make([][]float64, 0, len(d.Rows))
rowLoop:
	for _, row := range d.Rows {
		for _, idx := range colIdx {
			if row[idx] != 1 {
				continue rowLoop
			}
		}
		out = append(out, row)
	}
	return out, nil
}
