// Package dataset loads and cleans the occupation table: one row per occupation with
// total, male and female employment counts.
package dataset

import (
	"math"
	"strconv"
	"strings"
)

// Record is a cleaned occupation row. Total, Men and Women are non-negative and finite.
type Record struct {
	Occupation string  `json:"occupation"`
	Total      float64 `json:"total"`
	Men        float64 `json:"men"`
	Women      float64 `json:"women"`
}

// Dataset is the canonical, read-only record collection produced by a loader.
type Dataset struct {
	source  string
	records []Record
	dropped int
}

// New builds a dataset from already-clean records, e.g. test fixtures.
func New(source string, records []Record) *Dataset {
	return newDataset(source, records, 0)
}

func newDataset(source string, records []Record, dropped int) *Dataset {
	owned := make([]Record, len(records))
	copy(owned, records)
	return &Dataset{source: source, records: owned, dropped: dropped}
}

func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

func (d *Dataset) Len() int { return len(d.records) }

// Dropped is the number of source rows excluded because a count could not be parsed.
func (d *Dataset) Dropped() int { return d.dropped }

func (d *Dataset) Source() string { return d.source }

// CleanNumber strips thousands separators, quote characters and surrounding space from s
// and parses the remainder. ok is false for empty, non-numeric, negative or non-finite values.
func CleanNumber(s string) (value float64, ok bool) {
	cleaned := strings.NewReplacer(",", "", `"`, "").Replace(s)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, false
	}
	return value, true
}
