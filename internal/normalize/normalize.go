// Package normalize turns counts into the values a view plots: absolute counts, rates per
// 10,000 people, or percentages of a group total.
package normalize

import (
	"sort"
	"strings"

	"groupscholar-workforce-estimator/internal/allocate"
	"groupscholar-workforce-estimator/internal/dataset"
	"groupscholar-workforce-estimator/internal/estimatorerrors"
)

type Mode string

const (
	Absolute   Mode = "absolute"
	Per10K     Mode = "per_10k"
	Percentage Mode = "percentage"
	// PerCapita uses the same formula as Per10K.
	PerCapita Mode = "per_capita"
)

// ParseMode accepts the mode names plus "normalized" as an alias of per_10k. Unknown
// values return Absolute and false.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Absolute:
		return Absolute, true
	case Per10K, "normalized", "per10k":
		return Per10K, true
	case Percentage:
		return Percentage, true
	case PerCapita:
		return PerCapita, true
	}
	return Absolute, false
}

// Row is one bar of a result: a label on the category axis, an optional series within
// that label, the raw count and, for regional rows, the region population.
type Row struct {
	Label      string  `json:"label"`
	Series     string  `json:"series,omitempty"`
	Count      float64 `json:"count"`
	Population int64   `json:"population,omitempty"`
	Value      float64 `json:"value"`
}

// GroupKey selects the group a row's percentage is computed within.
type GroupKey func(Row) string

func ByLabel(r Row) string  { return r.Label }
func BySeries(r Row) string { return r.Series }

// FromObservations converts allocated observations into rows labelled by region. series
// names each observation's series; nil leaves Series empty.
func FromObservations(observations []allocate.Observation, series func(allocate.Observation) string) []Row {
	rows := make([]Row, 0, len(observations))
	for _, o := range observations {
		row := Row{Label: o.Region, Count: float64(o.Count), Population: o.Population, Value: float64(o.Count)}
		if series != nil {
			row.Series = series(o)
		}
		rows = append(rows, row)
	}
	return rows
}

// Normalize returns a new table with Value set according to mode. group is only used by
// Percentage and defaults to ByLabel. Rows whose value is undefined are omitted: rows
// without a population for the rate modes, and rows of a group summing to zero for
// Percentage.
func Normalize(rows []Row, mode Mode, group GroupKey) []Row {
	out := make([]Row, 0, len(rows))
	switch mode {
	case Per10K, PerCapita:
		for _, row := range rows {
			if row.Population <= 0 {
				continue
			}
			row.Value = allocate.Per10K(row.Count, row.Population)
			out = append(out, row)
		}
	case Percentage:
		if group == nil {
			group = ByLabel
		}
		sums := make(map[string]float64)
		for _, row := range rows {
			sums[group(row)] += row.Count
		}
		for _, row := range rows {
			value, err := Share(row.Count, sums[group(row)], group(row))
			if err != nil {
				continue
			}
			row.Value = value
			out = append(out, row)
		}
	default:
		for _, row := range rows {
			row.Value = row.Count
			out = append(out, row)
		}
	}
	return out
}

// Share returns value as a percentage of sum, or ErrUndefinedMetric when sum is zero.
func Share(value, sum float64, key string) (float64, error) {
	if sum == 0 {
		return 0, &estimatorerrors.ErrUndefinedMetric{Metric: "percentage", Key: key}
	}
	return value * 100 / sum, nil
}

// SortOrder names how a table is ordered.
type SortOrder string

const (
	SortByLabel SortOrder = "label"
	SortByValue SortOrder = "value"
)

// ParseSortOrder accepts "label", "province", "region" and "value"; anything else sorts by value.
func ParseSortOrder(s string) (SortOrder, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "label", "province", "region":
		return SortByLabel, true
	case "value":
		return SortByValue, true
	}
	return SortByValue, false
}

// Sort orders rows in place: lexically by label, or by value descending. Both are stable,
// so equal keys keep their insertion order.
func Sort(rows []Row, order SortOrder) {
	switch order {
	case SortByLabel:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Label < rows[j].Label
		})
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Value > rows[j].Value
		})
	}
}

// RecordRate carries a record's counts per 10,000 people of a single reference population.
type RecordRate struct {
	dataset.Record
	TotalPer10K float64 `json:"total_per_10k"`
	MenPer10K   float64 `json:"men_per_10k"`
	WomenPer10K float64 `json:"women_per_10k"`
}

// RecordRates expresses every record per 10,000 of population.
func RecordRates(records []dataset.Record, population int64) []RecordRate {
	out := make([]RecordRate, 0, len(records))
	for _, record := range records {
		out = append(out, RecordRate{
			Record:      record,
			TotalPer10K: allocate.Per10K(record.Total, population),
			MenPer10K:   allocate.Per10K(record.Men, population),
			WomenPer10K: allocate.Per10K(record.Women, population),
		})
	}
	return out
}
