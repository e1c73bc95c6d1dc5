// Package gender computes men/women ratios and parity indices for occupations and groups.
package gender

import (
	"math"

	"groupscholar-workforce-estimator/internal/dataset"
	"groupscholar-workforce-estimator/internal/estimatorerrors"
)

// Metrics describes the gender balance of one occupation or group.
//
// Ratio is men/women. Parity is min(men, women)/max(men, women), 1 meaning perfectly
// balanced. Deviation is |Ratio - 1|.
type Metrics struct {
	Key       string  `json:"key"`
	Men       float64 `json:"men"`
	Women     float64 `json:"women"`
	Ratio     float64 `json:"ratio"`
	Parity    float64 `json:"parity"`
	Deviation float64 `json:"deviation"`
}

// Ratio returns men/women, or ErrUndefinedMetric when women is zero.
func Ratio(men, women float64) (float64, error) {
	if women == 0 {
		return 0, &estimatorerrors.ErrUndefinedMetric{Metric: "gender ratio"}
	}
	return men / women, nil
}

// Parity returns min/max of the two counts. It shares the ratio's domain: undefined when
// women is zero.
func Parity(men, women float64) (float64, error) {
	if women == 0 {
		return 0, &estimatorerrors.ErrUndefinedMetric{Metric: "parity index"}
	}
	return math.Min(men, women) / math.Max(men, women), nil
}

// Compute returns the metrics of a single record.
func Compute(record dataset.Record) (Metrics, error) {
	return compute(record.Occupation, record.Men, record.Women)
}

func compute(key string, men, women float64) (Metrics, error) {
	if women == 0 {
		return Metrics{}, &estimatorerrors.ErrUndefinedMetric{Metric: "gender ratio", Key: key}
	}
	ratio, _ := Ratio(men, women)
	parity, _ := Parity(men, women)
	return Metrics{
		Key:       key,
		Men:       men,
		Women:     women,
		Ratio:     ratio,
		Parity:    parity,
		Deviation: math.Abs(ratio - 1),
	}, nil
}

// ComputeAll returns the metrics of every record with defined metrics, in input order, and
// the occupations that were skipped.
func ComputeAll(records []dataset.Record) ([]Metrics, []string) {
	out := make([]Metrics, 0, len(records))
	var undefined []string
	for _, record := range records {
		m, err := Compute(record)
		if err != nil {
			undefined = append(undefined, record.Occupation)
			continue
		}
		out = append(out, m)
	}
	return out, undefined
}

// Group sums the men and women of records and computes the metrics of the total under key.
func Group(key string, records []dataset.Record) (Metrics, error) {
	var men, women float64
	for _, record := range records {
		men += record.Men
		women += record.Women
	}
	return compute(key, men, women)
}
