// Package allocate synthesizes province-level counts from national totals. Each region
// receives its population share of the total, scaled by a random multiplier drawn from a
// variance policy. The output is an estimate, not a measurement, and differs per call
// unless the random source is seeded or the policy is fixed.
package allocate

import (
	"math"
	"math/rand"
	"time"

	"groupscholar-workforce-estimator/internal/dataset"
	"groupscholar-workforce-estimator/internal/estimatorerrors"
	"groupscholar-workforce-estimator/internal/region"
)

// AllOccupations labels observations produced by Aggregate.
const AllOccupations = "all"

// Observation is the synthetic count of one occupation in one region.
type Observation struct {
	Region     string  `json:"region"`
	Population int64   `json:"population"`
	Occupation string  `json:"occupation"`
	Count      int64   `json:"count"`
	Per10K     float64 `json:"per_10k"`
}

// Simulator distributes national totals across the regions of a registry.
type Simulator struct {
	registry *region.Registry
	rng      *rand.Rand
}

// NewSimulator returns a simulator drawing from rng. A nil rng is replaced by a
// clock-seeded thread-safe source.
func NewSimulator(registry *region.Registry, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = NewThreadsafeRand(time.Now().UnixNano())
	}
	return &Simulator{registry: registry, rng: rng}
}

// Allocate emits one observation per (occupation, region) pair, occupations in first-seen
// order and regions in registry order. When an occupation appears more than once its first
// row supplies the national total. An empty input yields ErrEmptyInput.
func (s *Simulator) Allocate(records []dataset.Record, policy VariancePolicy) ([]Observation, error) {
	if len(records) == 0 {
		return nil, &estimatorerrors.ErrEmptyInput{Message: "nothing to allocate"}
	}
	if policy == nil {
		policy = DefaultPolicy()
	}

	regions := s.registry.Regions()
	total := float64(s.registry.TotalPopulation())
	seen := make(map[string]struct{}, len(records))
	out := make([]Observation, 0, len(records)*len(regions))
	for _, record := range records {
		if _, dup := seen[record.Occupation]; dup {
			continue
		}
		seen[record.Occupation] = struct{}{}

		for _, r := range regions {
			v := policy.Multiplier(s.rng, r.Name)
			// T * (population / total) * v, ordered so exact shares stay exact
			count := int64(math.Floor(record.Total * float64(r.Population) * v / total))
			if count < 0 {
				count = 0
			}
			out = append(out, Observation{
				Region:     r.Name,
				Population: r.Population,
				Occupation: record.Occupation,
				Count:      count,
				Per10K:     Per10K(float64(count), r.Population),
			})
		}
	}
	return out, nil
}

// Aggregate sums observations per region, in first-seen region order. Counts and per-10k
// rates are summed as they are; population is taken once.
func Aggregate(observations []Observation) []Observation {
	index := make(map[string]int)
	var out []Observation
	for _, o := range observations {
		i, ok := index[o.Region]
		if !ok {
			index[o.Region] = len(out)
			out = append(out, Observation{
				Region:     o.Region,
				Population: o.Population,
				Occupation: AllOccupations,
				Count:      o.Count,
				Per10K:     o.Per10K,
			})
			continue
		}
		out[i].Count += o.Count
		out[i].Per10K += o.Per10K
	}
	return out
}

// Per10K is value per 10,000 people; 0 when population is not positive.
func Per10K(value float64, population int64) float64 {
	if population <= 0 {
		return 0
	}
	return value * 10000 / float64(population)
}
