// Package insight answers the dashboard's analytical queries. An Engine is built once from
// a loaded dataset and a region registry and is then shared, read-only, by every request.
package insight

import (
	"math/rand"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"groupscholar-workforce-estimator/internal/allocate"
	"groupscholar-workforce-estimator/internal/classify"
	"groupscholar-workforce-estimator/internal/dataset"
	"groupscholar-workforce-estimator/internal/logging"
	"groupscholar-workforce-estimator/internal/region"
)

type Engine struct {
	dataset    *dataset.Dataset
	classifier *classify.Classifier
	simulator  *allocate.Simulator
	log        *log.Entry

	rng           *rand.Rand
	defaultPolicy allocate.VariancePolicy
	hubPolicy     allocate.VariancePolicy

	// classified once at construction
	essential   []dataset.Record
	engineering []dataset.Record
	topLevel    []dataset.Record
}

type Option func(*Engine)

// WithSeed seeds a thread-safe random source.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = allocate.NewThreadsafeRand(seed) }
}

// WithPolicies replaces the default and engineering (hub) variance policies. A nil policy
// keeps the built-in one.
func WithPolicies(defaultPolicy, hubPolicy allocate.VariancePolicy) Option {
	return func(e *Engine) {
		if defaultPolicy != nil {
			e.defaultPolicy = defaultPolicy
		}
		if hubPolicy != nil {
			e.hubPolicy = hubPolicy
		}
	}
}

func WithLogger(entry *log.Entry) Option {
	return func(e *Engine) { e.log = entry }
}

func NewEngine(ds *dataset.Dataset, registry *region.Registry, opts ...Option) *Engine {
	e := &Engine{
		dataset:       ds,
		classifier:    classify.New(),
		defaultPolicy: allocate.DefaultPolicy(),
		hubPolicy:     allocate.DefaultHubPolicy(),
		log:           logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.simulator = allocate.NewSimulator(registry, e.rng)

	records := ds.Records()
	e.essential = e.classifier.Essential(records)
	e.engineering = e.classifier.Engineering(records)
	e.topLevel = classify.TopLevelRecords(records)

	e.log.WithFields(log.Fields{
		"records":     len(records),
		"essential":   len(e.essential),
		"engineering": len(e.engineering),
		"top_level":   len(e.topLevel),
		"regions":     registry.Len(),
	}).Debug("engine ready")
	return e
}

func (e *Engine) Records() []dataset.Record {
	return e.dataset.Records()
}

// TopLevelOccupations lists the distinct top-level NOC occupations in dataset order; these
// are the valid selections for GenderEmployment.
func (e *Engine) TopLevelOccupations() []string {
	return uniqueOccupations(e.topLevel)
}

func (e *Engine) requestLogger(view string) (string, *log.Entry) {
	id := uuid.NewString()
	return id, e.log.WithFields(log.Fields{"view": view, "request_id": id})
}

func uniqueOccupations(records []dataset.Record) []string {
	seen := make(map[string]struct{}, len(records))
	var out []string
	for _, record := range records {
		if _, ok := seen[record.Occupation]; ok {
			continue
		}
		seen[record.Occupation] = struct{}{}
		out = append(out, record.Occupation)
	}
	return out
}
