package allocate

import (
	"fmt"
	"math/rand"
)

// VariancePolicy picks the multiplier applied to a region's population-proportional share.
type VariancePolicy interface {
	Multiplier(rng *rand.Rand, region string) float64
	Name() string
}

// Range is a closed-open interval [Low, High) of multipliers.
type Range struct {
	Low  float64
	High float64
}

func (r Range) Draw(rng *rand.Rand) float64 {
	if r.High <= r.Low {
		return r.Low
	}
	return r.Low + rng.Float64()*(r.High-r.Low)
}

func (r Range) Validate() error {
	if r.Low < 0 || r.High < r.Low {
		return fmt.Errorf("invalid multiplier range [%g, %g]", r.Low, r.High)
	}
	return nil
}

var (
	DefaultRange    = Range{Low: 0.7, High: 1.3}
	HubRange        = Range{Low: 1.2, High: 1.8}
	NonHubRange     = Range{Low: 0.5, High: 1.1}
	DefaultHubNames = []string{"Ontario", "British Columbia", "Quebec"}
)

// UniformPolicy draws every region's multiplier from the same range.
type UniformPolicy struct {
	Range Range
}

func DefaultPolicy() UniformPolicy {
	return UniformPolicy{Range: DefaultRange}
}

func (p UniformPolicy) Multiplier(rng *rand.Rand, _ string) float64 {
	return p.Range.Draw(rng)
}

func (p UniformPolicy) Name() string { return "uniform" }

// HubPolicy favours a fixed set of high-demand regions, modelling the concentration of
// engineering roles in technology hubs.
type HubPolicy struct {
	hubs  map[string]struct{}
	Hub   Range
	Other Range
}

func NewHubPolicy(hubs []string, hub, other Range) HubPolicy {
	set := make(map[string]struct{}, len(hubs))
	for _, name := range hubs {
		set[name] = struct{}{}
	}
	return HubPolicy{hubs: set, Hub: hub, Other: other}
}

// DefaultHubPolicy favours Ontario, British Columbia and Quebec with [1.2, 1.8] and draws
// [0.5, 1.1] elsewhere.
func DefaultHubPolicy() HubPolicy {
	return NewHubPolicy(DefaultHubNames, HubRange, NonHubRange)
}

func (p HubPolicy) IsHub(region string) bool {
	_, ok := p.hubs[region]
	return ok
}

func (p HubPolicy) Multiplier(rng *rand.Rand, region string) float64 {
	if p.IsHub(region) {
		return p.Hub.Draw(rng)
	}
	return p.Other.Draw(rng)
}

func (p HubPolicy) Name() string { return "hub" }

// FixedPolicy always returns the same multiplier and never consumes randomness.
type FixedPolicy float64

func (p FixedPolicy) Multiplier(*rand.Rand, string) float64 { return float64(p) }

func (p FixedPolicy) Name() string { return "fixed" }
