// Package region holds the population table used to weight regional allocation and to
// normalize counts per capita.
package region

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Region is a named province or territory with a fixed population.
type Region struct {
	Name       string `json:"name"`
	Population int64  `json:"population"`
}

// Registry is an immutable, ordered set of regions. It is safe for concurrent use.
type Registry struct {
	regions []Region
	index   map[string]int
	total   int64
}

// The 2023 figures carried by the dashboard this engine backs.
var defaultRegions = []Region{
	{Name: "Alberta", Population: 3375130},
	{Name: "British Columbia", Population: 4200425},
	{Name: "Manitoba", Population: 1058410},
	{Name: "New Brunswick", Population: 648250},
	{Name: "Newfoundland and Labrador", Population: 433955},
	{Name: "Northwest Territories", Population: 31915},
	{Name: "Nova Scotia", Population: 31915},
	{Name: "Nunavut", Population: 24540},
	{Name: "Ontario", Population: 11782825},
	{Name: "Prince Edward Island", Population: 126900},
	{Name: "Quebec", Population: 93585},
	{Name: "Saskatchewan", Population: 882760},
	{Name: "Yukon", Population: 32775},
}

func Default() *Registry {
	registry, err := New(defaultRegions)
	if err != nil {
		panic(err)
	}
	return registry
}

// New validates regions and returns a registry preserving their order. Every problem found
// is reported, not only the first.
func New(regions []Region) (*Registry, error) {
	var result *multierror.Error
	if len(regions) == 0 {
		result = multierror.Append(result, fmt.Errorf("at least one region is required"))
	}

	r := &Registry{
		regions: make([]Region, 0, len(regions)),
		index:   make(map[string]int, len(regions)),
	}
	for i, item := range regions {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			result = multierror.Append(result, fmt.Errorf("region %d: name is required", i+1))
			continue
		}
		if item.Population <= 0 {
			result = multierror.Append(result, fmt.Errorf("region %q: population must be > 0, got %d", name, item.Population))
			continue
		}
		if _, exists := r.index[name]; exists {
			result = multierror.Append(result, fmt.Errorf("region %q: duplicate name", name))
			continue
		}
		r.index[name] = len(r.regions)
		r.regions = append(r.regions, Region{Name: name, Population: item.Population})
		r.total += item.Population
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return r, nil
}

// Regions returns a copy of the regions in registration order.
func (r *Registry) Regions() []Region {
	out := make([]Region, len(r.regions))
	copy(out, r.regions)
	return out
}

func (r *Registry) Populations() map[string]int64 {
	out := make(map[string]int64, len(r.regions))
	for _, item := range r.regions {
		out[item.Name] = item.Population
	}
	return out
}

// Names returns the region names sorted lexically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.regions))
	for _, item := range r.regions {
		names = append(names, item.Name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Lookup(name string) (Region, bool) {
	i, ok := r.index[name]
	if !ok {
		return Region{}, false
	}
	return r.regions[i], true
}

func (r *Registry) Population(name string) int64 {
	item, _ := r.Lookup(name)
	return item.Population
}

func (r *Registry) TotalPopulation() int64 {
	return r.total
}

// Share is population(name) / TotalPopulation(); 0 for an unknown region.
func (r *Registry) Share(name string) float64 {
	return float64(r.Population(name)) / float64(r.total)
}

func (r *Registry) Len() int {
	return len(r.regions)
}
