// Package classify partitions occupation records into the groups the analytical views are
// built from: essential services, engineering roles, top-level NOC categories and the
// keyword-driven custom categories.
package classify

import (
	"regexp"
	"strings"

	"groupscholar-workforce-estimator/internal/dataset"
)

// Category names a built-in record subset.
type Category string

const (
	Essential   Category = "essential"
	Engineering Category = "engineering"
	TopLevel    Category = "noc"

	Business  Category = "business"
	Science   Category = "science"
	Health    Category = "health"
	Education Category = "education"
	Art       Category = "art"

	// DefaultCategory is used for any unrecognized category key.
	DefaultCategory = Business
)

// Service types narrow the essential-services subset.
const (
	ServiceAll    = "all"
	ServicePolice = "police"
	ServiceFire   = "fire"
	ServiceNurse  = "nurse"
)

// Engineering types narrow the engineering subset.
const (
	EngineerComputer   = "computer"
	EngineerMechanical = "mechanical"
	EngineerElectrical = "electrical"
)

var (
	essentialKeywords   = []string{"Police officers", "Firefighters", "Registered nurses"}
	engineeringKeywords = []string{"Computer engineers", "Mechanical engineers", "Electrical and electronics engineers"}

	categoryKeywords = map[Category][]string{
		Business:  {"Business", "finance", "administration"},
		Science:   {"Natural", "applied sciences", "engineering"},
		Health:    {"Health", "nurse", "medical"},
		Education: {"Education", "law", "social"},
		Art:       {"Art", "culture", "recreation"},
	}
	customOrder = []Category{Business, Science, Health, Education, Art}

	serviceKeywords = map[string]string{
		ServicePolice: "Police",
		ServiceFire:   "Fire",
		ServiceNurse:  "Nurse",
	}

	engineerKeywords = map[string]string{
		EngineerComputer:   "Computer",
		EngineerMechanical: "Mechanical",
		EngineerElectrical: "Electrical",
	}
	engineerOrder = []string{EngineerComputer, EngineerMechanical, EngineerElectrical}

	// one digit, one whitespace character, a letter
	topLevelPattern = regexp.MustCompile(`^\d\s[A-Za-z]`)
	codePattern     = regexp.MustCompile(`^(\d+)\s`)
)

// Classifier holds one compiled matcher per built-in group. Build it once and share it.
type Classifier struct {
	essential   *Matcher
	engineering *Matcher
	categories  map[Category]*Matcher
	services    map[string]*Matcher
	engineers   map[string]*Matcher
}

func New() *Classifier {
	c := &Classifier{
		essential:   NewMatcher(essentialKeywords...),
		engineering: NewMatcher(engineeringKeywords...),
		categories:  make(map[Category]*Matcher, len(categoryKeywords)),
		services:    make(map[string]*Matcher, len(serviceKeywords)),
		engineers:   make(map[string]*Matcher, len(engineerKeywords)),
	}
	for key, keywords := range categoryKeywords {
		c.categories[key] = NewMatcher(keywords...)
	}
	for key, keyword := range serviceKeywords {
		c.services[key] = NewMatcher(keyword)
	}
	for key, keyword := range engineerKeywords {
		c.engineers[key] = NewMatcher(keyword)
	}
	return c
}

// Classify returns the subset of records belonging to category. Built-in groups and custom
// categories are both accepted; anything else is treated as DefaultCategory.
func (c *Classifier) Classify(records []dataset.Record, category Category) []dataset.Record {
	switch category {
	case Essential:
		return c.Essential(records)
	case Engineering:
		return c.Engineering(records)
	case TopLevel:
		return TopLevelRecords(records)
	}
	out, _ := c.Category(records, string(category))
	return out
}

func (c *Classifier) Essential(records []dataset.Record) []dataset.Record {
	return c.essential.Filter(records)
}

func (c *Classifier) Engineering(records []dataset.Record) []dataset.Record {
	return c.engineering.Filter(records)
}

// Category filters by a custom category key and returns the key actually applied.
func (c *Classifier) Category(records []dataset.Record, key string) ([]dataset.Record, Category) {
	resolved := ResolveCategory(key)
	return c.categories[resolved].Filter(records), resolved
}

// Service narrows essential-service records to one service type. "all" and unknown keys
// return the records unchanged; the applied key is returned.
func (c *Classifier) Service(records []dataset.Record, key string) ([]dataset.Record, string) {
	matcher, ok := c.services[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return append([]dataset.Record(nil), records...), ServiceAll
	}
	return matcher.Filter(records), strings.ToLower(strings.TrimSpace(key))
}

// EngineeringTypes narrows engineering records to the selected types. Unknown keys are
// ignored; an empty selection means every type, and a selection with no known key falls
// back to computer. The applied keys are returned in canonical order.
func (c *Classifier) EngineeringTypes(records []dataset.Record, keys []string) ([]dataset.Record, []string) {
	applied := ResolveEngineeringTypes(keys)
	matchers := make([]*Matcher, 0, len(applied))
	for _, key := range applied {
		matchers = append(matchers, c.engineers[key])
	}
	out := make([]dataset.Record, 0, len(records))
	for _, record := range records {
		for _, m := range matchers {
			if m.Match(record.Occupation) {
				out = append(out, record)
				break
			}
		}
	}
	return out, applied
}

// EngineerType labels an engineering occupation as Computer, Mechanical or Electrical,
// with Electrical as the last resort.
func (c *Classifier) EngineerType(occupation string) string {
	switch {
	case c.engineers[EngineerComputer].Match(occupation):
		return "Computer"
	case c.engineers[EngineerMechanical].Match(occupation):
		return "Mechanical"
	default:
		return "Electrical"
	}
}

// ResolveCategory maps a custom category key onto a known category, falling back to
// DefaultCategory.
func ResolveCategory(key string) Category {
	category := Category(strings.ToLower(strings.TrimSpace(key)))
	if _, ok := categoryKeywords[category]; ok {
		return category
	}
	return DefaultCategory
}

// CustomCategories lists the custom category keys in display order.
func CustomCategories() []Category {
	return append([]Category(nil), customOrder...)
}

func ResolveEngineeringTypes(keys []string) []string {
	if len(keys) == 0 {
		return append([]string(nil), engineerOrder...)
	}
	selected := make(map[string]bool, len(keys))
	for _, key := range keys {
		selected[strings.ToLower(strings.TrimSpace(key))] = true
	}
	var applied []string
	for _, key := range engineerOrder {
		if selected[key] {
			applied = append(applied, key)
		}
	}
	if len(applied) == 0 {
		return []string{EngineerComputer}
	}
	return applied
}

// IsTopLevel reports whether occupation is a top-level NOC row: a single digit, one
// whitespace character, then a letter.
func IsTopLevel(occupation string) bool {
	return topLevelPattern.MatchString(occupation)
}

// TopLevelRecords keeps the top-level NOC rows.
func TopLevelRecords(records []dataset.Record) []dataset.Record {
	out := make([]dataset.Record, 0, len(records))
	for _, record := range records {
		if IsTopLevel(record.Occupation) {
			out = append(out, record)
		}
	}
	return out
}

// Depth returns the hierarchy depth of a NOC-coded occupation, i.e. the number of digits in
// its leading code, or 0 when the occupation has no numeric code.
func Depth(occupation string) int {
	match := codePattern.FindStringSubmatch(occupation)
	if match == nil {
		return 0
	}
	return len(match[1])
}
