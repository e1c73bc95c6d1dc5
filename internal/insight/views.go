package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"groupscholar-workforce-estimator/internal/allocate"
	"groupscholar-workforce-estimator/internal/classify"
	"groupscholar-workforce-estimator/internal/dataset"
	"groupscholar-workforce-estimator/internal/estimatorerrors"
	"groupscholar-workforce-estimator/internal/gender"
	"groupscholar-workforce-estimator/internal/normalize"
)

// Chart modes for GenderEmployment.
const (
	ChartStack = "stack"
	ChartGroup = "group"
	ChartRatio = "ratio"
)

// Analyses for CustomInsight.
const (
	AnalysisHierarchy = "hierarchy"
	AnalysisParity    = "parity"
)

// defaultTopLevelSelection is how many top-level occupations GenderEmployment shows when
// nothing is selected.
const defaultTopLevelSelection = 3

type EssentialQuery struct {
	// all, police, fire or nurse; anything else means all
	ServiceType string
	// absolute or normalized (per 10k); anything else means absolute
	Normalization string
	// province or value; anything else means value
	Sort string
}

// EssentialServices distributes police, firefighter and nurse totals across regions with
// the default variance policy. For "all" the occupations are summed per region.
func (e *Engine) EssentialServices(q EssentialQuery) (Result, error) {
	id, logger := e.requestLogger(ViewEssential)

	records, service := e.classifier.Service(e.essential, q.ServiceType)
	mode, modeOK := normalize.ParseMode(q.Normalization)
	switch mode {
	case normalize.Per10K, normalize.PerCapita:
		mode = normalize.Per10K
	default:
		modeOK = modeOK && mode == normalize.Absolute
		mode = normalize.Absolute
	}
	order, sortOK := normalize.ParseSortOrder(q.Sort)
	logFallback(logger, "service type", q.ServiceType, service, strings.EqualFold(strings.TrimSpace(q.ServiceType), service))
	logFallback(logger, "normalization", q.Normalization, string(mode), modeOK)
	logFallback(logger, "sort", q.Sort, sortName(order), sortOK)

	result := Result{
		RequestID:    id,
		View:         ViewEssential,
		Applied:      Selection{ServiceType: service, Mode: string(mode), Sort: sortName(order)},
		LabelColumn:  "Province",
		SeriesColumn: "Occupation",
		ValueColumn:  "Count",
		ValueLabel:   "Number of Personnel",
	}
	if mode == normalize.Per10K {
		result.ValueColumn = "Per10K"
		result.ValueLabel = "Personnel per 10,000 Population"
	}

	observations, err := e.simulator.Allocate(records, e.defaultPolicy)
	if err != nil {
		if estimatorerrors.IsEmptyInput(err) {
			logger.Debug("no essential-service rows")
			return emptyResult(result, fmt.Sprintf("No essential services data for %s", service)), nil
		}
		return Result{}, errors.Wrap(err, "allocating essential services")
	}
	if service == classify.ServiceAll {
		observations = allocate.Aggregate(observations)
		result.SeriesColumn = ""
	}

	rows := normalize.FromObservations(observations, func(o allocate.Observation) string {
		if service == classify.ServiceAll {
			return ""
		}
		return o.Occupation
	})
	rows = normalize.Normalize(rows, mode, nil)
	normalize.Sort(rows, order)
	result.Rows = rows

	logger.WithField("rows", len(rows)).Debug("essential services computed")
	return result, nil
}

type GenderQuery struct {
	// Top-level NOC occupations to show; the first three are used when empty.
	Occupations []string
	// stack, group or ratio; anything else means stack
	ChartMode string
}

// GenderEmployment reports men and women employed in top-level NOC categories, either as a
// long table (one row per occupation and gender) or as men/women ratios.
func (e *Engine) GenderEmployment(q GenderQuery) (Result, error) {
	id, logger := e.requestLogger(ViewGender)

	selected := q.Occupations
	if len(selected) == 0 {
		selected = e.TopLevelOccupations()
		if len(selected) > defaultTopLevelSelection {
			selected = selected[:defaultTopLevelSelection]
		}
	}
	chart := strings.ToLower(strings.TrimSpace(q.ChartMode))
	switch chart {
	case ChartStack, ChartGroup, ChartRatio:
	default:
		chart = ChartStack
	}
	logFallback(logger, "chart mode", q.ChartMode, chart, chart == strings.ToLower(strings.TrimSpace(q.ChartMode)))

	result := Result{
		RequestID:    id,
		View:         ViewGender,
		Applied:      Selection{Occupations: append([]string(nil), selected...), ChartMode: chart},
		LabelColumn:  "Occupation",
		SeriesColumn: "Gender",
		ValueColumn:  "Count",
		ValueLabel:   "Number of Employed Persons",
	}

	wanted := make(map[string]bool, len(selected))
	for _, occupation := range selected {
		wanted[occupation] = true
	}
	var records []dataset.Record
	for _, record := range e.topLevel {
		if wanted[record.Occupation] {
			records = append(records, record)
		}
	}
	if len(records) == 0 {
		logger.Debug("no top-level rows selected")
		return emptyResult(result, "No data matching selected NOC categories"), nil
	}

	if chart == ChartRatio {
		reference := 1.0
		result.SeriesColumn = ""
		result.ValueColumn = "Ratio"
		result.ValueLabel = "Men/Women Ratio"
		result.Reference = &reference

		metrics, undefined := gender.ComputeAll(records)
		if len(undefined) > 0 {
			logger.WithField("occupations", undefined).Debug("omitting rows with undefined gender ratio")
		}
		if len(metrics) == 0 {
			return emptyResult(result, "Gender ratio is undefined for every selected category"), nil
		}
		rows := make([]normalize.Row, 0, len(metrics))
		for _, m := range metrics {
			rows = append(rows, normalize.Row{Label: m.Key, Count: m.Men + m.Women, Value: m.Ratio})
		}
		result.Rows = rows
		result.Metrics = metrics
		return result, nil
	}

	rows := make([]normalize.Row, 0, 2*len(records))
	for _, record := range records {
		rows = append(rows,
			normalize.Row{Label: record.Occupation, Series: "Men", Count: record.Men},
			normalize.Row{Label: record.Occupation, Series: "Women", Count: record.Women},
		)
	}
	result.Rows = normalize.Normalize(rows, normalize.Absolute, nil)

	logger.WithField("rows", len(result.Rows)).Debug("gender employment computed")
	return result, nil
}

type EngineeringQuery struct {
	// Any of computer, mechanical and electrical; all three when empty.
	Types []string
	// absolute, percentage or per_capita; anything else means absolute
	View string
}

// EngineeringWorkforce distributes engineering totals across regions with the hub-biased
// policy and labels each row with its engineer type.
func (e *Engine) EngineeringWorkforce(q EngineeringQuery) (Result, error) {
	id, logger := e.requestLogger(ViewEngineering)

	records, types := e.classifier.EngineeringTypes(e.engineering, q.Types)
	mode, modeOK := normalize.ParseMode(q.View)
	if mode == normalize.Per10K {
		mode = normalize.PerCapita
	}
	logFallback(logger, "view", q.View, string(mode), modeOK)

	result := Result{
		RequestID:    id,
		View:         ViewEngineering,
		Applied:      Selection{EngineerTypes: types, Mode: string(mode)},
		LabelColumn:  "Province",
		SeriesColumn: "EngineerType",
	}
	switch mode {
	case normalize.Percentage:
		result.ValueColumn = "Percentage"
		result.ValueLabel = "Percentage of Total Engineers (%)"
	case normalize.PerCapita:
		result.ValueColumn = "Per10K"
		result.ValueLabel = "Engineers per 10,000 Population"
	default:
		result.ValueColumn = "Count"
		result.ValueLabel = "Number of Engineers"
	}

	observations, err := e.simulator.Allocate(records, e.hubPolicy)
	if err != nil {
		if estimatorerrors.IsEmptyInput(err) {
			logger.Debug("no engineering rows")
			return emptyResult(result, "No data matching selected engineering types"), nil
		}
		return Result{}, errors.Wrap(err, "allocating engineering workforce")
	}

	rows := normalize.FromObservations(observations, func(o allocate.Observation) string {
		return e.classifier.EngineerType(o.Occupation)
	})
	result.Rows = normalize.Normalize(rows, mode, normalize.ByLabel)

	logger.WithField("rows", len(result.Rows)).Debug("engineering workforce computed")
	return result, nil
}

type CustomQuery struct {
	// business, science, health, education or art; anything else means business
	Category string
	// hierarchy or parity; anything else means hierarchy
	Analysis string
}

// CustomInsight analyses the gender split of a keyword-defined occupation category, either
// per NOC hierarchy depth or as a parity index per occupation.
func (e *Engine) CustomInsight(q CustomQuery) (Result, error) {
	id, logger := e.requestLogger(ViewCustom)

	records, category := e.classifier.Category(e.dataset.Records(), q.Category)
	analysis := strings.ToLower(strings.TrimSpace(q.Analysis))
	analysisOK := analysis == AnalysisParity || analysis == AnalysisHierarchy
	if !analysisOK {
		analysis = AnalysisHierarchy
	}
	logFallback(logger, "category", q.Category, string(category), strings.EqualFold(strings.TrimSpace(q.Category), string(category)))
	logFallback(logger, "analysis", q.Analysis, analysis, analysisOK)

	result := Result{
		RequestID: id,
		View:      ViewCustom,
		Applied:   Selection{Category: string(category), Analysis: analysis},
	}
	if len(records) == 0 {
		logger.Debug("no rows in category")
		return emptyResult(result, fmt.Sprintf("No data matching selected category: %s", category)), nil
	}

	if analysis == AnalysisParity {
		return e.parity(result, records, logger)
	}
	return e.hierarchy(result, records, logger)
}

func (e *Engine) parity(result Result, records []dataset.Record, logger *log.Entry) (Result, error) {
	result.LabelColumn = "Occupation"
	result.ValueColumn = "ParityIndex"
	result.ValueLabel = "Gender Parity Index (1 = balanced)"

	metrics, undefined := gender.ComputeAll(records)
	if len(undefined) > 0 {
		logger.WithField("occupations", undefined).Debug("omitting rows with undefined parity")
	}
	if len(metrics) == 0 {
		return emptyResult(result, "Gender parity is undefined for every occupation in the category"), nil
	}

	sort.SliceStable(metrics, func(i, j int) bool {
		return metrics[i].Parity > metrics[j].Parity
	})
	rows := make([]normalize.Row, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, normalize.Row{Label: m.Key, Count: m.Men + m.Women, Value: m.Parity})
	}
	result.Rows = rows
	result.Metrics = metrics
	logger.WithField("rows", len(rows)).Debug("parity computed")
	return result, nil
}

func (e *Engine) hierarchy(result Result, records []dataset.Record, logger *log.Entry) (Result, error) {
	result.LabelColumn = "Level"
	result.SeriesColumn = "Gender"
	result.ValueColumn = "Percentage"
	result.ValueLabel = "Share of Level Employment (%)"

	byDepth := make(map[int][]dataset.Record)
	var depths []int
	for _, record := range records {
		depth := classify.Depth(record.Occupation)
		if depth == 0 {
			continue
		}
		if _, ok := byDepth[depth]; !ok {
			depths = append(depths, depth)
		}
		byDepth[depth] = append(byDepth[depth], record)
	}
	if len(depths) == 0 {
		return emptyResult(result, "No NOC-coded occupations in the category"), nil
	}
	sort.Ints(depths)

	rows := make([]normalize.Row, 0, 2*len(depths))
	metrics := make([]gender.Metrics, 0, len(depths))
	for _, depth := range depths {
		label := levelLabel(depth)
		var men, women float64
		for _, record := range byDepth[depth] {
			men += record.Men
			women += record.Women
		}
		rows = append(rows,
			normalize.Row{Label: label, Series: "Men", Count: men},
			normalize.Row{Label: label, Series: "Women", Count: women},
		)
		if m, err := gender.Group(label, byDepth[depth]); err == nil {
			metrics = append(metrics, m)
		}
	}
	result.Rows = normalize.Normalize(rows, normalize.Percentage, normalize.ByLabel)
	result.Metrics = metrics
	logger.WithField("rows", len(result.Rows)).Debug("hierarchy computed")
	return result, nil
}

func levelLabel(depth int) string {
	return fmt.Sprintf("Level %d", depth)
}

func sortName(order normalize.SortOrder) string {
	if order == normalize.SortByLabel {
		return "province"
	}
	return "value"
}

// logFallback notes at debug level when a non-empty requested key was not recognized and
// applied was used instead.
func logFallback(logger *log.Entry, field, requested, applied string, recognized bool) {
	if recognized || strings.TrimSpace(requested) == "" {
		return
	}
	logger.WithFields(log.Fields{"field": field, "requested": requested, "applied": applied}).Debug("selection fell back to default")
}
