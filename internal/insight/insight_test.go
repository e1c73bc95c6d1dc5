package insight

import (
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupscholar-workforce-estimator/internal/allocate"
	"groupscholar-workforce-estimator/internal/dataset"
	"groupscholar-workforce-estimator/internal/normalize"
	"groupscholar-workforce-estimator/internal/region"
)

const (
	police      = "42100 Police officers (except commissioned)"
	firefighter = "43200 Firefighters"
	nurse       = "31301 Registered nurses and registered psychiatric nurses"
	computer    = "21311 Computer engineers (except software engineers and designers)"
	mechanical  = "21301 Mechanical engineers"
	electrical  = "21310 Electrical and electronics engineers"
	business    = "1 Business, finance and administration occupations"
	businessSub = "11 Professional occupations in business and finance"
	sciences    = "2 Natural and applied sciences and related occupations"
	health      = "3 Health occupations"
	education   = "4 Occupations in education, law and social, community and government services"
)

func fixtureRecords() []dataset.Record {
	return []dataset.Record{
		{Occupation: "Total, all occupations", Total: 50000, Men: 25000, Women: 25000},
		{Occupation: police, Total: 1000, Men: 800, Women: 200},
		{Occupation: firefighter, Total: 2000, Men: 1900, Women: 100},
		{Occupation: nurse, Total: 3000, Men: 300, Women: 2700},
		{Occupation: computer, Total: 500, Men: 400, Women: 100},
		{Occupation: mechanical, Total: 1000, Men: 900, Women: 100},
		{Occupation: electrical, Total: 2000, Men: 1700, Women: 300},
		{Occupation: business, Total: 10000, Men: 3000, Women: 7000},
		{Occupation: businessSub, Total: 4000, Men: 2000, Women: 2000},
		{Occupation: sciences, Total: 8000, Men: 6000, Women: 2000},
		{Occupation: health, Total: 9000, Men: 2000, Women: 7000},
		{Occupation: education, Total: 100, Men: 100, Women: 0},
	}
}

func twoRegions(t *testing.T) *region.Registry {
	t.Helper()
	registry, err := region.New([]region.Region{
		{Name: "A", Population: 1000},
		{Name: "B", Population: 9000},
	})
	require.NoError(t, err)
	return registry
}

// fixedEngine allocates exactly each region's population share.
func fixedEngine(t *testing.T, records []dataset.Record, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithPolicies(allocate.FixedPolicy(1), allocate.FixedPolicy(1))}, opts...)
	return NewEngine(dataset.New("fixture", records), twoRegions(t), opts...)
}

func rowsByKey(rows []normalize.Row) map[string]normalize.Row {
	out := make(map[string]normalize.Row, len(rows))
	for _, row := range rows {
		out[row.Label+"/"+row.Series] = row
	}
	return out
}

func TestEssentialServices_SingleServiceEndToEnd(t *testing.T) {
	records := []dataset.Record{{Occupation: firefighter, Total: 1000, Men: 900, Women: 100}}
	engine := fixedEngine(t, records)

	res, err := engine.EssentialServices(EssentialQuery{ServiceType: "fire", Normalization: "absolute", Sort: "province"})
	require.NoError(t, err)
	assert.False(t, res.Empty)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, "Province", res.LabelColumn)
	assert.Equal(t, "Occupation", res.SeriesColumn)
	assert.Equal(t, "Count", res.ValueColumn)
	assert.Equal(t, "Number of Personnel", res.ValueLabel)
	assert.Equal(t, []normalize.Row{
		{Label: "A", Series: firefighter, Count: 100, Population: 1000, Value: 100},
		{Label: "B", Series: firefighter, Count: 900, Population: 9000, Value: 900},
	}, res.Rows)

	res, err = engine.EssentialServices(EssentialQuery{ServiceType: "fire", Normalization: "normalized", Sort: "province"})
	require.NoError(t, err)
	assert.Equal(t, "Per10K", res.ValueColumn)
	assert.Equal(t, "Personnel per 10,000 Population", res.ValueLabel)
	assert.Equal(t, string(normalize.Per10K), res.Applied.Mode)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 1000.0, res.Rows[0].Value)
	assert.Equal(t, 1000.0, res.Rows[1].Value)
}

func TestEssentialServices_AllAggregatesPerRegion(t *testing.T) {
	engine := fixedEngine(t, fixtureRecords())

	res, err := engine.EssentialServices(EssentialQuery{ServiceType: "all"})
	require.NoError(t, err)
	assert.Equal(t, "all", res.Applied.ServiceType)
	assert.Equal(t, "value", res.Applied.Sort)
	assert.Empty(t, res.SeriesColumn)
	assert.Equal(t, []normalize.Row{
		{Label: "B", Count: 5400, Population: 9000, Value: 5400},
		{Label: "A", Count: 600, Population: 1000, Value: 600},
	}, res.Rows)
}

func TestEssentialServices_Fallbacks(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	engine := fixedEngine(t, fixtureRecords(), WithLogger(log.NewEntry(logger)))

	res, err := engine.EssentialServices(EssentialQuery{ServiceType: "paramedic", Normalization: "percentage", Sort: "sideways"})
	require.NoError(t, err)
	assert.Equal(t, Selection{ServiceType: "all", Mode: "absolute", Sort: "value"}, res.Applied)
	assert.Equal(t, "Count", res.ValueColumn)
	require.Len(t, res.Rows, 2)

	fields := map[string]bool{}
	for _, entry := range hook.AllEntries() {
		if entry.Message == "selection fell back to default" {
			fields[entry.Data["field"].(string)] = true
			assert.Equal(t, res.RequestID, entry.Data["request_id"])
		}
	}
	assert.Equal(t, map[string]bool{"service type": true, "normalization": true, "sort": true}, fields)
}

func TestEssentialServices_SortByProvince(t *testing.T) {
	engine := fixedEngine(t, fixtureRecords())

	res, err := engine.EssentialServices(EssentialQuery{ServiceType: "police", Sort: "province"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "A", res.Rows[0].Label)
	assert.Equal(t, "B", res.Rows[1].Label)
	assert.Equal(t, police, res.Rows[0].Series)
}

func TestEssentialServices_Empty(t *testing.T) {
	engine := fixedEngine(t, []dataset.Record{{Occupation: mechanical, Total: 10, Men: 5, Women: 5}})

	res, err := engine.EssentialServices(EssentialQuery{ServiceType: "nurse"})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, "No essential services data for nurse", res.Message)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestGenderEmployment_DefaultsToFirstThreeTopLevel(t *testing.T) {
	engine := fixedEngine(t, fixtureRecords())
	assert.Equal(t, []string{business, sciences, health, education}, engine.TopLevelOccupations())

	res, err := engine.GenderEmployment(GenderQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{business, sciences, health}, res.Applied.Occupations)
	assert.Equal(t, ChartStack, res.Applied.ChartMode)
	assert.Equal(t, "Occupation", res.LabelColumn)
	assert.Equal(t, "Gender", res.SeriesColumn)
	assert.Equal(t, "Number of Employed Persons", res.ValueLabel)
	assert.Equal(t, []normalize.Row{
		{Label: business, Series: "Men", Count: 3000, Value: 3000},
		{Label: business, Series: "Women", Count: 7000, Value: 7000},
		{Label: sciences, Series: "Men", Count: 6000, Value: 6000},
		{Label: sciences, Series: "Women", Count: 2000, Value: 2000},
		{Label: health, Series: "Men", Count: 2000, Value: 2000},
		{Label: health, Series: "Women", Count: 7000, Value: 7000},
	}, res.Rows)
}

func TestGenderEmployment_Ratio(t *testing.T) {
	engine := fixedEngine(t, fixtureRecords())

	res, err := engine.GenderEmployment(GenderQuery{Occupations: []string{sciences, education}, ChartMode: "ratio"})
	require.NoError(t, err)
	assert.Equal(t, "Ratio", res.ValueColumn)
	assert.Equal(t, "Men/Women Ratio", res.ValueLabel)
	require.NotNil(t, res.Reference)
	assert.Equal(t, 1.0, *res.Reference)

	// education has no women, so its ratio is undefined and the row is omitted
	require.Len(t, res.Rows, 1)
	assert.Equal(t, sciences, res.Rows[0].Label)
	assert.Equal(t, 3.0, res.Rows[0].Value)
	require.Len(t, res.Metrics, 1)
	assert.InDelta(t, 1.0/3, res.Metrics[0].Parity, 1e-9)
}

func TestGenderEmployment_GroupAndUnknownMode(t *testing.T) {
	engine := fixedEngine(t, fixtureRecords())

	grouped, err := engine.GenderEmployment(GenderQuery{Occupations: []string{health}, ChartMode: "group"})
	require.NoError(t, err)
	assert.Equal(t, ChartGroup, grouped.Applied.ChartMode)

	fallback, err := engine.GenderEmployment(GenderQuery{Occupations: []string{health}, ChartMode: "pie"})
	require.NoError(t, err)
	assert.Equal(t, ChartStack, fallback.Applied.ChartMode)
	assert.Equal(t, grouped.Rows, fallback.Rows)
}

func TestGenderEmployment_NoMatch(t *testing.T) {
	engine := fixedEngine(t, fixtureRecords())

	// sub-levels are not valid selections
	res, err := engine.GenderEmployment(GenderQuery{Occupations: []string{businessSub}})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, "No data matching selected NOC categories", res.Message)
}

func TestEngineeringWorkforce_Absolute(t *testing.T) {
	engine := fixedEngine(t, fixtureRecords())

	res, err := engine.EngineeringWorkforce(EngineeringQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"computer", "mechanical", "electrical"}, res.Applied.EngineerTypes)
	assert.Equal(t, "EngineerType", res.SeriesColumn)
	assert.Equal(t, "Number of Engineers", res.ValueLabel)

	rows := rowsByKey(res.Rows)
	require.Len(t, rows, 6)
	assert.Equal(t, 50.0, rows["A/Computer"].Value)
	assert.Equal(t, 900.0, rows["B/Mechanical"].Value)
	assert.Equal(t, 1800.0, rows["B/Electrical"].Value)
}

func TestEngineeringWorkforce_PercentageSumsPerRegion(t *testing.T) {
	engine := fixedEngine(t, fixtureRecords())

	res, err := engine.EngineeringWorkforce(EngineeringQuery{View: "percentage"})
	require.NoError(t, err)
	assert.Equal(t, "Percentage", res.ValueColumn)
	assert.Equal(t, "Percentage of Total Engineers (%)", res.ValueLabel)

	sums := map[string]float64{}
	for _, row := range res.Rows {
		sums[row.Label] += row.Value
	}
	assert.InDelta(t, 100, sums["A"], 1e-9)
	assert.InDelta(t, 100, sums["B"], 1e-9)
	assert.InDelta(t, 50.0*100/350, rowsByKey(res.Rows)["A/Computer"].Value, 1e-9)
}

func TestEngineeringWorkforce_PerCapitaAndTypeFallback(t *testing.T) {
	engine := fixedEngine(t, fixtureRecords())

	res, err := engine.EngineeringWorkforce(EngineeringQuery{Types: []string{"chemical"}, View: "per_capita"})
	require.NoError(t, err)
	assert.Equal(t, []string{"computer"}, res.Applied.EngineerTypes)
	assert.Equal(t, "Per10K", res.ValueColumn)
	assert.Equal(t, "Engineers per 10,000 Population", res.ValueLabel)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 500.0, res.Rows[0].Value)
	assert.Equal(t, 500.0, res.Rows[1].Value)

	unknown, err := engine.EngineeringWorkforce(EngineeringQuery{View: "bogus"})
	require.NoError(t, err)
	assert.Equal(t, "absolute", unknown.Applied.Mode)
}

func TestEngineeringWorkforce_HubBounds(t *testing.T) {
	registry := region.Default()
	engine := NewEngine(dataset.New("fixture", fixtureRecords()), registry, WithSeed(11))

	res, err := engine.EngineeringWorkforce(EngineeringQuery{Types: []string{"electrical"}})
	require.NoError(t, err)
	require.Len(t, res.Rows, registry.Len())
	for _, row := range res.Rows {
		share := 2000 * float64(row.Population) / float64(registry.TotalPopulation())
		bounds := allocate.NonHubRange
		if allocate.DefaultHubPolicy().IsHub(row.Label) {
			bounds = allocate.HubRange
		}
		assert.GreaterOrEqual(t, row.Count, share*bounds.Low-1, row.Label)
		assert.LessOrEqual(t, row.Count, share*bounds.High, row.Label)
	}
}

func TestEngineeringWorkforce_Empty(t *testing.T) {
	engine := fixedEngine(t, []dataset.Record{{Occupation: police, Total: 10, Men: 5, Women: 5}})

	res, err := engine.EngineeringWorkforce(EngineeringQuery{})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, "No data matching selected engineering types", res.Message)
}

func TestCustomInsight_Hierarchy(t *testing.T) {
	engine := fixedEngine(t, fixtureRecords())

	res, err := engine.CustomInsight(CustomQuery{Category: "business"})
	require.NoError(t, err)
	assert.Equal(t, Selection{Category: "business", Analysis: AnalysisHierarchy}, res.Applied)
	assert.Equal(t, "Level", res.LabelColumn)
	assert.Equal(t, "Percentage", res.ValueColumn)
	assert.Equal(t, []normalize.Row{
		{Label: "Level 1", Series: "Men", Count: 3000, Value: 30},
		{Label: "Level 1", Series: "Women", Count: 7000, Value: 70},
		{Label: "Level 2", Series: "Men", Count: 2000, Value: 50},
		{Label: "Level 2", Series: "Women", Count: 2000, Value: 50},
	}, res.Rows)
	require.Len(t, res.Metrics, 2)
	assert.Equal(t, "Level 2", res.Metrics[1].Key)
	assert.Equal(t, 1.0, res.Metrics[1].Parity)
}

func TestCustomInsight_ParitySortedDescending(t *testing.T) {
	engine := fixedEngine(t, fixtureRecords())

	res, err := engine.CustomInsight(CustomQuery{Category: "unknown", Analysis: "parity"})
	require.NoError(t, err)
	assert.Equal(t, "business", res.Applied.Category)
	assert.Equal(t, "ParityIndex", res.ValueColumn)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, businessSub, res.Rows[0].Label)
	assert.Equal(t, 1.0, res.Rows[0].Value)
	assert.Equal(t, business, res.Rows[1].Label)
	assert.InDelta(t, 3000.0/7000, res.Rows[1].Value, 1e-9)
}

func TestCustomInsight_ParityOmitsUndefined(t *testing.T) {
	engine := fixedEngine(t, fixtureRecords())

	res, err := engine.CustomInsight(CustomQuery{Category: "education", Analysis: "parity"})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Empty(t, res.Rows)
}

func TestCustomInsight_EmptyCategory(t *testing.T) {
	engine := fixedEngine(t, []dataset.Record{{Occupation: police, Total: 10, Men: 5, Women: 5}})

	res, err := engine.CustomInsight(CustomQuery{Category: "art"})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, "No data matching selected category: art", res.Message)
}

func TestEngine_SeededRunsAreReproducible(t *testing.T) {
	ds := dataset.New("fixture", fixtureRecords())
	first := NewEngine(ds, region.Default(), WithSeed(42))
	second := NewEngine(ds, region.Default(), WithSeed(42))

	a, err := first.EssentialServices(EssentialQuery{ServiceType: "all"})
	require.NoError(t, err)
	b, err := second.EssentialServices(EssentialQuery{ServiceType: "all"})
	require.NoError(t, err)
	assert.Equal(t, a.Rows, b.Rows)
	assert.NotEqual(t, a.RequestID, b.RequestID)
}

func TestEngine_ConcurrentQueries(t *testing.T) {
	engine := NewEngine(dataset.New("fixture", fixtureRecords()), region.Default(), WithSeed(3))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 16; i++ {
		wg.Add(4)
		go func() {
			defer wg.Done()
			_, err := engine.EssentialServices(EssentialQuery{ServiceType: "all", Normalization: "normalized"})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := engine.EngineeringWorkforce(EngineeringQuery{View: "percentage"})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := engine.GenderEmployment(GenderQuery{ChartMode: "ratio"})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := engine.CustomInsight(CustomQuery{Category: "health", Analysis: "hierarchy"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, engine.Records(), len(fixtureRecords()))
}

func TestEngine_ConcurrentQueriesWithClockSeed(t *testing.T) {
	engine := NewEngine(dataset.New("fixture", fixtureRecords()), region.Default())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.EssentialServices(EssentialQuery{ServiceType: "all"})
			assert.NoError(t, err)
			assert.Len(t, res.Rows, region.Default().Len())
		}()
	}
	wg.Wait()
}
