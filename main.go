package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"groupscholar-workforce-estimator/internal/allocate"
	"groupscholar-workforce-estimator/internal/config"
	"groupscholar-workforce-estimator/internal/dataset"
	"groupscholar-workforce-estimator/internal/insight"
	"groupscholar-workforce-estimator/internal/logging"
	"groupscholar-workforce-estimator/internal/normalize"
	"groupscholar-workforce-estimator/internal/region"
)

// cli holds what every subcommand shares: the viper instance flags are bound to, the loaded
// configuration and the output options.
type cli struct {
	v        *viper.Viper
	config   config.Configuration
	out      io.Writer
	errOut   io.Writer
	cfgFile  string
	jsonPath string
	topN     int
	showAll  bool
}

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		exitWith(err.Error())
	}
}

func exitWith(message string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	os.Exit(1)
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "workforce-estimator",
		Short:         "Estimate provincial workforce figures from national occupation counts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return c.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "Path to a YAML config file")
	flags.String("data", "", "Path to the occupation CSV or XLSX file")
	flags.String("sheet", "", "Worksheet to read from an XLSX workbook")
	flags.String("source", "", "Dataset source: file or postgres")
	flags.String("dsn", "", "Postgres connection string")
	flags.String("table", "", "Postgres table holding the occupation counts")
	flags.Int64("seed", 0, "Seed for the variance random source (0 seeds from the clock)")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
	flags.StringVar(&c.jsonPath, "json", "", "Optional path to write JSON output")
	flags.IntVar(&c.topN, "top", 10, "Number of rows to display")
	flags.BoolVar(&c.showAll, "all", false, "Show all rows")

	bindings := map[string]string{
		"dataset.path":           "data",
		"dataset.sheet":          "sheet",
		"dataset.source":         "source",
		"dataset.postgres.dsn":   "dsn",
		"dataset.postgres.table": "table",
		"allocation.seed":        "seed",
		"logging.level":          "log-level",
		"logging.format":         "log-format",
	}
	for key, name := range bindings {
		// only fails for an unknown flag name
		_ = c.v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(
		c.essentialCommand(),
		c.genderCommand(),
		c.engineeringCommand(),
		c.insightCommand(),
		c.regionsCommand(),
		c.recordsCommand(),
	)
	return root
}

func (c *cli) load() error {
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	if err := logging.Configure(cfg.Logging, c.errOut); err != nil {
		return err
	}
	c.config = cfg
	return nil
}

func (c *cli) essentialCommand() *cobra.Command {
	var q insight.EssentialQuery
	cmd := &cobra.Command{
		Use:   "essential",
		Short: "Police, firefighter and nurse personnel by province",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.query(cmd.Context(), func(e *insight.Engine) (insight.Result, error) {
				return e.EssentialServices(q)
			})
		},
	}
	cmd.Flags().StringVar(&q.ServiceType, "service", "all", "Service type: all, police, fire or nurse")
	cmd.Flags().StringVar(&q.Normalization, "mode", "absolute", "absolute or normalized (per 10,000 population)")
	cmd.Flags().StringVar(&q.Sort, "sort", "value", "Sort by province or value")
	return cmd
}

func (c *cli) genderCommand() *cobra.Command {
	var q insight.GenderQuery
	cmd := &cobra.Command{
		Use:   "gender",
		Short: "Men and women employed in top-level NOC categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.query(cmd.Context(), func(e *insight.Engine) (insight.Result, error) {
				return e.GenderEmployment(q)
			})
		},
	}
	cmd.Flags().StringArrayVar(&q.Occupations, "occupation", nil, "Top-level NOC occupation to include (repeatable)")
	cmd.Flags().StringVar(&q.ChartMode, "chart", insight.ChartStack, "Chart mode: stack, group or ratio")
	return cmd
}

func (c *cli) engineeringCommand() *cobra.Command {
	var q insight.EngineeringQuery
	cmd := &cobra.Command{
		Use:   "engineering",
		Short: "Engineering workforce by province and engineer type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.query(cmd.Context(), func(e *insight.Engine) (insight.Result, error) {
				return e.EngineeringWorkforce(q)
			})
		},
	}
	cmd.Flags().StringSliceVar(&q.Types, "type", nil, "Engineer type: computer, mechanical or electrical (repeatable)")
	cmd.Flags().StringVar(&q.View, "view", "absolute", "absolute, percentage or per_capita")
	return cmd
}

func (c *cli) insightCommand() *cobra.Command {
	var q insight.CustomQuery
	cmd := &cobra.Command{
		Use:   "insight",
		Short: "Gender analysis of a custom occupation category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.query(cmd.Context(), func(e *insight.Engine) (insight.Result, error) {
				return e.CustomInsight(q)
			})
		},
	}
	cmd.Flags().StringVar(&q.Category, "category", "business", "business, science, health, education or art")
	cmd.Flags().StringVar(&q.Analysis, "analysis", insight.AnalysisHierarchy, "hierarchy or parity")
	return cmd
}

func (c *cli) regionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the regions and populations used for allocation",
		RunE: func(*cobra.Command, []string) error {
			registry, err := c.registry()
			if err != nil {
				return err
			}
			printRegions(c.out, registry)
			if c.jsonPath != "" {
				return c.writeJSON(registry.Regions())
			}
			return nil
		},
	}
}

func (c *cli) recordsCommand() *cobra.Command {
	var regionName string
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List the cleaned records with rates per 10,000 population",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := c.dataset(cmd.Context())
			if err != nil {
				return err
			}
			registry, err := c.registry()
			if err != nil {
				return err
			}
			population := registry.TotalPopulation()
			if regionName != "" {
				r, ok := registry.Lookup(regionName)
				if !ok {
					return errors.Errorf("unknown region %q", regionName)
				}
				population = r.Population
			}
			rates := normalize.RecordRates(ds.Records(), population)
			printRecords(c.out, ds, rates, c.topN, c.showAll)
			if c.jsonPath != "" {
				return c.writeJSON(rates)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&regionName, "region", "", "Express rates against one region's population instead of the national total")
	return cmd
}

func (c *cli) query(ctx context.Context, run func(*insight.Engine) (insight.Result, error)) error {
	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}
	result, err := run(engine)
	if err != nil {
		return err
	}
	printResult(c.out, result, c.topN, c.showAll)
	if c.jsonPath != "" {
		return c.writeJSON(result)
	}
	return nil
}

func (c *cli) engine(ctx context.Context) (*insight.Engine, error) {
	ds, err := c.dataset(ctx)
	if err != nil {
		return nil, err
	}
	registry, err := c.registry()
	if err != nil {
		return nil, err
	}
	defaultPolicy, hubPolicy, err := policies(c.config.Allocation)
	if err != nil {
		return nil, err
	}

	opts := []insight.Option{
		insight.WithPolicies(defaultPolicy, hubPolicy),
		insight.WithLogger(log.WithField("source", ds.Source())),
	}
	if seed := c.config.Allocation.Seed; seed != 0 {
		opts = append(opts, insight.WithSeed(seed))
	}
	return insight.NewEngine(ds, registry, opts...), nil
}

func (c *cli) dataset(ctx context.Context) (*dataset.Dataset, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := c.config.Dataset
	var (
		ds  *dataset.Dataset
		err error
	)
	switch cfg.Source {
	case config.SourcePostgres:
		ds, err = loadPostgres(ctx, cfg.Postgres)
	default:
		ds, err = dataset.LoadFile(cfg.Path, cfg.Sheet)
	}
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"source":  ds.Source(),
		"records": ds.Len(),
		"dropped": ds.Dropped(),
	}).Info("dataset loaded")
	return ds, nil
}

func loadPostgres(ctx context.Context, cfg config.PostgresConfig) (*dataset.Dataset, error) {
	pool, err := dataset.OpenPool(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	source, err := dataset.NewPostgresSource(pool, cfg.Table, cfg.OrderBy)
	if err != nil {
		return nil, err
	}
	return source.Load(ctx)
}

func (c *cli) registry() (*region.Registry, error) {
	if len(c.config.Regions) == 0 {
		return region.Default(), nil
	}
	regions := make([]region.Region, 0, len(c.config.Regions))
	for _, r := range c.config.Regions {
		regions = append(regions, region.Region{Name: r.Name, Population: r.Population})
	}
	registry, err := region.New(regions)
	if err != nil {
		return nil, errors.Wrap(err, "invalid region configuration")
	}
	return registry, nil
}

func policies(cfg config.AllocationConfig) (allocate.VariancePolicy, allocate.VariancePolicy, error) {
	uniform := allocate.UniformPolicy{Range: allocate.Range{Low: cfg.Default.Low, High: cfg.Default.High}}
	if err := uniform.Range.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "allocation.default")
	}
	hub := allocate.NewHubPolicy(cfg.Hub.Regions,
		allocate.Range{Low: cfg.Hub.Low, High: cfg.Hub.High},
		allocate.Range{Low: cfg.Hub.OtherLow, High: cfg.Hub.OtherHigh})
	if err := hub.Hub.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "allocation.hub")
	}
	if err := hub.Other.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "allocation.hub.other")
	}
	return uniform, hub, nil
}

func printResult(out io.Writer, result insight.Result, topN int, showAll bool) {
	title := fmt.Sprintf("%s (%s)", viewTitle(result.View), result.ValueLabel)
	fmt.Fprintln(out, title)
	fmt.Fprintln(out, strings.Repeat("-", len(title)))
	printSelection(out, result.Applied)
	if result.Empty {
		fmt.Fprintf(out, "\n%s\n", result.Message)
		return
	}
	if result.Reference != nil {
		fmt.Fprintf(out, "Reference: %.2f\n", *result.Reference)
	}

	fmt.Fprintln(out)
	limit := len(result.Rows)
	if !showAll && topN > 0 && topN < limit {
		limit = topN
	}
	for i := 0; i < limit; i++ {
		row := result.Rows[i]
		label := row.Label
		if row.Series != "" {
			label = fmt.Sprintf("%s | %s", row.Label, row.Series)
		}
		fmt.Fprintf(out, "%d. %s | %s: %s\n", i+1, label, result.ValueColumn, formatValue(row.Value))
	}
	if limit < len(result.Rows) {
		fmt.Fprintf(out, "... %d more\n", len(result.Rows)-limit)
	}
}

func printSelection(out io.Writer, s insight.Selection) {
	var parts []string
	add := func(name, value string) {
		if value != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", name, value))
		}
	}
	add("service", s.ServiceType)
	add("mode", s.Mode)
	add("sort", s.Sort)
	add("occupations", strings.Join(s.Occupations, "; "))
	add("chart", s.ChartMode)
	add("types", strings.Join(s.EngineerTypes, ","))
	add("category", s.Category)
	add("analysis", s.Analysis)
	if len(parts) > 0 {
		fmt.Fprintf(out, "Selection: %s\n", strings.Join(parts, " "))
	}
}

func viewTitle(view string) string {
	switch view {
	case insight.ViewEssential:
		return "Essential Services"
	case insight.ViewGender:
		return "Gender Employment"
	case insight.ViewEngineering:
		return "Engineering Workforce"
	case insight.ViewCustom:
		return "Custom Insight"
	default:
		return view
	}
}

func formatValue(value float64) string {
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d", int64(value))
	}
	return fmt.Sprintf("%.2f", value)
}

func printRegions(out io.Writer, registry *region.Registry) {
	fmt.Fprintln(out, "Regions")
	fmt.Fprintln(out, strings.Repeat("-", 7))
	for _, r := range registry.Regions() {
		fmt.Fprintf(out, "%s: %d (%.1f%%)\n", r.Name, r.Population, registry.Share(r.Name)*100)
	}
	fmt.Fprintf(out, "Total: %d\n", registry.TotalPopulation())
}

func printRecords(out io.Writer, ds *dataset.Dataset, rates []normalize.RecordRate, topN int, showAll bool) {
	fmt.Fprintln(out, "Occupation Records")
	fmt.Fprintln(out, strings.Repeat("-", 18))
	fmt.Fprintf(out, "Source:  %s\n", ds.Source())
	fmt.Fprintf(out, "Records: %d\n", ds.Len())
	fmt.Fprintf(out, "Dropped: %d\n\n", ds.Dropped())
	if len(rates) == 0 {
		fmt.Fprintln(out, "No records loaded.")
		return
	}
	limit := len(rates)
	if !showAll && topN > 0 && topN < limit {
		limit = topN
	}
	for i := 0; i < limit; i++ {
		item := rates[i]
		fmt.Fprintf(out, "%d. %s | Total: %s | Men: %s | Women: %s | Per 10k: %.2f\n",
			i+1, item.Occupation, formatValue(item.Total), formatValue(item.Men), formatValue(item.Women), item.TotalPer10K)
	}
	if limit < len(rates) {
		fmt.Fprintf(out, "... %d more\n", len(rates)-limit)
	}
}

func (c *cli) writeJSON(value any) error {
	if err := writeJSON(c.jsonPath, value); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\nJSON written to %s\n", c.jsonPath)
	return nil
}

func writeJSON(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "unable to create JSON output")
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return errors.Wrap(err, "unable to write JSON output")
	}
	return nil
}
