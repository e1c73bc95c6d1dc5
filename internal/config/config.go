// Package config loads the estimator configuration from defaults, an optional YAML file,
// WORKFORCE_* environment variables and bound command-line flags.
package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"groupscholar-workforce-estimator/internal/logging"
)

const (
	SourceFile     = "file"
	SourcePostgres = "postgres"

	EnvPrefix = "WORKFORCE"
)

type Configuration struct {
	Dataset DatasetConfig `mapstructure:"dataset"`
	// Optional replacement for the built-in region table.
	Regions    []RegionConfig   `mapstructure:"regions" validate:"dive"`
	Allocation AllocationConfig `mapstructure:"allocation"`
	Logging    logging.Config   `mapstructure:"logging"`
}

type DatasetConfig struct {
	Source string `mapstructure:"source" validate:"oneof=file postgres"`
	// csv or xlsx, chosen by extension
	Path string `mapstructure:"path" validate:"required_if=Source file"`
	// Worksheet to read from an xlsx workbook; the first sheet when empty.
	Sheet    string         `mapstructure:"sheet"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
	// Optional column to order rows by; source order when empty.
	OrderBy string `mapstructure:"orderBy"`
}

type RegionConfig struct {
	Name       string `mapstructure:"name" validate:"required"`
	Population int64  `mapstructure:"population" validate:"gt=0"`
}

type AllocationConfig struct {
	// Zero seeds the random source from the clock.
	Seed    int64       `mapstructure:"seed"`
	Default RangeConfig `mapstructure:"default"`
	Hub     HubConfig   `mapstructure:"hub"`
}

type RangeConfig struct {
	Low  float64 `mapstructure:"low" validate:"gte=0"`
	High float64 `mapstructure:"high" validate:"gtefield=Low"`
}

type HubConfig struct {
	Regions   []string `mapstructure:"regions"`
	Low       float64  `mapstructure:"low" validate:"gte=0"`
	High      float64  `mapstructure:"high" validate:"gtefield=Low"`
	OtherLow  float64  `mapstructure:"otherLow" validate:"gte=0"`
	OtherHigh float64  `mapstructure:"otherHigh" validate:"gtefield=OtherLow"`
}

// SetDefaults registers every key with its default value, which also makes the keys
// visible to AutomaticEnv during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dataset.source", SourceFile)
	v.SetDefault("dataset.path", "data.csv")
	v.SetDefault("dataset.sheet", "")
	v.SetDefault("dataset.postgres.dsn", "")
	v.SetDefault("dataset.postgres.table", "occupations")
	v.SetDefault("dataset.postgres.orderBy", "")
	v.SetDefault("allocation.seed", 0)
	v.SetDefault("allocation.default.low", 0.7)
	v.SetDefault("allocation.default.high", 1.3)
	v.SetDefault("allocation.hub.regions", []string{"Ontario", "British Columbia", "Quebec"})
	v.SetDefault("allocation.hub.low", 1.2)
	v.SetDefault("allocation.hub.high", 1.8)
	v.SetDefault("allocation.hub.otherLow", 0.5)
	v.SetDefault("allocation.hub.otherHigh", 1.1)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", logging.FormatText)
}

// Load reads the configuration into a validated Configuration. path may be empty.
func Load(v *viper.Viper, path string) (Configuration, error) {
	var config Configuration
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config, errors.Wrapf(err, "reading config file %s", path)
		}
	}

	decodeHooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&config, decodeHooks); err != nil {
		return config, errors.Wrap(err, "decoding configuration")
	}
	if err := config.Validate(); err != nil {
		LogValidationErrors(err)
		return config, err
	}
	return config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Dataset.Source == SourcePostgres && c.Dataset.Postgres.DSN == "" {
		return errors.New("dataset.postgres.dsn is required when dataset.source is postgres")
	}
	return nil
}

func LogValidationErrors(err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		log.Errorf("ConfigError: %s", err)
		return
	}
	for _, err := range validationErrors {
		fieldName := stripPrefix(err.Namespace())
		switch err.Tag() {
		case "required", "required_if":
			log.Errorf("ConfigError: Field %s is required but was not found", fieldName)
		default:
			log.Errorf("ConfigError: Field %s has invalid value %v: %s", fieldName, err.Value(), err.Tag())
		}
	}
}

func stripPrefix(s string) string {
	if idx := strings.Index(s, "."); idx != -1 {
		return s[idx+1:]
	}
	return s
}
