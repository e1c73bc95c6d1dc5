// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config selects the log level and output format.
type Config struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// Configure applies cfg to the standard logrus logger and writes to out (stderr when nil),
// keeping stdout free for query results.
func Configure(cfg Config, out io.Writer) error {
	logger, err := New(cfg, out)
	if err != nil {
		return err
	}
	log.SetLevel(logger.Level)
	log.SetFormatter(logger.Formatter)
	log.SetOutput(logger.Out)
	return nil
}

// New builds a standalone logger from cfg.
func New(cfg Config, out io.Writer) (*log.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
		}
		level = parsed
	}

	logger := log.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	switch strings.ToLower(cfg.Format) {
	case "", FormatText:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, errors.Errorf("invalid log format %q: supported formats are text, json", cfg.Format)
	}
	return logger, nil
}

// Discard returns an entry that drops everything; used where no logger was supplied.
func Discard() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}
