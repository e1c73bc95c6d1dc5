// Package estimatorerrors contains the errors returned by the workforce estimation engine.
//
// Callers are expected to recover these with errors.As. ErrDataFormat is fatal and only
// produced while loading a dataset; ErrEmptyInput and ErrUndefinedMetric are recoverable
// and describe a query that has nothing to show or a row whose metric cannot be computed.
package estimatorerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrDataFormat is returned when a dataset source cannot be read at all or lacks the
// required columns. Rows with unparsable numbers never produce this error.
type ErrDataFormat struct {
	Source  string // path, table or other description of the source
	Message string
}

func (err *ErrDataFormat) Error() string {
	if err.Source != "" {
		return fmt.Sprintf("invalid dataset %q: %s", err.Source, err.Message)
	}
	return fmt.Sprintf("invalid dataset: %s", err.Message)
}

// NewDataFormat returns an ErrDataFormat carrying a stack trace.
func NewDataFormat(source, format string, args ...any) error {
	return errors.WithStack(&ErrDataFormat{Source: source, Message: fmt.Sprintf(format, args...)})
}

// ErrEmptyInput signals that no rows matched a selection.
// View and Message are optional and are omitted from the error message if not provided.
type ErrEmptyInput struct {
	View    string
	Message string
}

func (err *ErrEmptyInput) Error() (s string) {
	if err.View != "" {
		s = fmt.Sprintf("no matching rows for %s", err.View)
	} else {
		s = "no matching rows"
	}
	if err.Message != "" {
		s = s + fmt.Sprintf("; %s", err.Message)
	}
	return
}

// ErrUndefinedMetric is returned when a ratio, parity index or percentage would divide by zero.
type ErrUndefinedMetric struct {
	Metric string // e.g. "gender ratio"
	Key    string // occupation, region or group the metric was computed for
}

func (err *ErrUndefinedMetric) Error() string {
	if err.Key != "" {
		return fmt.Sprintf("%s is undefined for %q", err.Metric, err.Key)
	}
	return fmt.Sprintf("%s is undefined", err.Metric)
}

// IsEmptyInput reports whether err wraps an ErrEmptyInput.
func IsEmptyInput(err error) bool {
	var e *ErrEmptyInput
	return errors.As(err, &e)
}

// IsUndefinedMetric reports whether err wraps an ErrUndefinedMetric.
func IsUndefinedMetric(err error) bool {
	var e *ErrUndefinedMetric
	return errors.As(err, &e)
}

// IsDataFormat reports whether err wraps an ErrDataFormat.
func IsDataFormat(err error) bool {
	var e *ErrDataFormat
	return errors.As(err, &e)
}
