package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"groupscholar-workforce-estimator/internal/estimatorerrors"
)

const (
	ColumnOccupation = "occupation"
	ColumnTotal      = "total"
	ColumnMen        = "men"
	ColumnWomen      = "women"
)

var requiredHeaders = []string{ColumnOccupation, ColumnTotal, ColumnMen, ColumnWomen}

// LoadFile loads a csv or xlsx file, chosen by extension. sheet only applies to workbooks.
func LoadFile(path, sheet string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadXLSXFile(path, sheet)
	case ".csv", ".txt", "":
		file, err := os.Open(path)
		if err != nil {
			return nil, errors.WithStack(&estimatorerrors.ErrDataFormat{Source: path, Message: "unable to open: " + err.Error()})
		}
		defer file.Close()
		return LoadCSV(file, path)
	default:
		return nil, estimatorerrors.NewDataFormat(path, "unsupported file type %q", filepath.Ext(path))
	}
}

// LoadCSV reads a comma separated table with at least the Occupation, Total, Men and
// Women columns. Header names are matched case-insensitively.
func LoadCSV(r io.Reader, source string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, estimatorerrors.NewDataFormat(source, "unable to read header: %s", err)
	}

	var rows [][]string
	dropped := 0
	line := 1
	for {
		line++
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, estimatorerrors.NewDataFormat(source, "read failed at line %d: %s", line, err)
			}
			log.WithField("source", source).Debugf("line %d: %v", line, err)
			dropped++
			continue
		}
		rows = append(rows, record)
	}
	return parseTable(source, header, rows, dropped)
}

// parseTable is shared by every tabular source: it resolves the required columns and keeps
// the rows whose three counts all clean to numbers.
func parseTable(source string, header []string, rows [][]string, dropped int) (*Dataset, error) {
	index := mapHeaders(header)
	if missing := missingHeaders(requiredHeaders, index); len(missing) > 0 {
		return nil, estimatorerrors.NewDataFormat(source, "missing required headers: %s", strings.Join(missing, ", "))
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		record, ok := parseRecord(row, index)
		if !ok {
			dropped++
			continue
		}
		records = append(records, record)
	}

	log.WithField("source", source).Debugf("loaded %d occupation rows, dropped %d", len(records), dropped)
	return newDataset(source, records, dropped), nil
}

func mapHeaders(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := index[key]; seen {
			continue
		}
		index[key] = i
	}
	return index
}

func missingHeaders(required []string, index map[string]int) []string {
	var missing []string
	for _, key := range required {
		if _, ok := index[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

func parseRecord(row []string, index map[string]int) (Record, bool) {
	get := func(key string) string {
		pos := index[key]
		if pos >= len(row) {
			return ""
		}
		return row[pos]
	}

	total, ok := CleanNumber(get(ColumnTotal))
	if !ok {
		return Record{}, false
	}
	men, ok := CleanNumber(get(ColumnMen))
	if !ok {
		return Record{}, false
	}
	women, ok := CleanNumber(get(ColumnWomen))
	if !ok {
		return Record{}, false
	}
	return Record{
		Occupation: strings.TrimSpace(get(ColumnOccupation)),
		Total:      total,
		Men:        men,
		Women:      women,
	}, true
}
