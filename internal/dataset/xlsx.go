package dataset

import (
	"io"

	"github.com/xuri/excelize/v2"

	"groupscholar-workforce-estimator/internal/estimatorerrors"
)

// LoadXLSXFile reads the named sheet (or the first sheet) of a workbook on disk.
func LoadXLSXFile(path, sheet string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, estimatorerrors.NewDataFormat(path, "unable to open workbook: %s", err)
	}
	defer f.Close()
	return loadWorkbook(f, path, sheet)
}

// LoadXLSX reads a workbook from r.
func LoadXLSX(r io.Reader, source, sheet string) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, estimatorerrors.NewDataFormat(source, "unable to open workbook: %s", err)
	}
	defer f.Close()
	return loadWorkbook(f, source, sheet)
}

func loadWorkbook(f *excelize.File, source, sheet string) (*Dataset, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, estimatorerrors.NewDataFormat(source, "workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, estimatorerrors.NewDataFormat(source, "unable to read sheet %q: %s", sheet, err)
	}
	if len(rows) == 0 {
		return nil, estimatorerrors.NewDataFormat(source, "sheet %q is empty", sheet)
	}
	return parseTable(source, rows[0], rows[1:], 0)
}
