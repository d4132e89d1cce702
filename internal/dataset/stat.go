package dataset

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kshedden/datareader"
)

// statReader reads binary files written by Stata (.dta) and SAS
// (.sas7bdat).
type statReader struct{}

func (statReader) CanRead(path string) bool {
	return hasExt(path, ".dta", ".sas7bdat")
}

func (statReader) Read(path string, _ Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Ext(path), err)
	}
	defer f.Close()

	var rdr datareader.Statfilereader
	if hasExt(path, ".dta") {
		sr, err := datareader.NewStataReader(f)
		if err != nil {
			return nil, fmt.Errorf("stata header: %w", err)
		}
		// Keep numeric codes; value labels would replace them with text.
		sr.InsertCategoryLabels = false
		sr.ConvertDates = false
		rdr = sr
	} else {
		sr, err := datareader.NewSAS7BDATReader(f)
		if err != nil {
			return nil, fmt.Errorf("sas header: %w", err)
		}
		rdr = sr
	}

	names := rdr.ColumnNames()
	n := rdr.RowCount()
	cells := make([][]string, len(names))
	for j := range cells {
		cells[j] = make([]string, 0, n)
	}
	if n > 0 {
		series, err := rdr.Read(n)
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
		if len(series) != len(names) {
			return nil, fmt.Errorf("read rows: got %d columns, header lists %d", len(series), len(names))
		}
		for j, s := range series {
			col, err := seriesStrings(s)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", names[j], err)
			}
			cells[j] = col
		}
	}
	return newColumnTable(filepath.Base(path), names, cells)
}

// column is the part of *datareader.Series that seriesStrings reads.
type column interface {
	Data() interface{}
	Missing() []bool
}

// seriesStrings renders a datareader series as raw text cells. Missing
// values become "".
func seriesStrings(s column) ([]string, error) {
	miss := s.Missing()
	isMiss := func(i int) bool { return miss != nil && i < len(miss) && miss[i] }
	var out []string
	switch d := s.Data().(type) {
	case []float64:
		out = make([]string, len(d))
		for i, v := range d {
			if isMiss(i) || math.IsNaN(v) {
				continue
			}
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	case []float32:
		out = make([]string, len(d))
		for i, v := range d {
			if isMiss(i) || math.IsNaN(float64(v)) {
				continue
			}
			out[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
		}
	case []int64:
		out = make([]string, len(d))
		for i, v := range d {
			if !isMiss(i) {
				out[i] = strconv.FormatInt(v, 10)
			}
		}
	case []int32:
		out = make([]string, len(d))
		for i, v := range d {
			if !isMiss(i) {
				out[i] = strconv.FormatInt(int64(v), 10)
			}
		}
	case []int16:
		out = make([]string, len(d))
		for i, v := range d {
			if !isMiss(i) {
				out[i] = strconv.FormatInt(int64(v), 10)
			}
		}
	case []int8:
		out = make([]string, len(d))
		for i, v := range d {
			if !isMiss(i) {
				out[i] = strconv.FormatInt(int64(v), 10)
			}
		}
	case []string:
		out = make([]string, len(d))
		for i, v := range d {
			if !isMiss(i) {
				out[i] = v
			}
		}
	case []time.Time:
		out = make([]string, len(d))
		for i, v := range d {
			if !isMiss(i) {
				out[i] = v.Format("2006-01-02")
			}
		}
	default:
		return nil, fmt.Errorf("unsupported column type %T", d)
	}
	return out, nil
}
