package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/hhtab/internal/tabulate"
	"github.com/KaramelBytes/hhtab/internal/utils"
)

// maxSheetName is Excel's limit on worksheet names.
const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")")

// SheetName makes a result name usable as a worksheet name. The second
// return value reports whether the name had to be truncated.
func SheetName(name string) (string, bool) {
	s := sheetNameReplacer.Replace(strings.TrimSpace(name))
	if s == "" {
		s = "sheet"
	}
	r := []rune(s)
	if len(r) > maxSheetName {
		return string(r[:maxSheetName]), true
	}
	return s, false
}

// Workbook renders results as one worksheet each: a header row of category
// labels and one row per country plus the pooled row. Undefined cells are
// left empty.
func Workbook(results []*tabulate.Result) (*excelize.File, []string, error) {
	f := excelize.NewFile()
	var names []string
	used := map[string]bool{}
	for i, res := range results {
		name, _ := SheetName(res.Sheet)
		key := strings.ToLower(name)
		if used[key] {
			_ = f.Close()
			return nil, nil, fmt.Errorf("sheet name %q used twice (from %q)", name, res.Sheet)
		}
		used[key] = true
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				_ = f.Close()
				return nil, nil, fmt.Errorf("rename first sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("add sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, res); err != nil {
			_ = f.Close()
			return nil, nil, err
		}
		names = append(names, name)
	}
	return f, names, nil
}

func writeSheet(f *excelize.File, name string, res *tabulate.Result) error {
	header := make([]any, 0, len(res.Labels)+1)
	header = append(header, "country")
	for _, l := range res.Labels {
		header = append(header, l)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write header of %s: %w", name, err)
	}
	for i, row := range res.Rows {
		vals := make([]any, 0, len(row.Values)+1)
		vals = append(vals, row.Label)
		for _, v := range row.Values {
			if math.IsNaN(v) {
				vals = append(vals, nil)
				continue
			}
			vals = append(vals, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &vals); err != nil {
			return fmt.Errorf("write row %s of %s: %w", row.Label, name, err)
		}
	}
	last, err := excelize.ColumnNumberToName(len(res.Labels) + 1)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(name, "A", "A", 16); err != nil {
		return err
	}
	return f.SetColWidth(name, "B", last, 24)
}

// RenderWorkbook encodes results as .xlsx bytes. It returns the worksheet
// names in order.
func RenderWorkbook(results []*tabulate.Result) ([]byte, []string, error) {
	f, names, err := Workbook(results)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), names, nil
}

// WriteWorkbook renders results and writes the .xlsx atomically. It returns
// the worksheet names in order.
func WriteWorkbook(path string, results []*tabulate.Result) ([]string, error) {
	data, names, err := RenderWorkbook(results)
	if err != nil {
		return nil, err
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return names, nil
}
