package survey

import (
	"errors"
	"sort"
	"strings"

	"github.com/KaramelBytes/hhtab/internal/dataset"
)

// ColumnMissing counts missing cells of one input column.
type ColumnMissing struct {
	Column  string
	Missing int
}

// CountryGap lists the raw typology columns missing on every record of a
// country. Such a country is dropped when auto exclusion is on.
type CountryGap struct {
	Country string
	Records int
	Empty   []string
}

// Diagnosis summarizes an input table against the loader options without
// decoding it.
type Diagnosis struct {
	Rows    int
	Columns []ColumnMissing
	// Absent lists schema fields not found in the input.
	Absent    []Field
	Countries []CountryGap
}

// Diagnose inspects raw without applying exclusion or failing on bad values.
func Diagnose(raw *dataset.Table, opt Options) (*Diagnosis, error) {
	t, err := raw.LowerNames()
	if err != nil {
		return nil, err
	}
	d := &Diagnosis{Rows: t.Len()}
	for _, col := range t.Columns {
		d.Columns = append(d.Columns, ColumnMissing{Column: col, Missing: t.Missing(col)})
	}
	if opt.Sex != "" && t.Has(opt.Sex) && !t.Has("sex") {
		if t, err = t.Rename(opt.Sex, "sex"); err != nil {
			return nil, err
		}
	}
	optAbsent, err := NewSchema(opt).Check(t)
	var se *SchemaError
	if errors.As(err, &se) {
		d.Absent = append(d.Absent, se.Missing...)
	} else if err != nil {
		return nil, err
	}
	d.Absent = append(d.Absent, optAbsent...)

	countries, ok := t.Column(opt.Country)
	if !ok {
		return d, nil
	}
	byCountry := map[string][]int{}
	for i, c := range countries {
		c = strings.TrimSpace(c)
		if dataset.IsMissing(c) {
			c = "(missing)"
		}
		byCountry[c] = append(byCountry[c], i)
	}
	codes := make([]string, 0, len(byCountry))
	for c := range byCountry {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	for _, c := range codes {
		gap := CountryGap{Country: c, Records: len(byCountry[c])}
		for _, col := range []string{opt.HouseholdType, opt.TypologySource, opt.FHT} {
			if t.Has(col) && allMissing(t, byCountry[c], col) != "" {
				gap.Empty = append(gap.Empty, col)
			}
		}
		d.Countries = append(d.Countries, gap)
	}
	return d, nil
}
