package survey

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/hhtab/internal/dataset"
	"github.com/KaramelBytes/hhtab/internal/logging"
)

// Indicator is a risk variable read from Source and exposed as Name.
type Indicator struct {
	Name   string
	Source string
}

// Options controls normalization and filtering. Column names must already
// be lower case.
type Options struct {
	Country        string
	Weight         string
	HouseholdType  string
	TypologySource string
	FHT            string

	// Sex is the source column renamed to "sex" when present.
	Sex string
	// Age is a direct age column; when absent age is derived from BirthYear.
	Age       string
	BirthYear string
	// ReferenceYearColumn holds the survey year per record; ReferenceYear is
	// used when that column is absent or empty.
	ReferenceYearColumn string
	ReferenceYear       int

	Indicators []Indicator

	ExcludeCountries []string
	// AutoExclude drops countries where a raw typology field is missing on
	// every record.
	AutoExclude bool

	// MinAge and MaxAge bound the population; 0 means unbounded.
	MinAge int
	MaxAge int
}

// Load normalizes a raw table into a filtered Sample: column names are
// lower-cased, sex is renamed, age derived, countries excluded and every
// remaining record decoded against the schema. Any missing or malformed
// required value after exclusion is fatal.
func Load(raw *dataset.Table, opt Options, log *logging.Logger) (*Sample, error) {
	if log == nil {
		log = logging.Discard()
	}
	s := &Sample{}
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		s.Warnings = append(s.Warnings, msg)
		log.Warn("%s", msg)
	}

	t, err := raw.LowerNames()
	if err != nil {
		return nil, err
	}
	switch {
	case opt.Sex == "" || opt.Sex == "sex":
	case t.Has(opt.Sex):
		if t.Has("sex") {
			warn("both %q and \"sex\" present; keeping existing sex column", opt.Sex)
		} else if t, err = t.Rename(opt.Sex, "sex"); err != nil {
			return nil, err
		}
	}

	missingOpt, err := NewSchema(opt).Check(t)
	if err != nil {
		return nil, fmt.Errorf("check schema: %w", err)
	}
	for _, f := range missingOpt {
		warn("optional column %q (%s) not found; skipped", f.Column, f.Name)
	}
	hasAge := opt.Age != "" && t.Has(opt.Age)
	hasBirth := opt.BirthYear != "" && t.Has(opt.BirthYear)
	if !hasAge && !hasBirth {
		warn("no age or birth-year column; age left at 0")
	}
	hasRefCol := opt.ReferenceYearColumn != "" && t.Has(opt.ReferenceYearColumn)

	// Group rows by country so exclusion can be decided per country.
	countries, _ := t.Column(opt.Country)
	byCountry := map[string][]int{}
	for i, c := range countries {
		c = strings.TrimSpace(c)
		if dataset.IsMissing(c) {
			return nil, &FieldError{Row: i + 1, Column: opt.Country, Reason: "missing country code"}
		}
		byCountry[c] = append(byCountry[c], i)
	}

	excluded := map[string]bool{}
	seen := map[string]bool{}
	for _, code := range opt.ExcludeCountries {
		if seen[code] {
			continue
		}
		seen[code] = true
		rows, ok := byCountry[code]
		if !ok {
			warn("configured exclusion %s matches no records", code)
			continue
		}
		excluded[code] = true
		s.Excluded = append(s.Excluded, Exclusion{Country: code, Reason: "excluded by configuration", Records: len(rows)})
	}
	if opt.AutoExclude {
		codes := make([]string, 0, len(byCountry))
		for c := range byCountry {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		for _, c := range codes {
			if excluded[c] {
				continue
			}
			if col := allMissing(t, byCountry[c], opt.HouseholdType, opt.TypologySource, opt.FHT); col != "" {
				excluded[c] = true
				s.Excluded = append(s.Excluded, Exclusion{Country: c, Reason: fmt.Sprintf("column %s missing on every record", col), Records: len(byCountry[c])})
			}
		}
	}
	for _, e := range s.Excluded {
		log.Info("excluded country %s (%d records): %s", e.Country, e.Records, e.Reason)
	}

	for _, ind := range opt.Indicators {
		s.Indicators = append(s.Indicators, ind.Name)
	}
	indMissing := make([]int, len(opt.Indicators))
	ageUnknown := 0

	for i := 0; i < t.Len(); i++ {
		country := strings.TrimSpace(countries[i])
		if excluded[country] {
			continue
		}
		rec := Record{Row: i + 1, Country: country, Sex: strings.TrimSpace(t.Value("sex", i))}
		if dataset.IsMissing(rec.Sex) {
			rec.Sex = ""
		}

		w := t.Value(opt.Weight, i)
		if rec.Weight, err = parseWeight(w); err != nil {
			return nil, &FieldError{Row: i + 1, Column: opt.Weight, Value: w, Reason: err.Error()}
		}
		for _, c := range []struct {
			col string
			dst *int
		}{
			{opt.HouseholdType, &rec.HouseholdType},
			{opt.TypologySource, &rec.TypologySource},
			{opt.FHT, &rec.FHT},
		} {
			v := t.Value(c.col, i)
			if *c.dst, err = parseCode(v); err != nil {
				return nil, &FieldError{Row: i + 1, Column: c.col, Value: v, Reason: err.Error()}
			}
		}

		rec.Indicators = make([]float64, len(opt.Indicators))
		for k, ind := range opt.Indicators {
			v := t.Value(ind.Source, i)
			if dataset.IsMissing(v) {
				rec.Indicators[k] = math.NaN()
				indMissing[k]++
				continue
			}
			x, perr := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if perr != nil || math.IsInf(x, 0) {
				return nil, &FieldError{Row: i + 1, Column: ind.Source, Value: v, Reason: "indicator is not numeric"}
			}
			rec.Indicators[k] = x
		}

		age, known := deriveAge(t, i, opt, hasAge, hasBirth, hasRefCol)
		if !known && (hasAge || hasBirth) {
			ageUnknown++
		}
		rec.Age = age

		if (opt.MinAge > 0 && rec.Age < opt.MinAge) || (opt.MaxAge > 0 && rec.Age > opt.MaxAge) {
			s.AgeFiltered++
			continue
		}
		s.Records = append(s.Records, rec)
	}

	for k, n := range indMissing {
		if n > 0 {
			warn("indicator %s: %d records with missing %s excluded from its means", opt.Indicators[k].Name, n, opt.Indicators[k].Source)
		}
	}
	if ageUnknown > 0 {
		warn("age unknown for %d records; set to 0", ageUnknown)
	}
	if s.AgeFiltered > 0 {
		log.Info("age filter %d..%d dropped %d records", opt.MinAge, opt.MaxAge, s.AgeFiltered)
	}
	s.Countries = distinctCountries(s.Records)
	log.Info("loaded %d records from %d countries", len(s.Records), len(s.Countries))
	return s, nil
}

// allMissing returns the first column whose cells are missing on every
// listed row, or "".
func allMissing(t *dataset.Table, rows []int, cols ...string) string {
	for _, col := range cols {
		all := true
		for _, i := range rows {
			if !dataset.IsMissing(t.Value(col, i)) {
				all = false
				break
			}
		}
		if all {
			return col
		}
	}
	return ""
}

func deriveAge(t *dataset.Table, i int, opt Options, hasAge, hasBirth, hasRefCol bool) (int, bool) {
	if hasAge {
		if a, err := parseCode(t.Value(opt.Age, i)); err == nil {
			return clampAge(a), true
		}
	}
	if !hasBirth {
		return 0, false
	}
	birth, err := parseCode(t.Value(opt.BirthYear, i))
	if err != nil {
		return 0, false
	}
	ref := opt.ReferenceYear
	if hasRefCol {
		if y, err := parseCode(t.Value(opt.ReferenceYearColumn, i)); err == nil {
			ref = y
		}
	}
	if ref == 0 {
		return 0, false
	}
	return clampAge(ref - birth - 1), true
}

func clampAge(a int) int {
	if a < 0 {
		return 0
	}
	return a
}

// parseCode parses an integer code. Readers of binary formats may render
// integers as "5" or "5.0"; fractional values are rejected.
func parseCode(v string) (int, error) {
	v = strings.TrimSpace(v)
	if dataset.IsMissing(v) {
		return 0, fmt.Errorf("missing value")
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not an integer code")
	}
	return int(f), nil
}

func parseWeight(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if dataset.IsMissing(v) {
		return 0, fmt.Errorf("missing weight")
	}
	w, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
		return 0, fmt.Errorf("weight is not numeric")
	}
	if w <= 0 {
		return 0, fmt.Errorf("weight must be positive")
	}
	return w, nil
}
