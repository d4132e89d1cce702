// Package tabulate computes survey-weighted category prevalence, weighted
// conditional means and unweighted country cross-tabulations.
package tabulate

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/hhtab/internal/recode"
	"github.com/KaramelBytes/hhtab/internal/survey"
)

// DefaultPooledLabel labels the row computed over all countries.
const DefaultPooledLabel = "EU (weighted)"

// Row is one country (or the pooled row) of a result.
type Row struct {
	Label string
	// Values has one cell per category; NaN marks an undefined cell.
	Values []float64
	// Weight is the total weight of the records behind the row.
	Weight  float64
	Records int
	Pooled  bool
}

// Result is a country × category table of weighted statistics.
type Result struct {
	// Sheet names the table in reports, e.g. "poverty_fht5_2021".
	Sheet     string
	Variable  string
	Indicator string
	Labels    []string
	Rows      []Row
}

// Cell identifies one undefined value of a result.
type Cell struct {
	Row    string
	Column string
}

// Undefined lists cells without data (zero weighted denominator), in row
// then column order.
func (r *Result) Undefined() []Cell {
	var out []Cell
	for _, row := range r.Rows {
		for j, v := range row.Values {
			if math.IsNaN(v) {
				out = append(out, Cell{Row: row.Label, Column: r.Labels[j]})
			}
		}
	}
	return out
}

// Kind describes the statistic held by the result.
func (r *Result) Kind() string {
	if r.Indicator != "" {
		return "mean"
	}
	return "prevalence"
}

// Options controls row labelling and sheet naming.
type Options struct {
	PooledLabel string
	// Year is appended to sheet names.
	Year string
}

func (o Options) pooled() string {
	if o.PooledLabel == "" {
		return DefaultPooledLabel
	}
	return o.PooledLabel
}

func (o Options) sheet(parts ...string) string {
	if o.Year != "" {
		parts = append(parts, o.Year)
	}
	name := parts[0]
	for _, p := range parts[1:] {
		name += "_" + p
	}
	return name
}

// acc accumulates weighted sums per category for one subset.
type acc struct {
	num     []float64
	den     []float64
	total   float64
	records int
}

func newAcc(n int) *acc {
	return &acc{num: make([]float64, n), den: make([]float64, n)}
}

// group runs fn for every record against its country accumulator and the
// pooled accumulator, returning them in row order.
func group(s *survey.Sample, n int, fn func(a *acc, r survey.Record)) ([]*acc, *acc) {
	idx := make(map[string]int, len(s.Countries))
	per := make([]*acc, len(s.Countries))
	for i, c := range s.Countries {
		idx[c] = i
		per[i] = newAcc(n)
	}
	all := newAcc(n)
	for _, r := range s.Records {
		i, ok := idx[r.Country]
		if !ok {
			continue
		}
		fn(per[i], r)
		fn(all, r)
	}
	return per, all
}

func category(v recode.Variable, r survey.Record) (int, error) {
	code, ok := r.Codes[v.Name]
	if !ok {
		return -1, fmt.Errorf("record %d has no %s code; recode before tabulating", r.Row, v.Name)
	}
	k := v.Index(code)
	if k < 0 {
		return -1, fmt.Errorf("record %d: %s code %d is not a declared category", r.Row, v.Name, code)
	}
	return k, nil
}

// Prevalence computes, per country and pooled, the weighted share of each
// category of v: Σw[x=k] / Σw. Categories without records are 0; a subset
// with no weight at all yields NaN cells.
func Prevalence(s *survey.Sample, v recode.Variable, opt Options) (*Result, error) {
	n := len(v.Categories)
	var firstErr error
	per, all := group(s, n, func(a *acc, r survey.Record) {
		k, err := category(v, r)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		a.num[k] += r.Weight
		a.total += r.Weight
		a.records++
	})
	if firstErr != nil {
		return nil, firstErr
	}
	res := &Result{Sheet: opt.sheet(v.Name), Variable: v.Name, Labels: v.Labels()}
	emit := func(label string, a *acc, pooled bool) {
		row := Row{Label: label, Values: make([]float64, n), Weight: a.total, Records: a.records, Pooled: pooled}
		for k := range row.Values {
			row.Values[k] = ratio(a.num[k], a.total)
		}
		res.Rows = append(res.Rows, row)
	}
	for i, c := range s.Countries {
		emit(c, per[i], false)
	}
	emit(opt.pooled(), all, true)
	return res, nil
}

// ConditionalMean computes, per country and pooled, the weighted mean of
// the named indicator within each category of v: Σw·y / Σw over records of
// that category with a non-missing indicator. Empty categories yield NaN.
func ConditionalMean(s *survey.Sample, indicator string, v recode.Variable, opt Options) (*Result, error) {
	ind := s.IndicatorIndex(indicator)
	if ind < 0 {
		return nil, fmt.Errorf("unknown indicator %q", indicator)
	}
	n := len(v.Categories)
	var firstErr error
	per, all := group(s, n, func(a *acc, r survey.Record) {
		k, err := category(v, r)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		a.records++
		y := r.Indicators[ind]
		if math.IsNaN(y) {
			return
		}
		a.num[k] += r.Weight * y
		a.den[k] += r.Weight
		a.total += r.Weight
	})
	if firstErr != nil {
		return nil, firstErr
	}
	res := &Result{Sheet: opt.sheet(indicator, v.Name), Variable: v.Name, Indicator: indicator, Labels: v.Labels()}
	emit := func(label string, a *acc, pooled bool) {
		row := Row{Label: label, Values: make([]float64, n), Weight: a.total, Records: a.records, Pooled: pooled}
		for k := range row.Values {
			row.Values[k] = ratio(a.num[k], a.den[k])
		}
		res.Rows = append(res.Rows, row)
	}
	for i, c := range s.Countries {
		emit(c, per[i], false)
	}
	emit(opt.pooled(), all, true)
	return res, nil
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}
