// Package pipeline wires the load, recode, tabulate and report stages into a
// single batch run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/hhtab/internal/config"
	"github.com/KaramelBytes/hhtab/internal/dataset"
	"github.com/KaramelBytes/hhtab/internal/logging"
	"github.com/KaramelBytes/hhtab/internal/recode"
	"github.com/KaramelBytes/hhtab/internal/report"
	"github.com/KaramelBytes/hhtab/internal/store"
	"github.com/KaramelBytes/hhtab/internal/survey"
	"github.com/KaramelBytes/hhtab/internal/tabulate"
	"github.com/KaramelBytes/hhtab/internal/utils"
)

// Summary reports what a run produced.
type Summary struct {
	RunID     string
	Records   int
	Countries []string
	Excluded  []survey.Exclusion
	// Sheets lists the workbook worksheets in order.
	Sheets      []string
	CrossTabs   []string
	Undefined   int
	AgeFiltered int
	Warnings    []string
	Stored      bool
}

// Tables holds everything computed from one sample, before any output is
// written.
type Tables struct {
	Results   []*tabulate.Result
	CrossTabs []*tabulate.CrossTab
}

// LoadOptions maps the configuration onto loader options.
func LoadOptions(c *config.Global) survey.Options {
	opt := survey.Options{
		Country:             c.Fields.Country,
		Weight:              c.Fields.Weight,
		HouseholdType:       c.Fields.HouseholdType,
		TypologySource:      c.Fields.TypologySource,
		FHT:                 c.Fields.FHT,
		Sex:                 c.Fields.Sex,
		Age:                 c.Fields.Age,
		BirthYear:           c.Fields.BirthYear,
		ReferenceYearColumn: c.Fields.ReferenceYear,
		ReferenceYear:       c.ReferenceYear,
		ExcludeCountries:    c.ExcludeCountries,
		AutoExclude:         c.AutoExclude,
		MinAge:              c.MinAge,
		MaxAge:              c.MaxAge,
	}
	for _, ind := range c.Indicators {
		opt.Indicators = append(opt.Indicators, survey.Indicator{Name: ind.Name, Source: ind.Source})
	}
	return opt
}

// Prepare reads the input file, normalizes it and derives the configured
// output variables.
func Prepare(c *config.Global, log *logging.Logger) (*survey.Sample, []recode.Variable, error) {
	vars, err := recode.Select(c.Outputs)
	if err != nil {
		return nil, nil, err
	}
	raw, err := dataset.Open(c.Input, dataset.Options{Sheet: c.Sheet})
	if err != nil {
		return nil, nil, err
	}
	log.Info("read %d rows, %d columns from %s", raw.Len(), len(raw.Columns), c.Input)
	s, err := survey.Load(raw, LoadOptions(c), log)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", c.Input, err)
	}
	// The appendix always covers both derived typologies.
	return s.WithRecords(recode.Apply(s.Records, recode.All())), vars, nil
}

// Tabulate computes the prevalence and conditional-mean tables for vars and
// the fixed set of appendix cross-tabulations.
func Tabulate(s *survey.Sample, vars []recode.Variable, c *config.Global) (*Tables, error) {
	opt := tabulate.Options{PooledLabel: c.PooledLabel, Year: c.Year}
	t := &Tables{}
	for _, v := range vars {
		res, err := tabulate.Prevalence(s, v, opt)
		if err != nil {
			return nil, fmt.Errorf("prevalence of %s: %w", v.Name, err)
		}
		t.Results = append(t.Results, res)
	}
	for _, ind := range s.Indicators {
		for _, v := range vars {
			res, err := tabulate.ConditionalMean(s, ind, v, opt)
			if err != nil {
				return nil, fmt.Errorf("mean of %s by %s: %w", ind, v.Name, err)
			}
			t.Results = append(t.Results, res)
		}
	}
	f := c.Fields
	t.CrossTabs = []*tabulate.CrossTab{
		tabulate.CrossTabRaw(s, survey.SourceHouseholdType, fmt.Sprintf("Household type (%s) by country", f.HouseholdType)),
		tabulate.CrossTabRaw(s, survey.SourceTypologySource, fmt.Sprintf("Household typology source (%s) by country", f.TypologySource)),
		tabulate.CrossTabRaw(s, survey.SourceFHT, fmt.Sprintf("Families in households typology (%s) by country", f.FHT)),
		tabulate.CrossTabCoded(s, recode.HHEurostat, "hh_eurostat by country"),
		tabulate.CrossTabCoded(s, recode.FHT5, "fht5 by country"),
	}
	return t, nil
}

// Run executes the whole pipeline. Every table is computed and encoded, and
// the results store (when configured) opened, before the first file is
// written; the run is saved to the store last.
func Run(ctx context.Context, c *config.Global, log *logging.Logger) (*Summary, error) {
	if log == nil {
		log = logging.Discard()
	}
	if err := c.Validate(recode.Names()); err != nil {
		return nil, err
	}
	started := time.Now()

	s, vars, err := Prepare(c, log)
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		RunID:       uuid.NewString(),
		Records:     len(s.Records),
		Countries:   s.Countries,
		Excluded:    s.Excluded,
		AgeFiltered: s.AgeFiltered,
		Warnings:    append([]string(nil), s.Warnings...),
	}
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		sum.Warnings = append(sum.Warnings, msg)
		log.Warn("%s", msg)
	}
	if len(s.Records) == 0 {
		return nil, fmt.Errorf("no records left in %s after exclusion and filtering", c.Input)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tables, err := Tabulate(s, vars, c)
	if err != nil {
		return nil, err
	}
	for _, res := range tables.Results {
		if name, truncated := report.SheetName(res.Sheet); truncated {
			warn("sheet name %q truncated to %q", res.Sheet, name)
		}
		for _, cell := range res.Undefined() {
			sum.Undefined++
			log.Debug("%s: no data for %s / %s", res.Sheet, cell.Row, cell.Column)
		}
	}
	if sum.Undefined > 0 {
		warn("%d cells have a zero weighted denominator and are left empty", sum.Undefined)
	}

	book, sheets, err := report.RenderWorkbook(tables.Results)
	if err != nil {
		return nil, fmt.Errorf("workbook: %w", err)
	}
	appendix, err := report.RenderAppendix(c.Appendix, tables.CrossTabs)
	if err != nil {
		return nil, fmt.Errorf("appendix: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The store must be reachable before any file is written.
	var st *store.Store
	if c.Results.DSN != "" {
		if st, err = store.Open(c.Results.Driver, c.Results.DSN); err != nil {
			return nil, fmt.Errorf("results store: %w", err)
		}
		defer st.Close()
	}
	if err := utils.SafeWriteFile(c.Workbook, book); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	log.Info("wrote %d sheets to %s", len(sheets), c.Workbook)
	if err := utils.SafeWriteFile(c.Appendix, appendix); err != nil {
		return nil, fmt.Errorf("write appendix: %w", err)
	}
	log.Info("wrote %d cross-tabulations to %s", len(tables.CrossTabs), c.Appendix)
	sum.Sheets = sheets
	for _, ct := range tables.CrossTabs {
		sum.CrossTabs = append(sum.CrossTabs, ct.Title)
	}

	if st != nil {
		if err := save(st, c, sum, started, tables.Results); err != nil {
			return sum, err
		}
		sum.Stored = true
		log.Info("stored run %s (%s)", sum.RunID, c.Results.Driver)
	}
	return sum, nil
}

func save(st *store.Store, c *config.Global, sum *Summary, started time.Time, results []*tabulate.Result) error {
	run := store.Run{
		ID:        sum.RunID,
		StartedAt: started,
		Input:     c.Input,
		Year:      c.Year,
		Records:   sum.Records,
	}
	for _, ex := range sum.Excluded {
		run.Excluded = append(run.Excluded, ex.Country)
	}
	if _, err := st.SaveRun(run, results); err != nil {
		return fmt.Errorf("results store: %w", err)
	}
	return nil
}
