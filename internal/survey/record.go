package survey

import "sort"

// Raw source names understood by Record.Raw.
const (
	SourceHouseholdType  = "household_type"
	SourceTypologySource = "typology_source"
	SourceFHT            = "fht"
)

// Record is one sampled household member.
type Record struct {
	// Row is the 1-based data row in the input file.
	Row            int
	Country        string
	Sex            string
	Age            int
	HouseholdType  int
	TypologySource int
	FHT            int
	Weight         float64
	// Indicators holds one value per Sample.Indicators entry; NaN when the
	// source cell was missing.
	Indicators []float64
	// Codes holds derived categorical variables by name.
	Codes map[string]int
}

// Raw returns the raw typology code for a source name, or 0 for an unknown
// source.
func (r Record) Raw(source string) int {
	switch source {
	case SourceHouseholdType:
		return r.HouseholdType
	case SourceTypologySource:
		return r.TypologySource
	case SourceFHT:
		return r.FHT
	}
	return 0
}

// Exclusion records why a country was dropped before tabulation.
type Exclusion struct {
	Country string
	Reason  string
	Records int
}

// Sample is the normalized, filtered record set handed to the recoder.
type Sample struct {
	Records []Record
	// Indicators names the risk variables, aligned with Record.Indicators.
	Indicators []string
	// Countries lists the distinct country codes of Records, sorted.
	Countries []string
	Excluded  []Exclusion
	// AgeFiltered counts records dropped by the age range.
	AgeFiltered int
	Warnings    []string
}

// IndicatorIndex returns the position of an indicator name, or -1.
func (s *Sample) IndicatorIndex(name string) int {
	for i, n := range s.Indicators {
		if n == name {
			return i
		}
	}
	return -1
}

// WithRecords returns a shallow copy of the sample holding recs instead of
// the current records.
func (s *Sample) WithRecords(recs []Record) *Sample {
	cp := *s
	cp.Records = recs
	return &cp
}

func distinctCountries(recs []Record) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range recs {
		if !seen[r.Country] {
			seen[r.Country] = true
			out = append(out, r.Country)
		}
	}
	sort.Strings(out)
	return out
}
