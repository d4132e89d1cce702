package tabulate

import (
	"sort"
	"strconv"

	"github.com/KaramelBytes/hhtab/internal/recode"
	"github.com/KaramelBytes/hhtab/internal/survey"
)

// CrossTab holds unweighted record counts by country and category.
type CrossTab struct {
	Variable string
	Title    string
	Columns  []string
	Rows     []CrossRow
	// Totals sums each column over all countries; Total is the grand total.
	Totals []int
	Total  int
}

// CrossRow is one country of a cross-tabulation.
type CrossRow struct {
	Country string
	Counts  []int
	Total   int
}

// CrossTabRaw tabulates a raw code field. Columns are the distinct codes
// present in the sample, sorted numerically.
func CrossTabRaw(s *survey.Sample, source, title string) *CrossTab {
	seen := map[int]bool{}
	for _, r := range s.Records {
		seen[r.Raw(source)] = true
	}
	codes := make([]int, 0, len(seen))
	for c := range seen {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	pos := make(map[int]int, len(codes))
	cols := make([]string, len(codes))
	for i, c := range codes {
		pos[c] = i
		cols[i] = strconv.Itoa(c)
	}
	return crossTab(s, source, title, cols, func(r survey.Record) int { return pos[r.Raw(source)] })
}

// CrossTabCoded tabulates a recoded variable using its declared labels, so
// categories without records still get a column.
func CrossTabCoded(s *survey.Sample, v recode.Variable, title string) *CrossTab {
	return crossTab(s, v.Name, title, v.Labels(), func(r survey.Record) int {
		code, ok := r.Codes[v.Name]
		if !ok {
			code = v.Recode(r.Raw(string(v.Source)))
		}
		return v.Index(code)
	})
}

func crossTab(s *survey.Sample, name, title string, cols []string, col func(survey.Record) int) *CrossTab {
	ct := &CrossTab{Variable: name, Title: title, Columns: cols, Totals: make([]int, len(cols))}
	idx := make(map[string]int, len(s.Countries))
	for i, c := range s.Countries {
		idx[c] = i
		ct.Rows = append(ct.Rows, CrossRow{Country: c, Counts: make([]int, len(cols))})
	}
	for _, r := range s.Records {
		i, ok := idx[r.Country]
		if !ok {
			continue
		}
		j := col(r)
		if j < 0 {
			continue
		}
		ct.Rows[i].Counts[j]++
		ct.Rows[i].Total++
		ct.Totals[j]++
		ct.Total++
	}
	return ct
}
