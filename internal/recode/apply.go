package recode

import "github.com/KaramelBytes/hhtab/internal/survey"

// Apply derives the given variables for every record. The input is left
// untouched; the returned records carry fresh code maps. Because each code
// depends only on the record's raw source field, applying the same tables
// again yields identical codes.
func Apply(records []survey.Record, vars []Variable) []survey.Record {
	out := make([]survey.Record, len(records))
	for i, r := range records {
		codes := make(map[string]int, len(r.Codes)+len(vars))
		for k, c := range r.Codes {
			codes[k] = c
		}
		for _, v := range vars {
			codes[v.Name] = v.Recode(r.Raw(string(v.Source)))
		}
		r.Codes = codes
		out[i] = r
	}
	return out
}
