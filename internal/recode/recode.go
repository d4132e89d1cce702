// Package recode holds the declarative household-typology recode tables.
// Each table is the single source of truth for a derived variable: the
// recoder reads its code spans and the report writer reads its labels.
package recode

import (
	"fmt"
	"sort"
	"strings"
)

// Source names the raw code a variable is derived from.
type Source string

const (
	// SourceHouseholdType is the raw household-structure code (HX060).
	SourceHouseholdType Source = "household_type"
	// SourceFHT is the 12-category families-in-households typology.
	SourceFHT Source = "fht"
)

// Span is an inclusive range of raw codes.
type Span struct{ Lo, Hi int }

// Contains reports whether code falls in the span.
func (s Span) Contains(code int) bool { return code >= s.Lo && code <= s.Hi }

func (s Span) String() string {
	if s.Lo == s.Hi {
		return fmt.Sprintf("%d", s.Lo)
	}
	return fmt.Sprintf("%d-%d", s.Lo, s.Hi)
}

// Category is one output category of a derived variable. A category with no
// spans is the catch-all for every raw code no other category claims.
type Category struct {
	Code  int
	Label string
	From  []Span
}

// Variable is a derived categorical variable.
type Variable struct {
	Name        string
	Description string
	Source      Source
	Categories  []Category
}

// Labels returns the category labels in category order.
func (v Variable) Labels() []string {
	out := make([]string, len(v.Categories))
	for i, c := range v.Categories {
		out[i] = c.Label
	}
	return out
}

// Index returns the position of an output code in Categories, or -1.
func (v Variable) Index(code int) int {
	for i, c := range v.Categories {
		if c.Code == code {
			return i
		}
	}
	return -1
}

// Recode maps a raw code to its output code. It is total: codes that match
// no span go to the catch-all category.
func (v Variable) Recode(raw int) int {
	fallback := 0
	for _, c := range v.Categories {
		if len(c.From) == 0 {
			fallback = c.Code
			continue
		}
		for _, s := range c.From {
			if s.Contains(raw) {
				return c.Code
			}
		}
	}
	return fallback
}

// Validate checks the table is well formed: ascending distinct output codes,
// exactly one catch-all, and no raw code claimed by two categories.
func (v Variable) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("recode table without name")
	}
	if len(v.Categories) == 0 {
		return fmt.Errorf("%s: no categories", v.Name)
	}
	catchAll := 0
	var spans []struct {
		Span
		code int
	}
	for i, c := range v.Categories {
		if i > 0 && c.Code <= v.Categories[i-1].Code {
			return fmt.Errorf("%s: category codes must ascend (%d after %d)", v.Name, c.Code, v.Categories[i-1].Code)
		}
		if strings.TrimSpace(c.Label) == "" {
			return fmt.Errorf("%s: category %d has no label", v.Name, c.Code)
		}
		if len(c.From) == 0 {
			catchAll++
		}
		for _, s := range c.From {
			if s.Lo > s.Hi {
				return fmt.Errorf("%s: empty span %d-%d", v.Name, s.Lo, s.Hi)
			}
			spans = append(spans, struct {
				Span
				code int
			}{s, c.Code})
		}
	}
	if catchAll != 1 {
		return fmt.Errorf("%s: want exactly one catch-all category, have %d", v.Name, catchAll)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Lo < spans[j].Lo })
	for i := 1; i < len(spans); i++ {
		if spans[i].Lo <= spans[i-1].Hi {
			return fmt.Errorf("%s: raw codes %s and %s overlap", v.Name, spans[i-1].Span, spans[i].Span)
		}
	}
	return nil
}

// HHEurostat is the Eurostat household typology built from HX060.
var HHEurostat = Variable{
	Name:        "hh_eurostat",
	Description: "Eurostat household typology (from household type)",
	Source:      SourceHouseholdType,
	Categories: []Category{
		{Code: 1, Label: "Single person", From: []Span{{5, 5}}},
		{Code: 2, Label: "Couple without children", From: []Span{{6, 7}}},
		{Code: 3, Label: "Single parent", From: []Span{{9, 9}}},
		{Code: 4, Label: "Couple with children", From: []Span{{10, 12}}},
		{Code: 5, Label: "Other"},
	},
}

// FHT5 is the simplified five-category families-in-households typology.
// Its labels read like HHEurostat's but it is a different classification.
var FHT5 = Variable{
	Name:        "fht5",
	Description: "Simplified families-in-households typology (from fht)",
	Source:      SourceFHT,
	Categories: []Category{
		{Code: 1, Label: "Single person", From: []Span{{1, 1}}},
		{Code: 2, Label: "Couple without children", From: []Span{{2, 2}, {11, 11}}},
		{Code: 3, Label: "Single parent", From: []Span{{3, 4}, {7, 8}}},
		{Code: 4, Label: "Couple with children", From: []Span{{5, 6}, {9, 10}}},
		{Code: 5, Label: "Other"},
	},
}

var catalog = []Variable{HHEurostat, FHT5}

// All returns every derivable variable in declaration order.
func All() []Variable {
	return append([]Variable(nil), catalog...)
}

// Names returns the names of every derivable variable.
func Names() []string {
	out := make([]string, len(catalog))
	for i, v := range catalog {
		out[i] = v.Name
	}
	return out
}

// Lookup finds a variable by name.
func Lookup(name string) (Variable, bool) {
	for _, v := range catalog {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// Select resolves a list of names, preserving order.
func Select(names []string) ([]Variable, error) {
	out := make([]Variable, 0, len(names))
	for _, n := range names {
		v, ok := Lookup(n)
		if !ok {
			return nil, fmt.Errorf("unknown output variable %q (known: %s)", n, strings.Join(Names(), ", "))
		}
		out = append(out, v)
	}
	return out, nil
}
