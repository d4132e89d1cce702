package survey

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/hhtab/internal/dataset"
)

// Field declares one input column the loader reads.
type Field struct {
	// Name is the logical role, e.g. "weight" or "indicator poverty".
	Name string
	// Column is the lower-cased column identifier in the input.
	Column   string
	Required bool
}

// Schema is the declared set of required and optional input columns.
type Schema struct {
	Fields []Field
}

// NewSchema derives the schema from loader options.
func NewSchema(opt Options) Schema {
	s := Schema{Fields: []Field{
		{Name: "country", Column: opt.Country, Required: true},
		{Name: "weight", Column: opt.Weight, Required: true},
		{Name: SourceHouseholdType, Column: opt.HouseholdType, Required: true},
		{Name: SourceTypologySource, Column: opt.TypologySource, Required: true},
		{Name: SourceFHT, Column: opt.FHT, Required: true},
	}}
	for _, ind := range opt.Indicators {
		s.Fields = append(s.Fields, Field{Name: "indicator " + ind.Name, Column: ind.Source, Required: true})
	}
	for _, f := range []Field{
		{Name: "sex", Column: "sex"},
		{Name: "age", Column: opt.Age},
		{Name: "birth_year", Column: opt.BirthYear},
		{Name: "reference_year", Column: opt.ReferenceYearColumn},
	} {
		if f.Column != "" {
			s.Fields = append(s.Fields, f)
		}
	}
	return s
}

// SchemaError lists required columns absent from the input.
type SchemaError struct {
	Missing []Field
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		parts[i] = fmt.Sprintf("%s (%s)", f.Column, f.Name)
	}
	return "missing required columns: " + strings.Join(parts, ", ")
}

// Check verifies the table against the schema once. It returns the optional
// fields that are absent, or a *SchemaError when a required one is.
func (s Schema) Check(t *dataset.Table) ([]Field, error) {
	var missingReq, missingOpt []Field
	for _, f := range s.Fields {
		if t.Has(f.Column) {
			continue
		}
		if f.Required {
			missingReq = append(missingReq, f)
		} else {
			missingOpt = append(missingOpt, f)
		}
	}
	if len(missingReq) > 0 {
		return missingOpt, &SchemaError{Missing: missingReq}
	}
	return missingOpt, nil
}

// FieldError reports a missing or malformed value in a required field.
type FieldError struct {
	Row    int
	Column string
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Reason)
	}
	return fmt.Sprintf("row %d, column %s: %s (value %q)", e.Row, e.Column, e.Reason, e.Value)
}
