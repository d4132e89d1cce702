package survey

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/hhtab/internal/dataset"
	"github.com/KaramelBytes/hhtab/internal/logging"
)

func testOptions() Options {
	return Options{
		Country:             "country",
		Weight:              "rb050",
		HouseholdType:       "hx060",
		TypologySource:      "hhtype",
		FHT:                 "fht",
		Sex:                 "rb090",
		Age:                 "rx020",
		BirthYear:           "rb080",
		ReferenceYearColumn: "rb010",
		ReferenceYear:       2021,
		Indicators:          []Indicator{{Name: "poverty", Source: "arop"}},
		AutoExclude:         true,
	}
}

func table(t *testing.T, header string, rows ...string) *dataset.Table {
	t.Helper()
	var recs [][]string
	for _, r := range rows {
		recs = append(recs, strings.Split(r, ","))
	}
	tbl, err := dataset.NewTable("test", strings.Split(header, ","), recs)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func TestLoadNormalizesAndDerives(t *testing.T) {
	tbl := table(t, "COUNTRY,RB050,HX060,HHTYPE,FHT,RB090,RB080,RB010,AROP",
		"BE,2,5,1,1,2,1980,2021,1",
		"AT,1.5,10,3,5,1,2021,2021,0",
		"AT,1,6,2,2,1,1990,,",
	)
	var warnings bytes.Buffer
	log := logging.New(&bytes.Buffer{}, &warnings, false)
	s, err := Load(tbl, testOptions(), log)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(s.Records))
	}
	if got := strings.Join(s.Countries, ","); got != "AT,BE" {
		t.Fatalf("countries = %s, want sorted AT,BE", got)
	}
	r0 := s.Records[0]
	if r0.Sex != "2" || r0.Age != 40 || r0.Weight != 2 || r0.HouseholdType != 5 || r0.FHT != 1 {
		t.Fatalf("unexpected first record: %+v", r0)
	}
	// Born in the reference year: 2021-2021-1 = -1 clamps to 0.
	if s.Records[1].Age != 0 {
		t.Fatalf("negative age not clamped: %d", s.Records[1].Age)
	}
	// Empty reference-year cell falls back to the configured year.
	if s.Records[2].Age != 30 {
		t.Fatalf("age fallback = %d, want 30", s.Records[2].Age)
	}
	if !math.IsNaN(s.Records[2].Indicators[0]) {
		t.Fatalf("missing indicator should be NaN, got %v", s.Records[2].Indicators[0])
	}
	// rx020 is absent: an optional column warning must be visible.
	if !strings.Contains(warnings.String(), `optional column "rx020"`) {
		t.Fatalf("expected warning about absent age column, got %q", warnings.String())
	}
	found := false
	for _, w := range s.Warnings {
		if strings.Contains(w, "indicator poverty: 1 records") {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing-indicator warning not recorded: %v", s.Warnings)
	}
}

func TestLoadPrefersDirectAge(t *testing.T) {
	tbl := table(t, "country,rb050,hx060,hhtype,fht,rx020,rb080,arop",
		"DE,1,5,1,1,-3,1950,0",
		"DE,1,5,1,1,44,1950,0",
	)
	s, err := Load(tbl, testOptions(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Records[0].Age != 0 || s.Records[1].Age != 44 {
		t.Fatalf("ages = %d, %d; want 0, 44", s.Records[0].Age, s.Records[1].Age)
	}
}

func TestLoadExclusion(t *testing.T) {
	tbl := table(t, "country,rb050,hx060,hhtype,fht,arop",
		"AT,1,5,1,1,0",
		"DK,5,5,1,,0",
		"DK,5,6,2,,1",
		"SE,7,10,3,5,1",
		"FR,2,5,1,1,0",
	)
	opt := testOptions()
	opt.ExcludeCountries = []string{"SE", "XX", "XX"}
	s, err := Load(tbl, opt, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var unmatched int
	for _, w := range s.Warnings {
		if strings.Contains(w, "configured exclusion XX matches no records") {
			unmatched++
		}
	}
	if unmatched != 1 {
		t.Fatalf("want one warning for unmatched exclusion XX, got %q", s.Warnings)
	}
	if got := strings.Join(s.Countries, ","); got != "AT,FR" {
		t.Fatalf("countries = %s, want AT,FR", got)
	}
	if len(s.Excluded) != 2 {
		t.Fatalf("excluded = %+v, want SE and DK", s.Excluded)
	}
	if s.Excluded[0].Country != "SE" || s.Excluded[0].Reason != "excluded by configuration" {
		t.Fatalf("unexpected first exclusion: %+v", s.Excluded[0])
	}
	if s.Excluded[1].Country != "DK" || s.Excluded[1].Records != 2 || !strings.Contains(s.Excluded[1].Reason, "fht") {
		t.Fatalf("unexpected automatic exclusion: %+v", s.Excluded[1])
	}
	for _, r := range s.Records {
		if r.Country == "SE" || r.Country == "DK" {
			t.Fatalf("excluded country %s kept", r.Country)
		}
	}

	// Without auto exclusion the missing fht is fatal.
	opt.AutoExclude = false
	_, err = Load(tbl, opt, nil)
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Column != "fht" || fe.Row != 2 {
		t.Fatalf("expected fht field error on row 2, got %v", err)
	}
}

func TestLoadFatalErrors(t *testing.T) {
	cases := []struct {
		name   string
		rows   []string
		column string
	}{
		{"missing country", []string{",1,5,1,1,0"}, "country"},
		{"zero weight", []string{"AT,0,5,1,1,0"}, "rb050"},
		{"text weight", []string{"AT,abc,5,1,1,0"}, "rb050"},
		{"fractional code", []string{"AT,1,5.5,1,1,0"}, "hx060"},
		{"text indicator", []string{"AT,1,5,1,1,yes"}, "arop"},
		{"partly missing typology", []string{"AT,1,5,1,1,0", "AT,1,5,,1,0"}, "hhtype"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tbl := table(t, "country,rb050,hx060,hhtype,fht,arop", tc.rows...)
			_, err := Load(tbl, testOptions(), nil)
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FieldError, got %v", err)
			}
			if fe.Column != tc.column {
				t.Fatalf("error column = %s, want %s (%v)", fe.Column, tc.column, err)
			}
		})
	}
}

func TestLoadMissingRequiredColumns(t *testing.T) {
	tbl := table(t, "country,hx060,fht", "AT,5,1")
	_, err := Load(tbl, testOptions(), nil)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SchemaError, got %v", err)
	}
	msg := err.Error()
	for _, col := range []string{"rb050", "hhtype", "arop"} {
		if !strings.Contains(msg, col) {
			t.Errorf("error %q does not name %s", msg, col)
		}
	}
}

func TestLoadAgeFilter(t *testing.T) {
	tbl := table(t, "country,rb050,hx060,hhtype,fht,rx020,arop",
		"AT,1,5,1,1,10,0",
		"AT,1,5,1,1,30,0",
		"AT,1,5,1,1,70,0",
	)
	opt := testOptions()
	opt.MinAge, opt.MaxAge = 18, 64
	s, err := Load(tbl, opt, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Records) != 1 || s.Records[0].Age != 30 || s.AgeFiltered != 2 {
		t.Fatalf("age filter kept %+v (filtered %d)", s.Records, s.AgeFiltered)
	}
}

func TestParseCode(t *testing.T) {
	for in, want := range map[string]int{"5": 5, " 12 ": 12, "7.0": 7, "-1": -1} {
		got, err := parseCode(in)
		if err != nil || got != want {
			t.Errorf("parseCode(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"", ".", "x", "2.5"} {
		if _, err := parseCode(in); err == nil {
			t.Errorf("parseCode(%q) expected error", in)
		}
	}
}
