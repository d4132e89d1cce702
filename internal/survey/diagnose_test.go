package survey

import (
	"reflect"
	"testing"
)

func TestDiagnose(t *testing.T) {
	tbl := table(t, "Country,RB050,HX060,HHTYPE,FHT,AROP",
		"AT,1,5,1,1,0",
		"DK,5,5,1,,0",
		"DK,5,6,,,1",
		",2,5,1,1,",
	)
	d, err := Diagnose(tbl, testOptions())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if d.Rows != 4 || len(d.Columns) != 6 {
		t.Fatalf("rows/columns = %d/%d", d.Rows, len(d.Columns))
	}
	if d.Columns[4] != (ColumnMissing{Column: "fht", Missing: 2}) {
		t.Fatalf("fht missingness = %+v", d.Columns[4])
	}
	var absent []string
	for _, f := range d.Absent {
		absent = append(absent, f.Column)
	}
	// Optional columns from the default options are all absent.
	if !reflect.DeepEqual(absent, []string{"sex", "rx020", "rb080", "rb010"}) {
		t.Fatalf("absent = %v", absent)
	}
	want := []CountryGap{
		{Country: "(missing)", Records: 1},
		{Country: "AT", Records: 1},
		{Country: "DK", Records: 2, Empty: []string{"fht"}},
	}
	if !reflect.DeepEqual(d.Countries, want) {
		t.Fatalf("countries = %+v", d.Countries)
	}
}

func TestDiagnoseReportsMissingRequiredColumns(t *testing.T) {
	tbl := table(t, "country,hx060", "AT,5")
	d, err := Diagnose(tbl, testOptions())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if len(d.Absent) == 0 || d.Absent[0].Column != "rb050" || !d.Absent[0].Required {
		t.Fatalf("absent = %+v", d.Absent)
	}
	if len(d.Countries) != 1 || d.Countries[0].Empty != nil {
		t.Fatalf("countries = %+v", d.Countries)
	}
}
