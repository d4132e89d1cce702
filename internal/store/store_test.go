package store

import (
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/KaramelBytes/hhtab/internal/tabulate"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveRunAndCells(t *testing.T) {
	s := openTemp(t)
	results := []*tabulate.Result{
		{
			Sheet: "fht5_2021", Labels: []string{"Single person", "Other"},
			Rows: []tabulate.Row{
				{Label: "AT", Values: []float64{0.25, 0.75}},
				{Label: "EU (weighted)", Values: []float64{0.25, 0.75}, Pooled: true},
			},
		},
		{
			Sheet: "poverty_fht5_2021", Labels: []string{"Single person", "Other"},
			Rows: []tabulate.Row{{Label: "AT", Values: []float64{math.NaN(), 0.5}}},
		},
	}
	id, err := s.SaveRun(Run{Input: "silc.csv", Year: "2021", Records: 4, Excluded: []string{"SE", "DK"}}, results)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if len(id) != 36 {
		t.Fatalf("run id %q is not a uuid", id)
	}

	cells, err := s.Cells(id, "fht5_2021")
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	want := []Cell{
		{"fht5_2021", "AT", "Single person", 0.25, true},
		{"fht5_2021", "AT", "Other", 0.75, true},
		{"fht5_2021", "EU (weighted)", "Single person", 0.25, true},
		{"fht5_2021", "EU (weighted)", "Other", 0.75, true},
	}
	if !reflect.DeepEqual(cells, want) {
		t.Fatalf("cells = %+v", cells)
	}

	cells, err = s.Cells(id, "poverty_fht5_2021")
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	if len(cells) != 2 || cells[0].Valid || !cells[1].Valid {
		t.Fatalf("NaN should be stored as NULL: %+v", cells)
	}

	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != id || runs[0].Records != 4 || !reflect.DeepEqual(runs[0].Excluded, []string{"SE", "DK"}) {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	for i := 0; i < 2; i++ {
		s, err := Open("", path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
		s.Close()
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Fatalf("rebind = %q", got)
	}
	lite := &Store{driver: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite rebind = %q", got)
	}
}
