package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

const cliFixture = `country,rb050,hx060,hhtype,fht,rb090,rb080,rb010,arop,smsd
AT,1,5,1,1,1,1980,2021,1,0
AT,1,10,3,5,2,1975,2021,0,0
BE,2,5,1,1,1,1990,2021,1,1
BE,2,7,2,11,2,1960,2021,0,0
DK,1,5,1,,1,1970,2021,0,0
SE,3,10,3,5,1,1985,2021,0,0
`

// resetFlags clears values and Changed state that persist across
// invocations of the shared command tree.
func resetFlags() {
	cfg = nil
	cfgFile = ""
	debug = false
	cfgInitForce = false
	runInput, runSheet, runWorkbook, runAppendix, runYear = "", "", "", "", ""
	runNoAutoExclude = false
	runResultsDSN, runResultsDriver = "", ""
	for _, c := range []interface{ Flags() *pflag.FlagSet }{rootCmd, runCmd, inspectCmd, configInitCmd} {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
}

// execCmd executes the root command with args and returns its
// output.
func execCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

func setup(t *testing.T) (dir, cfgPath, input string) {
	t.Helper()
	dir = t.TempDir()
	input = filepath.Join(dir, "silc.csv")
	if err := os.WriteFile(input, []byte(cliFixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cfgPath = filepath.Join(dir, "config.yaml")
	mustRun(t, "config", "init", "--config", cfgPath)
	return dir, cfgPath, input
}

func TestCLI_ConfigInit_Set_Run(t *testing.T) {
	dir, cfgPath, input := setup(t)
	mustRun(t, "config", "set", "input", input, "--config", cfgPath)
	mustRun(t, "config", "set", "year", "2020", "--config", cfgPath)

	book := filepath.Join(dir, "out", "typology.xlsx")
	appendix := filepath.Join(dir, "out", "appendix.md")
	out := mustRun(t, "run", "--config", cfgPath, "--workbook", book, "--appendix", appendix, "--exclude", "SE")

	for _, want := range []string{
		"✓ Tabulated 4 records from 2 countries (AT, BE)",
		"excluded SE (1 records): excluded by configuration",
		"excluded DK (1 records)",
		"✓ Wrote 6 sheets to " + book,
		"✓ Wrote 5 cross-tabulations to " + appendix,
		"Run ID: ",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(book); err != nil {
		t.Fatalf("workbook not written: %v", err)
	}
	md, err := os.ReadFile(appendix)
	if err != nil {
		t.Fatalf("appendix not written: %v", err)
	}
	if !strings.Contains(string(md), "| AT |") || strings.Contains(string(md), "| SE |") {
		t.Fatalf("unexpected appendix:\n%s", md)
	}
}

func TestCLI_RunStoresResults(t *testing.T) {
	dir, cfgPath, input := setup(t)
	db := filepath.Join(dir, "results.db")
	out := mustRun(t, "run", "--config", cfgPath, "--input", input,
		"--workbook", filepath.Join(dir, "t.xlsx"), "--appendix", filepath.Join(dir, "a.docx"),
		"--results-dsn", db)
	if !strings.Contains(out, "✓ Stored run ") {
		t.Fatalf("run was not stored:\n%s", out)
	}
	if _, err := os.Stat(db); err != nil {
		t.Fatalf("results database missing: %v", err)
	}
}

func TestCLI_RunFailsWithoutAutoExclude(t *testing.T) {
	dir, cfgPath, input := setup(t)
	book := filepath.Join(dir, "t.xlsx")
	out, err := execCmd(t, "run", "--config", cfgPath, "--input", input,
		"--workbook", book, "--appendix", filepath.Join(dir, "a.md"), "--no-auto-exclude")
	if err == nil || !strings.Contains(err.Error(), "column fht") {
		t.Fatalf("expected fht field error, got %v\n%s", err, out)
	}
	if _, statErr := os.Stat(book); !os.IsNotExist(statErr) {
		t.Fatalf("workbook must not exist after a failed run")
	}
}

func TestCLI_Inspect(t *testing.T) {
	_, cfgPath, input := setup(t)
	out := mustRun(t, "inspect", input, "--config", cfgPath)
	for _, want := range []string{
		"Rows: 6",
		"| fht | 1 | 16.7 |",
		"optional column \"rx020\" (age) not found",
		"| DK | 1 | fht |",
		"| AT | 2 | - |",
		"1 country(ies) lack a typology field entirely (auto exclusion on)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_Recodes(t *testing.T) {
	out := mustRun(t, "recodes")
	for _, want := range []string{"hh_eurostat:", "fht5:", "<- 10-12", "<- 2, 11", "all other codes"} {
		if !strings.Contains(out, want) {
			t.Fatalf("recodes output missing %q:\n%s", want, out)
		}
	}
	if _, err := execCmd(t, "recodes", "nope"); err == nil {
		t.Fatalf("expected unknown variable error")
	}
}

func TestCLI_ConfigShowAndSet(t *testing.T) {
	_, cfgPath, _ := setup(t)
	mustRun(t, "config", "set", "results.dsn", "postgres://user:secret@db/hh", "--config", cfgPath)
	mustRun(t, "config", "set", "fields.weight", "DB090", "--config", cfgPath)
	out := mustRun(t, "config", "show", "--config", cfgPath)
	if strings.Contains(out, "secret") || !strings.Contains(out, "dsn: pos****/hh") {
		t.Fatalf("dsn not masked:\n%s", out)
	}
	if !strings.Contains(out, "weight: db090") {
		t.Fatalf("field not lower-cased:\n%s", out)
	}
	if _, err := execCmd(t, "config", "set", "colour", "blue", "--config", cfgPath); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if _, err := execCmd(t, "config", "init", "--config", cfgPath); err == nil {
		t.Fatalf("init must not overwrite without --force")
	}
	mustRun(t, "config", "init", "--config", cfgPath, "--force")
}
