package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/hhtab/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	runInput         string
	runSheet         string
	runWorkbook      string
	runAppendix      string
	runYear          string
	runExclude       []string
	runNoAutoExclude bool
	runResultsDSN    string
	runResultsDriver string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Tabulate household typologies and write the workbook and appendix",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := requireConfig()
		if err != nil {
			return err
		}
		c := *base
		f := cmd.Flags()
		if f.Changed("input") {
			c.Input = runInput
		}
		if f.Changed("sheet") {
			c.Sheet = runSheet
		}
		if f.Changed("workbook") {
			c.Workbook = runWorkbook
		}
		if f.Changed("appendix") {
			c.Appendix = runAppendix
		}
		if f.Changed("year") {
			c.Year = runYear
		}
		if f.Changed("exclude") {
			c.ExcludeCountries = nil
			for _, code := range runExclude {
				if code = strings.TrimSpace(code); code != "" {
					c.ExcludeCountries = append(c.ExcludeCountries, code)
				}
			}
		}
		if runNoAutoExclude {
			c.AutoExclude = false
		}
		if f.Changed("results-dsn") {
			c.Results.DSN = runResultsDSN
		}
		if f.Changed("results-driver") {
			c.Results.Driver = strings.ToLower(runResultsDriver)
		}

		sum, err := pipeline.Run(cmd.Context(), &c, newLogger(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Tabulated %d records from %d countries (%s)\n", sum.Records, len(sum.Countries), strings.Join(sum.Countries, ", "))
		for _, ex := range sum.Excluded {
			fmt.Fprintf(out, "  excluded %s (%d records): %s\n", ex.Country, ex.Records, ex.Reason)
		}
		if sum.AgeFiltered > 0 {
			fmt.Fprintf(out, "  age filter dropped %d records\n", sum.AgeFiltered)
		}
		fmt.Fprintf(out, "✓ Wrote %d sheets to %s\n", len(sum.Sheets), c.Workbook)
		fmt.Fprintf(out, "✓ Wrote %d cross-tabulations to %s\n", len(sum.CrossTabs), c.Appendix)
		if sum.Stored {
			fmt.Fprintf(out, "✓ Stored run %s\n", sum.RunID)
		} else {
			fmt.Fprintf(out, "Run ID: %s\n", sum.RunID)
		}
		if n := len(sum.Warnings); n > 0 {
			fmt.Fprintf(out, "⚠ %d warning(s); see log above\n", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runInput, "input", "", "input dataset (.dta, .sas7bdat, .csv, .tsv, .xlsx)")
	runCmd.Flags().StringVar(&runSheet, "sheet", "", "worksheet of an .xlsx input (default: first)")
	runCmd.Flags().StringVar(&runWorkbook, "workbook", "", "output workbook path (.xlsx)")
	runCmd.Flags().StringVar(&runAppendix, "appendix", "", "output appendix path (.docx or .md)")
	runCmd.Flags().StringVar(&runYear, "year", "", "year tag appended to sheet names")
	runCmd.Flags().StringSliceVar(&runExclude, "exclude", nil, "country codes to exclude (replaces configured list)")
	runCmd.Flags().BoolVar(&runNoAutoExclude, "no-auto-exclude", false, "do not drop countries with an entirely missing typology field")
	runCmd.Flags().StringVar(&runResultsDSN, "results-dsn", "", "store results in this database (sqlite path or postgres DSN)")
	runCmd.Flags().StringVar(&runResultsDriver, "results-driver", "", "results store driver: sqlite or postgres")
}
