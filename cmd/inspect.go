package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/hhtab/internal/dataset"
	"github.com/KaramelBytes/hhtab/internal/pipeline"
	"github.com/KaramelBytes/hhtab/internal/survey"
	"github.com/spf13/cobra"
)

var (
	insSheet     string
	insDelimiter string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Summarize a dataset: missingness per column and per-country typology gaps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		opt := dataset.Options{Sheet: insSheet}
		switch insDelimiter {
		case "":
		case ",":
			opt.Delimiter = ','
		case "\t", "tab":
			opt.Delimiter = '\t'
		case ";":
			opt.Delimiter = ';'
		default:
			return fmt.Errorf("unsupported --delimiter: %s", insDelimiter)
		}
		raw, err := dataset.Open(args[0], opt)
		if err != nil {
			return err
		}
		d, err := survey.Diagnose(raw, pipeline.LoadOptions(c))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n\n", args[0])
		fmt.Fprintf(out, "Rows: %d\nColumns: %d\n\n", d.Rows, len(d.Columns))
		fmt.Fprintln(out, "| column | missing | missing % |")
		fmt.Fprintln(out, "| --- | ---: | ---: |")
		for _, col := range d.Columns {
			pct := 0.0
			if d.Rows > 0 {
				pct = 100 * float64(col.Missing) / float64(d.Rows)
			}
			fmt.Fprintf(out, "| %s | %d | %.1f |\n", col.Column, col.Missing, pct)
		}
		if len(d.Absent) > 0 {
			fmt.Fprintln(out)
			for _, f := range d.Absent {
				if f.Required {
					fmt.Fprintf(out, "✗ required column %q (%s) not found\n", f.Column, f.Name)
				} else {
					fmt.Fprintf(out, "⚠ optional column %q (%s) not found\n", f.Column, f.Name)
				}
			}
		}
		if len(d.Countries) > 0 {
			fmt.Fprintln(out, "\n| country | records | entirely missing |")
			fmt.Fprintln(out, "| --- | ---: | --- |")
			dropped := 0
			for _, g := range d.Countries {
				gap := "-"
				if len(g.Empty) > 0 {
					gap = strings.Join(g.Empty, ", ")
					dropped++
				}
				fmt.Fprintf(out, "| %s | %d | %s |\n", g.Country, g.Records, gap)
			}
			if dropped > 0 {
				state := "on"
				if !c.AutoExclude {
					state = "off; these countries make a run fail"
				}
				fmt.Fprintf(out, "\n%d country(ies) lack a typology field entirely (auto exclusion %s)\n", dropped, state)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&insSheet, "sheet", "", "worksheet of an .xlsx input (default: first)")
	inspectCmd.Flags().StringVar(&insDelimiter, "delimiter", "", "override delimiter for text input: ',', ';' or 'tab'")
}
