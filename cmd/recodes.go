package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/hhtab/internal/recode"
	"github.com/spf13/cobra"
)

var recodesCmd = &cobra.Command{
	Use:   "recodes [variable...]",
	Short: "Print the recode tables of the derived variables",
	RunE: func(cmd *cobra.Command, args []string) error {
		vars := recode.All()
		if len(args) > 0 {
			var err error
			if vars, err = recode.Select(args); err != nil {
				return err
			}
		}
		out := cmd.OutOrStdout()
		for i, v := range vars {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "%s: %s (source: %s)\n", v.Name, v.Description, v.Source)
			for _, c := range v.Categories {
				from := "all other codes"
				if len(c.From) > 0 {
					parts := make([]string, len(c.From))
					for j, s := range c.From {
						parts[j] = s.String()
					}
					from = strings.Join(parts, ", ")
				}
				fmt.Fprintf(out, "  %d  %-26s <- %s\n", c.Code, c.Label, from)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recodesCmd)
}
