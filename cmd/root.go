package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/hhtab/internal/config"
	"github.com/KaramelBytes/hhtab/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "hhtab",
	Short: "hhtab: household typology tables from survey microdata",
	Long: `hhtab reads person-level survey microdata (Stata, SAS, CSV/TSV or XLSX), derives
household typology variables, and writes survey-weighted prevalence and
conditional-mean tables to an Excel workbook plus a cross-tabulation appendix.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ~/.hhtab/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands that need config report it themselves
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
		return
	}
	cfg = c
}

// requireConfig returns the loaded configuration, loading it on demand when
// the initializer has not run (tests call commands directly).
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

func newLogger(cmd *cobra.Command) *logging.Logger {
	return logging.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), debug)
}
