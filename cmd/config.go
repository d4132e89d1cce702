package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/hhtab/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var cfgInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set hhtab configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		shown := *c
		shown.Results.DSN = mask(c.Results.DSN)
		b, err := yaml.Marshal(&shown)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = "config.yaml"
		}
		if _, err := os.Stat(path); err == nil && !cfgInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := cfgpkg.Save(cfgpkg.Default(), path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote default config to %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := setKey(c, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "input":
		c.Input = val
	case "sheet":
		c.Sheet = val
	case "workbook":
		c.Workbook = val
	case "appendix":
		c.Appendix = val
	case "year":
		c.Year = val
	case "reference_year":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for reference_year: %v", val)
		}
		c.ReferenceYear = i
	case "min_age", "max_age":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		if key == "min_age" {
			c.MinAge = i
		} else {
			c.MaxAge = i
		}
	case "auto_exclude":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for auto_exclude: %w", err)
		}
		c.AutoExclude = b
	case "exclude_countries":
		c.ExcludeCountries = nil
		for _, code := range strings.Split(val, ",") {
			if code = strings.TrimSpace(code); code != "" {
				c.ExcludeCountries = append(c.ExcludeCountries, code)
			}
		}
	case "outputs":
		c.Outputs = nil
		for _, o := range strings.Split(val, ",") {
			if o = strings.ToLower(strings.TrimSpace(o)); o != "" {
				c.Outputs = append(c.Outputs, o)
			}
		}
	case "pooled_label":
		c.PooledLabel = val
	case "results.driver":
		switch strings.ToLower(val) {
		case "sqlite", "postgres":
			c.Results.Driver = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid results.driver: %s (use sqlite or postgres)", val)
		}
	case "results.dsn":
		c.Results.DSN = val
	default:
		if field, ok := strings.CutPrefix(key, "fields."); ok {
			return setField(&c.Fields, field, strings.ToLower(val))
		}
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func setField(f *cfgpkg.Fields, name, col string) error {
	switch name {
	case "country":
		f.Country = col
	case "weight":
		f.Weight = col
	case "household_type":
		f.HouseholdType = col
	case "typology_source":
		f.TypologySource = col
	case "fht":
		f.FHT = col
	case "sex":
		f.Sex = col
	case "age":
		f.Age = col
	case "birth_year":
		f.BirthYear = col
	case "reference_year":
		f.ReferenceYear = col
	default:
		return fmt.Errorf("unknown field: %s", name)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configInitCmd.Flags().BoolVar(&cfgInitForce, "force", false, "overwrite an existing file")
}

// mask hides credentials in a DSN while keeping its shape recognisable.
func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
