package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Fields maps the logical survey fields to column names in the input file.
// Names are matched case-insensitively.
type Fields struct {
	Country        string `mapstructure:"country" yaml:"country"`
	Weight         string `mapstructure:"weight" yaml:"weight"`
	HouseholdType  string `mapstructure:"household_type" yaml:"household_type"`
	TypologySource string `mapstructure:"typology_source" yaml:"typology_source"`
	FHT            string `mapstructure:"fht" yaml:"fht"`
	Sex            string `mapstructure:"sex" yaml:"sex"`
	Age            string `mapstructure:"age" yaml:"age"`
	BirthYear      string `mapstructure:"birth_year" yaml:"birth_year"`
	ReferenceYear  string `mapstructure:"reference_year" yaml:"reference_year"`
}

// Indicator is a risk variable copied from a source column under a new name.
type Indicator struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Source string `mapstructure:"source" yaml:"source"`
}

// Results configures the optional SQL results store.
type Results struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// Global configuration structure.
type Global struct {
	Input    string `mapstructure:"input" yaml:"input"`
	Sheet    string `mapstructure:"sheet" yaml:"sheet,omitempty"`
	Workbook string `mapstructure:"workbook" yaml:"workbook"`
	Appendix string `mapstructure:"appendix" yaml:"appendix"`
	Year     string `mapstructure:"year" yaml:"year"`
	// ReferenceYear is used for age derivation when the data carry no
	// reference-year column.
	ReferenceYear int `mapstructure:"reference_year" yaml:"reference_year"`

	Fields     Fields      `mapstructure:"fields" yaml:"fields"`
	Outputs    []string    `mapstructure:"outputs" yaml:"outputs"`
	Indicators []Indicator `mapstructure:"indicators" yaml:"indicators"`

	ExcludeCountries []string `mapstructure:"exclude_countries" yaml:"exclude_countries"`
	AutoExclude      bool     `mapstructure:"auto_exclude" yaml:"auto_exclude"`
	MinAge           int      `mapstructure:"min_age" yaml:"min_age"`
	MaxAge           int      `mapstructure:"max_age" yaml:"max_age"`
	PooledLabel      string   `mapstructure:"pooled_label" yaml:"pooled_label"`

	Results Results `mapstructure:"results" yaml:"results"`
}

// Default returns the built-in configuration, matching an EU-SILC style
// cross-sectional file with a derived fht column.
func Default() *Global {
	return &Global{
		Workbook:      "typology.xlsx",
		Appendix:      "appendix.docx",
		Year:          "2021",
		ReferenceYear: 2021,
		Fields: Fields{
			Country:        "country",
			Weight:         "rb050",
			HouseholdType:  "hx060",
			TypologySource: "hhtype",
			FHT:            "fht",
			Sex:            "rb090",
			Age:            "rx020",
			BirthYear:      "rb080",
			ReferenceYear:  "rb010",
		},
		Outputs: []string{"hh_eurostat", "fht5"},
		Indicators: []Indicator{
			{Name: "poverty", Source: "arop"},
			{Name: "deprivation", Source: "smsd"},
		},
		ExcludeCountries: []string{},
		AutoExclude:      true,
		PooledLabel:      "EU (weighted)",
		Results:          Results{Driver: "sqlite"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("input", d.Input)
	v.SetDefault("workbook", d.Workbook)
	v.SetDefault("appendix", d.Appendix)
	v.SetDefault("year", d.Year)
	v.SetDefault("reference_year", d.ReferenceYear)
	v.SetDefault("fields.country", d.Fields.Country)
	v.SetDefault("fields.weight", d.Fields.Weight)
	v.SetDefault("fields.household_type", d.Fields.HouseholdType)
	v.SetDefault("fields.typology_source", d.Fields.TypologySource)
	v.SetDefault("fields.fht", d.Fields.FHT)
	v.SetDefault("fields.sex", d.Fields.Sex)
	v.SetDefault("fields.age", d.Fields.Age)
	v.SetDefault("fields.birth_year", d.Fields.BirthYear)
	v.SetDefault("fields.reference_year", d.Fields.ReferenceYear)
	v.SetDefault("outputs", d.Outputs)
	v.SetDefault("indicators", []map[string]string{
		{"name": "poverty", "source": "arop"},
		{"name": "deprivation", "source": "smsd"},
	})
	v.SetDefault("exclude_countries", d.ExcludeCountries)
	v.SetDefault("auto_exclude", d.AutoExclude)
	v.SetDefault("min_age", 0)
	v.SetDefault("max_age", 0)
	v.SetDefault("pooled_label", d.PooledLabel)
	v.SetDefault("results.driver", d.Results.Driver)
	v.SetDefault("results.dsn", "")
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.hhtab/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path, err := resolvePath(cfgFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func resolvePath(cfgFile string) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".hhtab", "config.yaml"), nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is loaded into the environment first when present.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("HHTAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".hhtab"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.normalize()
	return &c, nil
}

// normalize lower-cases field names and trims list entries so later lookups
// against lower-cased column names are exact.
func (c *Global) normalize() {
	f := &c.Fields
	for _, p := range []*string{&f.Country, &f.Weight, &f.HouseholdType, &f.TypologySource, &f.FHT, &f.Sex, &f.Age, &f.BirthYear, &f.ReferenceYear} {
		*p = strings.ToLower(strings.TrimSpace(*p))
	}
	for i := range c.Indicators {
		c.Indicators[i].Name = strings.TrimSpace(c.Indicators[i].Name)
		c.Indicators[i].Source = strings.ToLower(strings.TrimSpace(c.Indicators[i].Source))
	}
	for i := range c.Outputs {
		c.Outputs[i] = strings.ToLower(strings.TrimSpace(c.Outputs[i]))
	}
	var ex []string
	for _, code := range c.ExcludeCountries {
		if code = strings.TrimSpace(code); code != "" {
			ex = append(ex, code)
		}
	}
	c.ExcludeCountries = ex
	if c.PooledLabel == "" {
		c.PooledLabel = "EU (weighted)"
	}
}

// Validate reports configuration problems that would make a run meaningless.
// known lists the output variables the recoder can derive.
func (c *Global) Validate(known []string) error {
	var problems []string
	if strings.TrimSpace(c.Input) == "" {
		problems = append(problems, "input path is empty")
	}
	if strings.TrimSpace(c.Workbook) == "" {
		problems = append(problems, "workbook path is empty")
	}
	if strings.TrimSpace(c.Appendix) == "" {
		problems = append(problems, "appendix path is empty")
	}
	if strings.TrimSpace(c.Year) == "" {
		problems = append(problems, "year tag is empty")
	}
	for _, f := range []struct{ name, col string }{
		{"fields.country", c.Fields.Country},
		{"fields.weight", c.Fields.Weight},
		{"fields.household_type", c.Fields.HouseholdType},
		{"fields.typology_source", c.Fields.TypologySource},
		{"fields.fht", c.Fields.FHT},
	} {
		if f.col == "" {
			problems = append(problems, f.name+" is empty")
		}
	}
	if len(c.Outputs) == 0 {
		problems = append(problems, "no output variables configured")
	}
	seen := map[string]bool{}
	for _, o := range c.Outputs {
		ok := false
		for _, k := range known {
			if o == k {
				ok = true
				break
			}
		}
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown output variable %q (known: %s)", o, strings.Join(known, ", ")))
		}
		if seen[o] {
			problems = append(problems, fmt.Sprintf("output variable %q listed twice", o))
		}
		seen[o] = true
	}
	names := map[string]bool{}
	for _, ind := range c.Indicators {
		if ind.Name == "" || ind.Source == "" {
			problems = append(problems, "indicator needs both name and source")
			continue
		}
		if names[ind.Name] {
			problems = append(problems, fmt.Sprintf("indicator %q listed twice", ind.Name))
		}
		names[ind.Name] = true
	}
	if c.MinAge < 0 || c.MaxAge < 0 || (c.MaxAge > 0 && c.MinAge > c.MaxAge) {
		problems = append(problems, fmt.Sprintf("invalid age range %d..%d", c.MinAge, c.MaxAge))
	}
	if c.Results.DSN != "" {
		switch c.Results.Driver {
		case "sqlite", "postgres":
		default:
			problems = append(problems, fmt.Sprintf("unsupported results driver %q (use sqlite or postgres)", c.Results.Driver))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
