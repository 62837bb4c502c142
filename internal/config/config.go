// Package config loads and validates mirror configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/edgar-mirror/internal/discovery"
	"github.com/JakeFAU/edgar-mirror/internal/download"
	"github.com/JakeFAU/edgar-mirror/internal/filing"
)

// Source modes: walk named companies or sweep the quarterly bulk indexes.
const (
	ModeCIK         = "cik"
	ModeMasterIndex = "master_index"
)

// Config captures all pipeline knobs loaded via Viper.
type Config struct {
	Contact   string          `mapstructure:"contact"`
	Mode      string          `mapstructure:"mode"`
	Companies CompaniesConfig `mapstructure:"companies"`
	Download  DownloadConfig  `mapstructure:"download"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Master    MasterConfig    `mapstructure:"master"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CompaniesConfig names the companies to mirror in cik mode.
type CompaniesConfig struct {
	CIKs              string `mapstructure:"ciks"`
	CIKFile           string `mapstructure:"cik_file"`
	IncludeAmendments bool   `mapstructure:"include_amendments"`
	StartDate         string `mapstructure:"start_date"`
}

// DownloadConfig governs document selection and the worker pool.
type DownloadConfig struct {
	Mode         string `mapstructure:"mode"`
	Workers      int    `mapstructure:"workers"`
	OutputDir    string `mapstructure:"output_dir"`
	SaveManifest bool   `mapstructure:"save_manifest"`
}

// HTTPConfig configures upstream pacing and retry ceilings.
type HTTPConfig struct {
	MinIntervalMs int `mapstructure:"min_interval_ms"`
	MaxAttempts   int `mapstructure:"max_attempts"`
}

// MasterConfig controls the master_index sweep.
type MasterConfig struct {
	StartYear     int    `mapstructure:"start_year"`
	Shard         string `mapstructure:"shard"`
	ManifestPath  string `mapstructure:"manifest_path"`
	ReuseManifest bool   `mapstructure:"reuse_manifest"`
	ManifestOnly  bool   `mapstructure:"manifest_only"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// flagKeys maps command-line flag names onto configuration keys. Flags take
// precedence over the environment and the config file.
var flagKeys = map[string]string{
	"contact":                "contact",
	"mode":                   "mode",
	"ciks":                   "companies.ciks",
	"cik-file":               "companies.cik_file",
	"include-amendments":     "companies.include_amendments",
	"start-date":             "companies.start_date",
	"download-mode":          "download.mode",
	"workers":                "download.workers",
	"out":                    "download.output_dir",
	"save-manifest":          "download.save_manifest",
	"min-interval-ms":        "http.min_interval_ms",
	"max-attempts":           "http.max_attempts",
	"master-start-year":      "master.start_year",
	"shard":                  "master.shard",
	"targets-manifest":       "master.manifest_path",
	"reuse-targets-manifest": "master.reuse_manifest",
	"manifest-only":          "master.manifest_only",
	"dev-logging":            "logging.development",
}

// Load builds a Config from disk/environment, binding any recognized
// command-line flags at highest precedence.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EDGAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeCIK)
	v.SetDefault("companies.include_amendments", true)
	v.SetDefault("download.mode", string(download.ModeAll))
	v.SetDefault("download.workers", 6)
	v.SetDefault("download.output_dir", "sec_filings")
	v.SetDefault("download.save_manifest", true)
	v.SetDefault("http.min_interval_ms", 120)
	v.SetDefault("http.max_attempts", 10)
	v.SetDefault("master.start_year", 2001)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values before any network call is made.
func (c Config) Validate() error {
	if !strings.Contains(c.Contact, "@") {
		return fmt.Errorf("contact must include an email address (EDGAR fair-access policy)")
	}
	if c.Mode != ModeCIK && c.Mode != ModeMasterIndex {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeCIK, ModeMasterIndex, c.Mode)
	}
	if c.Mode == ModeCIK && c.Companies.CIKs == "" && c.Companies.CIKFile == "" {
		return fmt.Errorf("cik mode requires companies.ciks or companies.cik_file")
	}
	if _, err := download.ParseMode(c.Download.Mode); err != nil {
		return fmt.Errorf("download.mode: %w", err)
	}
	if c.Download.Workers <= 0 {
		return fmt.Errorf("download.workers must be > 0")
	}
	if c.Download.OutputDir == "" {
		return fmt.Errorf("download.output_dir must be set")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.MinIntervalMs < 0 {
		return fmt.Errorf("http.min_interval_ms must be >= 0")
	}
	if c.Companies.StartDate != "" {
		if _, err := filing.ParseDate(c.Companies.StartDate); err != nil {
			return fmt.Errorf("companies.start_date: %w", err)
		}
	}
	if c.Master.Shard != "" {
		if c.Mode != ModeMasterIndex {
			return fmt.Errorf("master.shard is only valid in %s mode", ModeMasterIndex)
		}
		if _, err := discovery.ParseShard(c.Master.Shard); err != nil {
			return fmt.Errorf("master.shard: %w", err)
		}
	}
	if c.Master.ManifestOnly && c.Mode != ModeMasterIndex {
		return fmt.Errorf("master.manifest_only is only valid in %s mode", ModeMasterIndex)
	}
	if c.Mode == ModeMasterIndex && c.Master.StartYear < 1993 {
		return fmt.Errorf("master.start_year must be >= 1993 (first EDGAR full-index year)")
	}
	return nil
}

// MinInterval converts the pacing config into the limiter's duration.
func (c Config) MinInterval() time.Duration {
	return time.Duration(c.HTTP.MinIntervalMs) * time.Millisecond
}
