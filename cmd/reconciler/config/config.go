// Package config turns viper settings into the configuration structs of
// each component the CLI wires together.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"reconciliation-dashboard/internal/api"
	"reconciliation-dashboard/internal/ledger"
	"reconciliation-dashboard/internal/reconciler"
	"reconciliation-dashboard/internal/reporter"
	"reconciliation-dashboard/internal/store"
	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

// EnvPrefix is prepended to every environment override, e.g.
// RECONCILER_STORE_DSN for store.dsn
const EnvPrefix = "RECONCILER"

// SheetsConfig holds the spreadsheet connection settings
type SheetsConfig struct {
	Ledger      *ledger.Config
	AccessToken string
}

// Connected reports whether an access token has been configured
func (c *SheetsConfig) Connected() bool {
	return strings.TrimSpace(c.AccessToken) != ""
}

// Config is the full configuration of one CLI invocation
type Config struct {
	Store      *store.Config
	Reconciler *reconciler.Config
	Sheets     *SheetsConfig
	Server     *api.Config
	Output     *reporter.ReportConfig
	Log        *logger.Config
}

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	storeCfg := store.DefaultConfig()
	v.SetDefault("store.driver", storeCfg.Driver)
	v.SetDefault("store.dsn", storeCfg.DSN)

	rc := reconciler.DefaultConfig()
	v.SetDefault("parser.card_timestamp_offset", rc.Parser.CardTimestampOffset)
	v.SetDefault("matching.date_tolerance_days", rc.Matching.DateToleranceDays)
	v.SetDefault("matching.name_threshold", rc.Matching.NameThreshold)
	v.SetDefault("matching.close_match_threshold", rc.Matching.CloseMatchThreshold)
	v.SetDefault("preprocessing.default_name", rc.Preprocessing.DefaultName)

	v.SetDefault("sheets.id", "")
	v.SetDefault("sheets.access_token", "")
	v.SetDefault("sheets.ranges", ledger.DefaultRanges)

	serverCfg := api.DefaultConfig()
	v.SetDefault("server.addr", serverCfg.Addr)
	v.SetDefault("server.shutdown_timeout", serverCfg.ShutdownTimeout)
	v.SetDefault("server.max_upload_bytes", serverCfg.MaxUploadBytes)

	out := reporter.DefaultReportConfig()
	v.SetDefault("output.format", string(out.Format))
	v.SetDefault("output.include_matches", out.IncludeMatches)
	v.SetDefault("output.include_unmatched", out.IncludeUnmatched)
	v.SetDefault("output.use_colors", out.UseColors)
	v.SetDefault("output.max_items", out.MaxItems)
	v.SetDefault("output.sort_by_value", out.SortByValue)

	logCfg := logger.DefaultConfig()
	v.SetDefault("log.level", string(logCfg.Level))
	v.SetDefault("log.format", string(logCfg.Format))
	v.SetDefault("log.output", string(logCfg.Output))
	v.SetDefault("log.file", "")
}

// Load reads every section from v and validates the result. Keys missing
// from v fall back to the component defaults.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Store: &store.Config{
			Driver: strings.ToLower(v.GetString("store.driver")),
			DSN:    v.GetString("store.dsn"),
		},
		Reconciler: CreateReconcilerConfig(v),
		Sheets: &SheetsConfig{
			Ledger: &ledger.Config{
				SheetID: v.GetString("sheets.id"),
				Ranges:  v.GetStringSlice("sheets.ranges"),
			},
			AccessToken: v.GetString("sheets.access_token"),
		},
		Server: &api.Config{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			MaxUploadBytes:  v.GetInt64("server.max_upload_bytes"),
		},
		Output: CreateReportConfig(v.GetString("output.format"), v),
		Log: &logger.Config{
			Level:  logger.Level(strings.ToLower(v.GetString("log.level"))),
			Format: logger.Format(strings.ToLower(v.GetString("log.format"))),
			Output: logger.Output(strings.ToLower(v.GetString("log.output"))),
			File:   v.GetString("log.file"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CreateReconcilerConfig builds the parser, matching and preprocessing
// settings
func CreateReconcilerConfig(v *viper.Viper) *reconciler.Config {
	config := reconciler.DefaultConfig()

	config.Parser.CardTimestampOffset = v.GetDuration("parser.card_timestamp_offset")
	config.Matching.DateToleranceDays = v.GetInt("matching.date_tolerance_days")
	config.Matching.NameThreshold = v.GetInt("matching.name_threshold")
	config.Matching.CloseMatchThreshold = v.GetInt("matching.close_match_threshold")
	config.Preprocessing.DefaultName = v.GetString("preprocessing.default_name")

	return config
}

// CreateReportConfig creates a report configuration for the specified
// output format. JSON and YAML never carry colour codes.
func CreateReportConfig(format string, v *viper.Viper) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	config.Format = reporter.OutputFormat(strings.ToLower(format))
	config.IncludeMatches = v.GetBool("output.include_matches")
	config.IncludeUnmatched = v.GetBool("output.include_unmatched")
	config.UseColors = v.GetBool("output.use_colors")
	config.MaxItems = v.GetInt("output.max_items")
	config.SortByValue = v.GetBool("output.sort_by_value")

	if config.Format != reporter.FormatConsole {
		config.UseColors = false
	}

	return config
}

// Validate validates every section
func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Reconciler.Validate(); err != nil {
		return err
	}
	if err := c.Sheets.Ledger.Validate(); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "server.addr", c.Server.Addr, nil)
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "server.shutdown_timeout", c.Server.ShutdownTimeout, nil)
	}
	if err := c.Output.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output", c.Output.Format, err).
			WithSuggestion(fmt.Sprintf("valid formats: %s, %s, %s", reporter.FormatConsole, reporter.FormatJSON, reporter.FormatYAML))
	}
	if err := c.Log.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", c.Log.Level, err)
	}
	return nil
}
