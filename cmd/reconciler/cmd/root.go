package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reconciliation-dashboard/cmd/reconciler/config"
	"reconciliation-dashboard/internal/ledger"
	"reconciliation-dashboard/internal/reconciler"
	"reconciliation-dashboard/internal/reporter"
	"reconciliation-dashboard/internal/store"
	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

var (
	cfgFile    string
	verbose    bool
	outputFile string
	version    = "dev"
	commit     = "unknown"
	date       = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Ledger and statement reconciliation tool",
	Long: `Reconciler matches the client ledger kept in Google Sheets against
bank and payment-processor statements. Transactions live in a store
(memory, SQLite or PostgreSQL) shared by the CLI and the HTTP dashboard API.

Examples:
  reconciler import --type bank statement.csv activity.ofx
  reconciler sheets import --sheet-id 1AbC...
  reconciler reconcile --bank wf.csv --stripe payments.csv --progress
  reconciler manual review --start 2024-01-01
  reconciler serve --addr :8080
  reconciler version`,
	Version:           getVersionString(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// cfg is loaded once per invocation by loadConfig
var cfg *config.Config

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("store", store.DriverMemory, "transaction store: memory, sqlite, postgres")
	rootCmd.PersistentFlags().String("dsn", "", "store connection string (file path for sqlite)")
	rootCmd.PersistentFlags().StringP("output-format", "f", "console", "output format: console, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("dsn"))
	viper.BindPFlag("output.format", rootCmd.PersistentFlags().Lookup("output-format"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)

		// If a config file is specified, read it in.
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// Read environment variables that match, e.g. RECONCILER_STORE_DSN
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig builds the configuration and installs the global logger
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if viper.GetBool("verbose") {
		loaded.Log.Level = logger.DebugLevel
	}

	log, err := logger.NewLogger(loaded.Log)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", loaded.Log.Level, err)
	}
	logger.SetGlobalLogger(log)

	cfg = loaded
	return nil
}

// openService opens the configured store and wires a service around it.
// The returned close function releases the store.
func openService() (*reconciler.Service, func(), error) {
	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	svc, err := reconciler.NewService(st, cfg.Reconciler)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	return svc, func() { st.Close() }, nil
}

// sheetsSource returns the spreadsheet importer, or nil when no access
// token is configured
func sheetsSource() (reconciler.LedgerSource, error) {
	if !cfg.Sheets.Connected() {
		return nil, nil
	}
	importer, err := ledger.NewSheetsImporter(ledger.StaticTokenProvider(cfg.Sheets.AccessToken), cfg.Sheets.Ledger)
	if err != nil {
		return nil, err
	}
	return importer, nil
}

// render writes result to the output file or stdout in the configured format
func render(cmd *cobra.Command, result interface{}) error {
	generator, err := reporter.NewSafeReportGenerator(cfg.Output, nil)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return errors.FileError(errors.CodeFileUnreadable, outputFile, err)
		}
		defer f.Close()
		out = f
	}

	return generator.Render(result, out)
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print the version",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "reconciler %s\n", getVersionString())
	},
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
