// Package reporter renders reconciliation runs, imports and transaction
// lists for the command line.
//
// Supported output formats:
//   - console: aligned tables for a terminal, optionally colored
//   - json: indented JSON for scripts
//   - yaml: the same document as YAML
//
// Example usage:
//
//	rg, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatYAML, MaxItems: 20})
//	err = rg.GenerateReport(run, os.Stdout)
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"reconciliation-dashboard/internal/matcher"
	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/internal/reconciler"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatYAML:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	// Detail level options
	IncludeMatches   bool `json:"include_matches" mapstructure:"include_matches"`
	IncludeUnmatched bool `json:"include_unmatched" mapstructure:"include_unmatched"`

	// Console formatting options
	UseColors bool `json:"use_colors" mapstructure:"use_colors"`
	// MaxItems caps each console list; 0 prints everything
	MaxItems int `json:"max_items" mapstructure:"max_items"`

	SortByValue bool `json:"sort_by_value" mapstructure:"sort_by_value"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:           FormatConsole,
		IncludeMatches:   true,
		IncludeUnmatched: true,
		UseColors:        true,
		MaxItems:         10,
		SortByValue:      false,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.MaxItems < 0 {
		return fmt.Errorf("max items cannot be negative, got %d", c.MaxItems)
	}

	return nil
}

// ReportGenerator renders reports in the configured format
type ReportGenerator struct {
	config *ReportConfig

	heading *color.Color
	good    *color.Color
	warn    *color.Color
	bad     *color.Color
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	rg := &ReportGenerator{
		config:  config,
		heading: color.New(color.Bold, color.FgCyan),
		good:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed),
	}
	if !config.UseColors {
		for _, c := range []*color.Color{rg.heading, rg.good, rg.warn, rg.bad} {
			c.DisableColor()
		}
	}

	return rg, nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

// GenerateReport renders a reconciliation run
func (rg *ReportGenerator) GenerateReport(run *reconciler.RunResult, writer io.Writer) error {
	if run == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	if rg.config.Format == FormatConsole {
		return rg.consoleRun(run, writer)
	}
	return rg.encode(rg.buildRunDocument(run), writer)
}

// GenerateImportReport renders the outcome of an upload or ledger import
func (rg *ReportGenerator) GenerateImportReport(summary *reconciler.ImportSummary, writer io.Writer) error {
	if summary == nil {
		return fmt.Errorf("import summary cannot be nil")
	}

	if rg.config.Format == FormatConsole {
		return rg.consoleImport(summary, writer)
	}
	return rg.encode(newImportDocument(summary), writer)
}

// GenerateTransactionList renders a list of transactions under a title
func (rg *ReportGenerator) GenerateTransactionList(title string, txs []models.Transaction, writer io.Writer) error {
	if rg.config.Format != FormatConsole {
		return rg.encode(transactionViews(txs), writer)
	}

	rg.heading.Fprintf(writer, "=== %s ===\n", strings.ToUpper(title))
	if len(txs) == 0 {
		fmt.Fprintln(writer, "No transactions.")
		return nil
	}
	return rg.printTransactions(txs, writer)
}

// GenerateMatch renders a single accepted match
func (rg *ReportGenerator) GenerateMatch(match *matcher.Match, writer io.Writer) error {
	if match == nil {
		return fmt.Errorf("match cannot be nil")
	}

	if rg.config.Format != FormatConsole {
		return rg.encode(newMatchView(*match), writer)
	}

	rg.good.Fprintf(writer, "Reconciled %s with %s (%d%%)\n", match.Statement.ID, match.Ledger.ID, match.Confidence)
	return rg.printMatches([]matcher.Match{*match}, writer)
}

func (rg *ReportGenerator) encode(doc interface{}, writer io.Writer) error {
	switch rg.config.Format {
	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(doc)
	case FormatYAML:
		encoder := yaml.NewEncoder(writer)
		encoder.SetIndent(2)
		if err := encoder.Encode(doc); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) consoleRun(run *reconciler.RunResult, writer io.Writer) error {
	s := run.Summary

	rg.heading.Fprintln(writer, "RECONCILIATION REPORT")
	fmt.Fprintf(writer, "Duration: %v\n\n", run.Duration)

	rg.heading.Fprintln(writer, "=== SUMMARY ===")
	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Statement rows:\t%d\n", s.StatementCount)
	fmt.Fprintf(tw, "Ledger rows:\t%d\n", s.LedgerCount)
	fmt.Fprintf(tw, "Matched:\t%d\t(%.1f%% of statement)\n", s.Matched, s.MatchRate())
	fmt.Fprintf(tw, "Persisted:\t%d\n", run.Persisted)
	fmt.Fprintf(tw, "Unmatched statement:\t%d\t%s\n", s.UnmatchedStatement, s.ValueUnmatchedStmt.StringFixed(2))
	fmt.Fprintf(tw, "Unmatched ledger:\t%d\t%s\n", s.UnmatchedLedger, s.ValueUnmatchedLedger.StringFixed(2))
	fmt.Fprintf(tw, "Matched value:\t%s\n", s.ValueMatched.StringFixed(2))
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(writer)

	rg.heading.Fprintln(writer, "=== MATCH QUALITY ===")
	tw = tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Exact:\t%d\t(%.1f%%)\n", s.ExactMatches, percentage(s.ExactMatches, s.Matched))
	fmt.Fprintf(tw, "Close:\t%d\t(%.1f%%)\n", s.CloseMatches, percentage(s.CloseMatches, s.Matched))
	fmt.Fprintf(tw, "Fuzzy:\t%d\t(%.1f%%)\n", s.FuzzyMatches, percentage(s.FuzzyMatches, s.Matched))
	if err := tw.Flush(); err != nil {
		return err
	}

	if rg.config.IncludeMatches && len(run.Matches) > 0 {
		fmt.Fprintln(writer)
		rg.heading.Fprintln(writer, "=== MATCHES ===")
		if err := rg.printMatches(run.Matches, writer); err != nil {
			return err
		}
	}

	if rg.config.IncludeUnmatched {
		if len(run.UnmatchedStatement) > 0 {
			fmt.Fprintln(writer)
			rg.warn.Fprintf(writer, "=== UNMATCHED STATEMENT (%d) ===\n", len(run.UnmatchedStatement))
			if err := rg.printTransactions(run.UnmatchedStatement, writer); err != nil {
				return err
			}
		}
		if len(run.UnmatchedLedger) > 0 {
			fmt.Fprintln(writer)
			rg.warn.Fprintf(writer, "=== UNMATCHED LEDGER (%d) ===\n", len(run.UnmatchedLedger))
			if err := rg.printTransactions(run.UnmatchedLedger, writer); err != nil {
				return err
			}
		}
	}

	return nil
}

func (rg *ReportGenerator) consoleImport(summary *reconciler.ImportSummary, writer io.Writer) error {
	rg.heading.Fprintln(writer, "=== IMPORT ===")

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tFORMAT\tPARSED\tIMPORTED\tDUPLICATES\tSKIPPED")
	for _, fs := range summary.Files {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
			fs.FileName, formatLabel(fs), fs.Parsed, fs.Imported, fs.Duplicates, fs.Skipped)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, fs := range summary.Files {
		if fs.Error != "" {
			rg.bad.Fprintf(writer, "  %s: %s\n", fs.FileName, fs.Error)
			continue
		}
		for _, reason := range sortedKeys(fs.SkipReasons) {
			rg.warn.Fprintf(writer, "  %s: %d skipped (%s)\n", fs.FileName, fs.SkipReasons[reason], reason)
		}
	}

	fmt.Fprintln(writer)
	rg.good.Fprintf(writer, "Imported %d of %d parsed rows", summary.Imported, summary.Parsed)
	fmt.Fprintf(writer, ", %d duplicates", summary.Duplicates)
	if summary.Failed > 0 {
		rg.bad.Fprintf(writer, ", %d files failed", summary.Failed)
	}
	fmt.Fprintln(writer)

	return nil
}

func (rg *ReportGenerator) printMatches(matches []matcher.Match, writer io.Writer) error {
	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tVALUE\tSTATEMENT\tLEDGER\tCONFIDENCE\tREASONS")

	for i, m := range matches {
		if rg.truncated(i, len(matches), tw) {
			break
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%% %s\t%s\n",
			m.Statement.Date.Format(models.DateLayout),
			m.Statement.Value.StringFixed(2),
			m.Statement.Name,
			m.Ledger.Name,
			m.Confidence,
			m.Type,
			strings.Join(m.Reasons, "; "))
	}

	return tw.Flush()
}

func (rg *ReportGenerator) printTransactions(txs []models.Transaction, writer io.Writer) error {
	if rg.config.SortByValue {
		txs = append([]models.Transaction(nil), txs...)
		sort.SliceStable(txs, func(i, j int) bool {
			return txs[i].Value.GreaterThan(txs[j].Value)
		})
	}

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tVALUE\tNAME\tSTATUS\tSOURCE")

	for i, tx := range txs {
		if rg.truncated(i, len(txs), tw) {
			break
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID,
			tx.Date.Format(models.DateLayout),
			tx.Value.StringFixed(2),
			tx.Name,
			tx.Status,
			tx.Source)
	}

	return tw.Flush()
}

// truncated reports whether row i is past the configured limit and, for
// the first such row, prints how many rows were left out
func (rg *ReportGenerator) truncated(i, total int, writer io.Writer) bool {
	if rg.config.MaxItems == 0 || i < rg.config.MaxItems {
		return false
	}
	fmt.Fprintf(writer, "... and %d more\n", total-i)
	return true
}

func formatLabel(fs reconciler.FileSummary) string {
	switch {
	case fs.Format == "":
		return "-"
	case fs.Layout != "":
		return fs.Format + "/" + fs.Layout
	default:
		return fs.Format
	}
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
