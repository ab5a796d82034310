// Package reconciler runs the reconciliation workflow against a transaction
// store.
//
// The Service is the single entry point used by the CLI and the HTTP API:
//
//	svc, err := reconciler.NewService(st, reconciler.DefaultConfig())
//	summary, err := svc.ImportUpload(ctx, files, models.UploadTypeBank)
//	run, err := svc.RunReconciliation(ctx)
//
// Write operations are serialized, so an upload never interleaves with a
// reconciliation run.
package reconciler

import (
	"context"
	"sync"

	"reconciliation-dashboard/internal/dedup"
	"reconciliation-dashboard/internal/matcher"
	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/internal/parsers"
	"reconciliation-dashboard/internal/store"
	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

// Config holds the settings of every component the service drives
type Config struct {
	Parser        *parsers.ParserConfig   `mapstructure:"parser"`
	Matching      *matcher.MatchingConfig `mapstructure:"matching"`
	Preprocessing *PreprocessingConfig    `mapstructure:"preprocessing"`
}

// DefaultConfig returns a default configuration for the service
func DefaultConfig() *Config {
	return &Config{
		Parser:        parsers.DefaultParserConfig(),
		Matching:      matcher.DefaultMatchingConfig(),
		Preprocessing: DefaultPreprocessingConfig(),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Parser == nil || c.Matching == nil || c.Preprocessing == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "reconciler", nil, nil)
	}
	if err := c.Parser.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "parser", c.Parser.CardTimestampOffset, err)
	}
	if err := c.Matching.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "matching", c.Matching.String(), err)
	}
	return c.Preprocessing.Validate()
}

// Service orchestrates imports, reconciliation runs and manual matching
type Service struct {
	store        store.Store
	parser       *parsers.Parser
	filter       *dedup.Filter
	engine       *matcher.Engine
	preprocessor *DataPreprocessor
	logger       logger.Logger

	// mu serializes operations that write to the store
	mu sync.Mutex
}

// NewService wires the components around st
func NewService(st store.Store, config *Config) (*Service, error) {
	if st == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "store", nil, nil)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	parser, err := parsers.NewParser(config.Parser)
	if err != nil {
		return nil, err
	}

	engine, err := matcher.NewEngine(config.Matching)
	if err != nil {
		return nil, err
	}

	return &Service{
		store:        st,
		parser:       parser,
		filter:       dedup.NewFilter(),
		engine:       engine,
		preprocessor: NewDataPreprocessor(config.Preprocessing),
		logger:       logger.WithComponent("reconciler"),
	}, nil
}

// Store returns the store the service writes to
func (s *Service) Store() store.Store {
	return s.store
}

// MatchingConfig returns a copy of the matcher configuration
func (s *Service) MatchingConfig() *matcher.MatchingConfig {
	return s.engine.Config()
}

// pending loads the live transactions and splits them by pending side
func (s *Service) pending(ctx context.Context) (statement, ledger []models.Transaction, err error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	return models.WithStatus(all, models.StatusPendingStatement), models.WithStatus(all, models.StatusPendingLedger), nil
}
