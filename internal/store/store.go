// Package store persists transactions.
//
// Three implementations share one contract: MemoryStore for tests and
// throwaway CLI runs, SQLiteStore for a local file and PostgresStore for a
// shared database. List returns live rows in insertion order. Delete moves a
// row to the trash, from where Restore brings it back.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/errors"
)

// Store defines the transaction persistence contract
type Store interface {
	// List returns live transactions in insertion order
	List(ctx context.Context) ([]models.Transaction, error)

	// Get returns one live transaction or a not-found error
	Get(ctx context.Context, id string) (models.Transaction, error)

	// Create assigns an ID and creation time, validates and inserts tx
	Create(ctx context.Context, tx models.Transaction) (models.Transaction, error)

	// CreateMany inserts all of txs or none of them
	CreateMany(ctx context.Context, txs []models.Transaction) ([]models.Transaction, error)

	// Update applies patch to a live transaction
	Update(ctx context.Context, id string, patch Patch) (models.Transaction, error)

	// UpdateMany applies every update or none of them
	UpdateMany(ctx context.Context, updates []Update) ([]models.Transaction, error)

	// Delete moves a live transaction to the trash
	Delete(ctx context.Context, id string) error

	// Restore brings a trashed transaction back
	Restore(ctx context.Context, id string) (models.Transaction, error)

	// ListTrash returns trashed transactions in insertion order
	ListTrash(ctx context.Context) ([]models.Transaction, error)

	Close() error
}

// Driver names accepted by Open
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and configures a store implementation
type Config struct {
	Driver string `json:"driver" mapstructure:"driver"`
	DSN    string `json:"dsn" mapstructure:"dsn"`
}

// DefaultConfig returns an in-memory store configuration
func DefaultConfig() *Config {
	return &Config{Driver: DriverMemory}
}

// Validate checks the driver name and that a DSN is present when needed
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.DSN) == "" {
			return errors.ConfigurationError(errors.CodeMissingConfig, "store.dsn", c.DSN, nil)
		}
		return nil
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, "store.driver", c.Driver, nil)
	}
}

// Open builds the store named by config
func Open(config *Config) (Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Driver {
	case DriverSQLite:
		return NewSQLiteStore(config.DSN)
	case DriverPostgres:
		return NewPostgresStore(config.DSN)
	default:
		return NewMemoryStore(), nil
	}
}

// Update pairs a transaction ID with the patch to apply to it
type Update struct {
	ID    string
	Patch Patch
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Date                 *time.Time       `json:"-"`
	Name                 *string          `json:"name,omitempty"`
	Car                  *string          `json:"car,omitempty"`
	Depositor            *string          `json:"depositor,omitempty"`
	Value                *decimal.Decimal `json:"value,omitempty"`
	Status               *models.Status   `json:"status,omitempty"`
	Source               *string          `json:"source,omitempty"`
	PaymentMethod        *string          `json:"paymentMethod,omitempty"`
	Confidence           *int             `json:"confidence,omitempty"`
	MatchedTransactionID *string          `json:"matchedTransactionId,omitempty"`
	SheetOrder           *int             `json:"sheetOrder,omitempty"`
}

// UnmarshalJSON accepts the calendar date forms understood by models.ParseDate
func (p *Patch) UnmarshalJSON(data []byte) error {
	type Alias Patch
	aux := &struct {
		Date *string `json:"date"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if aux.Date != nil {
		d, err := models.ParseDate(*aux.Date)
		if err != nil {
			return err
		}
		p.Date = &d
	}

	return nil
}

// IsEmpty reports whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Apply writes the non-nil fields of p onto tx
func (p Patch) Apply(tx *models.Transaction) {
	if p.Date != nil {
		tx.Date = models.NormalizeDate(*p.Date)
	}
	if p.Name != nil {
		tx.Name = *p.Name
	}
	if p.Car != nil {
		tx.Car = *p.Car
	}
	if p.Depositor != nil {
		tx.Depositor = *p.Depositor
	}
	if p.Value != nil {
		tx.Value = *p.Value
	}
	if p.Status != nil {
		tx.Status = *p.Status
	}
	if p.Source != nil {
		tx.Source = *p.Source
	}
	if p.PaymentMethod != nil {
		tx.PaymentMethod = *p.PaymentMethod
	}
	if p.Confidence != nil {
		v := *p.Confidence
		tx.Confidence = &v
	}
	if p.MatchedTransactionID != nil {
		tx.MatchedTransactionID = *p.MatchedTransactionID
	}
	if p.SheetOrder != nil {
		v := *p.SheetOrder
		tx.SheetOrder = &v
	}
}

// ReconciledPatch captures the reconciliation state of tx
func ReconciledPatch(tx models.Transaction) Patch {
	status := tx.Status
	matched := tx.MatchedTransactionID
	patch := Patch{
		Status:               &status,
		MatchedTransactionID: &matched,
	}
	if tx.Confidence != nil {
		c := *tx.Confidence
		patch.Confidence = &c
	}
	return patch
}

// prepare fills the store-assigned fields of a new transaction and validates it
func prepare(tx models.Transaction, now time.Time) (models.Transaction, error) {
	tx = tx.Clone()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = models.StatusPendingLedger
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now.UTC()
	}
	tx.Date = models.NormalizeDate(tx.Date)
	tx.Value = tx.Value.Round(2)
	tx.DeletedAt = nil

	if err := validate(tx); err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}

func validate(tx models.Transaction) error {
	if err := tx.Validate(); err != nil {
		return errors.ValidationError(errors.CodeInvalidValue, err.Error(), nil).
			WithContext("id", tx.ID)
	}
	return nil
}

func storageErr(code errors.ErrorCode, operation string, err error) error {
	return errors.StorageError(code, operation, err)
}

func duplicateID(id string) error {
	return errors.ValidationError(errors.CodeInvalidValue, fmt.Sprintf("transaction id already exists: %s", id), nil).
		WithContext("id", id)
}
