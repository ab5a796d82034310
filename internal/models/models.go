package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date layout used on the wire and in storage
const DateLayout = "2006-01-02"

// Status represents where a transaction currently sits in the reconciliation lifecycle
type Status string

const (
	// StatusPendingLedger marks a transaction seen only in the ledger spreadsheet
	StatusPendingLedger Status = "pending-ledger"
	// StatusPendingStatement marks a transaction seen only in a bank or processor file
	StatusPendingStatement Status = "pending-statement"
	// StatusReconciled marks a transaction confirmed on both sides
	StatusReconciled Status = "reconciled"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is one of the known values
func (s Status) IsValid() bool {
	return s == StatusPendingLedger || s == StatusPendingStatement || s == StatusReconciled
}

// IsPending reports whether the status is either pending side
func (s Status) IsPending() bool {
	return s == StatusPendingLedger || s == StatusPendingStatement
}

// Complement returns the opposite pending status, or "" for reconciled
func (s Status) Complement() Status {
	switch s {
	case StatusPendingLedger:
		return StatusPendingStatement
	case StatusPendingStatement:
		return StatusPendingLedger
	default:
		return ""
	}
}

// Well-known payment methods produced by the parsers
const (
	PaymentMethodCreditCard = "Credit Card"
	PaymentMethodZelle      = "Zelle"
	PaymentMethodDeposit    = "Deposit"
)

// Transaction is the canonical, persisted unit of reconciliation
type Transaction struct {
	ID                   string          `json:"id"`
	Date                 time.Time       `json:"date"`
	Name                 string          `json:"name"`
	Car                  string          `json:"car,omitempty"`
	Depositor            string          `json:"depositor,omitempty"`
	Value                decimal.Decimal `json:"value"`
	Status               Status          `json:"status"`
	Source               string          `json:"source"`
	PaymentMethod        string          `json:"paymentMethod,omitempty"`
	Confidence           *int            `json:"confidence,omitempty"`
	MatchedTransactionID string          `json:"matchedTransactionId,omitempty"`
	SheetOrder           *int            `json:"sheetOrder,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	DeletedAt            *time.Time      `json:"deletedAt,omitempty"`
}

// Validate performs basic validation on the Transaction
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("transaction name cannot be empty")
	}

	if t.Value.IsNegative() {
		return fmt.Errorf("transaction value cannot be negative: %s", t.Value.String())
	}

	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}

	if !t.Status.IsValid() {
		return fmt.Errorf("invalid transaction status: %s", t.Status)
	}

	if t.Status == StatusReconciled && t.MatchedTransactionID == "" {
		return fmt.Errorf("reconciled transaction must reference its match")
	}

	return nil
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, Date: %s, Name: %s, Value: %s, Status: %s, Source: %s}",
		t.ID, t.Date.Format(DateLayout), t.Name, t.Value.StringFixed(2), t.Status, t.Source)
}

// IsCreditCard reports whether the transaction came through the card processor
func (t *Transaction) IsCreditCard() bool {
	return t.PaymentMethod == PaymentMethodCreditCard
}

// ConfidenceValue returns the confidence or 0 when unset
func (t *Transaction) ConfidenceValue() int {
	if t.Confidence == nil {
		return 0
	}
	return *t.Confidence
}

// Clone returns a deep copy so callers can mutate without aliasing store state
func (t Transaction) Clone() Transaction {
	c := t
	if t.Confidence != nil {
		v := *t.Confidence
		c.Confidence = &v
	}
	if t.SheetOrder != nil {
		v := *t.SheetOrder
		c.SheetOrder = &v
	}
	if t.DeletedAt != nil {
		v := *t.DeletedAt
		c.DeletedAt = &v
	}
	return c
}

// MarshalJSON implements custom JSON marshaling for Transaction
func (t Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	return json.Marshal(&struct {
		Date  string `json:"date"`
		Value string `json:"value"`
		*Alias
	}{
		Date:  t.Date.Format(DateLayout),
		Value: t.Value.StringFixed(2),
		Alias: (*Alias)(&t),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Transaction
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type Alias Transaction
	aux := &struct {
		Date  string          `json:"date"`
		Value json.RawMessage `json:"value"`
		*Alias
	}{
		Alias: (*Alias)(t),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Date != "" {
		d, err := ParseDate(aux.Date)
		if err != nil {
			return err
		}
		t.Date = d
	}

	if len(aux.Value) > 0 {
		raw := strings.Trim(string(aux.Value), `"`)
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid value format: %w", err)
		}
		t.Value = v
	}

	return nil
}

// ParsedTransaction is the transient shape a parser emits before persistence
type ParsedTransaction struct {
	Date          time.Time       `json:"date"`
	Name          string          `json:"name"`
	Value         decimal.Decimal `json:"value"`
	Source        string          `json:"source"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	Depositor     string          `json:"depositor,omitempty"`
}

// ToTransaction converts a parsed row into a pending-statement transaction
// recorded under the given channel-prefixed source.
func (p ParsedTransaction) ToTransaction(source string) Transaction {
	return Transaction{
		Date:          p.Date,
		Name:          p.Name,
		Depositor:     p.Depositor,
		Value:         p.Value,
		Status:        StatusPendingStatement,
		Source:        source,
		PaymentMethod: p.PaymentMethod,
	}
}

// SheetTransaction is one row imported from the ledger spreadsheet
type SheetTransaction struct {
	Date          time.Time       `json:"date"`
	Name          string          `json:"name"`
	Car           string          `json:"car,omitempty"`
	Depositor     string          `json:"depositor,omitempty"`
	Value         decimal.Decimal `json:"value"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	SheetOrder    int             `json:"sheetOrder"`
}

// ToTransaction converts a ledger row into a pending-ledger transaction
func (s SheetTransaction) ToTransaction() Transaction {
	order := s.SheetOrder
	return Transaction{
		Date:          s.Date,
		Name:          s.Name,
		Car:           s.Car,
		Depositor:     s.Depositor,
		Value:         s.Value,
		Status:        StatusPendingLedger,
		Source:        string(ChannelGoogleSheets),
		PaymentMethod: s.PaymentMethod,
		SheetOrder:    &order,
	}
}

// AsParsed projects a ledger row onto the parsed shape so the same
// duplicate rule applies to both import paths.
func (s SheetTransaction) AsParsed() ParsedTransaction {
	return ParsedTransaction{
		Date:          s.Date,
		Name:          s.Name,
		Value:         s.Value,
		Source:        string(ChannelGoogleSheets),
		PaymentMethod: s.PaymentMethod,
		Depositor:     s.Depositor,
	}
}

// Filter returns the transactions for which keep returns true, preserving order
func Filter(txs []Transaction, keep func(*Transaction) bool) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for i := range txs {
		if keep(&txs[i]) {
			out = append(out, txs[i])
		}
	}
	return out
}

// WithStatus returns the transactions carrying status, preserving order
func WithStatus(txs []Transaction, status Status) []Transaction {
	return Filter(txs, func(t *Transaction) bool { return t.Status == status })
}
