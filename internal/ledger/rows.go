package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/internal/parsers"
)

// Column positions in the ledger sheet
const (
	colDate          = 0
	colValue         = 1
	colCar           = 3
	colName          = 4
	colDepositor     = 5
	colPaymentMethod = 6
)

// UnknownClient names ledger rows with an empty client column
const UnknownClient = "Unknown"

// SkippedRow records a data row that produced no transaction
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// MapResult is the outcome of mapping sheet rows
type MapResult struct {
	Transactions []models.SheetTransaction `json:"transactions"`
	Skipped      []SkippedRow              `json:"skipped,omitempty"`
	DataRows     int                       `json:"dataRows"`
}

// MapRows converts raw sheet values into ledger transactions. The first row
// is the header. SheetOrder is the data-row index, counting skipped rows.
func MapRows(rows [][]interface{}) *MapResult {
	result := &MapResult{Transactions: make([]models.SheetTransaction, 0)}
	if len(rows) <= 1 {
		return result
	}

	data := rows[1:]
	result.DataRows = len(data)

	for i, row := range data {
		rawDate := cell(row, colDate)
		rawValue := cell(row, colValue)
		if rawDate == "" || rawValue == "" {
			result.Skipped = append(result.Skipped, SkippedRow{Row: i, Reason: "missing date or value"})
			continue
		}

		date, ok := parseSheetDate(rawDate)
		if !ok {
			result.Skipped = append(result.Skipped, SkippedRow{Row: i, Reason: "invalid date"})
			continue
		}

		value, ok := parsers.ParseAmount(rawValue, ",$")
		if !ok {
			result.Skipped = append(result.Skipped, SkippedRow{Row: i, Reason: "non-numeric value"})
			continue
		}

		name := cell(row, colName)
		if name == "" {
			name = UnknownClient
		}

		result.Transactions = append(result.Transactions, models.SheetTransaction{
			Date:          date,
			Name:          name,
			Car:           cell(row, colCar),
			Depositor:     cell(row, colDepositor),
			Value:         value,
			PaymentMethod: cell(row, colPaymentMethod),
			SheetOrder:    i,
		})
	}

	return result
}

func parseSheetDate(raw string) (time.Time, bool) {
	if strings.Contains(raw, "/") {
		return parsers.ParseSlashDate(raw)
	}
	d, err := models.ParseDate(raw)
	return d, err == nil
}

// cell returns the trimmed text of row[idx], or "" when absent. Numeric
// zero and false count as empty.
func cell(row []interface{}, idx int) string {
	if idx >= len(row) || row[idx] == nil {
		return ""
	}

	switch v := row[idx].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if !v {
			return ""
		}
		return "true"
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
