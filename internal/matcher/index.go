package matcher

import (
	"sort"
	"time"

	"reconciliation-dashboard/internal/models"
)

// ledgerIndex buckets ledger positions by calendar day so each statement
// row only scores rows near its date
type ledgerIndex struct {
	// byDate maps date strings (YYYY-MM-DD) to ledger positions in input order
	byDate map[string][]int
}

func newLedgerIndex(ledger []models.Transaction) *ledgerIndex {
	index := &ledgerIndex{byDate: make(map[string][]int)}
	for i := range ledger {
		key := dateKey(ledger[i].Date)
		index.byDate[key] = append(index.byDate[key], i)
	}
	return index
}

// candidates returns the ledger positions dated within toleranceDays of date
// in ascending order
func (li *ledgerIndex) candidates(date time.Time, toleranceDays int) []int {
	var result []int

	day := models.NormalizeDate(date)
	for offset := -toleranceDays; offset <= toleranceDays; offset++ {
		result = append(result, li.byDate[dateKey(day.AddDate(0, 0, offset))]...)
	}

	sort.Ints(result)
	return result
}

func dateKey(t time.Time) string {
	return models.NormalizeDate(t).Format(models.DateLayout)
}
