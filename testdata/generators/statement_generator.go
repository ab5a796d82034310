package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StatementGenerator generates a ledger export and the statement files
// that should reconcile against it
type StatementGenerator struct {
	Count      int
	StartDate  time.Time
	EndDate    time.Time
	MinAmount  decimal.Decimal
	MaxAmount  decimal.Decimal
	MatchRatio float64 // Ratio of ledger rows that get a statement counterpart
	CardRatio  float64 // Ratio of ledger rows paid by credit card
	Seed       int64

	rng *rand.Rand
}

// LedgerRow is one row of the ledger sheet
type LedgerRow struct {
	Date          time.Time
	Value         decimal.Decimal
	Car           string
	Name          string
	Depositor     string
	PaymentMethod string
}

var (
	firstNames = []string{"John", "Maria", "Ana", "Carlos", "Lucas", "Julia", "Pedro", "Fernanda"}
	lastNames  = []string{"Smith", "Silva", "Souza", "Oliveira", "Costa", "Pereira", "Lima"}
	cars       = []string{"Civic", "Corolla", "Model 3", "Golf", "Onix", ""}
)

func main() {
	var (
		outputDir  = flag.String("output-dir", "generated", "Output directory for generated files")
		count      = flag.Int("count", 100, "Number of ledger rows to generate")
		startDate  = flag.String("start-date", "2024-01-01", "Start date (YYYY-MM-DD)")
		endDate    = flag.String("end-date", "2024-03-31", "End date (YYYY-MM-DD)")
		minAmount  = flag.Float64("min-amount", 50.00, "Minimum amount")
		maxAmount  = flag.Float64("max-amount", 2000.00, "Maximum amount")
		matchRatio = flag.Float64("match-ratio", 0.8, "Ratio of ledger rows with a statement counterpart (0.0-1.0)")
		cardRatio  = flag.Float64("card-ratio", 0.3, "Ratio of ledger rows paid by credit card (0.0-1.0)")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
	)
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatalf("Invalid end date: %v", err)
	}
	if *matchRatio < 0 || *matchRatio > 1 || *cardRatio < 0 || *cardRatio > 1 {
		log.Fatal("ratios must be between 0.0 and 1.0")
	}

	generator := &StatementGenerator{
		Count:      *count,
		StartDate:  start,
		EndDate:    end,
		MinAmount:  decimal.NewFromFloat(*minAmount),
		MaxAmount:  decimal.NewFromFloat(*maxAmount),
		MatchRatio: *matchRatio,
		CardRatio:  *cardRatio,
		Seed:       *seed,
		rng:        rand.New(rand.NewSource(*seed)),
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	ledger := generator.GenerateLedger()
	bank, stripe := generator.GenerateStatements(ledger)

	files := []struct {
		name  string
		write func(string) error
	}{
		{"ledger.csv", func(p string) error { return writeLedger(p, ledger) }},
		{"bank.csv", func(p string) error { return writeBank(p, bank) }},
		{"stripe.csv", func(p string) error { return writeStripe(p, stripe) }},
	}
	for _, f := range files {
		path := filepath.Join(*outputDir, f.name)
		if err := f.write(path); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
	}

	fmt.Printf("Generated %d ledger rows, %d bank rows, %d stripe rows in %s\n",
		len(ledger), len(bank), len(stripe), *outputDir)
	fmt.Printf("Date range: %s to %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Printf("Match ratio: %.1f%%\n", *matchRatio*100)
	fmt.Printf("Seed used: %d\n", *seed)
}

// GenerateLedger creates random ledger rows in date order
func (sg *StatementGenerator) GenerateLedger() []LedgerRow {
	rows := make([]LedgerRow, 0, sg.Count)
	days := int(sg.EndDate.Sub(sg.StartDate).Hours()/24) + 1

	for i := 0; i < sg.Count; i++ {
		name := firstNames[sg.rng.Intn(len(firstNames))] + " " + lastNames[sg.rng.Intn(len(lastNames))]
		row := LedgerRow{
			Date:          sg.StartDate.AddDate(0, 0, i*days/max(sg.Count, 1)),
			Value:         sg.randomAmount(),
			Car:           cars[sg.rng.Intn(len(cars))],
			Name:          name,
			Depositor:     name,
			PaymentMethod: "Zelle",
		}
		if sg.rng.Float64() < sg.CardRatio {
			row.PaymentMethod = "Credit Card"
			row.Depositor = ""
		} else if sg.rng.Float64() < 0.2 {
			// a relative pays on the client's behalf
			row.Depositor = firstNames[sg.rng.Intn(len(firstNames))] + " " + lastNames[sg.rng.Intn(len(lastNames))]
		}
		rows = append(rows, row)
	}
	return rows
}

// StatementRow is one bank or processor row
type StatementRow struct {
	Date        time.Time
	Value       decimal.Decimal
	Description string
}

// GenerateStatements produces the bank and stripe rows for a share of the
// ledger, shifting dates by up to two days
func (sg *StatementGenerator) GenerateStatements(ledger []LedgerRow) (bank, stripe []StatementRow) {
	for _, row := range ledger {
		if sg.rng.Float64() >= sg.MatchRatio {
			continue
		}

		stmt := StatementRow{
			Date:  row.Date.AddDate(0, 0, sg.rng.Intn(3)),
			Value: row.Value,
		}
		if row.PaymentMethod == "Credit Card" {
			stmt.Description = "Payment from " + row.Name
			stripe = append(stripe, stmt)
			continue
		}

		stmt.Description = fmt.Sprintf("ZELLE FROM %s ON %s REF # %s",
			strings.ToUpper(row.Depositor), stmt.Date.Format("01/02"), sg.reference())
		bank = append(bank, stmt)
	}
	return bank, stripe
}

func (sg *StatementGenerator) randomAmount() decimal.Decimal {
	span := sg.MaxAmount.Sub(sg.MinAmount)
	return sg.MinAmount.Add(span.Mul(decimal.NewFromFloat(sg.rng.Float64()))).Round(2)
}

func (sg *StatementGenerator) reference() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ0123456789"
	b := make([]byte, 10)
	for i := range b {
		b[i] = alphabet[sg.rng.Intn(len(alphabet))]
	}
	return string(b)
}

// writeLedger writes the sheet layout: date, value, (blank), car, name,
// depositor, payment method
func writeLedger(path string, rows []LedgerRow) error {
	records := [][]string{{"Date", "Value", "", "Car", "Client", "Depositor", "Payment Method"}}
	for _, r := range rows {
		records = append(records, []string{
			r.Date.Format("01/02/2006"), r.Value.StringFixed(2), "", r.Car, r.Name, r.Depositor, r.PaymentMethod,
		})
	}
	return writeCSV(path, records)
}

// writeBank writes the headerless bank export: date, value, *, description
func writeBank(path string, rows []StatementRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{r.Date.Format("01/02/2006"), r.Value.StringFixed(2), "*", r.Description})
	}
	return writeCSV(path, records)
}

// writeStripe writes the processor export with UTC timestamps just after
// midnight, which the card offset pulls back to the statement day
func writeStripe(path string, rows []StatementRow) error {
	records := [][]string{{"id", "Description", "Created date (UTC)", "Amount", "Captured"}}
	for i, r := range rows {
		created := r.Date.AddDate(0, 0, 1).Add(2 * time.Hour)
		records = append(records, []string{
			fmt.Sprintf("ch_%06d", i), r.Description, created.Format("2006-01-02 15:04:05"), r.Value.StringFixed(2), "true",
		})
	}
	return writeCSV(path, records)
}

func writeCSV(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	return writer.Error()
}
