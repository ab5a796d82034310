package parsers

import (
	"encoding/csv"
	"io"
	"regexp"
	"strings"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

const (
	bankDefaultName       = "Bank Transaction"
	creditCardDefaultName = "Credit Card Payment"
)

var (
	bankZelleFrom   = regexp.MustCompile(`(?i)ZELLE FROM\s+(.+?)\s+ON`)
	zelleFrom       = regexp.MustCompile(`(?i)from\s+(.+)`)
	zelleOnClause   = regexp.MustCompile(`(?i)\s+on\s+.*`)
	zelleTrailNoise = regexp.MustCompile(`[\d\-\(\)]+.*$`)
)

type csvRow struct {
	line   int
	record []string
}

// ParseCSV parses a bank or processor CSV export. Rows that cannot be
// read are skipped and recorded in the result; only a file the CSV
// tokenizer rejects fails as a whole.
func (p *Parser) ParseCSV(content, filename string, uploadType models.UploadType) (*ParseResult, error) {
	log := p.logger.WithFields(logger.Fields{
		"file":        filename,
		"format":      "csv",
		"upload_type": uploadType,
	})

	content = strings.TrimPrefix(strings.TrimSpace(content), "\ufeff")
	firstLine, _, _ := strings.Cut(content, "\n")
	hasHeader := DetectHeader(strings.TrimSuffix(firstLine, "\r"), uploadType)

	rows, err := readRecords(content)
	if err != nil {
		log.WithError(err).Error("CSV tokenizer failed")
		return nil, errors.ParseError(errors.CodeParseFailed, "csv", filename, err)
	}

	var header []string
	if hasHeader && len(rows) > 0 {
		header = rows[0].record
		rows = rows[1:]
	}
	schema := ResolveSchema(uploadType, header)

	result := newResult(filename, "csv")
	result.Layout = schema.Layout.String()

	log.WithFields(logger.Fields{
		"layout": schema.Layout.String(),
		"rows":   len(rows),
	}).Debug("Resolved CSV layout")

	for _, row := range rows {
		var (
			tx     models.ParsedTransaction
			reason SkipReason
		)
		if schema.Layout == LayoutBankPositional {
			tx, reason = p.bankRow(row.record, schema)
		} else {
			tx, reason = p.processorRow(row.record, schema)
		}

		if reason != "" {
			log.WithFields(logger.Fields{"line": row.line, "reason": reason}).Debug("Skipping row")
			result.skip(row.line, reason)
			continue
		}
		tx.Source = filename
		result.keep(row.line, tx)
	}

	log.WithFields(logger.Fields{
		"transactions": len(result.Transactions),
		"skipped":      result.Skipped(),
	}).Debug("Parsed CSV file")

	return result, nil
}

func readRecords(content string) ([]csvRow, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows []csvRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, csvRow{line: line, record: record})
	}
}

// bankRow reads the positional bank layout: date, value, (unused), description
func (p *Parser) bankRow(record []string, schema HeaderSchema) (models.ParsedTransaction, SkipReason) {
	if len(record) < schema.MinColumns {
		return models.ParsedTransaction{}, ReasonTooFewColumns
	}

	dateField := field(record, schema.Date)
	valueField := field(record, schema.Value)
	description := field(record, schema.Description)

	if dateField == "" {
		return models.ParsedTransaction{}, ReasonMissingDate
	}
	if valueField == "" {
		return models.ParsedTransaction{}, ReasonMissingValue
	}

	date, ok := parseBankDate(dateField)
	if !ok {
		return models.ParsedTransaction{}, ReasonInvalidDate
	}
	value, ok := ParseAmount(valueField, `"`)
	if !ok {
		return models.ParsedTransaction{}, ReasonInvalidValue
	}
	if value.IsZero() {
		return models.ParsedTransaction{}, ReasonZeroValue
	}

	tx := models.ParsedTransaction{
		Date:  date,
		Name:  description,
		Value: value,
	}
	if tx.Name == "" {
		tx.Name = bankDefaultName
	}
	if strings.Contains(description, "ZELLE FROM") {
		if m := bankZelleFrom.FindStringSubmatch(description); m != nil {
			tx.Depositor = strings.TrimSpace(m[1])
		}
	}
	if strings.Contains(description, "ZELLE") {
		tx.PaymentMethod = models.PaymentMethodZelle
	}
	return tx, ""
}

// processorRow reads a payment processor row, by header or by position
func (p *Parser) processorRow(record []string, schema HeaderSchema) (models.ParsedTransaction, SkipReason) {
	if schema.CreditCard && strings.EqualFold(field(record, schema.Captured), "false") {
		return models.ParsedTransaction{}, ReasonNotCaptured
	}

	dateField := field(record, schema.Date)
	valueField := field(record, schema.Value)
	description := field(record, schema.Description)

	if dateField == "" {
		return models.ParsedTransaction{}, ReasonMissingDate
	}
	if valueField == "" {
		return models.ParsedTransaction{}, ReasonMissingValue
	}

	date, ok := parseProcessorDate(dateField, schema.CreditCard, p.config.CardTimestampOffset)
	if !ok {
		return models.ParsedTransaction{}, ReasonInvalidDate
	}
	value, ok := ParseAmount(valueField, ",$")
	if !ok {
		return models.ParsedTransaction{}, ReasonInvalidValue
	}
	if value.IsZero() {
		return models.ParsedTransaction{}, ReasonZeroValue
	}

	tx := models.ParsedTransaction{Date: date, Value: value}

	switch {
	case strings.Contains(strings.ToLower(description), "zelle"):
		tx.PaymentMethod = models.PaymentMethodZelle
		tx.Name = description
		if name := zelleSender(description); name != "" {
			tx.Name = name
			tx.Depositor = name
		}
	case description != "":
		tx.Name = description
	default:
		tx.Name = creditCardDefaultName
		tx.PaymentMethod = models.PaymentMethodCreditCard
	}
	return tx, ""
}

// zelleSender extracts the sender from "Zelle from NAME on 01/02 ..." style text
func zelleSender(description string) string {
	m := zelleFrom.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	name := strings.TrimSpace(m[1])
	name = zelleOnClause.ReplaceAllString(name, "")
	name = zelleTrailNoise.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}
