package parsers

import (
	"regexp"
	"strings"

	"reconciliation-dashboard/internal/models"
)

// Layout is the tag of a HeaderSchema
type Layout int

const (
	// LayoutBankPositional is the bank export: date, value, (unused), description
	LayoutBankPositional Layout = iota
	// LayoutProcessorPositional is a processor export without a header row
	LayoutProcessorPositional
	// LayoutProcessorHeader is a processor export resolved through its header row
	LayoutProcessorHeader
)

func (l Layout) String() string {
	switch l {
	case LayoutBankPositional:
		return "bank-positional"
	case LayoutProcessorPositional:
		return "processor-positional"
	case LayoutProcessorHeader:
		return "processor-header"
	default:
		return "unknown"
	}
}

var headerPattern = regexp.MustCompile(`(?i)date|amount|value|description|name|created|captured`)

const (
	positionalDate        = 0
	positionalValue       = 1
	positionalDescription = 3
	positionalMinColumns  = 4
)

// HeaderSchema is the resolved column layout of one CSV file. Each field
// holds candidate column indexes in alias priority order; a row takes the
// first non-empty cell among them.
type HeaderSchema struct {
	Layout       Layout
	CreditCard   bool
	Date         []int
	Value        []int
	Description  []int
	Captured     []int
	MinColumns   int
	HasHeaderRow bool
}

// DetectHeader reports whether the first line of a processor export looks
// like a header row. Bank exports never carry one.
func DetectHeader(firstLine string, uploadType models.UploadType) bool {
	if uploadType != models.UploadTypeStripe {
		return false
	}
	return headerPattern.MatchString(firstLine)
}

// ResolveSchema builds the schema for a file given its upload type and, for
// header layouts, its header row.
func ResolveSchema(uploadType models.UploadType, header []string) HeaderSchema {
	creditCard := uploadType.IsCreditCard()

	if header == nil {
		schema := HeaderSchema{
			Layout:      LayoutBankPositional,
			CreditCard:  creditCard,
			Date:        []int{positionalDate},
			Value:       []int{positionalValue},
			Description: []int{positionalDescription},
			MinColumns:  positionalMinColumns,
		}
		if creditCard {
			schema.Layout = LayoutProcessorPositional
			schema.MinColumns = 0
		}
		return schema
	}

	index := make(map[string][]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		index[key] = append(index[key], i)
	}
	lookup := func(aliases []string) []int {
		var cols []int
		seen := make(map[int]bool)
		for _, alias := range aliases {
			for _, i := range index[strings.ToLower(alias)] {
				if !seen[i] {
					seen[i] = true
					cols = append(cols, i)
				}
			}
		}
		return cols
	}

	schema := HeaderSchema{
		Layout:       LayoutProcessorHeader,
		CreditCard:   creditCard,
		Date:         lookup(ProcessorHeaderAliases.Date),
		Value:        lookup(ProcessorHeaderAliases.Value),
		Captured:     lookup(ProcessorHeaderAliases.Captured),
		HasHeaderRow: true,
	}
	// card exports carry no usable identity
	if !creditCard {
		schema.Description = lookup(ProcessorHeaderAliases.Description)
	}
	return schema
}

// field returns the first non-empty trimmed cell among cols
func field(record []string, cols []int) string {
	for _, i := range cols {
		if i < len(record) {
			if v := strings.TrimSpace(record[i]); v != "" {
				return v
			}
		}
	}
	return ""
}
