package parsers

import (
	"regexp"
	"strings"

	"reconciliation-dashboard/internal/models"
	"reconciliation-dashboard/pkg/logger"
)

var (
	ofxBlock  = regexp.MustCompile(`<STMTTRN>(.*?)</STMTTRN>`)
	ofxDate   = regexp.MustCompile(`(?i)<DTPOSTED>(\d{8})`)
	ofxAmount = regexp.MustCompile(`(?i)<TRNAMT>([-\d.]+)`)
	ofxMemo   = regexp.MustCompile(`(?i)<MEMO>([^<]*)`)
	ofxName   = regexp.MustCompile(`(?i)<NAME>([^<]*)`)
)

const ofxDefaultName = "Transaction"

// ParseOFX scans an OFX/SGML statement for STMTTRN blocks. Input that
// contains no blocks yields an empty result, never an error.
func (p *Parser) ParseOFX(content, filename string) *ParseResult {
	log := p.logger.WithFields(logger.Fields{"file": filename, "format": "ofx"})
	result := newResult(filename, "ofx")

	flat := strings.NewReplacer("\r", "", "\n", "").Replace(content)

	for i, block := range ofxBlock.FindAllStringSubmatch(flat, -1) {
		ordinal := i + 1
		trn := block[1]

		dateMatch := ofxDate.FindStringSubmatch(trn)
		if dateMatch == nil {
			log.WithField("block", ordinal).Debug("Skipping block without DTPOSTED")
			result.skip(ordinal, ReasonMissingDate)
			continue
		}
		amountMatch := ofxAmount.FindStringSubmatch(trn)
		if amountMatch == nil {
			log.WithField("block", ordinal).Debug("Skipping block without TRNAMT")
			result.skip(ordinal, ReasonMissingValue)
			continue
		}

		date, ok := parseProcessorDate(dateMatch[1], false, 0)
		if !ok {
			result.skip(ordinal, ReasonInvalidDate)
			continue
		}
		value, ok := ParseAmount(amountMatch[1], "")
		if !ok {
			result.skip(ordinal, ReasonInvalidValue)
			continue
		}

		result.keep(ordinal, models.ParsedTransaction{
			Date:   date,
			Name:   ofxDescription(trn),
			Value:  value,
			Source: filename,
		})
	}

	log.WithFields(logger.Fields{
		"transactions": len(result.Transactions),
		"skipped":      result.Skipped(),
	}).Debug("Parsed OFX file")

	return result
}

// ofxDescription prefers NAME, then MEMO, then a fixed label
func ofxDescription(trn string) string {
	for _, re := range []*regexp.Regexp{ofxName, ofxMemo} {
		if m := re.FindStringSubmatch(trn); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return ofxDefaultName
}
