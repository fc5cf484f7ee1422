package classification

import (
	"regexp"
	"strings"
)

// Deterministic patterns for common business document values. These run before
// the model request so the values survive degraded classifications.
var (
	ibanPattern = regexp.MustCompile(`\b[A-Z]{2}\d{2}(?:\s?[A-Z0-9]{4}){2,7}(?:\s?[A-Z0-9]{1,4})?\b`)

	// Covers "Invoice No: X", "Rechnungsnummer X", and similar compounds; the
	// captured value must contain a digit.
	invoiceNumberPattern = regexp.MustCompile(`(?i)\b(?:invoice|rechnung|inv)[a-z]*(?:\s+(?:no|nr|number|nummer)\.?)?\s*[:#]?\s*([A-Z]{0,8}[-/]?\d[A-Z0-9/-]{1,23})`)

	// Matches 2024-01-31, 31.01.2024, and 31/01/2024 style dates.
	datePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}\.\d{1,2}\.\d{4}|\d{1,2}/\d{1,2}/\d{4})\b`)

	amountPattern = regexp.MustCompile(`(?:€|EUR|\$|USD|£|GBP)\s?(\d{1,3}(?:[.,]\d{3})*[.,]\d{2})|(\d{1,3}(?:[.,]\d{3})*[.,]\d{2})\s?(?:€|EUR|\$|USD|£|GBP)`)
)

// ExtractFields pulls structured values out of document text with regular
// expressions: IBAN, invoice number, date, and monetary amount. The first
// match per field wins.
func ExtractFields(text string) map[string]string {
	fields := make(map[string]string)
	if strings.TrimSpace(text) == "" {
		return fields
	}

	if match := ibanPattern.FindString(text); match != "" {
		fields["iban"] = strings.Join(strings.Fields(match), "")
	}
	if match := invoiceNumberPattern.FindStringSubmatch(text); len(match) > 1 {
		fields["invoice_number"] = match[1]
	}
	if match := datePattern.FindString(text); match != "" {
		fields["date"] = match
	}
	if match := amountPattern.FindStringSubmatch(text); match != nil {
		value := match[1]
		if value == "" {
			value = match[2]
		}
		if value != "" {
			fields["amount"] = value
		}
	}
	return fields
}
