package service

import (
	"regexp"
	"strings"

	"receipto/internal/models"

	"go.uber.org/zap"
)

// extractRule recovers one semantic field from raw OCR text. Rules are
// applied in order and the first match wins per field; rules never combine
// partial matches across lines. Each rule is independently testable with a
// literal text fixture.
type extractRule struct {
	field   string
	pattern *regexp.Regexp
	clean   func(string) string
}

const (
	fieldName          = "name"
	fieldBillType      = "billType"
	fieldDate          = "date"
	fieldVendor        = "vendor"
	fieldAmount        = "amount"
	fieldPaymentMethod = "paymentMethod"
)

// ruleTableVersion identifies the active rule set; bump it when rules
// change so stored metadata can be traced back to the rules that made it.
const ruleTableVersion = 3

var extractRules = []extractRule{
	{
		// Anchored at line start so a "Business Name:" line feeds the
		// vendor rule only, never this one.
		field:   fieldName,
		pattern: regexp.MustCompile(`(?im)^name:?\s*([A-Za-z][A-Za-z ]+)`),
	},
	{
		field:   fieldBillType,
		pattern: regexp.MustCompile(`(?i)\b(receipt|invoice|bill|payment)\b`),
	},
	{
		field:   fieldDate,
		pattern: regexp.MustCompile(`(?i)date:?\s*([0-9]{1,4}[./-][0-9]{1,2}[./-][0-9]{2,4})`),
	},
	{
		field:   fieldDate,
		pattern: regexp.MustCompile(`\b([0-9]{1,2}[/-][0-9]{1,2}[/-][0-9]{4})\b`),
	},
	{
		field:   fieldVendor,
		pattern: regexp.MustCompile(`(?i)(?:vendor|business\s*name|merchant|store):?\s*([A-Za-z0-9&'. ]+)`),
	},
	{
		field:   fieldAmount,
		pattern: regexp.MustCompile(`(?i)(?:total\s*amount|grand\s*total|amount\s*due|amount|total):?\s*[$€£]?\s*([0-9][0-9.,]*)`),
		clean:   cleanAmount,
	},
	{
		field:   fieldPaymentMethod,
		pattern: regexp.MustCompile(`(?i)(?:payment\s*method|paid\s*(?:by|via)):?\s*([A-Za-z ]+)`),
	},
	{
		field:   fieldPaymentMethod,
		pattern: regexp.MustCompile(`(?i)\b(cash|visa|mastercard|credit card|debit card|bank transfer|mobile money|cheque|check card)\b`),
	},
}

// Extractor applies the rule table to recognized text. It never fails;
// fields with no matching rule stay nil.
type Extractor struct {
	rules  []extractRule
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{
		rules:  extractRules,
		logger: logger,
	}
}

func (e *Extractor) Extract(text string) models.ExtractedFields {
	var fields models.ExtractedFields
	matched := 0

	for _, rule := range e.rules {
		if target := fieldSlot(&fields, rule.field); *target != nil {
			continue
		}
		m := rule.pattern.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		value := strings.TrimSpace(m[1])
		if rule.clean != nil {
			value = rule.clean(value)
		}
		if value == "" {
			continue
		}
		value = sanitizeUTF8(value)
		*fieldSlot(&fields, rule.field) = &value
		matched++
	}

	e.logger.Debug("field extraction completed",
		zap.Int("rule_table_version", ruleTableVersion),
		zap.Int("fields_matched", matched),
	)

	return fields
}

func fieldSlot(f *models.ExtractedFields, field string) **string {
	switch field {
	case fieldName:
		return &f.Name
	case fieldBillType:
		return &f.BillType
	case fieldDate:
		return &f.Date
	case fieldVendor:
		return &f.Vendor
	case fieldAmount:
		return &f.Amount
	case fieldPaymentMethod:
		return &f.PaymentMethod
	}
	return new(*string)
}

// cleanAmount strips currency symbols and thousands separators, leaving a
// plain decimal string ("$1,234.56" -> "1234.56"). The value is not parsed
// to a number here; locale handling belongs to the consumer.
func cleanAmount(raw string) string {
	s := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			return r
		}
		return -1
	}, raw)
	s = strings.Trim(s, ".,")
	if s == "" {
		return s
	}

	sep := strings.LastIndexAny(s, ".,")
	if sep == -1 {
		return s
	}

	intPart := digitsOnly(s[:sep])
	frac := s[sep+1:]
	if len(frac) == 3 {
		// Groups of three are thousands separators ("53.000" -> "53000").
		return intPart + frac
	}
	return intPart + "." + frac
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
