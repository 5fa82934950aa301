package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	amountRegex   = regexp.MustCompile(`\d[\d.,\s\x{00A0}]*`)
	currencyRegex = regexp.MustCompile(`\b([A-Z]{3})\b`)
)

// currency symbols, longest first so "US$" wins over "$"
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"US$", "USD"},
	{"zł", "PLN"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"$", "USD"},
}

// ParsePrice extracts an amount and ISO currency from display text such as
// "150 €", "€1,234.50" or "1.234,50 EUR". defaultCurrency is used when the
// text carries no currency marker.
func ParsePrice(text, defaultCurrency string) (float64, string, error) {
	text = strings.TrimSpace(text)

	currency := ""
	if m := currencyRegex.FindStringSubmatch(text); m != nil {
		currency = m[1]
	} else {
		for _, cs := range currencySymbols {
			if strings.Contains(text, cs.symbol) {
				currency = cs.code
				break
			}
		}
	}
	if currency == "" {
		currency = defaultCurrency
	}
	if currency == "" {
		return 0, "", fmt.Errorf("no currency in price %q", text)
	}

	raw := amountRegex.FindString(text)
	if raw == "" {
		return 0, "", fmt.Errorf("no amount in price %q", text)
	}
	amount, err := strconv.ParseFloat(normalizeAmount(raw), 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid amount in price %q: %w", text, err)
	}
	return RoundPrice(amount), currency, nil
}

// normalizeAmount turns "1.234,50" or "1,234.50" into "1234.50"
func normalizeAmount(raw string) string {
	s := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' {
			return -1
		}
		return r
	}, strings.TrimRight(raw, ".,"))

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		// a single comma followed by two digits is a decimal separator
		if strings.Count(s, ",") == 1 && len(s)-lastComma == 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot == 4 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}
