package utils

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		text             string
		defaultCurrency  string
		expectedAmount   float64
		expectedCurrency string
	}{
		{"150 €", "", 150, "EUR"},
		{"€1,234.50", "", 1234.5, "EUR"},
		{"1.234,50 EUR", "", 1234.5, "EUR"},
		{"US$ 99", "", 99, "USD"},
		{"£80.99", "", 80.99, "GBP"},
		{"89", "GBP", 89, "GBP"},
		{"1 299 zł", "", 1299, "PLN"},
	}

	for _, tt := range tests {
		amount, currency, err := ParsePrice(tt.text, tt.defaultCurrency)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.text, err)
			continue
		}
		if amount != tt.expectedAmount {
			t.Errorf("%q: expected amount %v, got %v", tt.text, tt.expectedAmount, amount)
		}
		if currency != tt.expectedCurrency {
			t.Errorf("%q: expected currency %s, got %s", tt.text, tt.expectedCurrency, currency)
		}
	}
}

func TestParsePriceErrors(t *testing.T) {
	if _, _, err := ParsePrice("sold out", "EUR"); err == nil {
		t.Error("Expected error for missing amount")
	}
	if _, _, err := ParsePrice("150", ""); err == nil {
		t.Error("Expected error for missing currency")
	}
}

func TestBuildSearchID(t *testing.T) {
	if id := BuildSearchID("ber", "DUB", "2025-10-10", ""); id != "search_BER_DUB_2025-10-10_oneway" {
		t.Errorf("Unexpected one-way search id '%s'", id)
	}
	if id := BuildSearchID("BER", "DUB", "2025-10-10", "2025-10-17"); id != "search_BER_DUB_2025-10-10_2025-10-17_roundtrip" {
		t.Errorf("Unexpected round-trip search id '%s'", id)
	}
}
