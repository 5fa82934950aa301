package scraper

import (
	"errors"
	"testing"

	"flightscout-service/internal/domain/entity"
)

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(p *entity.FlightSearchParams)
		field   string
		wantErr bool
	}{
		{"valid round trip", func(p *entity.FlightSearchParams) {}, "", false},
		{"valid one way", func(p *entity.FlightSearchParams) { p.IsRoundTrip = false; p.ReturnDate = "" }, "", false},
		{"lowercase iata", func(p *entity.FlightSearchParams) { p.DepartureAirport = "ber" }, "departureAirport", true},
		{"four letter iata", func(p *entity.FlightSearchParams) { p.ArrivalAirport = "DUBL" }, "arrivalAirport", true},
		{"same airports", func(p *entity.FlightSearchParams) { p.ArrivalAirport = "BER" }, "arrivalAirport", true},
		{"missing departure date", func(p *entity.FlightSearchParams) { p.DepartureDate = "" }, "departureDate", true},
		{"bad departure date", func(p *entity.FlightSearchParams) { p.DepartureDate = "10/10/2025" }, "departureDate", true},
		{"round trip without return", func(p *entity.FlightSearchParams) { p.ReturnDate = "" }, "returnDate", true},
		{"one way with return", func(p *entity.FlightSearchParams) { p.IsRoundTrip = false }, "returnDate", true},
		{"return before departure", func(p *entity.FlightSearchParams) { p.ReturnDate = "2025-10-01" }, "returnDate", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.modify(&p)
			err := ValidateParams(p)

			if !tt.wantErr {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}
