package utils

import (
	"strings"

	"flightscout-service/internal/domain/entity"
)

// BuildSearchID derives the bundle lookup key from route, dates and trip type
func BuildSearchID(from, to, departureDate, returnDate string) string {
	parts := []string{"search", strings.ToUpper(from), strings.ToUpper(to), departureDate}
	if returnDate != "" {
		parts = append(parts, returnDate, "roundtrip")
	} else {
		parts = append(parts, "oneway")
	}
	return strings.Join(parts, "_")
}

// SearchIDForParams derives the search id a request's bundles are stored under
func SearchIDForParams(p entity.FlightSearchParams) string {
	returnDate := ""
	if p.IsRoundTrip {
		returnDate = p.ReturnDate
	}
	return BuildSearchID(p.DepartureAirport, p.ArrivalAirport, p.DepartureDate, returnDate)
}
