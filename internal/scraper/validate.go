package scraper

import (
	"fmt"
	"regexp"
	"time"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/pkg/utils"
)

var iataRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidationError reports an invalid search parameter
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateParams checks search parameters before any network call
func ValidateParams(p entity.FlightSearchParams) error {
	if !iataRegex.MatchString(p.DepartureAirport) {
		return &ValidationError{Field: "departureAirport", Reason: fmt.Sprintf("%q is not a 3-letter IATA code", p.DepartureAirport)}
	}
	if !iataRegex.MatchString(p.ArrivalAirport) {
		return &ValidationError{Field: "arrivalAirport", Reason: fmt.Sprintf("%q is not a 3-letter IATA code", p.ArrivalAirport)}
	}
	if p.DepartureAirport == p.ArrivalAirport {
		return &ValidationError{Field: "arrivalAirport", Reason: "must differ from departureAirport"}
	}

	if p.DepartureDate == "" {
		return &ValidationError{Field: "departureDate", Reason: "is required"}
	}
	departure, err := time.Parse(utils.DateLayout, p.DepartureDate)
	if err != nil {
		return &ValidationError{Field: "departureDate", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", p.DepartureDate)}
	}

	switch {
	case p.IsRoundTrip && p.ReturnDate == "":
		return &ValidationError{Field: "returnDate", Reason: "is required for a round trip"}
	case !p.IsRoundTrip && p.ReturnDate != "":
		return &ValidationError{Field: "returnDate", Reason: "must be empty for a one-way trip"}
	case p.IsRoundTrip:
		ret, err := time.Parse(utils.DateLayout, p.ReturnDate)
		if err != nil {
			return &ValidationError{Field: "returnDate", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", p.ReturnDate)}
		}
		if ret.Before(departure) {
			return &ValidationError{Field: "returnDate", Reason: "is before departureDate"}
		}
	}
	return nil
}
