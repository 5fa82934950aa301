package utils

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"flightscout-service/internal/domain/entity"
)

// FlightID derives the content-addressed id of a scraped flight
func FlightID(f entity.ScrapedFlight) string {
	return fmt.Sprintf("flight_%s_%s_%s_%d",
		f.FlightNumber,
		f.DepartureAirportIATA,
		f.ArrivalAirportIATA,
		f.DepartureDateTime)
}

// BundleID derives the id of a bundle from its leg sets. Leg order does not matter.
func BundleID(b entity.ScrapedBundle) string {
	return "bundle_" + sortedJoin(b.OutboundFlightUniqueIDs) + "_" + sortedJoin(b.InboundFlightUniqueIDs)
}

// BookingOptionID derives the id of a booking option. Price and currency are part of the identity.
func BookingOptionID(o entity.ScrapedBookingOption) string {
	return fmt.Sprintf("booking_%s_%s_%s_%s",
		o.Agency,
		o.TargetUniqueID,
		FormatPrice(o.Price),
		o.Currency)
}

// RoundPrice rounds a price to two decimal places
func RoundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}

// FormatPrice renders a price without trailing zeros, e.g. 150 or 99.5
func FormatPrice(p float64) string {
	return strconv.FormatFloat(RoundPrice(p), 'f', -1, 64)
}

func sortedJoin(ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return strings.Join(sorted, "_")
}

// UniqueIDError reports entities with missing or repeated unique ids
type UniqueIDError struct {
	// Missing holds positions like "flights[2]"
	Missing []string
	// Duplicates maps entity kind to every id seen more than once
	Duplicates map[string][]string
}

func (e *UniqueIDError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing unique id at "+strings.Join(e.Missing, ", "))
	}
	for _, kind := range []string{"flights", "bundles", "bookingOptions"} {
		if ids := e.Duplicates[kind]; len(ids) > 0 {
			parts = append(parts, fmt.Sprintf("duplicate %s ids: %s", kind, strings.Join(ids, ", ")))
		}
	}
	return "invalid unique ids: " + strings.Join(parts, "; ")
}

// ValidateUniqueIDs checks that every entity carries an id and that no id repeats
// within its kind. It reports every offender and changes nothing.
func ValidateUniqueIDs(result *entity.ScrapeResult) error {
	verr := &UniqueIDError{Duplicates: make(map[string][]string)}

	check := func(kind string, ids []string) {
		seen := make(map[string]int, len(ids))
		for i, id := range ids {
			if id == "" {
				verr.Missing = append(verr.Missing, fmt.Sprintf("%s[%d]", kind, i))
				continue
			}
			seen[id]++
			if seen[id] == 2 {
				verr.Duplicates[kind] = append(verr.Duplicates[kind], id)
			}
		}
	}

	flightIDs := make([]string, len(result.Flights))
	for i, f := range result.Flights {
		flightIDs[i] = f.UniqueID
	}
	bundleIDs := make([]string, len(result.Bundles))
	for i, b := range result.Bundles {
		bundleIDs[i] = b.UniqueID
	}
	optionIDs := make([]string, len(result.BookingOptions))
	for i, o := range result.BookingOptions {
		optionIDs[i] = o.UniqueID
	}

	check("flights", flightIDs)
	check("bundles", bundleIDs)
	check("bookingOptions", optionIDs)

	if len(verr.Missing) == 0 && len(verr.Duplicates) == 0 {
		return nil
	}
	return verr
}
