package scraper

import (
	"errors"
	"strings"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/pkg/utils"
)

// Leg is one flight segment as read from source markup
type Leg struct {
	FlightNumber string
	Origin       string
	Destination  string
	// DepartureLocal and ArrivalLocal are wall clock epoch ms at origin and destination
	DepartureLocal int64
	ArrivalLocal   int64
	// DurationMinutes is the stated duration, 0 when the source gives none
	DurationMinutes int
}

// Quote is one agency price for an itinerary
type Quote struct {
	Agency   string
	Price    float64
	Currency string
	Link     string
}

// Accumulator collects itineraries into one ScrapeResult, collapsing repeated
// flights, bundles and quotes by unique id.
type Accumulator struct {
	flights      []entity.ScrapedFlight
	flightIndex  map[string]struct{}
	bundles      []entity.ScrapedBundle
	bundleIndex  map[string]struct{}
	options      []entity.ScrapedBookingOption
	optionIndex  map[string]int
	trailingFrag bool
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{
		flightIndex: make(map[string]struct{}),
		bundleIndex: make(map[string]struct{}),
		optionIndex: make(map[string]int),
	}
}

// AddItinerary records the legs as flights, the itinerary as a bundle and
// every quote as a booking option. It returns the bundle's unique id.
func (a *Accumulator) AddItinerary(outbound, inbound []Leg, quotes []Quote, extractedAt int64) (string, error) {
	if len(outbound) == 0 {
		return "", errors.New("itinerary has no outbound legs")
	}

	bundle := entity.ScrapedBundle{
		OutboundFlightUniqueIDs: a.addLegs(outbound),
		InboundFlightUniqueIDs:  a.addLegs(inbound),
	}
	bundle.UniqueID = utils.BundleID(bundle)
	if _, ok := a.bundleIndex[bundle.UniqueID]; !ok {
		a.bundleIndex[bundle.UniqueID] = struct{}{}
		a.bundles = append(a.bundles, bundle)
	}

	for _, q := range quotes {
		opt := entity.ScrapedBookingOption{
			TargetUniqueID: bundle.UniqueID,
			Agency:         NormalizeAgency(q.Agency),
			Price:          utils.RoundPrice(q.Price),
			Currency:       strings.ToUpper(q.Currency),
			LinkToBook:     q.Link,
			ExtractedAt:    extractedAt,
		}
		opt.UniqueID = utils.BookingOptionID(opt)

		// the latest sighting of a quote wins
		if i, ok := a.optionIndex[opt.UniqueID]; ok {
			a.options[i] = opt
			continue
		}
		a.optionIndex[opt.UniqueID] = len(a.options)
		a.options = append(a.options, opt)
	}
	return bundle.UniqueID, nil
}

func (a *Accumulator) addLegs(legs []Leg) []string {
	ids := make([]string, 0, len(legs))
	for i, leg := range legs {
		flight := entity.ScrapedFlight{
			FlightNumber:         strings.ToUpper(strings.ReplaceAll(leg.FlightNumber, " ", "")),
			DepartureAirportIATA: strings.ToUpper(leg.Origin),
			ArrivalAirportIATA:   strings.ToUpper(leg.Destination),
			DepartureDateTime:    leg.DepartureLocal,
			ArrivalDateTime:      leg.ArrivalLocal,
		}
		if leg.DurationMinutes > 0 {
			flight.DurationMinutes = leg.DurationMinutes
		}
		if i > 0 {
			connection := utils.SpanMinutes(legs[i-1].ArrivalLocal, leg.DepartureLocal)
			flight.ConnectionDurationFromPreviousFlight = &connection
		}
		flight.UniqueID = utils.FlightID(flight)

		if _, ok := a.flightIndex[flight.UniqueID]; !ok {
			a.flightIndex[flight.UniqueID] = struct{}{}
			a.flights = append(a.flights, flight)
		}
		ids = append(ids, flight.UniqueID)
	}
	return ids
}

// MarkTrailingFragment flags that results arrived alongside the terminal signal
func (a *Accumulator) MarkTrailingFragment() {
	a.trailingFrag = true
}

// BundleCount returns the number of distinct bundles collected so far
func (a *Accumulator) BundleCount() int {
	return len(a.bundles)
}

// Result returns the collected entities
func (a *Accumulator) Result() *entity.ScrapeResult {
	return &entity.ScrapeResult{
		Flights:          append([]entity.ScrapedFlight{}, a.flights...),
		Bundles:          append([]entity.ScrapedBundle{}, a.bundles...),
		BookingOptions:   append([]entity.ScrapedBookingOption{}, a.options...),
		TrailingFragment: a.trailingFrag,
	}
}

// NormalizeAgency lowercases an agency name and joins words with '-'
func NormalizeAgency(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
