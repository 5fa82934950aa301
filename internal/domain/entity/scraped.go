package entity

// ScrapedFlight is one directional flight leg as extracted from a source.
//
// DepartureDateTime is the departure airport's wall clock and ArrivalDateTime
// the arrival airport's wall clock, both encoded as epoch milliseconds. The
// upsert pipeline shifts each by its own airport offset to get true UTC.
// DurationMinutes is set only when the source states the duration, and then
// takes precedence over the arrival clock.
type ScrapedFlight struct {
	UniqueID                             string `json:"uniqueId"`
	FlightNumber                         string `json:"flightNumber"`
	DepartureAirportIATA                 string `json:"departureAirportIataCode"`
	ArrivalAirportIATA                   string `json:"arrivalAirportIataCode"`
	DepartureDateTime                    int64  `json:"departureDateTime"`
	ArrivalDateTime                      int64  `json:"arrivalDateTime"`
	DurationMinutes                      int    `json:"durationMinutes,omitempty"`
	ConnectionDurationFromPreviousFlight *int   `json:"connectionDurationFromPreviousFlight,omitempty"`
}

// ScrapedBundle is one itinerary made of outbound and optional inbound legs
type ScrapedBundle struct {
	UniqueID                string   `json:"uniqueId"`
	OutboundFlightUniqueIDs []string `json:"outboundFlightUniqueIds"`
	InboundFlightUniqueIDs  []string `json:"inboundFlightUniqueIds"`
}

// ScrapedBookingOption is a single agency price quote for a bundle
type ScrapedBookingOption struct {
	UniqueID       string  `json:"uniqueId"`
	TargetUniqueID string  `json:"targetUniqueId"`
	Agency         string  `json:"agency"`
	Price          float64 `json:"price"`
	Currency       string  `json:"currency"`
	LinkToBook     string  `json:"linkToBook"`
	ExtractedAt    int64   `json:"extractedAt"`
}

// ScrapeResult is everything one source produced for one search
type ScrapeResult struct {
	Flights        []ScrapedFlight        `json:"flights"`
	Bundles        []ScrapedBundle        `json:"bundles"`
	BookingOptions []ScrapedBookingOption `json:"bookingOptions"`

	// TrailingFragment is set when the terminal poll response still carried results.
	TrailingFragment bool `json:"trailingFragment,omitempty"`
}

// RecordCount returns the number of entities in the result
func (r *ScrapeResult) RecordCount() int {
	return len(r.Flights) + len(r.Bundles) + len(r.BookingOptions)
}
