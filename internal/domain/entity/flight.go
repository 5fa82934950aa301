package entity

import "time"

// Flight is a stored flight leg. Times are UTC epoch milliseconds.
type Flight struct {
	ID                                   uint      `json:"id"`
	UniqueID                             string    `json:"uniqueId"`
	FlightNumber                         string    `json:"flightNumber"`
	DepartureAirportID                   uint      `json:"departureAirportId"`
	ArrivalAirportID                     uint      `json:"arrivalAirportId"`
	DepartureDateTime                    int64     `json:"departureDateTime"`
	ArrivalDateTime                      int64     `json:"arrivalDateTime"`
	ConnectionDurationFromPreviousFlight *int      `json:"connectionDurationFromPreviousFlight,omitempty"`
	CreatedAt                            time.Time `json:"createdAt"`
}

// Bundle is a stored itinerary referencing flights by storage id
type Bundle struct {
	ID                uint      `json:"id"`
	UniqueID          string    `json:"uniqueId"`
	SearchID          string    `json:"searchId"`
	OutboundFlightIDs []uint    `json:"outboundFlightIds"`
	InboundFlightIDs  []uint    `json:"inboundFlightIds"`
	CreatedAt         time.Time `json:"createdAt"`
}

// BookingOption is a stored price quote pointing at a bundle
type BookingOption struct {
	ID          uint      `json:"id"`
	UniqueID    string    `json:"uniqueId"`
	TargetID    uint      `json:"targetId"`
	Agency      string    `json:"agency"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	LinkToBook  string    `json:"linkToBook"`
	ExtractedAt int64     `json:"extractedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Offer is a bundle together with its current booking options
type Offer struct {
	Bundle         *Bundle          `json:"bundle"`
	BookingOptions []*BookingOption `json:"bookingOptions"`
}
