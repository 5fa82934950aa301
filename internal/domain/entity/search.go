package entity

// FlightSearchParams describes a single flight search request
type FlightSearchParams struct {
	DepartureAirport string `json:"departureAirport" bson:"departureAirport"`
	ArrivalAirport   string `json:"arrivalAirport" bson:"arrivalAirport"`
	DepartureDate    string `json:"departureDate" bson:"departureDate"`
	ReturnDate       string `json:"returnDate,omitempty" bson:"returnDate,omitempty"`
	IsRoundTrip      bool   `json:"isRoundTrip" bson:"isRoundTrip"`
}
