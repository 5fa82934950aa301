package skyscanner

import (
	"errors"
	"testing"

	"flightscout-service/internal/scraper"
)

const ticketsFragment = `
<div class="FlightsTicket">
  <div class="Leg" data-direction="outbound">
    <div class="Segment" data-flight-number="LH 1970" data-origin="BER" data-destination="FRA"
         data-departure="2025-10-10T06:00" data-arrival="2025-10-10T07:10"></div>
    <div class="Segment" data-flight-number="LH 978" data-origin="FRA" data-destination="DUB"
         data-departure="2025-10-10T08:40" data-arrival="2025-10-10T10:05" data-duration="145"></div>
  </div>
  <ul>
    <li class="PricingOption" data-agent="Lufthansa"><span class="Price">€210</span><a class="BookingLink" href="/transport_deeplink/lh">Go</a></li>
    <li class="PricingOption" data-agent="Trip.com Group"><span class="Price">US$ 230.40</span><a class="BookingLink" href="https://partner.example/trip">Go</a></li>
    <li class="PricingOption" data-agent="Broken"><span class="Price">call us</span><a class="BookingLink" href="/x">Go</a></li>
  </ul>
</div>
<div class="FlightsTicket">
  <div class="Leg" data-direction="outbound">
    <div class="Segment" data-flight-number="FR 123" data-origin="BER" data-destination="DUB"
         data-departure="2025-10-10T06:00"></div>
  </div>
  <ul><li class="PricingOption" data-agent="Ryanair"><span class="Price">€40</span><a class="BookingLink" href="/r">Go</a></li></ul>
</div>`

func TestExtractInto(t *testing.T) {
	acc := scraper.NewAccumulator()
	stats, err := ExtractInto(acc, ticketsFragment, "https://www.skyscanner.net", "EUR", 42)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if stats.Itineraries != 1 || stats.Skipped != 1 {
		t.Errorf("Expected 1 itinerary and 1 skipped, got %+v", stats)
	}

	result := acc.Result()
	if len(result.Flights) != 2 {
		t.Fatalf("Expected 2 flights, got %d", len(result.Flights))
	}
	second := result.Flights[1]
	if second.ConnectionDurationFromPreviousFlight == nil || *second.ConnectionDurationFromPreviousFlight != 90 {
		t.Errorf("Expected 90 minute connection, got %v", second.ConnectionDurationFromPreviousFlight)
	}
	if got := second.DurationMinutes; got != 145 {
		t.Errorf("Expected explicit duration 145, got %d", got)
	}

	if len(result.BookingOptions) != 2 {
		t.Fatalf("Expected 2 booking options, got %d", len(result.BookingOptions))
	}
	if result.BookingOptions[0].LinkToBook != "https://www.skyscanner.net/transport_deeplink/lh" {
		t.Errorf("Expected resolved link, got '%s'", result.BookingOptions[0].LinkToBook)
	}
	trip := result.BookingOptions[1]
	if trip.Agency != "trip.com-group" || trip.Currency != "USD" || trip.Price != 230.4 {
		t.Errorf("Unexpected booking option %+v", trip)
	}
}

func TestExtractIntoEmpty(t *testing.T) {
	acc := scraper.NewAccumulator()
	stats, err := ExtractInto(acc, "  ", "https://www.skyscanner.net", "EUR", 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats.Itineraries != 0 || acc.BundleCount() != 0 {
		t.Errorf("Expected nothing extracted, got %+v", stats)
	}
}

func TestExtractBootstrap(t *testing.T) {
	page := `<script id="__SESSION_BOOTSTRAP__" type="application/json">{"sessionToken":"tok-1","viewId":"view-9"}</script>`
	session, err := ExtractBootstrap([]byte(page))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if session.Token != "tok-1" || session.Values["viewId"] != "view-9" {
		t.Errorf("Unexpected session %+v", session)
	}

	if _, err := ExtractBootstrap([]byte(`<html></html>`)); !errors.Is(err, ErrNoBootstrap) {
		t.Errorf("Expected ErrNoBootstrap, got %v", err)
	}
}

func TestCompactDate(t *testing.T) {
	got, err := compactDate("2025-10-10")
	if err != nil || got != "251010" {
		t.Errorf("Expected '251010', got '%s' (%v)", got, err)
	}
	if _, err := compactDate("10/10/2025"); err == nil {
		t.Error("Expected error for malformed date")
	}
}
