package skyscanner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/scraper"
	"flightscout-service/pkg/logger"
)

const oneTicket = `<div class="FlightsTicket"><div class="Leg" data-direction="outbound"><div class="Segment" data-flight-number="%s" data-origin="BER" data-destination="DUB" data-departure="2025-10-10T%s" data-arrival="2025-10-10T23:00"></div></div><ul><li class="PricingOption" data-agent="Ryanair"><span class="Price">€%d</span><a class="BookingLink" href="/r">Go</a></li></ul></div>`

func ticket(flight, departure string, price int) string {
	return fmt.Sprintf(oneTicket, flight, departure, price)
}

func newTestScraper(baseURL string, maxIterations int) *Scraper {
	fetcher := scraper.NewFetcher(scraper.FetcherConfig{
		UserAgent:     "flightscout-test",
		Timeout:       5 * time.Second,
		RatePerSecond: 1000,
		BackoffBase:   time.Millisecond,
	}, logger.NewNop())
	return New(fetcher, Config{
		BaseURL:           baseURL,
		DefaultCurrency:   "EUR",
		PollInterval:      time.Millisecond,
		PollMaxIterations: maxIterations,
	}, logger.NewNop())
}

func oneWay() entity.FlightSearchParams {
	return entity.FlightSearchParams{
		DepartureAirport: "BER",
		ArrivalAirport:   "DUB",
		DepartureDate:    "2025-10-10",
	}
}

// pollServer answers the create call and every poll with the next scripted response
func pollServer(t *testing.T, responses []pollResponse) (*httptest.Server, *int32) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/transport/flights/ber/dub/251010/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "traveller_context", Value: "tc"})
		w.Write([]byte(`<script id="__SESSION_BOOTSTRAP__" type="application/json">{"sessionToken":"tok","viewId":"v"}</script>`))
	})
	mux.HandleFunc(searchPath, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 && r.Method != http.MethodPost {
			t.Errorf("Expected create call to be POST, got %s", r.Method)
		}
		if n > 1 && !strings.HasSuffix(r.URL.Path, "/search-1") {
			t.Errorf("Expected poll on search-1, got %s", r.URL.Path)
		}
		if _, err := r.Cookie("traveller_context"); err != nil {
			t.Errorf("Expected bootstrap cookie on poll %d", n)
		}
		idx := int(n) - 1
		if idx >= len(responses) {
			idx = len(responses) - 1
		}
		json.NewEncoder(w).Encode(responses[idx])
	})
	return httptest.NewServer(mux), &calls
}

func response(status, html string) pollResponse {
	var pr pollResponse
	pr.Context.Status = status
	pr.Context.SessionID = "search-1"
	pr.ResultsHTML = html
	return pr
}

func TestScraperPollsUntilComplete(t *testing.T) {
	server, calls := pollServer(t, []pollResponse{
		response("incomplete", ticket("FR1", "06:00", 40)),
		response("incomplete", ticket("FR2", "09:00", 55)+ticket("FR1", "06:00", 40)),
		response("complete", ""),
	})
	defer server.Close()

	s := newTestScraper(server.URL, 12)
	result, err := scraper.Scrape(context.Background(), s, oneWay(), logger.NewNop(), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if atomic.LoadInt32(calls) != 3 {
		t.Errorf("Expected 3 poll calls, got %d", atomic.LoadInt32(calls))
	}
	if len(result.Bundles) != 2 {
		t.Errorf("Expected 2 distinct bundles, got %d", len(result.Bundles))
	}
	if result.TrailingFragment {
		t.Error("Expected no trailing fragment")
	}
}

func TestScraperKeepsTrailingFragment(t *testing.T) {
	server, _ := pollServer(t, []pollResponse{
		response("incomplete", ticket("FR1", "06:00", 40)),
		response("complete", ticket("FR3", "12:00", 70)),
	})
	defer server.Close()

	result, err := scraper.Scrape(context.Background(), newTestScraper(server.URL, 12), oneWay(), logger.NewNop(), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Bundles) != 2 {
		t.Errorf("Expected terminal fragment to be kept, got %d bundles", len(result.Bundles))
	}
	if !result.TrailingFragment {
		t.Error("Expected trailing fragment to be flagged")
	}
}

func TestScraperStopsAtPollCap(t *testing.T) {
	server, calls := pollServer(t, []pollResponse{
		response("incomplete", ticket("FR1", "06:00", 40)),
	})
	defer server.Close()

	result, err := scraper.Scrape(context.Background(), newTestScraper(server.URL, 3), oneWay(), logger.NewNop(), nil)
	if err != nil {
		t.Fatalf("Expected poll cap to return results, got error %v", err)
	}
	if atomic.LoadInt32(calls) != 3 {
		t.Errorf("Expected exactly 3 polls, got %d", atomic.LoadInt32(calls))
	}
	if len(result.Bundles) != 1 {
		t.Errorf("Expected 1 bundle, got %d", len(result.Bundles))
	}
}

func TestSearchPageURL(t *testing.T) {
	s := newTestScraper("https://www.skyscanner.net/", 1)
	params := oneWay()
	params.ReturnDate = "2025-10-17"
	params.IsRoundTrip = true

	got, err := s.searchPageURL(params)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := "https://www.skyscanner.net/transport/flights/ber/dub/251010/251017/"
	if got != want {
		t.Errorf("Expected '%s', got '%s'", want, got)
	}
}
