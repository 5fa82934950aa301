package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/infrastructure/lock"
	store "flightscout-service/internal/interface/repository"
	"flightscout-service/internal/scraper/kiwi"
	"flightscout-service/pkg/logger"
	"flightscout-service/pkg/utils"
)

func newTestPipeline(s *store.MemoryStore, locker Locker) *UpsertPipeline {
	return NewUpsertPipeline(s.Airports(), s.Flights(), s.Bundles(), s.BookingOptions(), locker, nil, logger.NewNop())
}

func mustWallClock(t *testing.T, date, clock string) int64 {
	t.Helper()
	ms, err := utils.WallClockMillis(date, clock)
	if err != nil {
		t.Fatalf("Invalid wall clock %s %s: %v", date, clock, err)
	}
	return ms
}

func scrapedFlight(number, from, to string, dep, arr int64) entity.ScrapedFlight {
	f := entity.ScrapedFlight{
		FlightNumber:         number,
		DepartureAirportIATA: from,
		ArrivalAirportIATA:   to,
		DepartureDateTime:    dep,
		ArrivalDateTime:      arr,
	}
	f.UniqueID = utils.FlightID(f)
	return f
}

// scenarioBatch is two flights departing at the same time, one bundle and one kiwi quote.
// EI337 lands 07:30 on the DUB clock, 150 minutes after leaving BER.
func scenarioBatch(t *testing.T) *entity.ScrapeResult {
	dep := mustWallClock(t, "2025-10-10", "06:00")
	ei := scrapedFlight("EI337", "BER", "DUB", dep, mustWallClock(t, "2025-10-10", "07:30"))
	fr := scrapedFlight("FR123", "BER", "CDG", dep, dep+105*60000)

	bundle := entity.ScrapedBundle{
		OutboundFlightUniqueIDs: []string{ei.UniqueID},
		InboundFlightUniqueIDs:  []string{fr.UniqueID},
	}
	bundle.UniqueID = utils.BundleID(bundle)

	option := entity.ScrapedBookingOption{
		TargetUniqueID: bundle.UniqueID,
		Agency:         "kiwi",
		Price:          150,
		Currency:       "EUR",
		LinkToBook:     "https://www.kiwi.com/en/booking?token=abc",
		ExtractedAt:    1000,
	}
	option.UniqueID = utils.BookingOptionID(option)

	return &entity.ScrapeResult{
		Flights:        []entity.ScrapedFlight{ei, fr},
		Bundles:        []entity.ScrapedBundle{bundle},
		BookingOptions: []entity.ScrapedBookingOption{option},
	}
}

func assertCounts(t *testing.T, res UpsertResult, flights, bundles, inserted, replaced int) {
	t.Helper()
	if !res.Success {
		t.Fatalf("Expected success, got failure: %s", res.Message)
	}
	if res.FlightsInserted != flights || res.BundlesInserted != bundles ||
		res.BookingOptionsInserted != inserted || res.BookingOptionsReplaced != replaced {
		t.Errorf("Expected %d/%d/%d/%d, got %d/%d/%d/%d",
			flights, bundles, inserted, replaced,
			res.FlightsInserted, res.BundlesInserted, res.BookingOptionsInserted, res.BookingOptionsReplaced)
	}
}

func TestUpsertEndToEnd(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultAirports...)
	pipeline := newTestPipeline(s, lock.NewLocalLocker())
	ctx := context.Background()

	first := pipeline.Upsert(ctx, scenarioBatch(t))
	assertCounts(t, first, 2, 1, 1, 0)

	second := pipeline.Upsert(ctx, scenarioBatch(t))
	assertCounts(t, second, 0, 0, 0, 1)

	flights, bundles, options := s.Counts()
	if flights != 2 || bundles != 1 || options != 1 {
		t.Errorf("Expected store to hold 2/1/1, got %d/%d/%d", flights, bundles, options)
	}
}

func TestUpsertNormalizesToUTC(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultAirports...)
	batch := scenarioBatch(t)

	res := newTestPipeline(s, nil).Upsert(context.Background(), batch)
	assertCounts(t, res, 2, 1, 1, 0)

	stored, err := s.Flights().FindByUniqueID(context.Background(), batch.Flights[0].UniqueID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// BER is UTC+1
	wantDep := batch.Flights[0].DepartureDateTime - 60*60000
	if stored.DepartureDateTime != wantDep {
		t.Errorf("Expected departure %d, got %d", wantDep, stored.DepartureDateTime)
	}
	if stored.ArrivalDateTime-stored.DepartureDateTime != 150*60000 {
		t.Errorf("Expected 150 minute flight, got %d ms", stored.ArrivalDateTime-stored.DepartureDateTime)
	}

	b, err := s.Bundles().FindByUniqueID(context.Background(), batch.Bundles[0].UniqueID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if b.SearchID != "search_BER_DUB_2025-10-10_2025-10-10_roundtrip" {
		t.Errorf("Unexpected search id '%s'", b.SearchID)
	}
	if len(b.OutboundFlightIDs) != 1 || b.OutboundFlightIDs[0] != stored.ID {
		t.Errorf("Expected outbound leg %d, got %v", stored.ID, b.OutboundFlightIDs)
	}
}

func TestUpsertOvernightFlight(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultAirports...)
	dep := mustWallClock(t, "2025-10-10", "23:50")
	arr := mustWallClock(t, "2025-10-10", "00:20")
	f := scrapedFlight("FR9", "DUB", "LHR", dep, arr)

	bundle := entity.ScrapedBundle{OutboundFlightUniqueIDs: []string{f.UniqueID}}
	bundle.UniqueID = utils.BundleID(bundle)

	res := newTestPipeline(s, nil).Upsert(context.Background(), &entity.ScrapeResult{
		Flights: []entity.ScrapedFlight{f},
		Bundles: []entity.ScrapedBundle{bundle},
	})
	assertCounts(t, res, 1, 1, 0, 0)

	stored, _ := s.Flights().FindByUniqueID(context.Background(), f.UniqueID)
	if got := (stored.ArrivalDateTime - stored.DepartureDateTime) / 60000; got != 30 {
		t.Errorf("Expected 30 minute overnight flight, got %d", got)
	}
}

func TestUpsertArrivalAcrossTimezones(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		to       string
		dep      string
		arr      string
		stated   int
		expected int64
	}{
		{"eastbound to westbound clock", "BER", "DUB", "06:00", "07:30", 0, 150},
		{"westbound overnight", "DUB", "BER", "23:10", "02:05", 0, 115},
		{"transatlantic", "LHR", "JFK", "10:00", "12:55", 0, 475},
		{"same zone overnight", "DUB", "LHR", "23:50", "00:20", 0, 30},
		{"stated duration wins", "BER", "DUB", "06:00", "07:30", 145, 145},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore(store.DefaultAirports...)
			f := scrapedFlight("XY1", tt.from, tt.to,
				mustWallClock(t, "2025-10-10", tt.dep),
				mustWallClock(t, "2025-10-10", tt.arr))
			f.DurationMinutes = tt.stated

			res := newTestPipeline(s, nil).Upsert(context.Background(), &entity.ScrapeResult{
				Flights: []entity.ScrapedFlight{f},
			})
			assertCounts(t, res, 1, 0, 0, 0)

			stored, err := s.Flights().FindByUniqueID(context.Background(), f.UniqueID)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got := (stored.ArrivalDateTime - stored.DepartureDateTime) / 60000; got != tt.expected {
				t.Errorf("Expected %d minute flight, got %d", tt.expected, got)
			}
		})
	}
}

func TestUpsertExtractedCardWithoutDuration(t *testing.T) {
	card := `<div data-test="ResultCardWrapper">
  <div data-test="ResultCardSection" data-direction="outbound">
    <div data-test="ResultCardSegment" data-flight-number="EI337" data-origin="BER" data-destination="DUB"
         data-date="2025-10-10" data-departure-time="06:00" data-arrival-time="07:30"></div>
  </div>
  <span data-test="ResultCardPrice">150 €</span>
  <a data-test="BookingButton" href="/en/booking?token=abc">Select</a>
</div>`
	batch, _, err := kiwi.ExtractResults([]byte(card), "https://www.kiwi.com", "EUR", 1000)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	s := store.NewMemoryStore(store.DefaultAirports...)
	res := newTestPipeline(s, nil).Upsert(context.Background(), batch)
	assertCounts(t, res, 1, 1, 1, 0)

	stored, err := s.Flights().FindByUniqueID(context.Background(), batch.Flights[0].UniqueID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// BER is UTC+1, DUB is UTC
	if got := (stored.ArrivalDateTime - stored.DepartureDateTime) / 60000; got != 150 {
		t.Errorf("Expected 150 minute flight, got %d", got)
	}
}

func TestUpsertDropsUnresolvableReferences(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultAirports...)
	dep := mustWallClock(t, "2025-10-10", "08:00")

	known := scrapedFlight("LH1", "BER", "MAD", dep, dep+180*60000)
	unknown := scrapedFlight("XX1", "MAD", "ZZZ", dep+300*60000, dep+400*60000)

	partial := entity.ScrapedBundle{OutboundFlightUniqueIDs: []string{known.UniqueID, unknown.UniqueID}}
	partial.UniqueID = utils.BundleID(partial)
	orphan := entity.ScrapedBundle{OutboundFlightUniqueIDs: []string{unknown.UniqueID}}
	orphan.UniqueID = utils.BundleID(orphan)

	orphanOption := entity.ScrapedBookingOption{TargetUniqueID: orphan.UniqueID, Agency: "kiwi", Price: 10, Currency: "EUR"}
	orphanOption.UniqueID = utils.BookingOptionID(orphanOption)

	res := newTestPipeline(s, nil).Upsert(context.Background(), &entity.ScrapeResult{
		Flights:        []entity.ScrapedFlight{known, unknown},
		Bundles:        []entity.ScrapedBundle{partial, orphan},
		BookingOptions: []entity.ScrapedBookingOption{orphanOption},
	})
	assertCounts(t, res, 1, 1, 0, 0)

	b, err := s.Bundles().FindByUniqueID(context.Background(), partial.UniqueID)
	if err != nil {
		t.Fatalf("Expected partial bundle to be stored: %v", err)
	}
	if len(b.OutboundFlightIDs) != 1 {
		t.Errorf("Expected unresolved leg to be filtered, got %v", b.OutboundFlightIDs)
	}
}

func TestUpsertRejectsInvalidUniqueIDs(t *testing.T) {
	s := store.NewMemoryStore(store.DefaultAirports...)
	batch := scenarioBatch(t)
	batch.Flights = append(batch.Flights, batch.Flights[0])

	res := newTestPipeline(s, nil).Upsert(context.Background(), batch)
	if res.Success {
		t.Fatal("Expected failure for duplicate unique ids")
	}
	if !strings.Contains(res.Message, batch.Flights[0].UniqueID) {
		t.Errorf("Expected message to name the duplicate, got '%s'", res.Message)
	}
	if flights, _, _ := s.Counts(); flights != 0 {
		t.Errorf("Expected nothing written, got %d flights", flights)
	}
}

type panickingAirports struct{}

func (panickingAirports) GetByIATACode(context.Context, string) (*entity.Airport, error) {
	panic("connection reset")
}

func TestUpsertRecoversPanics(t *testing.T) {
	s := store.NewMemoryStore()
	pipeline := NewUpsertPipeline(panickingAirports{}, s.Flights(), s.Bundles(), s.BookingOptions(), nil, nil, logger.NewNop())

	res := pipeline.Upsert(context.Background(), scenarioBatch(t))
	if res.Success {
		t.Fatal("Expected failure result")
	}
	if !strings.Contains(res.Message, "connection reset") {
		t.Errorf("Expected panic message to surface, got '%s'", res.Message)
	}
}

func TestConcurrentUpsertsDoNotDuplicate(t *testing.T) {
	lockers := map[string]Locker{
		"serialized":        lock.NewLocalLocker(),
		"unique constraint": nil,
	}

	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			s := store.NewMemoryStore(store.DefaultAirports...)
			pipeline := newTestPipeline(s, locker)
			batch := scenarioBatch(t)

			const workers = 4
			results := make([]UpsertResult, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i] = pipeline.Upsert(context.Background(), batch)
				}(i)
			}
			wg.Wait()

			var flights, bundles, options int
			for _, r := range results {
				if !r.Success {
					t.Fatalf("Unexpected failure: %s", r.Message)
				}
				flights += r.FlightsInserted
				bundles += r.BundlesInserted
				options += r.BookingOptionsInserted
			}
			if flights != 2 || bundles != 1 || options != 1 {
				t.Errorf("Expected 2/1/1 inserts in total, got %d/%d/%d", flights, bundles, options)
			}

			storedFlights, storedBundles, storedOptions := s.Counts()
			if storedFlights != 2 || storedBundles != 1 || storedOptions != 1 {
				t.Errorf("Expected store to hold 2/1/1, got %d/%d/%d", storedFlights, storedBundles, storedOptions)
			}
		})
	}
}
