package usecase

import (
	"testing"

	"flightscout-service/internal/domain/entity"
)

func TestPartitionResult(t *testing.T) {
	result := &entity.ScrapeResult{
		Flights: []entity.ScrapedFlight{
			{UniqueID: "flight_A"},
			{UniqueID: "flight_B"},
			{UniqueID: "flight_C"},
		},
		Bundles: []entity.ScrapedBundle{
			{UniqueID: "bundle_A_"},
			{UniqueID: "bundle_B_C"},
		},
		BookingOptions: []entity.ScrapedBookingOption{
			{UniqueID: "booking_x"},
			{UniqueID: "booking_y"},
		},
	}
	known := KnownIDs{
		Flights:        NewIDSet("flight_B"),
		Bundles:        NewIDSet("bundle_A_"),
		BookingOptions: NewIDSet("booking_y", "booking_unrelated"),
	}

	p := PartitionResult(result, known)

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"flights to insert", len(p.FlightsToInsert), 2},
		{"flights skipped", len(p.FlightsSkipped), 1},
		{"bundles to insert", len(p.BundlesToInsert), 1},
		{"bundles skipped", len(p.BundlesSkipped), 1},
		{"options to insert", len(p.BookingOptionsToInsert), 1},
		{"options to replace", len(p.BookingOptionsToReplace), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("Expected %d %s, got %d", tt.want, tt.name, tt.got)
		}
	}

	if p.FlightsSkipped[0].UniqueID != "flight_B" {
		t.Errorf("Expected flight_B to be skipped, got %s", p.FlightsSkipped[0].UniqueID)
	}
	if p.BookingOptionsToReplace[0].UniqueID != "booking_y" {
		t.Errorf("Expected booking_y to be replaced, got %s", p.BookingOptionsToReplace[0].UniqueID)
	}
}

func TestPartitionIsCompleteAndDisjoint(t *testing.T) {
	var flights []entity.ScrapedFlight
	var options []entity.ScrapedBookingOption
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		flights = append(flights, entity.ScrapedFlight{UniqueID: "flight_" + id})
		options = append(options, entity.ScrapedBookingOption{UniqueID: "booking_" + id})
	}

	knownSets := []IDSet{
		nil,
		NewIDSet(),
		NewIDSet("flight_a", "booking_a"),
		NewIDSet("flight_a", "flight_c", "flight_e", "booking_b", "booking_d"),
		NewIDSet("flight_a", "flight_b", "flight_c", "flight_d", "flight_e",
			"booking_a", "booking_b", "booking_c", "booking_d", "booking_e"),
	}

	for _, known := range knownSets {
		insert, skipped := PartitionFlights(flights, known)
		if len(insert)+len(skipped) != len(flights) {
			t.Errorf("Expected %d flights across buckets, got %d", len(flights), len(insert)+len(skipped))
		}
		seen := make(map[string]int)
		for _, f := range insert {
			seen[f.UniqueID]++
		}
		for _, f := range skipped {
			seen[f.UniqueID]++
		}
		for id, n := range seen {
			if n != 1 {
				t.Errorf("Expected %s in exactly one bucket, found in %d", id, n)
			}
		}

		oInsert, oReplace := PartitionBookingOptions(options, known)
		if len(oInsert)+len(oReplace) != len(options) {
			t.Errorf("Expected %d options across buckets, got %d", len(options), len(oInsert)+len(oReplace))
		}
		for _, o := range oInsert {
			if known.Has(o.UniqueID) {
				t.Errorf("Expected known option %s to be replaced, not inserted", o.UniqueID)
			}
		}
	}
}

func TestBookingOptionIsReplacedNotSkipped(t *testing.T) {
	options := []entity.ScrapedBookingOption{{UniqueID: "booking_kiwi_bundle_X_150_EUR", Price: 150}}

	insert, replace := PartitionBookingOptions(options, NewIDSet("booking_kiwi_bundle_X_150_EUR"))

	if len(insert) != 0 {
		t.Errorf("Expected no inserts, got %d", len(insert))
	}
	if len(replace) != 1 || replace[0].UniqueID != options[0].UniqueID {
		t.Errorf("Expected the option to be replaced, got %v", replace)
	}
}

func TestPartitionEmptyInput(t *testing.T) {
	p := PartitionResult(&entity.ScrapeResult{}, KnownIDs{})
	if p.FlightsToInsert != nil || p.BookingOptionsToReplace != nil {
		t.Errorf("Expected empty partition, got %+v", p)
	}
}
