package usecase

import (
	"flightscout-service/internal/domain/entity"
)

// IDSet is a set of unique ids already present in storage
type IDSet map[string]struct{}

// NewIDSet builds a set from the given ids
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set holds nothing.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// KnownIDs holds the ids already stored, per entity kind
type KnownIDs struct {
	Flights        IDSet
	Bundles        IDSet
	BookingOptions IDSet
}

// Partition is the outcome of deduplicating one batch. Every input entity
// lands in exactly one bucket of its kind.
type Partition struct {
	FlightsToInsert         []entity.ScrapedFlight
	FlightsSkipped          []entity.ScrapedFlight
	BundlesToInsert         []entity.ScrapedBundle
	BundlesSkipped          []entity.ScrapedBundle
	BookingOptionsToInsert  []entity.ScrapedBookingOption
	BookingOptionsToReplace []entity.ScrapedBookingOption
}

// PartitionFlights splits flights into new ones and ones already stored.
// Stored flights win; the new copy is discarded.
func PartitionFlights(flights []entity.ScrapedFlight, known IDSet) (toInsert, skipped []entity.ScrapedFlight) {
	for _, f := range flights {
		if known.Has(f.UniqueID) {
			skipped = append(skipped, f)
		} else {
			toInsert = append(toInsert, f)
		}
	}
	return toInsert, skipped
}

// PartitionBundles splits bundles the same way as flights
func PartitionBundles(bundles []entity.ScrapedBundle, known IDSet) (toInsert, skipped []entity.ScrapedBundle) {
	for _, b := range bundles {
		if known.Has(b.UniqueID) {
			skipped = append(skipped, b)
		} else {
			toInsert = append(toInsert, b)
		}
	}
	return toInsert, skipped
}

// PartitionBookingOptions splits options into new ones and ones to overwrite.
// A known option is never dropped: quotes always reflect the latest scrape.
func PartitionBookingOptions(options []entity.ScrapedBookingOption, known IDSet) (toInsert, toReplace []entity.ScrapedBookingOption) {
	for _, o := range options {
		if known.Has(o.UniqueID) {
			toReplace = append(toReplace, o)
		} else {
			toInsert = append(toInsert, o)
		}
	}
	return toInsert, toReplace
}

// PartitionResult applies the per-kind policies to a whole scrape result
func PartitionResult(result *entity.ScrapeResult, known KnownIDs) Partition {
	var p Partition
	p.FlightsToInsert, p.FlightsSkipped = PartitionFlights(result.Flights, known.Flights)
	p.BundlesToInsert, p.BundlesSkipped = PartitionBundles(result.Bundles, known.Bundles)
	p.BookingOptionsToInsert, p.BookingOptionsToReplace = PartitionBookingOptions(result.BookingOptions, known.BookingOptions)
	return p
}
