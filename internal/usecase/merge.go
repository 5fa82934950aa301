package usecase

import (
	"flightscout-service/internal/domain/entity"
)

// MergeResults combines results from several sources into one batch.
// Entities with the same unique id collapse to the first flight or bundle
// seen and the last booking option seen.
func MergeResults(results ...*entity.ScrapeResult) *entity.ScrapeResult {
	merged := &entity.ScrapeResult{}
	flights := make(map[string]struct{})
	bundles := make(map[string]struct{})
	options := make(map[string]int)

	for _, r := range results {
		if r == nil {
			continue
		}
		merged.TrailingFragment = merged.TrailingFragment || r.TrailingFragment

		for _, f := range r.Flights {
			if _, ok := flights[f.UniqueID]; ok {
				continue
			}
			flights[f.UniqueID] = struct{}{}
			merged.Flights = append(merged.Flights, f)
		}
		for _, b := range r.Bundles {
			if _, ok := bundles[b.UniqueID]; ok {
				continue
			}
			bundles[b.UniqueID] = struct{}{}
			merged.Bundles = append(merged.Bundles, b)
		}
		for _, o := range r.BookingOptions {
			if i, ok := options[o.UniqueID]; ok {
				merged.BookingOptions[i] = o
				continue
			}
			options[o.UniqueID] = len(merged.BookingOptions)
			merged.BookingOptions = append(merged.BookingOptions, o)
		}
	}
	return merged
}
