package usecase

import (
	"context"
	"fmt"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/domain/repository"
	"flightscout-service/pkg/utils"
)

// OfferQuery reads stored offers by search criteria
type OfferQuery struct {
	bundleRepo repository.BundleRepository
	optionRepo repository.BookingOptionRepository
}

// NewOfferQuery creates a new offer query
func NewOfferQuery(bundleRepo repository.BundleRepository, optionRepo repository.BookingOptionRepository) *OfferQuery {
	return &OfferQuery{bundleRepo: bundleRepo, optionRepo: optionRepo}
}

// FindOffers returns every stored bundle for the search with its booking options
func (q *OfferQuery) FindOffers(ctx context.Context, params entity.FlightSearchParams) ([]*entity.Offer, error) {
	searchID := utils.SearchIDForParams(params)

	bundles, err := q.bundleRepo.FindBySearchID(ctx, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bundles for %s: %w", searchID, err)
	}

	offers := make([]*entity.Offer, 0, len(bundles))
	for _, b := range bundles {
		options, err := q.optionRepo.FindByTargetID(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load booking options for bundle %d: %w", b.ID, err)
		}
		offers = append(offers, &entity.Offer{Bundle: b, BookingOptions: options})
	}
	return offers, nil
}
