package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/domain/repository"
	"flightscout-service/internal/infrastructure/lock"
	"flightscout-service/pkg/logger"
	"flightscout-service/pkg/metrics"
	"flightscout-service/pkg/utils"
)

// UpsertLockKey serializes upserts across goroutines and, with a shared locker, across instances
const UpsertLockKey = "upsert:flights"

// Locker serializes critical sections by key
type Locker interface {
	Lock(ctx context.Context, key string) (lock.Unlock, error)
}

// UpsertResult is the typed outcome of one upsert call
type UpsertResult struct {
	Success                bool   `json:"success"`
	Message                string `json:"message"`
	FlightsInserted        int    `json:"flightsInserted"`
	BundlesInserted        int    `json:"bundlesInserted"`
	BookingOptionsInserted int    `json:"bookingOptionsInserted"`
	BookingOptionsReplaced int    `json:"bookingOptionsReplaced"`
}

// resolvedFlight is what later stages need to know about a flight in the batch
type resolvedFlight struct {
	ID         uint
	From       string
	To         string
	LocalDate  string
	localStart int64
}

// UpsertPipeline writes scrape results into the flight store in three ordered
// stages: flights, bundles, booking options.
type UpsertPipeline struct {
	airportRepo repository.AirportRepository
	flightRepo  repository.FlightRepository
	bundleRepo  repository.BundleRepository
	optionRepo  repository.BookingOptionRepository
	locker      Locker
	metrics     *metrics.Metrics
	logger      logger.Logger
}

// NewUpsertPipeline creates a new upsert pipeline. locker may be nil.
func NewUpsertPipeline(
	airportRepo repository.AirportRepository,
	flightRepo repository.FlightRepository,
	bundleRepo repository.BundleRepository,
	optionRepo repository.BookingOptionRepository,
	locker Locker,
	metrics *metrics.Metrics,
	logger logger.Logger,
) *UpsertPipeline {
	return &UpsertPipeline{
		airportRepo: airportRepo,
		flightRepo:  flightRepo,
		bundleRepo:  bundleRepo,
		optionRepo:  optionRepo,
		locker:      locker,
		metrics:     metrics,
		logger:      logger,
	}
}

// Upsert stores a batch. It never returns an error: failures, including
// panics, come back as a result with Success=false.
func (p *UpsertPipeline) Upsert(ctx context.Context, batch *entity.ScrapeResult) (result UpsertResult) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Upsert panicked", "panic", r)
			result = failure(result, fmt.Errorf("panic: %v", r))
		}
		if !result.Success {
			p.metrics.IncError("upsert")
		}
		p.metrics.ObserveUpsert(time.Since(started))
	}()

	if batch == nil {
		batch = &entity.ScrapeResult{}
	}
	if err := utils.ValidateUniqueIDs(batch); err != nil {
		p.logger.Warn("Rejected batch with invalid unique ids", "error", err)
		return failure(result, err)
	}

	if p.locker != nil {
		unlock, err := p.locker.Lock(ctx, UpsertLockKey)
		if err != nil {
			return failure(result, fmt.Errorf("failed to acquire upsert lock: %w", err))
		}
		defer func() {
			if err := unlock(context.Background()); err != nil {
				p.logger.Warn("Failed to release upsert lock", "error", err)
			}
		}()
	}

	airports, err := p.resolveAirports(ctx, batch.Flights)
	if err != nil {
		return failure(result, fmt.Errorf("airport resolution failed: %w", err))
	}

	flightMap, err := p.upsertFlights(ctx, batch.Flights, airports, &result)
	if err != nil {
		return failure(result, fmt.Errorf("flight upsert failed: %w", err))
	}

	bundleMap, err := p.upsertBundles(ctx, batch.Bundles, flightMap, &result)
	if err != nil {
		return failure(result, fmt.Errorf("bundle upsert failed: %w", err))
	}

	if err := p.upsertBookingOptions(ctx, batch.BookingOptions, bundleMap, &result); err != nil {
		return failure(result, fmt.Errorf("booking option upsert failed: %w", err))
	}

	result.Success = true
	result.Message = fmt.Sprintf("Inserted %d flights, %d bundles, %d booking options; replaced %d booking options",
		result.FlightsInserted, result.BundlesInserted, result.BookingOptionsInserted, result.BookingOptionsReplaced)

	p.metrics.AddWritten("flight", "inserted", result.FlightsInserted)
	p.metrics.AddWritten("bundle", "inserted", result.BundlesInserted)
	p.metrics.AddWritten("booking_option", "inserted", result.BookingOptionsInserted)
	p.metrics.AddWritten("booking_option", "replaced", result.BookingOptionsReplaced)

	p.logger.Info("Upsert completed",
		"flightsInserted", result.FlightsInserted,
		"bundlesInserted", result.BundlesInserted,
		"bookingOptionsInserted", result.BookingOptionsInserted,
		"bookingOptionsReplaced", result.BookingOptionsReplaced,
		"elapsed", time.Since(started))
	return result
}

func failure(result UpsertResult, err error) UpsertResult {
	result.Success = false
	result.Message = err.Error()
	return result
}

// resolvedAirport is an airport id with its parsed UTC offset
type resolvedAirport struct {
	ID            uint
	OffsetMinutes int
}

// resolveAirports looks up every distinct IATA code once. Unknown codes are
// left out of the map; their flights get dropped by the flight stage.
func (p *UpsertPipeline) resolveAirports(ctx context.Context, flights []entity.ScrapedFlight) (map[string]resolvedAirport, error) {
	airports := make(map[string]resolvedAirport)
	missing := make(map[string]struct{})

	lookup := func(code string) error {
		if _, ok := airports[code]; ok {
			return nil
		}
		if _, ok := missing[code]; ok {
			return nil
		}

		airport, err := p.airportRepo.GetByIATACode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			p.logger.Warn("Unknown airport code", "code", code)
			missing[code] = struct{}{}
			return nil
		}
		if err != nil {
			return err
		}

		offset, err := utils.ParseUTCOffset(airport.GmtTz)
		if err != nil {
			p.logger.Warn("Airport has unusable UTC offset", "code", code, "gmtTz", airport.GmtTz, "error", err)
			missing[code] = struct{}{}
			return nil
		}
		airports[code] = resolvedAirport{ID: airport.ID, OffsetMinutes: offset}
		return nil
	}

	for _, f := range flights {
		if err := lookup(f.DepartureAirportIATA); err != nil {
			return nil, err
		}
		if err := lookup(f.ArrivalAirportIATA); err != nil {
			return nil, err
		}
	}
	return airports, nil
}

// upsertFlights inserts new flights and returns a map from unique id to the
// stored flight, covering both inserted and already stored flights.
func (p *UpsertPipeline) upsertFlights(
	ctx context.Context,
	flights []entity.ScrapedFlight,
	airports map[string]resolvedAirport,
	result *UpsertResult,
) (map[string]resolvedFlight, error) {
	idMap := make(map[string]resolvedFlight, len(flights))
	known := NewIDSet()
	var candidates []entity.ScrapedFlight

	for _, f := range flights {
		if _, ok := airports[f.DepartureAirportIATA]; !ok {
			p.logger.Warn("Dropping flight with unresolved departure airport", "uniqueId", f.UniqueID, "code", f.DepartureAirportIATA)
			continue
		}
		if _, ok := airports[f.ArrivalAirportIATA]; !ok {
			p.logger.Warn("Dropping flight with unresolved arrival airport", "uniqueId", f.UniqueID, "code", f.ArrivalAirportIATA)
			continue
		}
		candidates = append(candidates, f)

		existing, err := p.flightRepo.FindByUniqueID(ctx, f.UniqueID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		known[f.UniqueID] = struct{}{}
		idMap[f.UniqueID] = describeFlight(existing.ID, f)
	}

	toInsert, skipped := PartitionFlights(candidates, known)
	if len(skipped) > 0 {
		p.logger.Debug("Skipping stored flights", "count", len(skipped))
	}

	for _, f := range toInsert {
		dep := airports[f.DepartureAirportIATA]
		arr := airports[f.ArrivalAirportIATA]
		departureUTC := utils.ToUTC(f.DepartureDateTime, dep.OffsetMinutes)
		arrivalUTC := utils.ArrivalUTC(departureUTC, f.ArrivalDateTime, arr.OffsetMinutes)
		if f.DurationMinutes > 0 {
			arrivalUTC = departureUTC + int64(f.DurationMinutes)*60000
		}

		flight := &entity.Flight{
			UniqueID:                             f.UniqueID,
			FlightNumber:                         f.FlightNumber,
			DepartureAirportID:                   dep.ID,
			ArrivalAirportID:                     arr.ID,
			DepartureDateTime:                    departureUTC,
			ArrivalDateTime:                      arrivalUTC,
			ConnectionDurationFromPreviousFlight: f.ConnectionDurationFromPreviousFlight,
		}

		err := p.flightRepo.Create(ctx, flight)
		if errors.Is(err, repository.ErrDuplicate) {
			// stored concurrently since the existence check; the stored row wins
			winner, findErr := p.flightRepo.FindByUniqueID(ctx, f.UniqueID)
			if findErr != nil {
				return nil, findErr
			}
			idMap[f.UniqueID] = describeFlight(winner.ID, f)
			continue
		}
		if err != nil {
			return nil, err
		}

		result.FlightsInserted++
		idMap[f.UniqueID] = describeFlight(flight.ID, f)
	}
	return idMap, nil
}

func describeFlight(id uint, f entity.ScrapedFlight) resolvedFlight {
	return resolvedFlight{
		ID:         id,
		From:       f.DepartureAirportIATA,
		To:         f.ArrivalAirportIATA,
		LocalDate:  utils.LocalDate(f.DepartureDateTime),
		localStart: f.DepartureDateTime,
	}
}

// upsertBundles resolves legs through flightMap and inserts new bundles.
// Unresolved legs are filtered out; a bundle left without outbound legs is dropped.
func (p *UpsertPipeline) upsertBundles(
	ctx context.Context,
	bundles []entity.ScrapedBundle,
	flightMap map[string]resolvedFlight,
	result *UpsertResult,
) (map[string]uint, error) {
	idMap := make(map[string]uint, len(bundles))
	known := NewIDSet()

	type pending struct {
		outbound []resolvedFlight
		inbound  []resolvedFlight
	}
	resolved := make(map[string]pending, len(bundles))
	var candidates []entity.ScrapedBundle

	for _, b := range bundles {
		legs := pending{
			outbound: resolveLegs(b.OutboundFlightUniqueIDs, flightMap),
			inbound:  resolveLegs(b.InboundFlightUniqueIDs, flightMap),
		}
		if len(legs.outbound) == 0 {
			p.logger.Warn("Dropping bundle without resolvable outbound legs", "uniqueId", b.UniqueID)
			continue
		}
		resolved[b.UniqueID] = legs
		candidates = append(candidates, b)

		existing, err := p.bundleRepo.FindByUniqueID(ctx, b.UniqueID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		known[b.UniqueID] = struct{}{}
		idMap[b.UniqueID] = existing.ID
	}

	toInsert, skipped := PartitionBundles(candidates, known)
	if len(skipped) > 0 {
		p.logger.Debug("Skipping stored bundles", "count", len(skipped))
	}

	for _, b := range toInsert {
		legs := resolved[b.UniqueID]
		bundle := &entity.Bundle{
			UniqueID:          b.UniqueID,
			SearchID:          searchIDForLegs(legs.outbound, legs.inbound),
			OutboundFlightIDs: legIDs(legs.outbound),
			InboundFlightIDs:  legIDs(legs.inbound),
		}

		err := p.bundleRepo.Create(ctx, bundle)
		if errors.Is(err, repository.ErrDuplicate) {
			winner, findErr := p.bundleRepo.FindByUniqueID(ctx, b.UniqueID)
			if findErr != nil {
				return nil, findErr
			}
			idMap[b.UniqueID] = winner.ID
			continue
		}
		if err != nil {
			return nil, err
		}

		result.BundlesInserted++
		idMap[b.UniqueID] = bundle.ID
	}
	return idMap, nil
}

func resolveLegs(uniqueIDs []string, flightMap map[string]resolvedFlight) []resolvedFlight {
	legs := make([]resolvedFlight, 0, len(uniqueIDs))
	for _, id := range uniqueIDs {
		if f, ok := flightMap[id]; ok {
			legs = append(legs, f)
		}
	}
	return legs
}

func legIDs(legs []resolvedFlight) []uint {
	ids := make([]uint, len(legs))
	for i, l := range legs {
		ids[i] = l.ID
	}
	return ids
}

// searchIDForLegs derives the search id from the first outbound departure,
// the final outbound arrival and the local departure dates of each direction.
func searchIDForLegs(outbound, inbound []resolvedFlight) string {
	first, last := outbound[0], outbound[0]
	for _, l := range outbound[1:] {
		if l.localStart < first.localStart {
			first = l
		}
		if l.localStart > last.localStart {
			last = l
		}
	}

	returnDate := ""
	if len(inbound) > 0 {
		earliest := inbound[0]
		for _, l := range inbound[1:] {
			if l.localStart < earliest.localStart {
				earliest = l
			}
		}
		returnDate = earliest.LocalDate
	}
	return utils.BuildSearchID(first.From, last.To, first.LocalDate, returnDate)
}

// upsertBookingOptions resolves targets through bundleMap, then inserts new
// options and overwrites known ones.
func (p *UpsertPipeline) upsertBookingOptions(
	ctx context.Context,
	options []entity.ScrapedBookingOption,
	bundleMap map[string]uint,
	result *UpsertResult,
) error {
	known := NewIDSet()
	loadedTargets := make(map[uint]struct{})
	var candidates []entity.ScrapedBookingOption

	for _, o := range options {
		targetID, ok := bundleMap[o.TargetUniqueID]
		if !ok {
			p.logger.Warn("Dropping booking option with unresolved bundle", "uniqueId", o.UniqueID, "target", o.TargetUniqueID)
			continue
		}
		candidates = append(candidates, o)

		if _, loaded := loadedTargets[targetID]; loaded {
			continue
		}
		loadedTargets[targetID] = struct{}{}

		existing, err := p.optionRepo.FindByTargetID(ctx, targetID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			known[e.UniqueID] = struct{}{}
		}
	}

	toInsert, toReplace := PartitionBookingOptions(candidates, known)

	for _, o := range toReplace {
		option := toBookingOption(o, bundleMap[o.TargetUniqueID])
		err := p.optionRepo.Replace(ctx, option)
		if errors.Is(err, repository.ErrNotFound) {
			toInsert = append(toInsert, o)
			continue
		}
		if err != nil {
			return err
		}
		result.BookingOptionsReplaced++
	}

	for _, o := range toInsert {
		option := toBookingOption(o, bundleMap[o.TargetUniqueID])
		err := p.optionRepo.Create(ctx, option)
		if errors.Is(err, repository.ErrDuplicate) {
			// inserted concurrently; the newer quote overwrites it
			if err := p.optionRepo.Replace(ctx, option); err != nil {
				return err
			}
			result.BookingOptionsReplaced++
			continue
		}
		if err != nil {
			return err
		}
		result.BookingOptionsInserted++
	}
	return nil
}

func toBookingOption(o entity.ScrapedBookingOption, targetID uint) *entity.BookingOption {
	return &entity.BookingOption{
		UniqueID:    o.UniqueID,
		TargetID:    targetID,
		Agency:      o.Agency,
		Price:       utils.RoundPrice(o.Price),
		Currency:    o.Currency,
		LinkToBook:  o.LinkToBook,
		ExtractedAt: o.ExtractedAt,
	}
}
