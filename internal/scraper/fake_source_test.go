package scraper

import (
	"context"
	"sync/atomic"

	"flightscout-service/internal/domain/entity"
)

type fakeSource struct {
	name        string
	phase1Err   error
	phase2Err   error
	panicPhase  Phase
	result      *entity.ScrapeResult
	started     chan struct{}
	release     chan struct{}
	phase1Calls int32
	phase2Calls int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) ExecutePhase1(ctx context.Context, _ entity.FlightSearchParams) (*Session, error) {
	atomic.AddInt32(&f.phase1Calls, 1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panicPhase == Phase1 {
		panic("boom")
	}
	if f.phase1Err != nil {
		return nil, f.phase1Err
	}
	return &Session{Token: f.name + "-token"}, nil
}

func (f *fakeSource) ExecutePhase2(_ context.Context, _ entity.FlightSearchParams, session *Session) (*entity.ScrapeResult, error) {
	atomic.AddInt32(&f.phase2Calls, 1)
	if f.panicPhase == Phase2 {
		panic("boom")
	}
	if f.phase2Err != nil {
		return nil, f.phase2Err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &entity.ScrapeResult{
		Flights: []entity.ScrapedFlight{{UniqueID: "flight_" + session.Token}},
	}, nil
}

func validParams() entity.FlightSearchParams {
	return entity.FlightSearchParams{
		DepartureAirport: "BER",
		ArrivalAirport:   "DUB",
		DepartureDate:    "2025-10-10",
		ReturnDate:       "2025-10-17",
		IsRoundTrip:      true,
	}
}
