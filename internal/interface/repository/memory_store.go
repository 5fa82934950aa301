package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/domain/repository"
)

// DefaultAirports seeds the in-memory store for local runs
var DefaultAirports = []entity.Airport{
	{IATACode: "BER", Name: "Berlin Brandenburg", CityCode: "BER", CityName: "Berlin", GmtTz: "UTC+1", TzName: "Europe/Berlin"},
	{IATACode: "DUB", Name: "Dublin", CityCode: "DUB", CityName: "Dublin", GmtTz: "UTC", TzName: "Europe/Dublin"},
	{IATACode: "CDG", Name: "Paris Charles de Gaulle", CityCode: "PAR", CityName: "Paris", GmtTz: "UTC+1", TzName: "Europe/Paris"},
	{IATACode: "LHR", Name: "London Heathrow", CityCode: "LON", CityName: "London", GmtTz: "UTC", TzName: "Europe/London"},
	{IATACode: "MAD", Name: "Madrid Barajas", CityCode: "MAD", CityName: "Madrid", GmtTz: "UTC+1", TzName: "Europe/Madrid"},
	{IATACode: "JFK", Name: "New York John F. Kennedy", CityCode: "NYC", CityName: "New York", GmtTz: "UTC-5", TzName: "America/New_York"},
}

// MemoryStore keeps every entity in process. It backs STORE_TYPE=memory and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   uint
	airports map[string]*entity.Airport
	flights  map[string]*entity.Flight
	bundles  map[string]*entity.Bundle
	options  map[string]*entity.BookingOption
	sessions map[string]*entity.ScrapeSession
	logs     []*entity.ScrapeLog
}

// NewMemoryStore creates an empty store seeded with the given airports
func NewMemoryStore(airports ...entity.Airport) *MemoryStore {
	s := &MemoryStore{
		airports: make(map[string]*entity.Airport),
		flights:  make(map[string]*entity.Flight),
		bundles:  make(map[string]*entity.Bundle),
		options:  make(map[string]*entity.BookingOption),
		sessions: make(map[string]*entity.ScrapeSession),
	}
	for _, a := range airports {
		a := a
		a.ID = s.allocID()
		s.airports[strings.ToUpper(a.IATACode)] = &a
	}
	return s
}

func (s *MemoryStore) allocID() uint {
	s.nextID++
	return s.nextID
}

// Airports returns the airport repository view
func (s *MemoryStore) Airports() repository.AirportRepository { return memoryAirports{s} }

// Flights returns the flight repository view
func (s *MemoryStore) Flights() repository.FlightRepository { return memoryFlights{s} }

// Bundles returns the bundle repository view
func (s *MemoryStore) Bundles() repository.BundleRepository { return memoryBundles{s} }

// BookingOptions returns the booking option repository view
func (s *MemoryStore) BookingOptions() repository.BookingOptionRepository {
	return memoryBookingOptions{s}
}

// Sessions returns the scrape session repository view
func (s *MemoryStore) Sessions() repository.ScrapeSessionRepository { return memorySessions{s} }

// Logs returns the scraping log repository view
func (s *MemoryStore) Logs() repository.ScrapeLogRepository { return memoryLogs{s} }

// Counts returns the number of stored flights, bundles and booking options
func (s *MemoryStore) Counts() (flights, bundles, options int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.flights), len(s.bundles), len(s.options)
}

type memoryAirports struct{ s *MemoryStore }

func (r memoryAirports) GetByIATACode(_ context.Context, code string) (*entity.Airport, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.airports[strings.ToUpper(code)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

type memoryFlights struct{ s *MemoryStore }

func (r memoryFlights) FindByUniqueID(_ context.Context, uniqueID string) (*entity.Flight, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.flights[uniqueID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r memoryFlights) Create(_ context.Context, flight *entity.Flight) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.flights[flight.UniqueID]; ok {
		return repository.ErrDuplicate
	}
	flight.ID = r.s.allocID()
	flight.CreatedAt = time.Now()
	cp := *flight
	r.s.flights[flight.UniqueID] = &cp
	return nil
}

type memoryBundles struct{ s *MemoryStore }

func (r memoryBundles) FindByUniqueID(_ context.Context, uniqueID string) (*entity.Bundle, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.bundles[uniqueID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r memoryBundles) FindBySearchID(_ context.Context, searchID string) ([]*entity.Bundle, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Bundle
	for _, b := range r.s.bundles {
		if b.SearchID == searchID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryBundles) Create(_ context.Context, bundle *entity.Bundle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bundles[bundle.UniqueID]; ok {
		return repository.ErrDuplicate
	}
	bundle.ID = r.s.allocID()
	bundle.CreatedAt = time.Now()
	cp := *bundle
	r.s.bundles[bundle.UniqueID] = &cp
	return nil
}

type memoryBookingOptions struct{ s *MemoryStore }

func (r memoryBookingOptions) FindByTargetID(_ context.Context, targetID uint) ([]*entity.BookingOption, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.BookingOption
	for _, o := range r.s.options {
		if o.TargetID == targetID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (r memoryBookingOptions) Create(_ context.Context, option *entity.BookingOption) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.options[option.UniqueID]; ok {
		return repository.ErrDuplicate
	}
	option.ID = r.s.allocID()
	option.UpdatedAt = time.Now()
	cp := *option
	r.s.options[option.UniqueID] = &cp
	return nil
}

func (r memoryBookingOptions) Replace(_ context.Context, option *entity.BookingOption) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.options[option.UniqueID]
	if !ok {
		return repository.ErrNotFound
	}
	option.ID = existing.ID
	option.UpdatedAt = time.Now()
	cp := *option
	r.s.options[option.UniqueID] = &cp
	return nil
}

type memorySessions struct{ s *MemoryStore }

func (r memorySessions) FindBySessionID(_ context.Context, sessionID string) (*entity.ScrapeSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	session, ok := r.s.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSession(session), nil
}

func (r memorySessions) FindRecent(_ context.Context, limit int) ([]*entity.ScrapeSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.ScrapeSession, 0, len(r.s.sessions))
	for _, session := range r.s.sessions {
		out = append(out, cloneSession(session))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memorySessions) Save(_ context.Context, session *entity.ScrapeSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session.UpdatedAt = time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}
	r.s.sessions[session.SessionID] = cloneSession(session)
	return nil
}

func cloneSession(session *entity.ScrapeSession) *entity.ScrapeSession {
	cp := *session
	cp.Sources = make(map[string]entity.SourceProgress, len(session.Sources))
	for k, v := range session.Sources {
		cp.Sources[k] = v
	}
	return &cp
}

type memoryLogs struct{ s *MemoryStore }

func (r memoryLogs) Insert(_ context.Context, log *entity.ScrapeLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	cp := *log
	r.s.logs = append(r.s.logs, &cp)
	return nil
}

func (r memoryLogs) FindBySessionID(_ context.Context, sessionID string) ([]*entity.ScrapeLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.ScrapeLog
	for _, l := range r.s.logs {
		if l.SessionID == sessionID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}
