package router

import (
	"strings"

	"flightscout-service/internal/scraper"
	"flightscout-service/pkg/logger"
)

// SourceRegistry holds the scrapers a search runs against
type SourceRegistry struct {
	sources []scraper.Source
	enabled map[string]bool
	logger  logger.Logger
}

// NewSourceRegistry creates a registry that accepts only the named sources.
// An empty list enables every registered source.
func NewSourceRegistry(enabled []string, logger logger.Logger) *SourceRegistry {
	r := &SourceRegistry{
		sources: make([]scraper.Source, 0),
		logger:  logger,
	}
	if len(enabled) > 0 {
		r.enabled = make(map[string]bool, len(enabled))
		for _, name := range enabled {
			r.enabled[strings.ToLower(strings.TrimSpace(name))] = true
		}
	}
	return r
}

// Register adds a source unless it is disabled or already registered
func (r *SourceRegistry) Register(source scraper.Source) {
	name := source.Name()
	if r.enabled != nil && !r.enabled[name] {
		r.logger.Info("Source disabled, not registering", "source", name)
		return
	}
	if r.Get(name) != nil {
		r.logger.Warn("Source already registered", "source", name)
		return
	}
	r.sources = append(r.sources, source)
	r.logger.Info("Registered source", "source", name)
}

// Get returns the source with the given name, or nil
func (r *SourceRegistry) Get(name string) scraper.Source {
	for _, s := range r.sources {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// Sources returns the registered sources in registration order
func (r *SourceRegistry) Sources() []scraper.Source {
	out := make([]scraper.Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Names returns the registered source names
func (r *SourceRegistry) Names() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}
