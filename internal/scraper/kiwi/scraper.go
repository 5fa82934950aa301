// Package kiwi scrapes the kiwi.com search results.
package kiwi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/scraper"
	"flightscout-service/pkg/logger"
)

// SourceName identifies this source in results, sessions and logs
const SourceName = "kiwi"

// Config holds source specific settings
type Config struct {
	BaseURL         string
	DefaultCurrency string
}

// Scraper implements scraper.Source for kiwi.com
type Scraper struct {
	fetcher *scraper.Fetcher
	cfg     Config
	logger  logger.Logger
	now     func() time.Time
}

// New creates a kiwi scraper
func New(fetcher *scraper.Fetcher, cfg Config, log logger.Logger) *Scraper {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Scraper{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  log.With("source", SourceName),
		now:     time.Now,
	}
}

// Name returns the source name
func (s *Scraper) Name() string {
	return SourceName
}

// ExecutePhase1 loads the results page and reads the search session from it
func (s *Scraper) ExecutePhase1(ctx context.Context, params entity.FlightSearchParams) (*scraper.Session, error) {
	returnSegment := "no-return"
	if params.IsRoundTrip {
		returnSegment = params.ReturnDate
	}
	pageURL := fmt.Sprintf("%s/en/search/results/%s/%s/%s/%s",
		s.cfg.BaseURL,
		strings.ToLower(params.DepartureAirport),
		strings.ToLower(params.ArrivalAirport),
		params.DepartureDate,
		returnSegment)

	resp, err := s.fetcher.Do(ctx, scraper.Request{
		URL:    pageURL,
		Header: http.Header{"Accept": []string{"text/html"}},
	})
	if err != nil {
		return nil, err
	}

	session, err := ExtractSession(resp.Body)
	if err != nil {
		return nil, err
	}
	session.Cookies = resp.Cookies

	s.logger.Debug("Search session acquired", "cookies", len(session.Cookies))
	return session, nil
}

type searchRequest struct {
	SessionID     string `json:"sessionId"`
	From          string `json:"flyFrom"`
	To            string `json:"flyTo"`
	DepartureDate string `json:"dateFrom"`
	ReturnDate    string `json:"returnFrom,omitempty"`
	Adults        int    `json:"adults"`
}

// ExecutePhase2 submits the search and extracts the returned result cards
func (s *Scraper) ExecutePhase2(ctx context.Context, params entity.FlightSearchParams, session *scraper.Session) (*entity.ScrapeResult, error) {
	body, err := json.Marshal(searchRequest{
		SessionID:     session.Token,
		From:          params.DepartureAirport,
		To:            params.ArrivalAirport,
		DepartureDate: params.DepartureDate,
		ReturnDate:    params.ReturnDate,
		Adults:        1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	resp, err := s.fetcher.Do(ctx, scraper.Request{
		Method: http.MethodPost,
		URL:    s.cfg.BaseURL + "/api/search/results",
		Header: http.Header{
			"Content-Type": []string{"application/json"},
			"Accept":       []string{"text/html"},
			"X-Session-Id": []string{session.Token},
		},
		Body:    body,
		Cookies: session.Cookies,
	})
	if err != nil {
		return nil, err
	}

	result, skipped, err := ExtractResults(resp.Body, s.cfg.BaseURL, s.cfg.DefaultCurrency, s.now().UnixMilli())
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.logger.Warn("Skipped unparseable result cards", "skipped", skipped)
	}
	return result, nil
}
