// Package skyscanner scrapes the Skyscanner unified search, which streams
// results over several poll responses.
package skyscanner

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
const SourceName = "skyscanner"

const (
	statusComplete = "complete"
	searchPath     = "/g/radar/api/v2/web-unified-search/"
)

// Config holds source specific settings
type Config struct {
	BaseURL           string
	DefaultCurrency   string
	Market            string
	Locale            string
	PollInterval      time.Duration
	PollMaxIterations int
}

// Scraper implements scraper.Source for Skyscanner
type Scraper struct {
	fetcher *scraper.Fetcher
	cfg     Config
	logger  logger.Logger
	now     func() time.Time
}

// New creates a Skyscanner scraper
func New(fetcher *scraper.Fetcher, cfg Config, log logger.Logger) *Scraper {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Market == "" {
		cfg.Market = "DE"
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-GB"
	}
	if cfg.PollMaxIterations < 1 {
		cfg.PollMaxIterations = 1
	}
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

// ExecutePhase1 loads the search page and reads the session bootstrap
func (s *Scraper) ExecutePhase1(ctx context.Context, params entity.FlightSearchParams) (*scraper.Session, error) {
	pageURL, err := s.searchPageURL(params)
	if err != nil {
		return nil, err
	}

	resp, err := s.fetcher.Do(ctx, scraper.Request{
		URL:    pageURL,
		Header: http.Header{"Accept": []string{"text/html"}},
	})
	if err != nil {
		return nil, err
	}

	session, err := ExtractBootstrap(resp.Body)
	if err != nil {
		return nil, err
	}
	session.Cookies = resp.Cookies
	return session, nil
}

func (s *Scraper) searchPageURL(params entity.FlightSearchParams) (string, error) {
	dep, err := compactDate(params.DepartureDate)
	if err != nil {
		return "", err
	}
	path := fmt.Sprintf("%s/transport/flights/%s/%s/%s/",
		s.cfg.BaseURL,
		strings.ToLower(params.DepartureAirport),
		strings.ToLower(params.ArrivalAirport),
		dep)
	if params.IsRoundTrip {
		ret, err := compactDate(params.ReturnDate)
		if err != nil {
			return "", err
		}
		path += ret + "/"
	}
	return path, nil
}

// compactDate turns 2025-10-10 into 251010
func compactDate(date string) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t.Format("060102"), nil
}

type queryLeg struct {
	Origin      string `json:"originPlaceId"`
	Destination string `json:"destinationPlaceId"`
	Date        string `json:"date"`
}

type searchQuery struct {
	Market    string     `json:"market"`
	Locale    string     `json:"locale"`
	Currency  string     `json:"currency"`
	Adults    int        `json:"adults"`
	QueryLegs []queryLeg `json:"queryLegs"`
}

type createRequest struct {
	Query  searchQuery `json:"query"`
	ViewID string      `json:"viewId,omitempty"`
}

type pollResponse struct {
	Context struct {
		Status    string `json:"status"`
		SessionID string `json:"sessionId"`
	} `json:"context"`
	ResultsHTML string `json:"resultsHtml"`
}

// ExecutePhase2 creates the search and polls until the source reports
// completion or the poll cap is reached. Results from every response,
// including the terminal one, are kept.
func (s *Scraper) ExecutePhase2(ctx context.Context, params entity.FlightSearchParams, session *scraper.Session) (*entity.ScrapeResult, error) {
	acc := scraper.NewAccumulator()
	cookies := session.Cookies
	searchSessionID := ""

	poll := func(ctx context.Context, iteration int) (bool, error) {
		var req scraper.Request
		if iteration == 1 {
			body, err := json.Marshal(createRequest{Query: s.query(params), ViewID: session.Values["viewId"]})
			if err != nil {
				return false, fmt.Errorf("failed to encode search request: %w", err)
			}
			req = scraper.Request{Method: http.MethodPost, URL: s.cfg.BaseURL + searchPath, Body: body}
		} else {
			req = scraper.Request{URL: s.cfg.BaseURL + searchPath + searchSessionID}
		}
		req.Header = http.Header{
			"Content-Type":       []string{"application/json"},
			"X-Skyscanner-Token": []string{session.Token},
		}
		req.Cookies = cookies

		resp, err := s.fetcher.Do(ctx, req)
		if err != nil {
			return false, err
		}
		cookies = scraper.MergeCookies(cookies, resp.Cookies)

		var pr pollResponse
		if err := json.Unmarshal(resp.Body, &pr); err != nil {
			return false, fmt.Errorf("failed to decode poll response: %w", err)
		}
		if pr.Context.SessionID != "" {
			searchSessionID = pr.Context.SessionID
		}

		stats, err := ExtractInto(acc, pr.ResultsHTML, s.cfg.BaseURL, s.cfg.DefaultCurrency, s.now().UnixMilli())
		if err != nil {
			return false, err
		}
		if stats.Skipped > 0 {
			s.logger.Warn("Skipped unparseable tickets", "iteration", iteration, "skipped", stats.Skipped)
		}

		done := pr.Context.Status == statusComplete
		if done && stats.Itineraries > 0 {
			acc.MarkTrailingFragment()
			s.logger.Warn("Terminal poll response carried results",
				"iteration", iteration,
				"itineraries", stats.Itineraries)
		}
		if !done && searchSessionID == "" {
			return false, fmt.Errorf("poll response carried no search session id")
		}
		return done, nil
	}

	outcome, err := scraper.PollUntilDone(ctx, s.cfg.PollMaxIterations, s.cfg.PollInterval, poll)
	if err != nil {
		return nil, err
	}
	if !outcome.Completed {
		s.logger.Warn("Poll cap reached before completion, returning partial results",
			"iterations", outcome.Iterations,
			"bundles", acc.BundleCount())
	}
	return acc.Result(), nil
}

func (s *Scraper) query(params entity.FlightSearchParams) searchQuery {
	q := searchQuery{
		Market:   s.cfg.Market,
		Locale:   s.cfg.Locale,
		Currency: s.cfg.DefaultCurrency,
		Adults:   1,
		QueryLegs: []queryLeg{{
			Origin:      params.DepartureAirport,
			Destination: params.ArrivalAirport,
			Date:        params.DepartureDate,
		}},
	}
	if params.IsRoundTrip {
		q.QueryLegs = append(q.QueryLegs, queryLeg{
			Origin:      params.ArrivalAirport,
			Destination: params.DepartureAirport,
			Date:        params.ReturnDate,
		})
	}
	return q
}
