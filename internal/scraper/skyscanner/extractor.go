package skyscanner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"flightscout-service/internal/scraper"
	"flightscout-service/pkg/utils"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoBootstrap is returned when the search page carries no session bootstrap
var ErrNoBootstrap = errors.New("session bootstrap not found")

type bootstrap struct {
	SessionToken string `json:"sessionToken"`
	ViewID       string `json:"viewId"`
}

// ExtractBootstrap reads the session token and view id from the search page
func ExtractBootstrap(html []byte) (*scraper.Session, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}

	raw := strings.TrimSpace(doc.Find("script#__SESSION_BOOTSTRAP__").First().Text())
	if raw == "" {
		return nil, ErrNoBootstrap
	}

	var b bootstrap
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("failed to decode session bootstrap: %w", err)
	}
	if b.SessionToken == "" {
		return nil, ErrNoBootstrap
	}

	return &scraper.Session{
		Token:  b.SessionToken,
		Values: map[string]string{"viewId": b.ViewID},
	}, nil
}

// FragmentStats counts what one results fragment contributed
type FragmentStats struct {
	Itineraries int
	Skipped     int
}

// ExtractInto parses the tickets of one results fragment into acc
func ExtractInto(acc *scraper.Accumulator, html, baseURL, defaultCurrency string, extractedAt int64) (FragmentStats, error) {
	var stats FragmentStats
	if strings.TrimSpace(html) == "" {
		return stats, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return stats, fmt.Errorf("failed to parse results fragment: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return stats, fmt.Errorf("invalid base url: %w", err)
	}

	doc.Find("div.FlightsTicket").Each(func(_ int, ticket *goquery.Selection) {
		if err := parseTicket(ticket, acc, base, defaultCurrency, extractedAt); err != nil {
			stats.Skipped++
			return
		}
		stats.Itineraries++
	})
	return stats, nil
}

func parseTicket(ticket *goquery.Selection, acc *scraper.Accumulator, base *url.URL, defaultCurrency string, extractedAt int64) error {
	outbound, err := parseLeg(ticket.Find(`div.Leg[data-direction="outbound"]`))
	if err != nil {
		return err
	}
	inbound, err := parseLeg(ticket.Find(`div.Leg[data-direction="inbound"]`))
	if err != nil {
		return err
	}

	var quotes []scraper.Quote
	ticket.Find("li.PricingOption[data-agent]").Each(func(_ int, opt *goquery.Selection) {
		agent, _ := opt.Attr("data-agent")
		price, currency, err := utils.ParsePrice(strings.TrimSpace(opt.Find(".Price").First().Text()), defaultCurrency)
		if err != nil {
			return
		}
		href, ok := opt.Find("a.BookingLink").First().Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		quotes = append(quotes, scraper.Quote{
			Agency:   agent,
			Price:    price,
			Currency: currency,
			Link:     base.ResolveReference(ref).String(),
		})
	})
	if len(quotes) == 0 {
		return errors.New("ticket has no usable pricing option")
	}

	_, err = acc.AddItinerary(outbound, inbound, quotes, extractedAt)
	return err
}

func parseLeg(leg *goquery.Selection) ([]scraper.Leg, error) {
	var legs []scraper.Leg
	var firstErr error

	leg.Find("div.Segment").EachWithBreak(func(_ int, seg *goquery.Selection) bool {
		l, err := parseSegment(seg)
		if err != nil {
			firstErr = err
			return false
		}
		legs = append(legs, l)
		return true
	})
	return legs, firstErr
}

func parseSegment(seg *goquery.Selection) (scraper.Leg, error) {
	attr := func(name string) string {
		v, _ := seg.Attr(name)
		return strings.TrimSpace(v)
	}

	l := scraper.Leg{
		FlightNumber: attr("data-flight-number"),
		Origin:       attr("data-origin"),
		Destination:  attr("data-destination"),
	}
	if l.FlightNumber == "" || l.Origin == "" || l.Destination == "" {
		return l, errors.New("segment is missing flight number or route")
	}

	var err error
	if l.DepartureLocal, err = localMillis(attr("data-departure")); err != nil {
		return l, err
	}
	if l.ArrivalLocal, err = localMillis(attr("data-arrival")); err != nil {
		return l, err
	}
	if d := attr("data-duration"); d != "" {
		if l.DurationMinutes, err = strconv.Atoi(d); err != nil {
			return l, fmt.Errorf("invalid duration %q", d)
		}
	}
	return l, nil
}

// localMillis parses "2025-10-10T06:00" as a wall clock time
func localMillis(value string) (int64, error) {
	date, clock, ok := strings.Cut(value, "T")
	if !ok {
		return 0, fmt.Errorf("invalid local time %q", value)
	}
	return utils.WallClockMillis(date, clock)
}
