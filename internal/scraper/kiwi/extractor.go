package kiwi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/scraper"
	"flightscout-service/pkg/utils"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoSession is returned when the results page carries no search session id
var ErrNoSession = errors.New("search session id not found")

type nextData struct {
	Props struct {
		PageProps struct {
			SearchSessionID string `json:"searchSessionId"`
			VisitorID       string `json:"visitorUniqId"`
		} `json:"pageProps"`
	} `json:"props"`
}

// ExtractSession reads the search session from the __NEXT_DATA__ script of the results page
func ExtractSession(html []byte) (*scraper.Session, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	raw := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text())
	if raw == "" {
		return nil, ErrNoSession
	}

	var data nextData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("failed to decode __NEXT_DATA__: %w", err)
	}
	if data.Props.PageProps.SearchSessionID == "" {
		return nil, ErrNoSession
	}

	return &scraper.Session{
		Token:  data.Props.PageProps.SearchSessionID,
		Values: map[string]string{"visitorId": data.Props.PageProps.VisitorID},
	}, nil
}

// ExtractResults parses result cards into flights, bundles and booking options.
// Cards that cannot be parsed are skipped and counted.
func ExtractResults(html []byte, baseURL, defaultCurrency string, extractedAt int64) (*entity.ScrapeResult, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse results fragment: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid base url: %w", err)
	}

	acc := scraper.NewAccumulator()
	skipped := 0

	doc.Find(`[data-test="ResultCardWrapper"]`).Each(func(_ int, card *goquery.Selection) {
		if err := parseCard(card, acc, base, defaultCurrency, extractedAt); err != nil {
			skipped++
		}
	})

	return acc.Result(), skipped, nil
}

func parseCard(card *goquery.Selection, acc *scraper.Accumulator, base *url.URL, defaultCurrency string, extractedAt int64) error {
	outbound, err := parseSection(card.Find(`[data-test="ResultCardSection"][data-direction="outbound"]`))
	if err != nil {
		return err
	}
	inbound, err := parseSection(card.Find(`[data-test="ResultCardSection"][data-direction="inbound"]`))
	if err != nil {
		return err
	}

	priceText := strings.TrimSpace(card.Find(`[data-test="ResultCardPrice"]`).First().Text())
	price, currency, err := utils.ParsePrice(priceText, defaultCurrency)
	if err != nil {
		return err
	}

	href, _ := card.Find(`[data-test="BookingButton"]`).First().Attr("href")
	link, err := resolveLink(base, href)
	if err != nil {
		return err
	}

	quote := scraper.Quote{
		Agency:   SourceName,
		Price:    price,
		Currency: currency,
		Link:     link,
	}
	_, err = acc.AddItinerary(outbound, inbound, []scraper.Quote{quote}, extractedAt)
	return err
}

func parseSection(section *goquery.Selection) ([]scraper.Leg, error) {
	var legs []scraper.Leg
	var firstErr error

	section.Find(`[data-test="ResultCardSegment"]`).EachWithBreak(func(_ int, seg *goquery.Selection) bool {
		leg, err := parseSegment(seg)
		if err != nil {
			firstErr = err
			return false
		}
		legs = append(legs, leg)
		return true
	})
	return legs, firstErr
}

func parseSegment(seg *goquery.Selection) (scraper.Leg, error) {
	attr := func(name string) string {
		v, _ := seg.Attr(name)
		return strings.TrimSpace(v)
	}

	flightNumber := attr("data-flight-number")
	origin := attr("data-origin")
	destination := attr("data-destination")
	if flightNumber == "" || origin == "" || destination == "" {
		return scraper.Leg{}, errors.New("segment is missing flight number or route")
	}

	date := attr("data-date")
	departure, err := utils.WallClockMillis(date, attr("data-departure-time"))
	if err != nil {
		return scraper.Leg{}, err
	}

	// without an arrival date the clock is kept as is; an arrival before the
	// departure is moved to the next day once both ends are in UTC
	arrivalDate := attr("data-arrival-date")
	if arrivalDate == "" {
		arrivalDate = date
	}
	arrival, err := utils.WallClockMillis(arrivalDate, attr("data-arrival-time"))
	if err != nil {
		return scraper.Leg{}, err
	}

	duration := 0
	if d := attr("data-duration"); d != "" {
		if duration, err = strconv.Atoi(d); err != nil {
			return scraper.Leg{}, fmt.Errorf("invalid duration %q", d)
		}
	}

	return scraper.Leg{
		FlightNumber:    flightNumber,
		Origin:          origin,
		Destination:     destination,
		DepartureLocal:  departure,
		ArrivalLocal:    arrival,
		DurationMinutes: duration,
	}, nil
}

func resolveLink(base *url.URL, href string) (string, error) {
	if href == "" {
		return "", errors.New("booking link missing")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid booking link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
