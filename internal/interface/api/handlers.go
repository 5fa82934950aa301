package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"flightscout-service/internal/domain/entity"
	"flightscout-service/internal/domain/repository"
	"flightscout-service/internal/scraper"
	"flightscout-service/internal/usecase"
	"flightscout-service/pkg/logger"

	"github.com/go-chi/chi/v5"
)

const maxIngestBytes = 16 << 20

// SearchStarter starts a search in the background
type SearchStarter interface {
	StartSearch(ctx context.Context, params entity.FlightSearchParams) (*entity.ScrapeSession, error)
}

// SessionReader reads scrape sessions
type SessionReader interface {
	Get(ctx context.Context, sessionID string) (*entity.ScrapeSession, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.ScrapeSession, error)
}

// BatchUpserter stores a batch of scraped entities
type BatchUpserter interface {
	Upsert(ctx context.Context, batch *entity.ScrapeResult) usecase.UpsertResult
}

// OfferFinder reads stored offers by search criteria
type OfferFinder interface {
	FindOffers(ctx context.Context, params entity.FlightSearchParams) ([]*entity.Offer, error)
}

// Handlers serves the HTTP API
type Handlers struct {
	searches SearchStarter
	sessions SessionReader
	upserter BatchUpserter
	offers   OfferFinder
	logs     repository.ScrapeLogRepository
	logger   logger.Logger
}

// NewHandlers creates the API handlers
func NewHandlers(
	searches SearchStarter,
	sessions SessionReader,
	upserter BatchUpserter,
	offers OfferFinder,
	logs repository.ScrapeLogRepository,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		searches: searches,
		sessions: sessions,
		upserter: upserter,
		offers:   offers,
		logs:     logs,
		logger:   logger,
	}
}

// StartSearch handles POST /api/v1/searches
func (h *Handlers) StartSearch(w http.ResponseWriter, r *http.Request) {
	var params entity.FlightSearchParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	params.DepartureAirport = strings.ToUpper(strings.TrimSpace(params.DepartureAirport))
	params.ArrivalAirport = strings.ToUpper(strings.TrimSpace(params.ArrivalAirport))

	session, err := h.searches.StartSearch(r.Context(), params)
	if err != nil {
		var verr *scraper.ValidationError
		if errors.As(err, &verr) {
			Error(w, http.StatusBadRequest, verr.Error())
			return
		}
		h.logger.Error("Failed to start search", "error", err)
		Error(w, http.StatusInternalServerError, "failed to start search")
		return
	}

	JSON(w, http.StatusAccepted, map[string]interface{}{
		"sessionId": session.SessionID,
		"status":    session.Status,
	})
}

// GetSession handles GET /api/v1/sessions/{id}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.sessions.Get(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load session", "sessionId", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	JSON(w, http.StatusOK, session)
}

// ListSessions handles GET /api/v1/sessions?limit=
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	sessions, err := h.sessions.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list sessions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	JSON(w, http.StatusOK, sessions)
}

// GetSessionLogs handles GET /api/v1/sessions/{id}/logs
func (h *Handlers) GetSessionLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	logs, err := h.logs.FindBySessionID(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load scrape logs", "sessionId", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load scrape logs")
		return
	}
	JSON(w, http.StatusOK, logs)
}

// Ingest handles POST /api/v1/ingest. The upsert outcome is returned as is;
// a failed upsert answers 422.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	var batch entity.ScrapeResult
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBytes)).Decode(&batch); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.upserter.Upsert(r.Context(), &batch)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	write(w, status, Response{Success: result.Success, Data: result, Error: errorMessage(result)})
}

func errorMessage(result usecase.UpsertResult) string {
	if result.Success {
		return ""
	}
	return result.Message
}

// GetOffers handles GET /api/v1/offers?from=&to=&date=&returnDate=
func (h *Handlers) GetOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := entity.FlightSearchParams{
		DepartureAirport: strings.ToUpper(q.Get("from")),
		ArrivalAirport:   strings.ToUpper(q.Get("to")),
		DepartureDate:    q.Get("date"),
		ReturnDate:       q.Get("returnDate"),
	}
	params.IsRoundTrip = params.ReturnDate != ""

	if err := scraper.ValidateParams(params); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	offers, err := h.offers.FindOffers(r.Context(), params)
	if err != nil {
		h.logger.Error("Failed to load offers", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load offers")
		return
	}
	JSON(w, http.StatusOK, offers)
}
