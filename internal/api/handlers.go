package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sdtechevents/eventhub/internal/ingestion"
	"github.com/sdtechevents/eventhub/internal/models"
	"github.com/sdtechevents/eventhub/internal/normalize"
)

// Handler serves the read endpoints over the event store.
type Handler struct {
	events ingestion.EventRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(events ingestion.EventRepository, logger *slog.Logger) *Handler {
	return &Handler{
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// EventsResponse is the body of GET /api/events.
type EventsResponse struct {
	Events []models.Event `json:"events"`
	Count  int            `json:"count"`
}

// ListEvents handles GET /api/events?category=&range=&search=&limit=
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	dateRange := q.Get("range")
	search := strings.TrimSpace(q.Get("search"))

	limit, err := parseLimit(q, defaultEventLimit, maxEventLimit)
	if err == nil {
		err = ValidateCategory(category)
	}
	if err == nil {
		err = ValidateDateRange(dateRange)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Presets are calendar ranges on the listing's local calendar.
	filter := models.FilterFromParams(category, dateRange, search, h.now().In(normalize.Pacific))
	filter.Limit = limit

	events, err := h.events.QueryUpcoming(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query events", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, EventsResponse{Events: events, Count: len(events)})
}

// CountEvents handles GET /api/events/count
func (h *Handler) CountEvents(w http.ResponseWriter, r *http.Request) {
	count, err := h.events.CountUpcoming(r.Context())
	if err != nil {
		h.logger.Error("failed to count events", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// GetEvent handles GET /api/events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	event, err := h.events.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get event", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}

	writeJSON(w, http.StatusOK, event)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

