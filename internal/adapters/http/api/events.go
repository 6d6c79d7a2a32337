package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/gestor/internal/domain/change"
)

// eventsRequest is the body of POST /apply: events in wire form, applied
// without a review.
type eventsRequest struct {
	Events []change.Wire `json:"events"`
}

// EventsHandler applies externally supplied events.
type EventsHandler struct {
	deps         Dependencies
	applyTimeout time.Duration
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies, applyTimeout time.Duration) *EventsHandler {
	return &EventsHandler{deps: deps, applyTimeout: applyTimeout}
}

// HandleApply handles POST /apply.
func (h *EventsHandler) HandleApply(w http.ResponseWriter, r *http.Request) {
	var req eventsRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.Events == nil {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("events is required"))
		return
	}

	events, err := change.DecodeAll(req.Events)
	if err != nil {
		writeServiceError(w, fmt.Errorf("decode events: %w", err))
		return
	}

	ctx, cancel := detach(r, h.applyTimeout)
	defer cancel()

	out, err := h.deps.ApplyEvents(ctx, events)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOutcomeResponse(out))
}
