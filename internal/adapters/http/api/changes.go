package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	service "github.com/okian/gestor/internal/app"
	"github.com/okian/gestor/internal/domain/apply"
	"github.com/okian/gestor/internal/domain/change"
	"github.com/okian/gestor/internal/domain/classify"
)

type reviewResponse struct {
	ID                 string               `json:"id"`
	CreatedAt          time.Time            `json:"created_at"`
	BaselineCapturedAt *time.Time           `json:"baseline_captured_at"`
	Events             []change.Wire        `json:"events"`
	Rejected           []classify.Rejection `json:"rejected"`
}

func newReviewResponse(r service.Review) reviewResponse {
	resp := reviewResponse{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Events:    change.EncodeAll(r.Events),
		Rejected:  r.Rejected,
	}
	if !r.BaselineCapturedAt.IsZero() {
		resp.BaselineCapturedAt = &r.BaselineCapturedAt
	}
	if resp.Rejected == nil {
		resp.Rejected = []classify.Rejection{}
	}
	return resp
}

// applyRequest is the optional body of POST /changes/{id}/apply. A missing
// accept list applies every event of the review.
type applyRequest struct {
	Accept []int `json:"accept"`
}

type resultResponse struct {
	Index      int          `json:"index"`
	Kind       change.Kind  `json:"kind"`
	Key        string       `json:"key"`
	Status     apply.Status `json:"status"`
	StorageKey string       `json:"storage_key,omitempty"`
	Stage      apply.Stage  `json:"stage,omitempty"`
	Error      string       `json:"error,omitempty"`
}

type failureResponse struct {
	Index int         `json:"index"`
	Event change.Wire `json:"event"`
	Stage apply.Stage `json:"stage"`
	Error string      `json:"error"`
}

type outcomeResponse struct {
	Applied  int                  `json:"applied"`
	Failed   int                  `json:"failed"`
	Results  []resultResponse     `json:"results"`
	Failures []failureResponse    `json:"failures"`
	Rejected []classify.Rejection `json:"rejected"`
}

func newOutcomeResponse(o apply.Outcome) outcomeResponse {
	resp := outcomeResponse{
		Applied:  o.Applied,
		Failed:   o.Failed,
		Results:  make([]resultResponse, len(o.Results)),
		Failures: make([]failureResponse, len(o.Failures)),
		Rejected: o.Rejected,
	}
	for i, r := range o.Results {
		resp.Results[i] = resultResponse{
			Index:      r.Index,
			Kind:       r.Event.Kind(),
			Key:        r.Event.Subject().Key().String(),
			Status:     r.Status,
			StorageKey: r.StorageKey,
			Stage:      r.Stage,
			Error:      r.Err,
		}
	}
	for i, f := range o.Failures {
		resp.Failures[i] = failureResponse{Index: f.Index, Event: change.Encode(f.Event), Stage: f.Stage, Error: f.Err}
	}
	if resp.Rejected == nil {
		resp.Rejected = []classify.Rejection{}
	}
	return resp
}

type reportResponse struct {
	ReviewID          string          `json:"review_id"`
	SnapshotRefreshed bool            `json:"snapshot_refreshed"`
	Outcome           outcomeResponse `json:"outcome"`
}

// ChangesHandler serves reviews: diffing, inspection and confirmation.
type ChangesHandler struct {
	deps         Dependencies
	applyTimeout time.Duration
}

// NewChangesHandler creates a new changes handler.
func NewChangesHandler(deps Dependencies, applyTimeout time.Duration) *ChangesHandler {
	return &ChangesHandler{deps: deps, applyTimeout: applyTimeout}
}

// HandleDiff handles POST /changes.
func (h *ChangesHandler) HandleDiff(w http.ResponseWriter, r *http.Request) {
	var req recordsRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	review, err := h.deps.Diff(r.Context(), req.Records)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newReviewResponse(review))
}

// HandleGet handles GET /changes/{id}.
func (h *ChangesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	review, err := h.deps.Review(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newReviewResponse(review))
}

// HandleApply handles POST /changes/{id}/apply.
func (h *ChangesHandler) HandleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeServiceError(w, err)
		return
	}

	ctx, cancel := detach(r, h.applyTimeout)
	defer cancel()

	rep, err := h.deps.Apply(ctx, chi.URLParam(r, "id"), req.Accept)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{
		ReviewID:          rep.ReviewID,
		SnapshotRefreshed: rep.SnapshotRefreshed,
		Outcome:           newOutcomeResponse(rep.Outcome),
	})
}
