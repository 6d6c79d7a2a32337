package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/okian/gestor/internal/adapters/repository"
	"github.com/okian/gestor/internal/domain/model"
)

// recordsRequest is the body of POST /snapshot and POST /changes.
type recordsRequest struct {
	Records []model.ClientRecord `json:"records"`
}

func (r recordsRequest) validate() error {
	if r.Records == nil {
		return errors.New("records is required")
	}
	return nil
}

type snapshotResponse struct {
	Records    []model.ClientRecord `json:"records"`
	CapturedAt *time.Time           `json:"captured_at"`
}

func newSnapshotResponse(s repository.Snapshot) snapshotResponse {
	resp := snapshotResponse{Records: s.Records}
	if resp.Records == nil {
		resp.Records = []model.ClientRecord{}
	}
	if !s.Empty() {
		resp.CapturedAt = &s.CapturedAt
	}
	return resp
}

// SnapshotHandler serves the baseline snapshot.
type SnapshotHandler struct {
	deps Dependencies
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(deps Dependencies) *SnapshotHandler {
	return &SnapshotHandler{deps: deps}
}

// HandleGet handles GET /snapshot.
func (h *SnapshotHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotResponse(snap))
}

// HandleCapture handles POST /snapshot.
func (h *SnapshotHandler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	var req recordsRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	snap, err := h.deps.Capture(r.Context(), req.Records)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSnapshotResponse(snap))
}

// HandleRefresh handles POST /snapshot/refresh[?owner=ID]: the baseline is
// captured from the record store.
func (h *SnapshotHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.CaptureFromStore(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSnapshotResponse(snap))
}
