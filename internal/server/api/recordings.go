package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/report"
	"github.com/ayusman/mudra/internal/store"
)

// Recorder controls live recording. *app.App satisfies it.
type Recorder interface {
	StartRecording(name string) (*store.Recording, error)
	StopRecording() (*store.Recording, error)
	Recording() *store.Recording
	Config() *config.Config
}

// RecordingHandler handles /api/recordings.
type RecordingHandler struct {
	store    *store.Store
	recorder Recorder
}

// NewRecordingHandler returns a handler. recorder may be nil, which
// disables start, stop and active.
func NewRecordingHandler(s *store.Store, recorder Recorder) *RecordingHandler {
	return &RecordingHandler{store: s, recorder: recorder}
}

// ServeHTTP routes
//
//	/api/recordings                 GET
//	/api/recordings/start           POST
//	/api/recordings/stop            POST
//	/api/recordings/active          GET
//	/api/recordings/{id}            GET, PUT, DELETE
//	/api/recordings/{id}/plot.png   GET
func (h *RecordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/recordings"), "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	case "start", "stop":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if path == "start" {
			h.start(w, r)
		} else {
			h.stop(w, r)
		}
		return
	case "active":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.active(w, r)
		return
	}

	if id, ok := strings.CutSuffix(path, "/plot.png"); ok {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.plot(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, path)
	case http.MethodPut:
		h.rename(w, r, path)
	case http.MethodDelete:
		h.delete(w, r, path)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type recordingResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Provider   string `json:"provider"`
	StartedAt  string `json:"started_at"`
	EndedAt    string `json:"ended_at,omitempty"`
	FrameCount int    `json:"frame_count"`
	Active     bool   `json:"active"`
}

type listRecordingsResponse struct {
	Recordings []recordingResponse `json:"recordings"`
}

type nameRequest struct {
	Name string `json:"name"`
}

func toRecordingResponse(rec *store.Recording) recordingResponse {
	return recordingResponse{
		ID:         rec.ID,
		Name:       rec.Name,
		Provider:   rec.Provider,
		StartedAt:  rec.StartedAt.Format(timeLayout),
		EndedAt:    formatTime(rec.EndedAt),
		FrameCount: rec.FrameCount,
		Active:     rec.Active(),
	}
}

func (h *RecordingHandler) list(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.Recordings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list recordings")
		return
	}
	resp := listRecordingsResponse{Recordings: make([]recordingResponse, 0, len(recs))}
	for _, rec := range recs {
		resp.Recordings = append(resp.Recordings, toRecordingResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RecordingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.store.Recordings().GetByID(id)
	if err != nil {
		recordingError(w, err, "Failed to get recording")
		return
	}
	writeJSON(w, http.StatusOK, toRecordingResponse(rec))
}

func (h *RecordingHandler) rename(w http.ResponseWriter, r *http.Request, id string) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if err := h.store.Recordings().Rename(id, req.Name); err != nil {
		recordingError(w, err, "Failed to rename recording")
		return
	}
	h.get(w, r, id)
}

func (h *RecordingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if active := h.activeRecording(); active != nil && active.ID == id {
		writeError(w, http.StatusConflict, "Recording in progress")
		return
	}
	if err := h.store.Recordings().Delete(id); err != nil {
		recordingError(w, err, "Failed to delete recording")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordingHandler) start(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeError(w, http.StatusServiceUnavailable, "Recording not available")
		return
	}
	var req nameRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}
	rec, err := h.recorder.StartRecording(req.Name)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toRecordingResponse(rec))
}

func (h *RecordingHandler) stop(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeError(w, http.StatusServiceUnavailable, "Recording not available")
		return
	}
	rec, err := h.recorder.StopRecording()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toRecordingResponse(rec))
}

func (h *RecordingHandler) active(w http.ResponseWriter, r *http.Request) {
	rec := h.activeRecording()
	if rec == nil {
		writeError(w, http.StatusNotFound, "No recording in progress")
		return
	}
	writeJSON(w, http.StatusOK, toRecordingResponse(rec))
}

// plot renders the raw and filtered path of one keypoint. Query parameters
// hand (default right) and keypoint (default index_tip) pick the series.
func (h *RecordingHandler) plot(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.store.Recordings().GetByID(id)
	if err != nil {
		recordingError(w, err, "Failed to get recording")
		return
	}
	if rec.FrameCount == 0 {
		writeError(w, http.StatusNotFound, "Recording has no frames")
		return
	}

	q := r.URL.Query()
	handedness := hand.Right
	if v := q.Get("hand"); v != "" {
		parsed, err := hand.ParseHandedness(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		handedness = parsed
	}
	kp := hand.IndexTip
	if v := q.Get("keypoint"); v != "" {
		parsed, err := hand.ParseKeypoint(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		kp = parsed
	}

	cfg := config.Default()
	if h.recorder != nil {
		cfg = h.recorder.Config()
	}
	traj, err := report.TraceRecording(r.Context(), cfg, h.store.Recordings(), id, handedness, kp)
	if err != nil {
		recordingError(w, err, "Failed to replay recording")
		return
	}

	var buf bytes.Buffer
	if err := report.WritePNG(&buf, traj, report.DefaultWidth, report.DefaultHeight); err != nil {
		if errors.Is(err, report.ErrEmpty) {
			writeError(w, http.StatusNotFound, "Keypoint never visible in this recording")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to render plot")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *RecordingHandler) activeRecording() *store.Recording {
	if h.recorder == nil {
		return nil
	}
	return h.recorder.Recording()
}

func recordingError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Recording not found")
		return
	}
	writeError(w, http.StatusInternalServerError, msg)
}
