package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/tracking"
)

// Tracker is the tracking control surface of *app.App.
type Tracker interface {
	IsEnabled() bool
	SetEnabled(enabled bool)
	Track() string
	SetTrack(setting string) error
	Latest() tracking.Snapshot
	LastEvent() *dispatch.Event
}

// TrackingHandler handles /api/tracking. GET reports the state; POST
// accepts {"enabled": bool, "track": "none|left|right|both"}, both optional.
type TrackingHandler struct {
	tracker Tracker
}

// NewTrackingHandler returns a handler.
func NewTrackingHandler(t Tracker) *TrackingHandler {
	return &TrackingHandler{tracker: t}
}

type trackingRequest struct {
	Enabled *bool   `json:"enabled"`
	Track   *string `json:"track"`
}

type trackingResponse struct {
	Enabled   bool            `json:"enabled"`
	Track     string          `json:"track"`
	Seq       uint64          `json:"seq"`
	Hands     int             `json:"visible_hands"`
	LastEvent *dispatch.Event `json:"last_event,omitempty"`
}

func (h *TrackingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.status(w)
	case http.MethodPost:
		var req trackingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Track != nil {
			if err := h.tracker.SetTrack(*req.Track); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		if req.Enabled != nil {
			h.tracker.SetEnabled(*req.Enabled)
		}
		h.status(w)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TrackingHandler) status(w http.ResponseWriter) {
	snap := h.tracker.Latest()
	visible := 0
	for _, hs := range snap.Hands {
		if hs.Visible {
			visible++
		}
	}
	writeJSON(w, http.StatusOK, trackingResponse{
		Enabled:   h.tracker.IsEnabled(),
		Track:     h.tracker.Track(),
		Seq:       snap.Seq,
		Hands:     visible,
		LastEvent: h.tracker.LastEvent(),
	})
}
