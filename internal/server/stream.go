package server

import (
	"fmt"
	"net/http"
	"time"
)

// pollInterval is how often the stream checks for a new preview frame.
const pollInterval = 33 * time.Millisecond

// FrameSource yields the newest JPEG preview and its sequence number.
// device.Preview satisfies it.
type FrameSource interface {
	Latest() ([]byte, uint64)
}

// StreamHandler serves the camera preview as MJPEG. It never reads the
// camera itself; the tracking loop stores preview frames as it polls.
type StreamHandler struct {
	source FrameSource
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(source FrameSource) *StreamHandler {
	return &StreamHandler{source: source}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var last uint64
	for {
		if jpeg, seq := h.source.Latest(); seq != last && len(jpeg) > 0 {
			last = seq
			if err := writePart(w, jpeg); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
