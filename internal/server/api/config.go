package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ayusman/mudra/internal/config"
)

// Configurer reads and replaces the running configuration. *app.App
// satisfies it.
type Configurer interface {
	Config() *config.Config
	ApplyConfig(cfg *config.Config) error
}

// ConfigHandler handles /api/config. PUT accepts a partial document; fields
// it leaves out keep their current values.
type ConfigHandler struct {
	target Configurer
}

// NewConfigHandler returns a handler.
func NewConfigHandler(target Configurer) *ConfigHandler {
	return &ConfigHandler{target: target}
}

func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.target.Config())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ConfigHandler) update(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	next := *h.target.Config()
	if err := json.Unmarshal(body, &next); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.target.ApplyConfig(&next); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.target.Config())
}
