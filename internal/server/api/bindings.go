package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// PluginLookup resolves plugin names. *plugin.Manager satisfies it.
type PluginLookup interface {
	Get(name string) (*plugin.Plugin, error)
}

// BindingHandler handles /api/bindings.
type BindingHandler struct {
	store   *store.Store
	plugins PluginLookup
}

// NewBindingHandler returns a handler. plugins may be nil, in which case
// plugin names are not checked.
func NewBindingHandler(s *store.Store, plugins PluginLookup) *BindingHandler {
	return &BindingHandler{store: s, plugins: plugins}
}

// ServeHTTP routes /api/bindings and /api/bindings/{id}.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/bindings"), "/")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type bindingRequest struct {
	Event      string          `json:"event"`
	Handedness *string         `json:"handedness"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

type bindingResponse struct {
	ID         string          `json:"id"`
	Event      string          `json:"event"`
	Handedness string          `json:"handedness"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

func toBindingResponse(b *store.Binding) bindingResponse {
	cfg := b.Config
	if len(cfg) == 0 {
		cfg = json.RawMessage("{}")
	}
	return bindingResponse{
		ID:         b.ID,
		Event:      b.Event,
		Handedness: b.Handedness,
		PluginName: b.PluginName,
		ActionName: b.ActionName,
		Config:     cfg,
		Enabled:    b.Enabled,
		CreatedAt:  b.CreatedAt.Format(timeLayout),
	}
}

func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}
	resp := listBindingsResponse{Bindings: make([]bindingResponse, 0, len(bindings))}
	for _, b := range bindings {
		resp.Bindings = append(resp.Bindings, toBindingResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		h.storeError(w, err, "Failed to get binding")
		return
	}
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req bindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Event == "" || req.PluginName == "" || req.ActionName == "" {
		writeError(w, http.StatusBadRequest, "event, plugin_name and action_name are required")
		return
	}

	b := &store.Binding{
		ID:         uuid.New().String(),
		Event:      req.Event,
		PluginName: req.PluginName,
		ActionName: req.ActionName,
		Config:     req.Config,
		Enabled:    true,
	}
	if req.Handedness != nil {
		b.Handedness = *req.Handedness
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}
	if msg := h.validate(b); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.Bindings().Create(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create binding")
		return
	}
	writeJSON(w, http.StatusCreated, toBindingResponse(b))
}

func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		h.storeError(w, err, "Failed to get binding")
		return
	}

	var req bindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Event != "" {
		b.Event = req.Event
	}
	if req.Handedness != nil {
		b.Handedness = *req.Handedness
	}
	if req.PluginName != "" {
		b.PluginName = req.PluginName
	}
	if req.ActionName != "" {
		b.ActionName = req.ActionName
	}
	if req.Config != nil {
		b.Config = req.Config
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}
	if msg := h.validate(b); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.Bindings().Update(b); err != nil {
		h.storeError(w, err, "Failed to update binding")
		return
	}
	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Bindings().Delete(id); err != nil {
		h.storeError(w, err, "Failed to delete binding")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validate returns a client error message, or "" when b is acceptable.
func (h *BindingHandler) validate(b *store.Binding) string {
	if !dispatch.Kind(b.Event).Valid() {
		return "Unknown event " + b.Event
	}
	if b.Handedness != "" {
		if _, err := hand.ParseHandedness(b.Handedness); err != nil {
			return "handedness must be left, right or empty"
		}
		b.Handedness = strings.ToLower(b.Handedness)
	}
	if len(b.Config) > 0 && !json.Valid(b.Config) {
		return "config must be valid JSON"
	}
	if h.plugins == nil {
		return ""
	}
	p, err := h.plugins.Get(b.PluginName)
	if errors.Is(err, plugin.ErrPluginNotFound) {
		return "Plugin not found"
	}
	if err != nil {
		return err.Error()
	}
	if !p.Manifest.HasAction(b.ActionName) {
		return "Plugin has no action " + b.ActionName
	}
	if !p.Manifest.Accepts(b.Event) {
		return "Plugin does not accept " + b.Event + " events"
	}
	return ""
}

func (h *BindingHandler) storeError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Binding not found")
		return
	}
	writeError(w, http.StatusInternalServerError, msg)
}
