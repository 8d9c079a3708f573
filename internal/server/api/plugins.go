package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/mudra/internal/plugin"
)

// PluginLister lists discovered plugins. *plugin.Manager satisfies it.
type PluginLister interface {
	List() []*plugin.Plugin
}

// PluginRescanner is implemented by *app.App; POST /api/plugins calls it.
type PluginRescanner interface {
	DiscoverPlugins() error
}

// PluginHandler handles /api/plugins.
type PluginHandler struct {
	plugins PluginLister
	scanner PluginRescanner
}

// NewPluginHandler returns a handler. scanner may be nil, which disables
// rescanning.
func NewPluginHandler(plugins PluginLister, scanner PluginRescanner) *PluginHandler {
	return &PluginHandler{plugins: plugins, scanner: scanner}
}

type pluginResponse struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Actions      []string        `json:"actions"`
	Events       []string        `json:"events"`
	ConfigSchema json.RawMessage `json:"config_schema,omitempty"`
}

type listPluginsResponse struct {
	Plugins []pluginResponse `json:"plugins"`
}

func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w)
	case http.MethodPost:
		if h.scanner == nil {
			writeError(w, http.StatusServiceUnavailable, "Plugin discovery not available")
			return
		}
		if err := h.scanner.DiscoverPlugins(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.list(w)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *PluginHandler) list(w http.ResponseWriter) {
	plugins := h.plugins.List()
	resp := listPluginsResponse{Plugins: make([]pluginResponse, 0, len(plugins))}
	for _, p := range plugins {
		m := p.Manifest
		events := m.Events
		if events == nil {
			events = []string{}
		}
		resp.Plugins = append(resp.Plugins, pluginResponse{
			Name:         m.Name,
			Version:      m.Version,
			Description:  m.Description,
			Actions:      m.Actions,
			Events:       events,
			ConfigSchema: m.ConfigSchema,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
