// Package plugin discovers external action plugins and runs them in response
// to hand and gaze input events.
package plugin

import "encoding/json"

// Manifest is the plugin.json document found in each plugin directory.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
	// Events lists the event kinds the plugin accepts. Empty accepts all.
	Events       []string        `json:"events,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Accepts reports whether the manifest allows an event kind.
func (m *Manifest) Accepts(event string) bool {
	if len(m.Events) == 0 {
		return true
	}
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// HasAction reports whether the plugin declares an action.
func (m *Manifest) HasAction(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is written to the plugin's stdin as JSON.
type Request struct {
	Action     string          `json:"action"`
	Event      string          `json:"event"`
	Handedness string          `json:"handedness,omitempty"`
	Pose       json.RawMessage `json:"pose,omitempty"`
	Config     json.RawMessage `json:"config"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
