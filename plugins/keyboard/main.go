// Package main provides a keyboard plugin for macOS.
// It sends keyboard shortcuts and keystrokes via AppleScript in response to
// hand input events.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action     string          `json:"action"`
	Event      string          `json:"event"`
	Handedness string          `json:"handedness"`
	Pose       json.RawMessage `json:"pose"`
	Config     json.RawMessage `json:"config"`
	Params     json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// KeystrokeParams defines parameters for keystroke and shortcut actions.
// They come from the binding config.
type KeystrokeParams struct {
	Key       string   `json:"key"`
	KeyCode   *int     `json:"key_code"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
	// Hands limits the binding to the listed hands; empty means either.
	Hands []string `json:"hands"`
}

// modifierMap maps user-friendly modifier names to AppleScript equivalents.
var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Action {
	case "keystroke", "shortcut":
		skipped, err := handleKeystroke(req)
		if err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
		writeSuccessResponse(map[string]any{"event": req.Event, "skipped": skipped})
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
	}
}

// handleKeystroke sends the configured key. It reports true when the
// event's hand is filtered out by the config.
func handleKeystroke(req Request) (bool, error) {
	var p KeystrokeParams
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &p); err != nil {
			return false, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if p.Key == "" && p.KeyCode == nil {
		return false, fmt.Errorf("key or key_code is required")
	}
	if !handAllowed(p.Hands, req.Handedness) {
		return true, nil
	}

	return false, runAppleScript(buildKeystrokeScript(p))
}

func handAllowed(hands []string, handedness string) bool {
	if len(hands) == 0 || handedness == "" {
		return true
	}
	for _, h := range hands {
		if strings.EqualFold(h, handedness) {
			return true
		}
	}
	return false
}

// buildKeystrokeScript generates an AppleScript for the given key and modifiers.
func buildKeystrokeScript(p KeystrokeParams) string {
	command := fmt.Sprintf("keystroke %q", p.Key)
	if p.KeyCode != nil {
		command = fmt.Sprintf("key code %d", *p.KeyCode)
	}

	var appleModifiers []string
	for _, mod := range p.Modifiers {
		if appleMod, ok := modifierMap[strings.ToLower(mod)]; ok {
			appleModifiers = append(appleModifiers, appleMod)
		}
	}

	if len(appleModifiers) == 0 {
		return fmt.Sprintf(`tell application "System Events" to %s`, command)
	}
	return fmt.Sprintf(`tell application "System Events" to %s using {%s}`, command, strings.Join(appleModifiers, ", "))
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse(data any) {
	resp := Response{Success: true}
	if raw, err := json.Marshal(data); err == nil {
		resp.Data = raw
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
