// Package main provides a system control plugin for macOS.
// It handles volume, brightness, and media playback controls via AppleScript
// in response to hand and gaze input events.
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
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

// pose is the subset of a pose event this plugin reads. Positions are in
// meters relative to the tracking origin.
type pose struct {
	Position struct {
		X, Y, Z float64
	} `json:"position"`
}

// HeightConfig maps a hand height range onto the volume range.
type HeightConfig struct {
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// actionHandler defines a function type for handling specific actions.
type actionHandler func(req Request) error

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"volume-up":        volumeUp,
	"volume-down":      volumeDown,
	"volume-mute":      volumeMute,
	"brightness-up":    brightnessUp,
	"brightness-down":  brightnessDown,
	"media-play-pause": mediaPlayPause,
	"media-next":       mediaNext,
	"media-prev":       mediaPrev,
	"volume-by-height": volumeByHeight,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	if err := handler(req); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse()
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	resp := Response{
		Success: true,
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

// volumeUp increases the system volume by 10%.
func volumeUp(Request) error {
	script := `set volume output volume ((output volume of (get volume settings)) + 10)`
	return runAppleScript(script)
}

// volumeDown decreases the system volume by 10%.
func volumeDown(Request) error {
	script := `set volume output volume ((output volume of (get volume settings)) - 10)`
	return runAppleScript(script)
}

// volumeMute toggles the system mute state.
func volumeMute(Request) error {
	script := `set volume output muted (not (output muted of (get volume settings)))`
	return runAppleScript(script)
}

// brightnessUp increases the screen brightness.
func brightnessUp(Request) error {
	script := `tell application "System Events"
	key code 144
end tell`
	return runAppleScript(script)
}

// brightnessDown decreases the screen brightness.
func brightnessDown(Request) error {
	script := `tell application "System Events"
	key code 145
end tell`
	return runAppleScript(script)
}

// mediaPlayPause toggles media play/pause using the F8/Play-Pause media key.
func mediaPlayPause(Request) error {
	script := `tell application "System Events"
	key code 100
end tell`
	return runAppleScript(script)
}

// mediaNext skips to the next track using the F9/Next media key.
func mediaNext(Request) error {
	script := `tell application "System Events"
	key code 101
end tell`
	return runAppleScript(script)
}

// mediaPrev skips to the previous track using the F7/Previous media key.
func mediaPrev(Request) error {
	script := `tell application "System Events"
	key code 98
end tell`
	return runAppleScript(script)
}

// volumeByHeight sets the volume from the height of a pose event. The
// binding config gives the height range; below it is silent, above it is full.
func volumeByHeight(req Request) error {
	if len(req.Pose) == 0 {
		return fmt.Errorf("event %s carries no pose", req.Event)
	}
	var p pose
	if err := json.Unmarshal(req.Pose, &p); err != nil {
		return fmt.Errorf("failed to parse pose: %w", err)
	}
	cfg := HeightConfig{MinY: -0.4, MaxY: 0.1}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if cfg.MaxY <= cfg.MinY {
		return fmt.Errorf("max_y must be above min_y")
	}
	return runAppleScript(fmt.Sprintf("set volume output volume %d", heightToVolume(p.Position.Y, cfg)))
}

func heightToVolume(y float64, cfg HeightConfig) int {
	t := (y - cfg.MinY) / (cfg.MaxY - cfg.MinY)
	return int(math.Round(100 * math.Max(0, math.Min(1, t))))
}
