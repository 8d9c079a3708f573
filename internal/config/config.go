// Package config holds the tunable thresholds and runtime settings for mudra.
//
// The filter constants were tuned empirically on head-mounted hand tracking;
// they are exposed so deployments can re-tune them without a rebuild.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// maxFileSize caps the size of a config file read from disk.
const maxFileSize = 1 * 1024 * 1024

// Hand settings select which handedness is tracked.
const (
	HandsNone  = "none"
	HandsLeft  = "left"
	HandsRight = "right"
	HandsBoth  = "both"
)

// Device kinds understood by device.Open.
const (
	DeviceMock   = "mock"
	DeviceReplay = "replay"
	DeviceWebcam = "webcam"
)

// Config is the root configuration document.
type Config struct {
	Filter  FilterConfig `json:"filter"`
	Hand    HandConfig   `json:"hand"`
	Gaze    GazeConfig   `json:"gaze"`
	Device  DeviceConfig `json:"device"`
	Server  ServerConfig `json:"server"`
	Store   StoreConfig  `json:"store"`
	Plugins PluginConfig `json:"plugins"`
}

// FilterConfig tunes the per-keypoint visibility and smoothing filter and the
// finger end-point transition. Distances are in meters.
type FilterConfig struct {
	// MinHeadDistance hides keypoints closer than this to the head.
	MinHeadDistance float64 `json:"min_head_distance"`
	// LostKeypointDistance hides a keypoint that collapses onto one of its decay points.
	LostKeypointDistance float64 `json:"lost_keypoint_distance"`
	// FoundKeypointDistance is the separation a lost keypoint needs before it is found again.
	FoundKeypointDistance float64 `json:"found_keypoint_distance"`
	// MaxJitterDistance is the travel over two frames at which stability drops to zero.
	MaxJitterDistance float64 `json:"max_jitter_distance"`
	SmoothTimeSeconds float64 `json:"smooth_time_seconds"`
	// StabilityBlendRate scales frame time into the stability low-pass blend factor.
	StabilityBlendRate float64 `json:"stability_blend_rate"`
	HistorySize        int     `json:"history_size"`
	// VisibleStableTimeout is how long a keypoint must stay found to count as stable.
	VisibleStableTimeout Duration `json:"visible_stable_timeout"`
	// NearClipPlane is the distance in front of the head below which keypoints are
	// clipped. Zero disables clipping.
	NearClipPlane       float64 `json:"near_clip_plane"`
	HideInsideClipPlane bool    `json:"hide_inside_clip_plane"`

	EndTransitionTime        Duration `json:"end_transition_time"`
	EndTransitionMaxDuration Duration `json:"end_transition_max_duration"`
	EndArrivalDistance       float64  `json:"end_arrival_distance"`
}

// HandConfig tunes hand visibility and the pointer ray model.
type HandConfig struct {
	VisibleConfidenceHigh float64 `json:"hand_visible_confidence_high"`
	VisibleConfidenceLow  float64 `json:"hand_visible_confidence_low"`
	// ShoulderWidth and ShoulderDistanceBelowHead place the virtual shoulder the
	// pointer ray is cast from.
	ShoulderWidth             float64 `json:"shoulder_width"`
	ShoulderDistanceBelowHead float64 `json:"shoulder_distance_below_head"`
	// PointerOriginBlend mixes the thumb knuckle (0) and palm center (1) into the ray origin.
	PointerOriginBlend    float64 `json:"pointer_origin_blend"`
	PointingPoseThreshold float64 `json:"pointing_pose_threshold"`
	// RotationSmoothTime damps the palm orientation. Zero disables smoothing.
	RotationSmoothTime Duration `json:"rotation_smooth_time"`
	Track              string   `json:"track"`
	// Timeout drops a hand that the device has stopped reporting.
	Timeout Duration `json:"timeout"`
}

// GazeConfig tunes eye gaze smoothing and saccade detection.
type GazeConfig struct {
	Smooth                  bool    `json:"smooth"`
	SmoothFactor            float64 `json:"smooth_factor"`
	SaccadeThresholdDegrees float64 `json:"saccade_threshold_degrees"`
	SaccadeConfirmSamples   int     `json:"saccade_confirm_samples"`
}

// DeviceConfig selects and configures the tracking device.
type DeviceConfig struct {
	Kind string `json:"kind"`
	FPS  int    `json:"fps"`

	// Webcam settings.
	CameraID        int      `json:"camera_id"`
	IdleFPS         int      `json:"idle_fps"`
	MotionThreshold float64  `json:"motion_threshold"`
	IdleTimeout     Duration `json:"idle_timeout"`
	MaxHands        int      `json:"max_hands"`
	MinConfidence   float64  `json:"min_confidence"`
	ScriptPath      string   `json:"script_path,omitempty"`

	// Replay settings.
	RecordingID string `json:"recording_id,omitempty"`
	Loop        bool   `json:"loop"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string `json:"addr"`
	StaticDir string `json:"static_dir,omitempty"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	Path string `json:"path,omitempty"`
}

// PluginConfig configures plugin discovery and execution.
type PluginConfig struct {
	Dir     string   `json:"dir,omitempty"`
	Timeout Duration `json:"timeout"`
}

// Default returns the tuned defaults.
func Default() *Config {
	return &Config{
		Filter: FilterConfig{
			MinHeadDistance:          0.254,
			LostKeypointDistance:     0.00462,
			FoundKeypointDistance:    0.01905,
			MaxJitterDistance:        0.0254,
			SmoothTimeSeconds:        0.1,
			StabilityBlendRate:       5,
			HistorySize:              6,
			VisibleStableTimeout:     Duration(250 * time.Millisecond),
			NearClipPlane:            0,
			HideInsideClipPlane:      false,
			EndTransitionTime:        Duration(100 * time.Millisecond),
			EndTransitionMaxDuration: Duration(500 * time.Millisecond),
			EndArrivalDistance:       0.001,
		},
		Hand: HandConfig{
			VisibleConfidenceHigh:     0.85,
			VisibleConfidenceLow:      0.80,
			ShoulderWidth:             0.37465,
			ShoulderDistanceBelowHead: 0.2159,
			PointerOriginBlend:        0.5,
			PointingPoseThreshold:     0.3,
			RotationSmoothTime:        Duration(50 * time.Millisecond),
			Track:                     HandsBoth,
			Timeout:                   Duration(500 * time.Millisecond),
		},
		Gaze: GazeConfig{
			Smooth:                  true,
			SmoothFactor:            0.96,
			SaccadeThresholdDegrees: 2.5,
			SaccadeConfirmSamples:   4,
		},
		Device: DeviceConfig{
			Kind:            DeviceMock,
			FPS:             30,
			IdleFPS:         5,
			MotionThreshold: 1.0,
			IdleTimeout:     Duration(2 * time.Second),
			MaxHands:        2,
			MinConfidence:   0.5,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Plugins: PluginConfig{
			Timeout: Duration(5 * time.Second),
		},
	}
}

// Load reads a JSON config file. Fields missing from the file keep their defaults,
// so partial files are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cleanPath, err)
	}
	return cfg, nil
}

// Parse decodes a JSON document over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every setting that is out of range.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	f := c.Filter
	check(f.MinHeadDistance >= 0, "filter.min_head_distance must be >= 0")
	check(f.LostKeypointDistance > 0, "filter.lost_keypoint_distance must be > 0")
	check(f.FoundKeypointDistance >= f.LostKeypointDistance,
		"filter.found_keypoint_distance (%g) must be >= lost_keypoint_distance (%g)",
		f.FoundKeypointDistance, f.LostKeypointDistance)
	check(f.MaxJitterDistance > 0, "filter.max_jitter_distance must be > 0")
	check(f.SmoothTimeSeconds > 0, "filter.smooth_time_seconds must be > 0")
	check(f.StabilityBlendRate > 0, "filter.stability_blend_rate must be > 0")
	check(f.HistorySize >= 3, "filter.history_size must be >= 3, got %d", f.HistorySize)
	check(f.NearClipPlane >= 0, "filter.near_clip_plane must be >= 0")
	check(f.EndTransitionTime > 0, "filter.end_transition_time must be > 0")
	check(f.EndTransitionMaxDuration >= f.EndTransitionTime,
		"filter.end_transition_max_duration must be >= end_transition_time")

	h := c.Hand
	check(h.VisibleConfidenceHigh > 0 && h.VisibleConfidenceHigh <= 1,
		"hand.hand_visible_confidence_high must be in (0,1]")
	check(h.VisibleConfidenceLow > 0 && h.VisibleConfidenceLow <= h.VisibleConfidenceHigh,
		"hand.hand_visible_confidence_low must be in (0, high]")
	check(h.PointerOriginBlend >= 0 && h.PointerOriginBlend <= 1, "hand.pointer_origin_blend must be in [0,1]")
	check(h.RotationSmoothTime >= 0, "hand.rotation_smooth_time must be >= 0")
	check(h.Timeout >= 0, "hand.timeout must be >= 0")
	switch h.Track {
	case HandsNone, HandsLeft, HandsRight, HandsBoth:
	default:
		errs = append(errs, fmt.Errorf("hand.track must be one of none, left, right, both; got %q", h.Track))
	}

	g := c.Gaze
	check(g.SmoothFactor >= 0 && g.SmoothFactor < 1, "gaze.smooth_factor must be in [0,1)")
	check(g.SaccadeThresholdDegrees > 0, "gaze.saccade_threshold_degrees must be > 0")
	check(g.SaccadeConfirmSamples >= 1, "gaze.saccade_confirm_samples must be >= 1")

	d := c.Device
	switch d.Kind {
	case DeviceMock, DeviceWebcam:
	case DeviceReplay:
		check(d.RecordingID != "", "device.recording_id is required for replay")
	default:
		errs = append(errs, fmt.Errorf("device.kind %q is not supported", d.Kind))
	}
	check(d.FPS > 0, "device.fps must be > 0")

	check(c.Plugins.Timeout > 0, "plugins.timeout must be > 0")

	return errors.Join(errs...)
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
