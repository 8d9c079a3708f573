// Package gaze smooths eye gaze rays and detects saccades.
//
// Small fixation jitter is removed with an exponential filter. A large jump
// is only accepted as a saccade once the following samples cluster together
// away from where the eyes were before; isolated outliers are smoothed away.
package gaze

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/motion"
)

// Ray is a gaze origin and unit direction.
type Ray struct {
	Origin    r3.Vec `json:"origin"`
	Direction r3.Vec `json:"direction"`
}

// Sample is one eye tracker reading.
type Sample struct {
	Ray
	Time       time.Time `json:"time"`
	Calibrated bool      `json:"calibrated"`
}

// Saccade describes the jump between the previous output and a new sample.
type Saccade struct {
	Any        bool `json:"any"`
	Horizontal bool `json:"horizontal"`
	Vertical   bool `json:"vertical"`
	// Confirmed is set on the sample where a clustered jump is accepted and
	// the output moved straight to the new gaze.
	Confirmed bool `json:"confirmed"`
}

// Smoother holds the state of one gaze stream.
type Smoother struct {
	cfg config.GazeConfig

	last    Ray
	hasLast bool

	confidence int
	initial    Ray
	cluster    []Ray
}

// NewSmoother returns a smoother with no history.
func NewSmoother(cfg config.GazeConfig) *Smoother {
	return &Smoother{
		cfg:     cfg,
		cluster: make([]Ray, 0, cfg.SaccadeConfirmSamples),
	}
}

// Update applies the calibration gate and, when enabled, smoothing. ok is
// false when the sample must be ignored.
func (s *Smoother) Update(sample Sample) (ray Ray, sac Saccade, ok bool) {
	if !sample.Calibrated {
		return Ray{}, Saccade{}, false
	}
	r := Ray{Origin: sample.Origin, Direction: motion.Normalize(sample.Direction)}
	if r.Direction == (r3.Vec{}) {
		return Ray{}, Saccade{}, false
	}
	if !s.cfg.Smooth {
		if s.hasLast {
			sac = s.compare(s.last, r)
		}
		s.last, s.hasLast = r, true
		return r, sac, true
	}
	ray, sac = s.Smooth(r)
	return ray, sac, true
}

// Smooth filters one ray. The first ray passes through unchanged.
func (s *Smoother) Smooth(r Ray) (Ray, Saccade) {
	if !s.hasLast {
		s.last, s.hasLast = r, true
		return r, Saccade{}
	}

	sac := s.compare(s.last, r)
	threshold := s.cfg.SaccadeConfirmSamples

	switch {
	case sac.Any && s.confidence == 0:
		// possible saccade, possibly an outlier
		s.confidence = 1
		s.initial = s.last
		s.cluster = append(s.cluster[:0], r)
	case s.confidence > 0 && s.confidence < threshold:
		s.confidence++
		for _, c := range s.cluster {
			if s.jumped(c, r) || !s.jumped(s.initial, r) {
				s.confidence = 0
				break
			}
		}
		s.cluster = append(s.cluster, r)
	case s.confidence >= threshold:
		sac.Confirmed = true
	}

	var out Ray
	if sac.Confirmed {
		out = r
		s.confidence = 0
		s.cluster = s.cluster[:0]
	} else {
		k := s.cfg.SmoothFactor
		out = Ray{
			Origin:    r3.Add(r3.Scale(k, s.last.Origin), r3.Scale(1-k, r.Origin)),
			Direction: motion.Normalize(r3.Add(r3.Scale(k, s.last.Direction), r3.Scale(1-k, r.Direction))),
		}
		if out.Direction == (r3.Vec{}) {
			out.Direction = r.Direction
		}
	}

	s.last = out
	return out, sac
}

// Reset forgets all history.
func (s *Smoother) Reset() {
	s.hasLast = false
	s.confidence = 0
	s.cluster = s.cluster[:0]
}

// Last returns the most recent output and whether there is one.
func (s *Smoother) Last() (Ray, bool) { return s.last, s.hasLast }

func (s *Smoother) jumped(a, b Ray) bool {
	return motion.AngleDeg(a.Direction, b.Direction) > s.cfg.SaccadeThresholdDegrees
}

func (s *Smoother) compare(a, b Ray) Saccade {
	if !s.jumped(a, b) {
		return Saccade{}
	}
	yawA, pitchA := angles(a.Direction)
	yawB, pitchB := angles(b.Direction)
	return Saccade{
		Any:        true,
		Horizontal: math.Abs(motion.DeltaAngle(yawA, yawB)) > s.cfg.SaccadeThresholdDegrees,
		Vertical:   math.Abs(pitchB-pitchA) > s.cfg.SaccadeThresholdDegrees,
	}
}

// angles returns yaw around +Y and pitch above the horizon, in degrees.
func angles(d r3.Vec) (yaw, pitch float64) {
	yaw = math.Atan2(d.X, d.Z) * 180 / math.Pi
	pitch = math.Atan2(d.Y, math.Hypot(d.X, d.Z)) * 180 / math.Pi
	return yaw, pitch
}
