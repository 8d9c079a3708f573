// Package report replays recorded frames through a fresh tracking session and
// charts how the filter treated a single keypoint.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/device"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/motion"
	"github.com/ayusman/mudra/internal/tracking"
)

// ErrEmpty is returned when a trajectory has no visible samples.
var ErrEmpty = errors.New("trajectory has no visible samples")

// maxFrames bounds a trace so a looping provider cannot run forever.
const maxFrames = 100_000

// Point is one visible sample of a keypoint.
type Point struct {
	Seconds  float64 `json:"seconds"`
	Raw      r3.Vec  `json:"raw"`
	Filtered r3.Vec  `json:"filtered"`
}

// Trajectory is the raw and filtered path of one keypoint.
type Trajectory struct {
	Handedness hand.Handedness `json:"handedness"`
	Keypoint   hand.KeypointID `json:"keypoint"`
	Points     []Point         `json:"points"`
}

// Tracer collects a trajectory from snapshots.
type Tracer struct {
	traj    Trajectory
	started bool
	start   time.Time
}

// NewTracer returns a tracer for one keypoint of one hand.
func NewTracer(h hand.Handedness, kp hand.KeypointID) *Tracer {
	return &Tracer{traj: Trajectory{Handedness: h, Keypoint: kp}}
}

// Add records the keypoint from a snapshot if it is visible.
func (t *Tracer) Add(s tracking.Snapshot) {
	hs := s.Hand(t.traj.Handedness)
	if hs == nil || !hs.Visible {
		return
	}
	j, ok := hs.Joints[t.traj.Keypoint.String()]
	if !ok || !j.Visible {
		return
	}
	if !t.started {
		t.start, t.started = s.Time, true
	}
	t.traj.Points = append(t.traj.Points, Point{
		Seconds:  s.Time.Sub(t.start).Seconds(),
		Raw:      j.Raw,
		Filtered: j.Pose.Position,
	})
}

// Trajectory returns the points collected so far.
func (t *Tracer) Trajectory() Trajectory { return t.traj }

// Trace runs frames through a new session.
func Trace(cfg *config.Config, caps device.Capability, frames []*device.Frame, h hand.Handedness, kp hand.KeypointID) Trajectory {
	session := tracking.NewSession(cfg, caps)
	tr := NewTracer(h, kp)
	for _, f := range frames {
		tr.Add(session.Update(f))
	}
	return tr.Trajectory()
}

// TraceProvider polls p until it reports ErrEndOfStream.
func TraceProvider(ctx context.Context, cfg *config.Config, p device.Provider, h hand.Handedness, kp hand.KeypointID) (Trajectory, error) {
	session := tracking.NewSession(cfg, p.Capabilities())
	tr := NewTracer(h, kp)
	for i := 0; i < maxFrames; i++ {
		f, err := p.Poll(ctx)
		if errors.Is(err, device.ErrEndOfStream) {
			break
		}
		if err != nil {
			return Trajectory{}, fmt.Errorf("poll %s: %w", p.Name(), err)
		}
		tr.Add(session.Update(f))
	}
	return tr.Trajectory(), nil
}

// TraceRecording replays a stored recording once.
func TraceRecording(ctx context.Context, cfg *config.Config, src device.FrameSource, recordingID string, h hand.Handedness, kp hand.KeypointID) (Trajectory, error) {
	replay, err := device.NewReplay(src, recordingID, false)
	if err != nil {
		return Trajectory{}, err
	}
	defer replay.Close()
	return TraceProvider(ctx, cfg, replay, h, kp)
}

// MeanStep returns the average distance between consecutive raw and
// filtered positions.
func (t Trajectory) MeanStep() (raw, filtered float64) {
	if len(t.Points) < 2 {
		return 0, 0
	}
	for i := 1; i < len(t.Points); i++ {
		raw += motion.Distance(t.Points[i].Raw, t.Points[i-1].Raw)
		filtered += motion.Distance(t.Points[i].Filtered, t.Points[i-1].Filtered)
	}
	n := float64(len(t.Points) - 1)
	return raw / n, filtered / n
}
