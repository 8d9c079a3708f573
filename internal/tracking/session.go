// Package tracking runs device frames through the hand and gaze filters and
// produces the per-frame snapshot consumed by dispatch, the API and recorders.
package tracking

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/device"
	"github.com/ayusman/mudra/internal/gaze"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/motion"
)

// defaultDelta is the frame time used for the first frame and for frames
// whose timestamp does not advance.
const defaultDelta = 1.0 / 30

// Joint is the filtered state of one keypoint.
type Joint struct {
	Pose      motion.Pose `json:"pose"`
	Raw       r3.Vec      `json:"raw"`
	Visible   bool        `json:"visible"`
	Stability float64     `json:"stability"`
}

// FingerState is the aggregated state of one finger.
type FingerState struct {
	Visible   bool    `json:"visible"`
	Direction r3.Vec  `json:"direction"`
	Length    float64 `json:"length"`
	End       r3.Vec  `json:"end"`
}

// HandState is one hand in a snapshot.
type HandState struct {
	Handedness   hand.Handedness        `json:"handedness"`
	Visible      bool                   `json:"visible"`
	Confidence   float64                `json:"confidence"`
	Intent       hand.Intent            `json:"intent"`
	Pinching     bool                   `json:"pinching"`
	PointingPose bool                   `json:"pointing_pose"`
	Pointer      motion.Pose            `json:"pointer"`
	Grip         motion.Pose            `json:"grip"`
	Index        motion.Pose            `json:"index"`
	Palm         motion.Pose            `json:"palm"`
	Wrist        motion.Pose            `json:"wrist"`
	Joints       map[string]Joint       `json:"joints"`
	Fingers      map[string]FingerState `json:"fingers"`
	Changes      []hand.Change          `json:"changes,omitempty"`
}

// GazeState is the filtered gaze of a snapshot.
type GazeState struct {
	Ray     gaze.Ray     `json:"ray"`
	Saccade gaze.Saccade `json:"saccade"`
}

// Snapshot is the tracking output for one frame.
type Snapshot struct {
	Seq   uint64      `json:"seq"`
	Time  time.Time   `json:"time"`
	Head  motion.Pose `json:"head"`
	Hands []HandState `json:"hands"`
	Gaze  *GazeState  `json:"gaze,omitempty"`
}

// Hand returns the state for a handedness, or nil when it is not tracked.
func (s *Snapshot) Hand(h hand.Handedness) *HandState {
	for i := range s.Hands {
		if s.Hands[i].Handedness == h {
			return &s.Hands[i]
		}
	}
	return nil
}

type trackedHand struct {
	hand     *hand.Hand
	lastSeen time.Time
}

// Session owns the filter state of one tracking stream. It is not safe for
// concurrent use.
type Session struct {
	filter  config.FilterConfig
	handCfg config.HandConfig
	caps    device.Capability

	track   string
	hands   map[hand.Handedness]*trackedHand
	gaze    *gaze.Smoother
	last    time.Time
	seq     uint64
	hasLast bool
}

// NewSession builds a session for a provider with the given capabilities.
func NewSession(cfg *config.Config, caps device.Capability) *Session {
	return &Session{
		filter:  cfg.Filter,
		handCfg: cfg.Hand,
		caps:    caps,
		track:   cfg.Hand.Track,
		hands:   make(map[hand.Handedness]*trackedHand),
		gaze:    gaze.NewSmoother(cfg.Gaze),
	}
}

// SetTrack changes which hands are tracked. Hands that are no longer
// tracked are dropped on the next Update.
func (s *Session) SetTrack(setting string) error {
	switch setting {
	case config.HandsNone, config.HandsLeft, config.HandsRight, config.HandsBoth:
		s.track = setting
		return nil
	}
	return fmt.Errorf("unknown hand setting %q", setting)
}

// Track returns the current hand setting.
func (s *Session) Track() string { return s.track }

// Tracks reports whether the session accepts samples for a handedness.
func (s *Session) Tracks(h hand.Handedness) bool {
	switch s.track {
	case config.HandsBoth:
		return true
	case config.HandsLeft:
		return h == hand.Left
	case config.HandsRight:
		return h == hand.Right
	}
	return false
}

// Hand returns the filter for a handedness, or nil.
func (s *Session) Hand(h hand.Handedness) *hand.Hand {
	if t, ok := s.hands[h]; ok {
		return t.hand
	}
	return nil
}

// Reset drops all filter state.
func (s *Session) Reset() {
	clear(s.hands)
	s.gaze.Reset()
	s.hasLast = false
}

// Update runs one frame through the filters.
func (s *Session) Update(f *device.Frame) Snapshot {
	dt := defaultDelta
	if s.hasLast {
		if d := f.Time.Sub(s.last).Seconds(); d > 0 {
			dt = d
		}
	}
	s.last, s.hasLast = f.Time, true
	s.seq++

	tick := hand.Tick{Now: f.Time, Delta: dt, Head: f.Head}
	timeout := s.handCfg.Timeout.Std()

	for _, h := range []hand.Handedness{hand.Left, hand.Right} {
		if !s.Tracks(h) {
			delete(s.hands, h)
			continue
		}
		sample := f.Hand(h)
		t, ok := s.hands[h]
		switch {
		case sample != nil && !ok:
			t = &trackedHand{hand: hand.New(h, s.filter, s.handCfg)}
			s.hands[h] = t
		case sample == nil && !ok:
			continue
		case sample == nil && f.Time.Sub(t.lastSeen) > timeout:
			delete(s.hands, h)
			continue
		}
		if sample != nil {
			t.lastSeen = f.Time
		}
		t.hand.Update(tick, sample)
	}

	snap := Snapshot{Seq: s.seq, Time: f.Time, Head: f.Head}
	for h, t := range s.hands {
		snap.Hands = append(snap.Hands, handState(h, t.hand))
	}
	sort.Slice(snap.Hands, func(i, j int) bool {
		return snap.Hands[i].Handedness < snap.Hands[j].Handedness
	})

	if s.caps.Has(device.Eyes) && f.Gaze != nil {
		if ray, sac, ok := s.gaze.Update(*f.Gaze); ok {
			snap.Gaze = &GazeState{Ray: ray, Saccade: sac}
		}
	}
	return snap
}

func handState(h hand.Handedness, hd *hand.Hand) HandState {
	st := HandState{
		Handedness:   h,
		Visible:      hd.Visible(),
		Confidence:   hd.Confidence(),
		Intent:       hd.Intent(),
		Pinching:     hd.IsPinching(),
		PointingPose: hd.IsInPointingPose(),
		Pointer:      hd.PointerPose(),
		Grip:         hd.GripPose(),
		Index:        hd.IndexPose(),
		Palm:         hd.PalmPose(),
		Joints:       make(map[string]Joint, hand.NumKeypoints),
		Fingers:      make(map[string]FingerState, hand.NumFingers),
	}
	st.Wrist, _ = hd.JointPose(hand.Wrist)

	for id := hand.KeypointID(0); id < hand.NumKeypoints; id++ {
		kp := hd.Keypoint(id)
		pose, visible := hd.JointPose(id)
		st.Joints[id.String()] = Joint{
			Pose:      pose,
			Raw:       kp.Raw(),
			Visible:   visible,
			Stability: kp.Stability(),
		}
	}
	for ft := hand.FingerType(0); ft < hand.NumFingers; ft++ {
		f := hd.Finger(ft)
		st.Fingers[ft.String()] = FingerState{
			Visible:   f.Visible(),
			Direction: f.Direction(),
			Length:    f.Length(),
			End:       f.End(),
		}
	}
	if changes := hd.Changes(); len(changes) > 0 {
		st.Changes = append([]hand.Change(nil), changes...)
	}
	return st
}
