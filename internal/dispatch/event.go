// Package dispatch turns consecutive tracking snapshots into input events and
// routes them to plugin bindings.
package dispatch

import (
	"time"

	"github.com/ayusman/mudra/internal/gaze"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/motion"
	"github.com/ayusman/mudra/internal/tracking"
)

// Kind names an input event.
type Kind string

const (
	SourceDetected Kind = "source_detected"
	SourceLost     Kind = "source_lost"
	PointerPose    Kind = "pointer_pose"
	GripPose       Kind = "grip_pose"
	IndexPose      Kind = "index_pose"
	SelectDown     Kind = "select_down"
	SelectUp       Kind = "select_up"
	GripDown       Kind = "grip_down"
	GripUp         Kind = "grip_up"
	Saccade        Kind = "saccade"
)

// Kinds lists every event kind in dispatch order.
var Kinds = []Kind{
	SourceDetected, SourceLost,
	PointerPose, GripPose, IndexPose,
	SelectDown, SelectUp, GripDown, GripUp,
	Saccade,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Event is one input event. Handedness is empty for gaze events.
type Event struct {
	Kind       Kind            `json:"kind"`
	Handedness hand.Handedness `json:"handedness,omitempty"`
	Time       time.Time       `json:"time"`
	Pose       *motion.Pose    `json:"pose,omitempty"`
	Gaze       *gaze.Ray       `json:"gaze,omitempty"`
	Saccade    *gaze.Saccade   `json:"saccade,omitempty"`
}

// Dispatcher diffs snapshots. It holds no state between calls.
type Dispatcher struct{}

// NewDispatcher returns a dispatcher.
func NewDispatcher() *Dispatcher { return &Dispatcher{} }

// Dispatch returns the events that take prev to next. Pose events fire only
// for visible hands whose pose changed. A hand that disappears while pinching
// releases select and grip before it is lost.
func (d *Dispatcher) Dispatch(prev, next tracking.Snapshot) []Event {
	var events []Event
	emit := func(k Kind, h hand.Handedness, pose *motion.Pose) {
		events = append(events, Event{Kind: k, Handedness: h, Time: next.Time, Pose: pose})
	}

	for _, h := range []hand.Handedness{hand.Left, hand.Right} {
		before, after := prev.Hand(h), next.Hand(h)
		wasVisible := before != nil && before.Visible
		isVisible := after != nil && after.Visible
		wasPinching := wasVisible && before.Pinching
		isPinching := isVisible && after.Pinching

		if isVisible && !wasVisible {
			emit(SourceDetected, h, nil)
		}
		if isVisible {
			if !wasVisible || after.Pointer != before.Pointer {
				p := after.Pointer
				emit(PointerPose, h, &p)
			}
			if !wasVisible || after.Grip != before.Grip {
				p := after.Grip
				emit(GripPose, h, &p)
			}
			if !wasVisible || after.Index != before.Index {
				p := after.Index
				emit(IndexPose, h, &p)
			}
		}
		switch {
		case isPinching && !wasPinching:
			p := after.Grip
			emit(SelectDown, h, &p)
			emit(GripDown, h, &p)
		case wasPinching && !isPinching:
			p := before.Grip
			emit(SelectUp, h, &p)
			emit(GripUp, h, &p)
		}
		if wasVisible && !isVisible {
			emit(SourceLost, h, nil)
		}
	}

	if g := next.Gaze; g != nil && g.Saccade.Any {
		ray, sac := g.Ray, g.Saccade
		events = append(events, Event{Kind: Saccade, Time: next.Time, Gaze: &ray, Saccade: &sac})
	}
	return events
}
