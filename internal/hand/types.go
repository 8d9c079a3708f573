// Package hand filters raw hand skeleton samples into stable keypoints,
// fingers and hand poses.
//
// Everything here is driven from a single frame loop: the caller builds one
// Hand per tracked hand and calls Update once per device frame. Nothing blocks
// and nothing returns an error; an untrustworthy sample simply makes the
// affected keypoint, finger or hand report that it is not visible.
package hand

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/mudra/internal/motion"
)

// Handedness identifies a physical hand.
type Handedness string

const (
	Left  Handedness = "left"
	Right Handedness = "right"
)

// ParseHandedness accepts "left"/"right" in any case, as reported by trackers.
func ParseHandedness(s string) (Handedness, error) {
	switch strings.ToLower(s) {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return "", fmt.Errorf("unknown handedness %q", s)
}

// Intent is the discrete hand pose reported by the tracking device.
type Intent string

const (
	IntentNone     Intent = "none"
	IntentOpen     Intent = "open"
	IntentPointing Intent = "pointing"
	IntentPinching Intent = "pinching"
	IntentGrasping Intent = "grasping"
)

// Grips reports whether the intent closes the hand around something.
func (i Intent) Grips() bool {
	return i == IntentPinching || i == IntentGrasping
}

// Transition is a change of visibility produced by an Update call.
type Transition int

const (
	NoChange Transition = iota
	Found
	Lost
)

func (t Transition) String() string {
	switch t {
	case Found:
		return "found"
	case Lost:
		return "lost"
	default:
		return "none"
	}
}

// KeypointID indexes a landmark slot in a hand skeleton.
type KeypointID int

const (
	ThumbKnuckle KeypointID = iota
	ThumbJoint
	ThumbTip
	IndexKnuckle
	IndexJoint
	IndexTip
	MiddleKnuckle
	MiddleJoint
	MiddleTip
	RingKnuckle
	RingTip
	PinkyKnuckle
	PinkyTip
	Wrist
	Center
	NumKeypoints
)

var keypointNames = [NumKeypoints]string{
	"thumb_knuckle", "thumb_joint", "thumb_tip",
	"index_knuckle", "index_joint", "index_tip",
	"middle_knuckle", "middle_joint", "middle_tip",
	"ring_knuckle", "ring_tip",
	"pinky_knuckle", "pinky_tip",
	"wrist", "center",
}

func (id KeypointID) String() string {
	if id < 0 || id >= NumKeypoints {
		return fmt.Sprintf("keypoint(%d)", int(id))
	}
	return keypointNames[id]
}

// FingerType names a digit.
type FingerType int

const (
	Thumb FingerType = iota
	Index
	Middle
	Ring
	Pinky
	NumFingers
)

func (f FingerType) String() string {
	switch f {
	case Thumb:
		return "thumb"
	case Index:
		return "index"
	case Middle:
		return "middle"
	case Ring:
		return "ring"
	case Pinky:
		return "pinky"
	}
	return fmt.Sprintf("finger(%d)", int(f))
}

// KeypointType selects a point along a finger.
type KeypointType int

const (
	MCP KeypointType = iota // knuckle
	PIP                     // middle joint, absent on two point fingers
	Tip
)

// fingerChains lists each finger's keypoints from knuckle to tip.
var fingerChains = [NumFingers][]KeypointID{
	Thumb:  {ThumbKnuckle, ThumbJoint, ThumbTip},
	Index:  {IndexKnuckle, IndexJoint, IndexTip},
	Middle: {MiddleKnuckle, MiddleJoint, MiddleTip},
	Ring:   {RingKnuckle, RingTip},
	Pinky:  {PinkyKnuckle, PinkyTip},
}

// Landmark is one raw sensor position. Valid is false when the device did
// not report the point this frame.
type Landmark struct {
	Position r3.Vec `json:"position"`
	Valid    bool   `json:"valid"`
}

// Sample is one device reading for one hand.
type Sample struct {
	Handedness    Handedness             `json:"handedness"`
	Confidence    float64                `json:"confidence"`
	Intent        Intent                 `json:"intent"`
	Rotation      quat.Number            `json:"rotation"`
	PinchPosition r3.Vec                 `json:"pinch_position"`
	Keypoints     [NumKeypoints]Landmark `json:"keypoints"`
}

// Tick carries the per-frame context shared by every filter in a frame.
type Tick struct {
	Now   time.Time
	Delta float64 // seconds since the previous frame
	Head  motion.Pose
}

// ParseKeypoint looks up a keypoint by its String name.
func ParseKeypoint(name string) (KeypointID, error) {
	for id, n := range keypointNames {
		if n == name {
			return KeypointID(id), nil
		}
	}
	return 0, fmt.Errorf("unknown keypoint %q", name)
}
