package hand

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/motion"
)

// decayChains lists, per keypoint, the anchors it collapses onto when the
// tracker loses it: the proximal points of its finger nearest first, then
// the palm center. Wrist and center have none.
var decayChains = func() [NumKeypoints][]KeypointID {
	var chains [NumKeypoints][]KeypointID
	for _, chain := range fingerChains {
		for i, id := range chain {
			for j := i - 1; j >= 0; j-- {
				chains[id] = append(chains[id], chain[j])
			}
			chains[id] = append(chains[id], Center)
		}
	}
	return chains
}()

// updateOrder runs the anchors first so their state is current when the
// finger points are filtered.
var updateOrder = func() []KeypointID {
	order := []KeypointID{Center, Wrist}
	for _, chain := range fingerChains {
		order = append(order, chain...)
	}
	return order
}()

// Change records a keypoint or finger visibility transition from the last Update.
type Change struct {
	Keypoint   KeypointID `json:"keypoint"`
	Finger     FingerType `json:"finger"`
	IsFinger   bool       `json:"is_finger"`
	Transition Transition `json:"transition"`
}

// Hand aggregates the keypoints and fingers of one physical hand and derives
// the poses an input system consumes.
type Hand struct {
	handedness Handedness
	filter     config.FilterConfig
	cfg        config.HandConfig

	visible    bool
	confidence float64
	intent     Intent
	head       motion.Pose

	keypoints [NumKeypoints]*Keypoint
	fingers   [NumFingers]*Finger

	rotation         quat.Number
	rotationVelocity quat.Number

	pinching bool
	pointer  motion.Pose
	grip     motion.Pose
	index    motion.Pose

	changes []Change
}

// New returns a hand that is not yet visible.
func New(handedness Handedness, filter config.FilterConfig, cfg config.HandConfig) *Hand {
	h := &Hand{
		handedness: handedness,
		filter:     filter,
		cfg:        cfg,
		intent:     IntentNone,
		rotation:   motion.Identity,
		pointer:    motion.IdentityPose(),
		grip:       motion.IdentityPose(),
		index:      motion.IdentityPose(),
	}
	for i := range h.keypoints {
		h.keypoints[i] = NewKeypoint(filter)
	}
	for ft, chain := range fingerChains {
		points := make([]*Keypoint, len(chain))
		for i, id := range chain {
			points[i] = h.keypoints[id]
		}
		h.fingers[ft] = NewFinger(FingerType(ft), filter, points...)
	}
	return h
}

// Update runs one frame. A nil sample means the device reported nothing for
// this hand, which counts as zero confidence. The returned transition is the
// hand's own visibility change; finer grained changes are in Changes.
func (h *Hand) Update(tick Tick, s *Sample) Transition {
	h.changes = h.changes[:0]
	h.head = tick.Head

	confidence, intent := 0.0, IntentNone
	if s != nil {
		confidence, intent = s.Confidence, s.Intent
	}
	h.confidence = confidence
	h.intent = intent

	tr := h.updateVisibility(confidence, intent)

	if !h.visible {
		h.pinching = false
		for _, id := range updateOrder {
			h.record(id, h.keypoints[id].Update(tick, false, r3.Vec{}))
		}
		for ft, f := range h.fingers {
			h.recordFinger(FingerType(ft), f.Update(tick, false))
		}
		return tr
	}

	h.updateRotation(tick, s.Rotation, tr == Found)

	for _, id := range updateOrder {
		lm := s.Keypoints[id]
		kp := h.keypoints[id]
		if !lm.Valid {
			// unreported this frame; a found point is lost rather than frozen
			h.record(id, kp.Update(tick, false, r3.Vec{}))
			continue
		}
		decay := make([]r3.Vec, 0, len(decayChains[id]))
		for _, anchor := range decayChains[id] {
			if a := s.Keypoints[anchor]; a.Valid {
				decay = append(decay, a.Position)
			}
		}
		h.record(id, kp.Update(tick, true, lm.Position, decay...))
		kp.UpdateRotation(h.rotation, tick.Delta)
	}
	for ft, f := range h.fingers {
		h.recordFinger(FingerType(ft), f.Update(tick, true))
	}

	h.pinching = intent.Grips()
	palm := h.keypoints[Center].Pose()
	if h.pinching {
		h.grip = motion.Pose{Position: s.PinchPosition, Rotation: palm.Rotation}
	} else {
		h.grip = palm
	}
	h.index = h.keypoints[IndexTip].Pose()
	h.pointer = h.pointerRay()
	return tr
}

func (h *Hand) updateVisibility(confidence float64, intent Intent) Transition {
	if !h.visible {
		if confidence > h.cfg.VisibleConfidenceHigh {
			h.visible = true
			return Found
		}
		return NoChange
	}
	minConfidence := h.cfg.VisibleConfidenceHigh
	if intent.Grips() {
		minConfidence = h.cfg.VisibleConfidenceLow
	}
	if confidence <= minConfidence {
		h.visible = false
		return Lost
	}
	return NoChange
}

func (h *Hand) updateRotation(tick Tick, target quat.Number, found bool) {
	target = motion.NormalizeQuat(target)
	if found || h.cfg.RotationSmoothTime <= 0 {
		h.rotation = target
		h.rotationVelocity = quat.Number{}
		return
	}
	h.rotation = motion.SmoothDampQuat(h.rotation, target, &h.rotationVelocity,
		h.cfg.RotationSmoothTime.Seconds(), tick.Delta)
}

// pointerRay casts from a virtual shoulder through a point between the thumb
// knuckle and the palm center.
func (h *Hand) pointerRay() motion.Pose {
	shoulderOffset := h.cfg.ShoulderWidth / 2
	if h.handedness == Left {
		shoulderOffset = -shoulderOffset
	}
	flatForward := motion.ProjectOnPlane(h.head.Forward(), motion.Up)
	shoulder := motion.WorldPosition(h.head.Position, motion.LookRotation(flatForward, motion.Up),
		r3.Vec{X: shoulderOffset, Y: -math.Abs(h.cfg.ShoulderDistanceBelowHead)})

	origin := motion.LerpVec(h.keypoints[ThumbKnuckle].LastValid(), h.keypoints[Center].LastValid(),
		h.cfg.PointerOriginBlend)

	rotation := motion.LookRotation(motion.Normalize(r3.Sub(origin, shoulder)), motion.Rotate(h.rotation, motion.Up))
	return motion.Pose{Position: origin, Rotation: rotation}
}

func (h *Hand) record(id KeypointID, tr Transition) {
	if tr != NoChange {
		h.changes = append(h.changes, Change{Keypoint: id, Transition: tr})
	}
}

func (h *Hand) recordFinger(ft FingerType, tr Transition) {
	if tr != NoChange {
		h.changes = append(h.changes, Change{Finger: ft, IsFinger: true, Transition: tr})
	}
}

// Handedness returns which hand this is.
func (h *Hand) Handedness() Handedness { return h.handedness }

// Visible reports whether the hand passed the confidence hysteresis. When it
// is false no pose from this hand should be trusted.
func (h *Hand) Visible() bool { return h.visible }

// Confidence returns the last device confidence.
func (h *Hand) Confidence() float64 { return h.confidence }

// Intent returns the last device intent.
func (h *Hand) Intent() Intent { return h.intent }

// IsPinching reports a pinch or grasp on a visible hand.
func (h *Hand) IsPinching() bool { return h.pinching }

// Rotation returns the smoothed palm orientation.
func (h *Hand) Rotation() quat.Number { return h.rotation }

// PointerPose returns the far interaction ray.
func (h *Hand) PointerPose() motion.Pose { return h.pointer }

// GripPose returns the pinch point while gripping and the palm pose otherwise.
func (h *Hand) GripPose() motion.Pose { return h.grip }

// IndexPose returns the index fingertip pose.
func (h *Hand) IndexPose() motion.Pose { return h.index }

// PalmPose returns the palm center pose.
func (h *Hand) PalmPose() motion.Pose { return h.keypoints[Center].Pose() }

// Keypoint returns the filter for a landmark slot.
func (h *Hand) Keypoint(id KeypointID) *Keypoint { return h.keypoints[id] }

// Finger returns the aggregator for a digit.
func (h *Hand) Finger(ft FingerType) *Finger { return h.fingers[ft] }

// Changes returns the keypoint and finger transitions of the last Update.
// The slice is reused by the next Update.
func (h *Hand) Changes() []Change { return h.changes }

// JointPose returns a landmark's filtered pose and whether it is visible.
func (h *Hand) JointPose(id KeypointID) (motion.Pose, bool) {
	kp := h.keypoints[id]
	return kp.Pose(), h.visible && kp.Visible()
}

// IsInPointingPose reports whether the palm faces away from the user along
// the view direction.
func (h *Hand) IsInPointingPose() bool {
	if !h.visible {
		return false
	}
	palmUp := motion.Rotate(h.keypoints[Center].Rotation(), motion.Up)
	projected := motion.ProjectOnPlane(r3.Scale(-1, palmUp), h.head.Up())
	return r3.Dot(h.head.Forward(), projected) > h.cfg.PointingPoseThreshold
}

// ResetLengths clears every finger's length estimate.
func (h *Hand) ResetLengths() {
	for _, f := range h.fingers {
		f.ResetLength()
	}
}
