package hand

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/mudra/internal/motion"
)

// openPalmOffsets places an upright open right hand around its palm center,
// in meters.
var openPalmOffsets = [NumKeypoints]r3.Vec{
	ThumbKnuckle:  {X: -0.030, Y: -0.040},
	ThumbJoint:    {X: -0.050, Y: -0.010},
	ThumbTip:      {X: -0.070, Y: 0.020},
	IndexKnuckle:  {X: -0.020, Y: 0.040},
	IndexJoint:    {X: -0.020, Y: 0.080},
	IndexTip:      {X: -0.020, Y: 0.120},
	MiddleKnuckle: {X: 0.000, Y: 0.045},
	MiddleJoint:   {X: 0.000, Y: 0.090},
	MiddleTip:     {X: 0.000, Y: 0.135},
	RingKnuckle:   {X: 0.022, Y: 0.040},
	RingTip:       {X: 0.022, Y: 0.115},
	PinkyKnuckle:  {X: 0.042, Y: 0.030},
	PinkyTip:      {X: 0.042, Y: 0.090},
	Wrist:         {X: 0.000, Y: -0.080},
	Center:        {},
}

// OpenPalmSample returns a confident open hand whose palm center sits at center.
// Left hands are mirrored across the palm.
func OpenPalmSample(handedness Handedness, center r3.Vec) Sample {
	s := Sample{
		Handedness: handedness,
		Confidence: 0.95,
		Intent:     IntentOpen,
		Rotation:   motion.Identity,
	}
	for id, off := range openPalmOffsets {
		if handedness == Left {
			off.X = -off.X
		}
		s.Keypoints[id] = Landmark{Position: r3.Add(center, off), Valid: true}
	}
	s.PinchPosition = midpoint(s.Keypoints[ThumbTip].Position, s.Keypoints[IndexTip].Position)
	return s
}

// PinchSample returns an open hand with the thumb and index tips brought
// together and a pinching intent.
func PinchSample(handedness Handedness, center r3.Vec) Sample {
	s := OpenPalmSample(handedness, center)
	s.Intent = IntentPinching
	side := 1.0
	if handedness == Left {
		side = -1
	}
	s.Keypoints[ThumbTip].Position = r3.Add(center, r3.Vec{X: -0.030 * side, Y: 0.070, Z: -0.030})
	s.Keypoints[IndexTip].Position = r3.Add(center, r3.Vec{X: -0.028 * side, Y: 0.075, Z: -0.030})
	s.PinchPosition = midpoint(s.Keypoints[ThumbTip].Position, s.Keypoints[IndexTip].Position)
	return s
}

// GraspSample returns a fist-like hand with a grasping intent.
func GraspSample(handedness Handedness, center r3.Vec) Sample {
	s := OpenPalmSample(handedness, center)
	s.Intent = IntentGrasping
	for _, chain := range fingerChains[Index:] {
		tip := chain[len(chain)-1]
		p := s.Keypoints[tip].Position
		s.Keypoints[tip].Position = r3.Vec{X: p.X, Y: center.Y + 0.030, Z: center.Z - 0.040}
	}
	s.PinchPosition = r3.Add(center, r3.Vec{Y: 0.020, Z: -0.030})
	return s
}

func midpoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}
