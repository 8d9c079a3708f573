package device

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/motion"
)

// MediaPipe hand landmark indices.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D is a MediaPipe landmark: x and y normalized to the image, z the
// depth relative to the wrist on roughly the same scale as x.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Landmarks is one hand as reported by MediaPipe.
type Landmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// keypointSources maps each tracked keypoint to its MediaPipe landmark. The
// palm center has no landmark of its own.
var keypointSources = [hand.NumKeypoints]int{
	hand.ThumbKnuckle:  ThumbMCP,
	hand.ThumbJoint:    ThumbIP,
	hand.ThumbTip:      ThumbTip,
	hand.IndexKnuckle:  IndexMCP,
	hand.IndexJoint:    IndexPIP,
	hand.IndexTip:      IndexTip,
	hand.MiddleKnuckle: MiddleMCP,
	hand.MiddleJoint:   MiddlePIP,
	hand.MiddleTip:     MiddleTip,
	hand.RingKnuckle:   RingMCP,
	hand.RingTip:       RingTip,
	hand.PinkyKnuckle:  PinkyMCP,
	hand.PinkyTip:      PinkyTip,
	hand.Wrist:         Wrist,
	hand.Center:        -1,
}

// Intent thresholds, relative to the wrist to middle knuckle distance.
const (
	pinchRatio = 0.3
	// imageMargin is how far outside the frame a landmark may sit before it
	// is treated as a guess and dropped.
	imageMargin = 0.05
)

// Geometry places the normalized image landmarks in meters, in a frame
// where the camera is the head looking down +Z.
type Geometry struct {
	// Depth is the assumed distance from the camera to the hand.
	Depth float64
	// Width is the horizontal extent of the view at Depth.
	Width float64
	// Aspect is image height over width.
	Aspect float64
}

// DefaultGeometry fits a laptop webcam with the hand at arm's length.
var DefaultGeometry = Geometry{Depth: 0.5, Width: 0.6, Aspect: 0.75}

func (g Geometry) position(p Point3D) r3.Vec {
	return r3.Vec{
		X: (p.X - 0.5) * g.Width,
		Y: (0.5 - p.Y) * g.Width * g.Aspect,
		Z: g.Depth + p.Z*g.Width,
	}
}

func inFrame(p Point3D) bool {
	return p.X >= -imageMargin && p.X <= 1+imageMargin && p.Y >= -imageMargin && p.Y <= 1+imageMargin
}

// ToSample converts MediaPipe landmarks into a raw hand sample.
func ToSample(lm Landmarks, g Geometry) (hand.Sample, error) {
	handedness, err := hand.ParseHandedness(lm.Handedness)
	if err != nil {
		return hand.Sample{}, err
	}

	var pos [NumLandmarks]r3.Vec
	for i, p := range lm.Points {
		pos[i] = g.position(p)
	}

	s := hand.Sample{
		Handedness: handedness,
		Confidence: lm.Score,
	}
	for id, src := range keypointSources {
		if src < 0 {
			continue
		}
		s.Keypoints[id] = hand.Landmark{Position: pos[src], Valid: inFrame(lm.Points[src])}
	}
	s.Keypoints[hand.Center] = hand.Landmark{
		Position: motion.LerpVec(pos[Wrist], pos[MiddleMCP], 0.5),
		Valid:    inFrame(lm.Points[Wrist]) && inFrame(lm.Points[MiddleMCP]),
	}

	s.PinchPosition = motion.LerpVec(pos[ThumbTip], pos[IndexTip], 0.5)
	s.Rotation = palmRotation(pos, handedness)
	s.Intent = classify(pos)
	return s, nil
}

// palmRotation builds the hand orientation: forward runs from the wrist
// along the middle finger and up leaves the back of the hand.
func palmRotation(pos [NumLandmarks]r3.Vec, handedness hand.Handedness) quat.Number {
	fingers := r3.Sub(pos[MiddleMCP], pos[Wrist])
	across := r3.Sub(pos[IndexMCP], pos[PinkyMCP])
	back := r3.Cross(across, fingers)
	if handedness == hand.Left {
		back = r3.Scale(-1, back)
	}
	return motion.LookRotation(fingers, back)
}

func classify(pos [NumLandmarks]r3.Vec) hand.Intent {
	size := motion.Distance(pos[Wrist], pos[MiddleMCP])
	if size < 1e-6 {
		return hand.IntentNone
	}

	if motion.Distance(pos[ThumbTip], pos[IndexTip])/size < pinchRatio {
		return hand.IntentPinching
	}

	curled := func(pip, tip int) bool {
		return motion.Distance(pos[tip], pos[Wrist]) < motion.Distance(pos[pip], pos[Wrist])
	}
	index := curled(IndexPIP, IndexTip)
	others := 0
	for _, f := range [][2]int{{MiddlePIP, MiddleTip}, {RingPIP, RingTip}, {PinkyPIP, PinkyTip}} {
		if curled(f[0], f[1]) {
			others++
		}
	}

	switch {
	case index && others == 3:
		return hand.IntentGrasping
	case !index && others == 3:
		return hand.IntentPointing
	}
	return hand.IntentOpen
}
