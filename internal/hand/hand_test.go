package hand

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/motion"
)

func axisAngle(axis r3.Vec, degrees float64) quat.Number {
	axis = r3.Unit(axis)
	half := degrees * math.Pi / 360
	s := math.Sin(half)
	return quat.Number{Real: math.Cos(half), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

func newTestHand(handedness Handedness) *Hand {
	cfg := config.Default()
	return New(handedness, cfg.Filter, cfg.Hand)
}

var rightCenter = r3.Vec{X: 0.2, Y: -0.25, Z: 0.45}

func TestHand_VisibilityHysteresis(t *testing.T) {
	t.Run("pinching holds through a dip", func(t *testing.T) {
		h := newTestHand(Right)
		s := PinchSample(Right, rightCenter)
		for i, c := range []float64{0.9, 0.82, 0.9} {
			s.Confidence = c
			h.Update(tickAt(i), &s)
			if !h.Visible() {
				t.Fatalf("frame %d (confidence %.2f): expected visible while pinching", i, c)
			}
		}
	})

	t.Run("open hand drops below high threshold", func(t *testing.T) {
		h := newTestHand(Right)
		s := OpenPalmSample(Right, rightCenter)
		s.Confidence = 0.9
		if tr := h.Update(tickAt(0), &s); tr != Found {
			t.Fatalf("expected Found, got %v", tr)
		}
		s.Confidence = 0.83
		if tr := h.Update(tickAt(1), &s); tr != Lost {
			t.Fatalf("expected Lost, got %v", tr)
		}
		if h.Visible() {
			t.Error("expected hand hidden at 0.83 without a pinch")
		}
	})

	t.Run("entry needs more than the high threshold", func(t *testing.T) {
		h := newTestHand(Right)
		s := OpenPalmSample(Right, rightCenter)
		s.Confidence = 0.85
		h.Update(tickAt(0), &s)
		if h.Visible() {
			t.Fatal("expected hidden at exactly the high threshold")
		}
		s.Confidence = 0.86
		h.Update(tickAt(1), &s)
		if !h.Visible() {
			t.Error("expected visible above the high threshold")
		}
	})

	t.Run("missing sample hides the hand", func(t *testing.T) {
		h := newTestHand(Right)
		s := OpenPalmSample(Right, rightCenter)
		h.Update(tickAt(0), &s)
		if tr := h.Update(tickAt(1), nil); tr != Lost {
			t.Fatalf("expected Lost, got %v", tr)
		}
		for id := KeypointID(0); id < NumKeypoints; id++ {
			if h.Keypoint(id).Visible() {
				t.Errorf("keypoint %v still visible", id)
			}
		}
		if h.IsPinching() {
			t.Error("hidden hand must not pinch")
		}
	})
}

func TestHand_OpenPalm(t *testing.T) {
	h := newTestHand(Right)
	s := OpenPalmSample(Right, rightCenter)

	h.Update(tickAt(0), &s)
	if got, want := len(h.Changes()), int(NumKeypoints)+int(NumFingers); got != want {
		t.Errorf("expected %d found transitions on the first frame, got %d", want, got)
	}
	for _, c := range h.Changes() {
		if c.Transition != Found {
			t.Errorf("unexpected transition %+v", c)
		}
	}

	for i := 1; i < 10; i++ {
		h.Update(tickAt(i), &s)
	}
	if len(h.Changes()) != 0 {
		t.Errorf("expected a still hand to settle, got %d changes", len(h.Changes()))
	}

	for ft := FingerType(0); ft < NumFingers; ft++ {
		if !h.Finger(ft).Visible() {
			t.Errorf("finger %v not visible", ft)
		}
	}
	if h.IsPinching() {
		t.Error("open palm must not pinch")
	}
	if h.GripPose() != h.PalmPose() {
		t.Errorf("grip %v should equal palm %v", h.GripPose(), h.PalmPose())
	}
	if h.PalmPose().Position != rightCenter {
		t.Errorf("palm = %v, want %v", h.PalmPose().Position, rightCenter)
	}
	if h.IndexPose().Position != s.Keypoints[IndexTip].Position {
		t.Errorf("index = %v, want %v", h.IndexPose().Position, s.Keypoints[IndexTip].Position)
	}
}

func TestHand_Pinch(t *testing.T) {
	h := newTestHand(Right)
	s := PinchSample(Right, rightCenter)
	for i := 0; i < 5; i++ {
		h.Update(tickAt(i), &s)
	}

	if !h.IsPinching() {
		t.Fatal("expected pinch")
	}
	grip := h.GripPose()
	if grip.Position != s.PinchPosition {
		t.Errorf("grip position = %v, want pinch %v", grip.Position, s.PinchPosition)
	}
	if grip.Rotation != h.PalmPose().Rotation {
		t.Errorf("grip rotation = %v, want palm %v", grip.Rotation, h.PalmPose().Rotation)
	}
}

func TestHand_PointerRay(t *testing.T) {
	tests := []struct {
		name       string
		handedness Handedness
		center     r3.Vec
		shoulderX  float64
	}{
		{"right", Right, rightCenter, 0.37465 / 2},
		{"left", Left, r3.Vec{X: -0.2, Y: -0.25, Z: 0.45}, -0.37465 / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHand(tt.handedness)
			s := OpenPalmSample(tt.handedness, tt.center)
			for i := 0; i < 10; i++ {
				h.Update(tickAt(i), &s)
			}

			origin := motion.LerpVec(s.Keypoints[ThumbKnuckle].Position, s.Keypoints[Center].Position, 0.5)
			shoulder := r3.Vec{X: tt.shoulderX, Y: -0.2159}
			want := r3.Unit(r3.Sub(origin, shoulder))

			ray := h.PointerPose()
			if motion.Distance(ray.Position, origin) > 1e-12 {
				t.Errorf("origin = %v, want %v", ray.Position, origin)
			}
			if got := motion.Rotate(ray.Rotation, motion.Forward); motion.Distance(got, want) > 1e-9 {
				t.Errorf("ray direction = %v, want %v", got, want)
			}
		})
	}
}

func TestHand_MissingLandmark(t *testing.T) {
	t.Run("never seen", func(t *testing.T) {
		h := newTestHand(Right)
		s := OpenPalmSample(Right, rightCenter)
		s.Keypoints[IndexTip].Valid = false

		for i := 0; i < 3; i++ {
			h.Update(tickAt(i), &s)
		}
		if !h.Visible() {
			t.Fatal("a missing landmark must not hide the hand")
		}
		if _, ok := h.JointPose(IndexTip); ok {
			t.Error("missing index tip reported as visible")
		}
		if h.Finger(Index).Visible() {
			t.Error("index finger without a tip must not be visible")
		}
		if !h.Finger(Middle).Visible() {
			t.Error("middle finger should be unaffected")
		}
	})

	t.Run("lost after being found", func(t *testing.T) {
		h := newTestHand(Right)
		s := OpenPalmSample(Right, rightCenter)
		frame := 0
		for ; frame < 10; frame++ {
			h.Update(tickAt(frame), &s)
		}
		if !h.Keypoint(IndexTip).Visible() || !h.Finger(Index).Visible() {
			t.Fatal("expected the index finger to be tracked")
		}

		moved := OpenPalmSample(Right, r3.Add(rightCenter, r3.Vec{Y: 0.1}))
		moved.Keypoints[IndexTip].Valid = false
		h.Update(tickAt(frame), &moved)
		frame++

		var lost bool
		for _, c := range h.Changes() {
			if !c.IsFinger && c.Keypoint == IndexTip && c.Transition == Lost {
				lost = true
			}
		}
		if !lost {
			t.Errorf("expected a lost change for the index tip, got %+v", h.Changes())
		}

		for ; frame < 40; frame++ {
			h.Update(tickAt(frame), &moved)
		}
		if h.Keypoint(IndexTip).Visible() {
			t.Error("unreported index tip must not stay visible")
		}
		if _, ok := h.JointPose(IndexTip); ok {
			t.Error("unreported index tip must not report a joint pose")
		}
		if h.Finger(Index).Visible() {
			t.Error("index finger must be hidden once its tip is lost")
		}
		if !h.Finger(Middle).Visible() {
			t.Error("middle finger should be unaffected")
		}
	})
}

func TestHand_PointingPose(t *testing.T) {
	tests := []struct {
		name     string
		rotation quat.Number
		want     bool
	}{
		{"identity", motion.Identity, false},
		{"palm facing forward", axisAngle(r3.Vec{X: 1}, -90), true},
		{"palm facing user", axisAngle(r3.Vec{X: 1}, 90), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHand(Right)
			s := OpenPalmSample(Right, rightCenter)
			s.Rotation = tt.rotation
			h.Update(tickAt(0), &s)
			if got := h.IsInPointingPose(); got != tt.want {
				t.Errorf("IsInPointingPose = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHand_RotationSmoothing(t *testing.T) {
	h := newTestHand(Right)
	s := OpenPalmSample(Right, rightCenter)
	h.Update(tickAt(0), &s)

	s.Rotation = axisAngle(r3.Vec{Y: 1}, 60)
	h.Update(tickAt(1), &s)

	remaining := motion.QuatAngleDeg(h.Rotation(), s.Rotation)
	if remaining <= 0 || remaining >= 60 {
		t.Errorf("expected a damped step toward the target, %f degrees remain", remaining)
	}
}
