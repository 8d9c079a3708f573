package hand

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/motion"
)

// Finger aggregates a knuckle to tip chain of two or three keypoints.
type Finger struct {
	kind   FingerType
	points []*Keypoint
	cfg    config.FilterConfig

	visible      bool
	direction    r3.Vec
	directionRaw r3.Vec
	length       motion.RollingAverage

	// end tracks the most distal visible point and eases between points when
	// that choice changes.
	pointSeen        []bool
	end              int
	endPosition      r3.Vec
	endVelocity      r3.Vec
	endTransitioning bool
	endStarted       time.Time
}

// NewFinger builds a finger over points given from knuckle to tip.
func NewFinger(kind FingerType, cfg config.FilterConfig, points ...*Keypoint) *Finger {
	if len(points) < 2 || len(points) > 3 {
		panic("hand: a finger needs two or three keypoints")
	}
	return &Finger{
		kind:      kind,
		points:    points,
		cfg:       cfg,
		pointSeen: make([]bool, len(points)),
	}
}

// Update recomputes the finger from its keypoints, which must already have
// been updated this frame.
func (f *Finger) Update(tick Tick, handVisible bool) Transition {
	if !handVisible {
		clear(f.pointSeen)
		if f.visible {
			f.visible = false
			return Lost
		}
		return NoChange
	}

	f.trackEnd(tick.Now)

	visible := f.points[0].Visible()
	for _, p := range f.points {
		if !p.Visible() {
			visible = false
			break
		}
	}

	tr := NoChange
	switch {
	case visible && !f.visible:
		tr = Found
	case !visible && f.visible:
		tr = Lost
	}
	f.visible = visible

	f.updateDirection()
	f.updateEnd(tick)
	f.length.Add(f.rawLength())
	return tr
}

// trackEnd moves the end to the most distal visible point whenever any point
// changed visibility.
func (f *Finger) trackEnd(now time.Time) {
	changed, anySeen := false, false
	for i, p := range f.points {
		anySeen = anySeen || f.pointSeen[i]
		if p.Visible() != f.pointSeen[i] {
			f.pointSeen[i] = p.Visible()
			changed = true
		}
	}
	if !changed {
		return
	}
	for i, p := range f.points {
		if p.Visible() && f.end != i {
			f.end = i
			f.endStarted = now
			f.endTransitioning = true
		}
	}
	// nothing to ease from when the whole chain was hidden
	if !anySeen {
		f.endTransitioning = false
	}
}

func (f *Finger) updateEnd(tick Tick) {
	target := f.points[f.end].Filtered()
	if !f.endTransitioning {
		f.endPosition = target
		return
	}

	f.endPosition = motion.SmoothDampVec(f.endPosition, target, &f.endVelocity,
		f.cfg.EndTransitionTime.Seconds(), tick.Delta)

	arrived := motion.Distance(f.endPosition, target) < f.cfg.EndArrivalDistance
	if arrived || tick.Now.Sub(f.endStarted) > f.cfg.EndTransitionMaxDuration.Std() {
		f.endPosition = target
		f.endVelocity = r3.Vec{}
		f.endTransitioning = false
	}
}

// updateDirection walks the chain from the tip and keeps the first pair of
// adjacent visible points. Without one the previous direction stands.
func (f *Finger) updateDirection() {
	for i := len(f.points) - 1; i >= 1; i-- {
		distal, proximal := f.points[i], f.points[i-1]
		if !distal.Visible() || !proximal.Visible() {
			continue
		}
		if d := motion.Normalize(r3.Sub(distal.Filtered(), proximal.Filtered())); d != (r3.Vec{}) {
			f.direction = d
		}
		if d := motion.Normalize(r3.Sub(distal.Raw(), proximal.Raw())); d != (r3.Vec{}) {
			f.directionRaw = d
		}
		return
	}
}

func (f *Finger) rawLength() float64 {
	var sum float64
	for i := 1; i < len(f.points); i++ {
		sum += motion.Distance(f.points[i-1].Raw(), f.points[i].Raw())
	}
	return sum
}

// Type returns which digit this is.
func (f *Finger) Type() FingerType { return f.kind }

// Visible reports whether every point, knuckle included, is visible.
func (f *Finger) Visible() bool { return f.visible }

// PartiallyVisible reports whether any point is visible.
func (f *Finger) PartiallyVisible() bool {
	for _, p := range f.points {
		if p.Visible() {
			return true
		}
	}
	return false
}

// Direction returns the last known unit direction from filtered positions.
func (f *Finger) Direction() r3.Vec { return f.direction }

// DirectionRaw returns the last known unit direction from raw positions.
func (f *Finger) DirectionRaw() r3.Vec { return f.directionRaw }

// End returns the eased position of the most distal visible point.
func (f *Finger) End() r3.Vec { return f.endPosition }

// Length returns the running mean of the knuckle to tip length.
func (f *Finger) Length() float64 { return f.length.Average() }

// ResetLength discards the length history, for example when a different
// person starts using the device.
func (f *Finger) ResetLength() { f.length.Reset() }

// DotProduct returns the cosine of the bend at the middle joint: 1 for a
// straight or two point finger, 0 when the finger is not visible.
func (f *Finger) DotProduct() float64 {
	if !f.visible {
		return 0
	}
	if len(f.points) == 2 {
		return 1
	}
	a := motion.Normalize(r3.Sub(f.points[1].Filtered(), f.points[0].Filtered()))
	b := motion.Normalize(r3.Sub(f.points[2].Filtered(), f.points[1].Filtered()))
	return r3.Dot(a, b)
}

// Knuckle returns the most proximal point.
func (f *Finger) Knuckle() *Keypoint { return f.points[0] }

// Joint returns the middle point, or nil on a two point finger.
func (f *Finger) Joint() *Keypoint {
	if len(f.points) == 3 {
		return f.points[1]
	}
	return nil
}

// Tip returns the most distal point.
func (f *Finger) Tip() *Keypoint { return f.points[len(f.points)-1] }

// Keypoint returns the point of the given type, or nil when the finger has none.
func (f *Finger) Keypoint(t KeypointType) *Keypoint {
	switch t {
	case MCP:
		return f.Knuckle()
	case PIP:
		return f.Joint()
	case Tip:
		return f.Tip()
	}
	return nil
}

// PointsFiltered returns the filtered positions from knuckle to tip.
func (f *Finger) PointsFiltered() []r3.Vec {
	out := make([]r3.Vec, len(f.points))
	for i, p := range f.points {
		out[i] = p.Filtered()
	}
	return out
}

// PointsRaw returns the raw positions from knuckle to tip.
func (f *Finger) PointsRaw() []r3.Vec {
	out := make([]r3.Vec, len(f.points))
	for i, p := range f.points {
		out[i] = p.Raw()
	}
	return out
}
