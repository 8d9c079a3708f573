package hand

import (
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/motion"
)

// Keypoint filters one tracked landmark.
//
// Visibility is a Lost/Found state machine driven by the raw sample and by
// the decay points it must stay clear of. While visible, the raw position is
// smoothed toward a target that only follows motion with a consistent
// direction, and the amount of smoothing is scaled by a stability score
// derived from how far the point travelled over the last frames.
type Keypoint struct {
	cfg config.FilterConfig

	visible    bool
	insideClip bool
	foundAt    time.Time

	raw       r3.Vec
	filtered  r3.Vec
	lastValid r3.Vec
	rotation  quat.Number

	history   []r3.Vec
	target    r3.Vec
	velocity  r3.Vec
	stability float64
	angularV  float64
}

// NewKeypoint returns a lost keypoint using the given filter settings.
func NewKeypoint(cfg config.FilterConfig) *Keypoint {
	return &Keypoint{
		cfg:      cfg,
		rotation: motion.Identity,
		history:  make([]r3.Vec, 0, cfg.HistorySize),
	}
}

// Update feeds the raw position of this frame. handVisible is the owning
// hand's visibility; decay points are the anchors the point collapses onto
// when tracking degrades, nearest first.
func (k *Keypoint) Update(tick Tick, handVisible bool, loc r3.Vec, decay ...r3.Vec) Transition {
	if !handVisible {
		if k.visible {
			return k.lose()
		}
		k.history = k.history[:0]
		return NoChange
	}

	if k.visible {
		k.lastValid = k.filtered
	}

	visible := true
	switch {
	case motion.Distance(loc, tick.Head.Position) < k.cfg.MinHeadDistance:
		visible = false
		k.snap(decay)
	case nearAny(loc, decay, k.cfg.LostKeypointDistance):
		visible = false
		k.snap(decay)
	case !k.visible && nearAny(loc, decay, k.cfg.FoundKeypointDistance):
		// not far enough from its anchors to be trusted again
		visible = false
		k.snap(decay)
	}

	if !visible {
		if k.visible {
			return k.lose()
		}
		return NoChange
	}

	tr := NoChange
	if !k.visible {
		k.find(tick.Now)
		tr = Found
	}

	k.raw = loc
	k.push(loc)

	if len(k.history) == k.cfg.HistorySize {
		n := len(k.history)
		a := r3.Sub(k.history[n-2], k.history[n-3])
		b := r3.Sub(k.history[n-1], k.history[n-2])
		delta := motion.Distance(k.history[n-3], k.history[n-1])
		angle := motion.AngleDeg(a, b)

		k.setStability(1-motion.Clamp01(delta/k.cfg.MaxJitterDistance), tick.Delta)

		if angle < 90 {
			k.target = k.history[n-1]
		}

		if k.stability == 0 {
			k.filtered = k.target
		} else {
			k.filtered = motion.SmoothDampVec(k.filtered, k.target, &k.velocity,
				k.cfg.SmoothTimeSeconds*k.stability, tick.Delta)
		}
	} else {
		k.filtered = loc
		k.target = loc
	}

	if k.clip(tick.Head) {
		k.lose()
		if tr == Found {
			return NoChange
		}
		return Lost
	}

	if tr == Found {
		k.lastValid = k.filtered
	}
	return tr
}

// UpdateRotation moves the keypoint rotation toward target. An untrusted point
// snaps; otherwise the remaining angle is damped with the same time constant
// as the position.
func (k *Keypoint) UpdateRotation(target quat.Number, dt float64) {
	if k.stability == 0 {
		k.rotation = target
		return
	}
	delta := motion.QuatAngleDeg(k.rotation, target)
	if delta <= 0 {
		return
	}
	remaining := motion.SmoothDampAngle(delta, 0, &k.angularV, k.cfg.SmoothTimeSeconds*k.stability, dt)
	k.rotation = motion.Slerp(k.rotation, target, 1-remaining/delta)
}

// Visible reports whether the point passed its visibility tests this frame.
func (k *Keypoint) Visible() bool { return k.visible }

// VisibleStable reports whether the point has stayed found for longer than
// the configured settle time.
func (k *Keypoint) VisibleStable(now time.Time) bool {
	return k.visible && now.Sub(k.foundAt) > k.cfg.VisibleStableTimeout.Std()
}

// InsideClipPlane reports whether the last filtered position fell behind the
// near clip plane.
func (k *Keypoint) InsideClipPlane() bool { return k.insideClip }

// Raw returns the latest accepted raw position.
func (k *Keypoint) Raw() r3.Vec { return k.raw }

// Filtered returns the smoothed position.
func (k *Keypoint) Filtered() r3.Vec { return k.filtered }

// LastValid returns the filtered position from the previous visible frame.
func (k *Keypoint) LastValid() r3.Vec { return k.lastValid }

// Rotation returns the smoothed orientation.
func (k *Keypoint) Rotation() quat.Number { return k.rotation }

// Pose returns the filtered position and rotation.
func (k *Keypoint) Pose() motion.Pose {
	return motion.Pose{Position: k.filtered, Rotation: k.rotation}
}

// Stability returns the trust score in [0,1].
func (k *Keypoint) Stability() float64 { return k.stability }

// HistoryLen returns how many raw samples are buffered.
func (k *Keypoint) HistoryLen() int { return len(k.history) }

func (k *Keypoint) find(now time.Time) {
	k.visible = true
	k.foundAt = now
	k.history = k.history[:0]
	k.velocity = r3.Vec{}
	k.angularV = 0
}

func (k *Keypoint) lose() Transition {
	k.visible = false
	k.stability = 0
	k.history = k.history[:0]
	return Lost
}

func (k *Keypoint) snap(decay []r3.Vec) {
	if len(decay) == 0 {
		return
	}
	k.raw = decay[0]
	k.filtered = decay[0]
}

func (k *Keypoint) push(loc r3.Vec) {
	if len(k.history) == k.cfg.HistorySize {
		copy(k.history, k.history[1:])
		k.history = k.history[:len(k.history)-1]
	}
	k.history = append(k.history, loc)
}

// setStability low-pass filters the stability toward value.
func (k *Keypoint) setStability(value, dt float64) {
	k.stability = motion.Clamp01(motion.Lerp(k.stability, value, dt*k.cfg.StabilityBlendRate))
}

// clip handles a filtered position that ended up behind the near clip plane.
// It reports true when the point must be hidden; otherwise the position is
// pushed back onto the plane.
func (k *Keypoint) clip(head motion.Pose) bool {
	k.insideClip = false
	if k.cfg.NearClipPlane <= 0 {
		return false
	}
	forward := head.Forward()
	depth := r3.Dot(r3.Sub(k.filtered, head.Position), forward)
	if depth >= k.cfg.NearClipPlane {
		return false
	}
	k.insideClip = true
	if k.cfg.HideInsideClipPlane {
		return true
	}
	k.filtered = r3.Add(k.filtered, r3.Scale(k.cfg.NearClipPlane-depth, forward))
	return false
}

func nearAny(p r3.Vec, points []r3.Vec, dist float64) bool {
	for _, q := range points {
		if motion.Distance(p, q) < dist {
			return true
		}
	}
	return false
}
