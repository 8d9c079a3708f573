package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing parameters.
const (
	// BlurSize is the Gaussian kernel applied before differencing.
	BlurSize = 21
	// DiffThreshold is the per-pixel intensity change that counts as movement.
	DiffThreshold = 25
)

// MotionDetector compares each frame against the previous one and reports
// the share of pixels that changed.
type MotionDetector struct {
	threshold float64 // percent of pixels
	prev      gocv.Mat
	primed    bool
	mu        sync.Mutex
}

// NewMotionDetector returns a detector that fires when more than threshold
// percent of the pixels change between frames.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Detect reports whether frame differs from the previous frame and by how
// much, in percent. The first frame only primes the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: BlurSize, Y: BlurSize}, 0, 0, gocv.BorderDefault)

	if !m.primed {
		blurred.CopyTo(&m.prev)
		m.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100
	blurred.CopyTo(&m.prev)

	return changed > m.threshold, changed
}

// Reset drops the baseline so the next frame primes it again.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases the baseline Mat. The detector stays usable.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prev.Empty() {
		m.prev.Close()
		m.prev = gocv.NewMat()
	}
	m.primed = false
}

// SetThreshold changes the trigger level. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Gate switches capture between an idle and an active frame rate. Movement
// activates it at once; it falls back to idle after a quiet period.
type Gate struct {
	idleFPS    int
	activeFPS  int
	timeout    time.Duration
	active     bool
	lastMotion time.Time
}

// NewGate returns a gate that starts idle.
func NewGate(idleFPS, activeFPS int, timeout time.Duration) *Gate {
	if idleFPS <= 0 {
		idleFPS = DefaultFPS
	}
	if activeFPS < idleFPS {
		activeFPS = idleFPS
	}
	return &Gate{idleFPS: idleFPS, activeFPS: activeFPS, timeout: timeout}
}

// Observe records one motion result and reports whether the gate changed
// mode. Read the new rate with FPS.
func (g *Gate) Observe(moving bool, now time.Time) bool {
	if moving {
		g.lastMotion = now
		if !g.active {
			g.active = true
			return true
		}
		return false
	}
	if g.active && now.Sub(g.lastMotion) > g.timeout {
		g.active = false
		return true
	}
	return false
}

// Active reports whether frames should be analysed.
func (g *Gate) Active() bool { return g.active }

// FPS is the capture rate for the current mode.
func (g *Gate) FPS() int {
	if g.active {
		return g.activeFPS
	}
	return g.idleFPS
}
