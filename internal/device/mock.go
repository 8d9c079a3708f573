package device

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/mudra/internal/gaze"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/motion"
)

// Resting palm positions of the scripted hands, relative to the head.
var (
	MockRightCenter = r3.Vec{X: 0.2, Y: -0.25, Z: 0.45}
	MockLeftCenter  = r3.Vec{X: -0.2, Y: -0.25, Z: 0.45}
)

// mockCycle is the length of one pass through the script.
const mockCycle = 6 * time.Second

// MockOptions configures the scripted provider.
type MockOptions struct {
	FPS int
	// Gaze adds an eye tracker that fixates ahead and saccades once per cycle.
	Gaze bool
	// Start is the timestamp of the first frame. Zero means a fixed epoch so
	// runs are reproducible.
	Start time.Time
	// Jitter is the uniform sensor noise amplitude in meters. Zero picks a
	// default of half a millimeter; negative disables noise.
	Jitter float64
	Seed   uint64
}

// Mock plays a scripted session: an open right hand circling, a pinch, a
// grasp with the left hand joining, then no hands. Frames queued with Push
// are served first.
type Mock struct {
	opts  MockOptions
	rng   *rand.Rand
	mu    sync.Mutex
	seq   int
	queue []Frame
	done  bool
}

// NewMock returns a scripted provider.
func NewMock(opts MockOptions) *Mock {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Start.IsZero() {
		opts.Start = time.Unix(1_700_000_000, 0).UTC()
	}
	if opts.Jitter == 0 {
		opts.Jitter = 0.0005
	}
	return &Mock{
		opts: opts,
		rng:  rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Capabilities() Capability {
	if m.opts.Gaze {
		return Hands | Head | Eyes
	}
	return Hands | Head
}

// Push queues frames to be returned before the script resumes. Frames with
// a zero Time get the time of their slot.
func (m *Mock) Push(frames ...Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, frames...)
}

// Poll never blocks.
func (m *Mock) Poll(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return nil, ErrProviderClosed
	}

	now := m.opts.Start.Add(time.Duration(m.seq) * time.Second / time.Duration(m.opts.FPS))
	var f Frame
	if len(m.queue) > 0 {
		f = m.queue[0]
		m.queue = m.queue[1:]
		if f.Time.IsZero() {
			f.Time = now
		}
	} else {
		f = m.scripted(now)
	}
	m.seq++
	return &f, nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = true
	return nil
}

func (m *Mock) scripted(now time.Time) Frame {
	f := Frame{Time: now, Head: motion.IdentityPose()}
	t := time.Duration(m.seq) * time.Second / time.Duration(m.opts.FPS) % mockCycle

	switch {
	case t < 2*time.Second:
		phase := 2 * math.Pi * t.Seconds() / 2
		center := r3.Add(MockRightCenter, r3.Vec{X: 0.03 * math.Cos(phase), Y: 0.03 * math.Sin(phase)})
		f.Hands = append(f.Hands, hand.OpenPalmSample(hand.Right, center))
	case t < 3*time.Second:
		f.Hands = append(f.Hands, hand.PinchSample(hand.Right, MockRightCenter))
	case t < 4*time.Second:
		f.Hands = append(f.Hands, hand.OpenPalmSample(hand.Right, MockRightCenter))
	case t < 5*time.Second:
		f.Hands = append(f.Hands,
			hand.GraspSample(hand.Right, MockRightCenter),
			hand.OpenPalmSample(hand.Left, MockLeftCenter),
		)
	}
	for i := range f.Hands {
		m.jitter(&f.Hands[i])
	}

	if m.opts.Gaze {
		yaw := 0.0
		if t >= 3*time.Second {
			yaw = 15
		}
		yaw += (m.rng.Float64() - 0.5) * 0.5
		rad := yaw * math.Pi / 180
		f.Gaze = &gaze.Sample{
			Ray:        gaze.Ray{Direction: r3.Vec{X: math.Sin(rad), Z: math.Cos(rad)}},
			Time:       now,
			Calibrated: true,
		}
	}
	return f
}

func (m *Mock) jitter(s *hand.Sample) {
	a := m.opts.Jitter
	if a <= 0 {
		return
	}
	for i := range s.Keypoints {
		noise := r3.Vec{
			X: (m.rng.Float64()*2 - 1) * a,
			Y: (m.rng.Float64()*2 - 1) * a,
			Z: (m.rng.Float64()*2 - 1) * a,
		}
		s.Keypoints[i].Position = r3.Add(s.Keypoints[i].Position, noise)
	}
}
