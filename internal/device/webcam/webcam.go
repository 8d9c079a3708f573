// Package webcam tracks hands with a camera and a MediaPipe helper process.
// Importing it registers the "webcam" device kind with device.Open; it needs
// cgo and OpenCV.
package webcam

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/device"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/motion"
)

func init() {
	device.Register(config.DeviceWebcam, func(cfg config.DeviceConfig) (device.Provider, error) {
		return New(cfg)
	})
}

// Provider tracks hands with a camera and MediaPipe. The camera stands in for
// the head, so the head pose is fixed at the origin looking down +Z.
type Provider struct {
	camera     capture.Camera
	detector   *capture.MotionDetector
	gate       *capture.Gate
	landmarker Landmarker
	geometry   device.Geometry
	preview    capture.Preview
	minScore   float64
	now        func() time.Time

	mu     sync.Mutex
	closed bool
}

// New opens the configured camera and prepares the MediaPipe helper.
func New(cfg config.DeviceConfig) (*Provider, error) {
	lm, err := NewMediaPipe(MediaPipeOptions{
		ScriptPath:    cfg.ScriptPath,
		MaxHands:      cfg.MaxHands,
		MinConfidence: cfg.MinConfidence,
	})
	if err != nil {
		return nil, err
	}
	cam := capture.NewCamera(capture.Options{DeviceID: cfg.CameraID, FPS: cfg.IdleFPS})
	w, err := NewWith(cam, lm, cfg)
	if err != nil {
		lm.Close()
		return nil, err
	}
	return w, nil
}

// NewWith builds a provider from parts and opens the camera.
func NewWith(cam capture.Camera, lm Landmarker, cfg config.DeviceConfig) (*Provider, error) {
	if err := cam.Open(); err != nil {
		return nil, fmt.Errorf("webcam: %w", err)
	}
	gate := capture.NewGate(cfg.IdleFPS, cfg.FPS, cfg.IdleTimeout.Std())
	cam.SetFPS(gate.FPS())
	return &Provider{
		camera:     cam,
		detector:   capture.NewMotionDetector(cfg.MotionThreshold),
		gate:       gate,
		landmarker: lm,
		geometry:   device.DefaultGeometry,
		minScore:   cfg.MinConfidence,
		now:        time.Now,
	}, nil
}

func (w *Provider) Name() string { return "webcam" }

func (w *Provider) Capabilities() device.Capability { return device.Hands }

// Preview holds the latest camera image for the MJPEG stream.
func (w *Provider) Preview() device.Preview { return &w.preview }

// Poll reads a frame, runs the motion gate and detects hands. At most one
// sample per handedness is kept, the most confident.
func (w *Provider) Poll(ctx context.Context) (*device.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, device.ErrProviderClosed
	}

	img, err := w.camera.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("webcam: %w", err)
	}
	defer img.Close()

	now := w.now()
	if err := w.preview.Store(img); err != nil {
		log.Printf("webcam: %v", err)
	}

	moving, _ := w.detector.Detect(img)
	if w.gate.Observe(moving, now) {
		w.camera.SetFPS(w.gate.FPS())
		log.Printf("webcam: active=%v, capturing at %d fps", w.gate.Active(), w.gate.FPS())
	}

	found, err := w.landmarker.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("webcam: detect hands: %w", err)
	}

	f := &device.Frame{Time: now, Head: motion.IdentityPose()}
	best := map[hand.Handedness]int{}
	for _, lm := range found {
		if lm.Score < w.minScore {
			continue
		}
		s, err := device.ToSample(lm, w.geometry)
		if err != nil {
			log.Printf("webcam: skipping hand: %v", err)
			continue
		}
		if i, ok := best[s.Handedness]; ok {
			if f.Hands[i].Confidence < s.Confidence {
				f.Hands[i] = s
			}
			continue
		}
		best[s.Handedness] = len(f.Hands)
		f.Hands = append(f.Hands, s)
	}
	return f, nil
}

// Close releases the camera and stops the helper process.
func (w *Provider) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.detector.Close()
	camErr := w.camera.Close()
	if err := w.landmarker.Close(); err != nil {
		return err
	}
	return camErr
}
