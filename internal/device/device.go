// Package device abstracts the tracking hardware. A Provider yields one Frame
// per Poll: the head pose, raw hand samples and, when the hardware has eye
// tracking, a gaze sample. Providers never filter; that is the tracking
// session's job.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/gaze"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/motion"
)

var (
	// ErrProviderClosed is returned by Poll after Close.
	ErrProviderClosed = errors.New("device: provider closed")
	// ErrUnknownProvider is returned by Open for an unsupported device kind.
	ErrUnknownProvider = errors.New("device: unknown provider")
	// ErrEndOfStream is returned by a finite provider after its last frame.
	ErrEndOfStream = errors.New("device: end of stream")
)

// Capability is a bit set of what a provider can track.
type Capability uint8

const (
	Hands Capability = 1 << iota
	Eyes
	Head
)

// Has reports whether all bits of other are set.
func (c Capability) Has(other Capability) bool { return c&other == other }

func (c Capability) String() string {
	var parts []string
	for _, n := range []struct {
		bit  Capability
		name string
	}{{Hands, "hands"}, {Eyes, "eyes"}, {Head, "head"}} {
		if c.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Frame is one device reading. Hands holds at most one sample per
// handedness; a hand the device did not see is simply absent.
type Frame struct {
	Time  time.Time     `json:"time"`
	Head  motion.Pose   `json:"head"`
	Hands []hand.Sample `json:"hands,omitempty"`
	Gaze  *gaze.Sample  `json:"gaze,omitempty"`
}

// Hand returns the sample for handedness h, or nil.
func (f *Frame) Hand(h hand.Handedness) *hand.Sample {
	for i := range f.Hands {
		if f.Hands[i].Handedness == h {
			return &f.Hands[i]
		}
	}
	return nil
}

// Provider is a source of tracking frames.
type Provider interface {
	Name() string
	Capabilities() Capability
	// Poll blocks until the next frame is available or ctx is done.
	Poll(ctx context.Context) (*Frame, error)
	Close() error
}

// Preview is an encoded camera image that changes as frames arrive. seq
// increases with every new image.
type Preview interface {
	Latest() (jpeg []byte, seq uint64)
}

// Previewer is implemented by providers that keep a camera preview.
type Previewer interface {
	Preview() Preview
}

// Opener builds a hardware provider from its device settings.
type Opener func(cfg config.DeviceConfig) (Provider, error)

var (
	openersMu sync.RWMutex
	openers   = make(map[string]Opener)
)

// Register makes a hardware provider kind available to Open. Provider
// packages call it from init. It panics if kind is registered twice.
func Register(kind string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	if open == nil {
		panic("device: Register opener is nil")
	}
	if _, dup := openers[kind]; dup {
		panic("device: Register called twice for " + kind)
	}
	openers[kind] = open
}

// Open builds the provider selected by cfg.Kind. frames is only needed for
// replay and may be nil otherwise. Kinds other than mock and replay must be
// registered by importing their package.
func Open(cfg config.DeviceConfig, frames FrameSource) (Provider, error) {
	switch cfg.Kind {
	case config.DeviceMock:
		return NewMock(MockOptions{FPS: cfg.FPS, Gaze: true}), nil
	case config.DeviceReplay:
		if frames == nil {
			return nil, errors.New("device: replay needs a store")
		}
		return NewReplay(frames, cfg.RecordingID, cfg.Loop)
	}

	openersMu.RLock()
	open, ok := openers[cfg.Kind]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Kind)
	}
	return open(cfg)
}
