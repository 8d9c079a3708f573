package device

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/store"
)

// FrameSource loads the stored frames of a recording.
type FrameSource interface {
	Frames(recordingID string) ([]store.Frame, error)
}

// EncodeFrame serializes f for storage.
func EncodeFrame(f *Frame) (json.RawMessage, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// DecodeFrame parses a stored frame.
func DecodeFrame(data json.RawMessage) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &f, nil
}

// Replay plays back a stored recording frame by frame.
type Replay struct {
	id     string
	frames []*Frame
	loop   bool
	caps   Capability

	mu     sync.Mutex
	next   int
	passes int
	closed bool
}

// NewReplay loads every frame of the recording up front.
func NewReplay(src FrameSource, recordingID string, loop bool) (*Replay, error) {
	stored, err := src.Frames(recordingID)
	if err != nil {
		return nil, fmt.Errorf("load recording %s: %w", recordingID, err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("recording %s has no frames", recordingID)
	}

	r := &Replay{id: recordingID, loop: loop, caps: Hands | Head}
	for _, sf := range stored {
		f, err := DecodeFrame(sf.Payload)
		if err != nil {
			return nil, fmt.Errorf("recording %s frame %d: %w", recordingID, sf.Seq, err)
		}
		if f.Time.IsZero() {
			f.Time = sf.Time
		}
		if f.Gaze != nil {
			r.caps |= Eyes
		}
		r.frames = append(r.frames, f)
	}
	return r, nil
}

func (r *Replay) Name() string { return "replay" }

func (r *Replay) Capabilities() Capability { return r.caps }

// Len is the number of frames in one pass.
func (r *Replay) Len() int { return len(r.frames) }

// Poll returns the next frame. Looping shifts timestamps forward each pass
// so time never runs backwards.
func (r *Replay) Poll(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrProviderClosed
	}
	if r.next >= len(r.frames) {
		if !r.loop {
			return nil, ErrEndOfStream
		}
		r.next = 0
		r.passes++
	}

	f := *r.frames[r.next]
	r.next++
	f.Hands = append(f.Hands[:0:0], f.Hands...)
	if r.passes > 0 {
		shift := time.Duration(r.passes) * r.period()
		f.Time = f.Time.Add(shift)
		if f.Gaze != nil {
			g := *f.Gaze
			g.Time = g.Time.Add(shift)
			f.Gaze = &g
		}
	}
	return &f, nil
}

// period is the duration of one pass including the gap to the next pass.
func (r *Replay) period() time.Duration {
	first, last := r.frames[0].Time, r.frames[len(r.frames)-1].Time
	gap := time.Second / 30
	if n := len(r.frames); n > 1 {
		gap = last.Sub(r.frames[n-2].Time)
	}
	return last.Sub(first) + gap
}

func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
