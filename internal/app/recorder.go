package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/device"
	"github.com/ayusman/mudra/internal/store"
)

var (
	ErrRecording    = errors.New("recording already in progress")
	ErrNotRecording = errors.New("no recording in progress")
	ErrNoStore      = errors.New("no store configured")
)

// flushEvery is the number of frames buffered before they are written.
const flushEvery = 30

// Recorder writes polled frames into a store recording.
type Recorder struct {
	repo *store.RecordingRepository

	mu     sync.Mutex
	active *store.Recording
	buf    []store.Frame
	seq    int
}

// NewRecorder returns a recorder writing to repo.
func NewRecorder(repo *store.RecordingRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Start opens a new recording.
func (r *Recorder) Start(name, provider string) (*store.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return nil, ErrRecording
	}

	rec := &store.Recording{
		ID:       uuid.NewString(),
		Name:     name,
		Provider: provider,
	}
	if rec.Name == "" {
		rec.Name = time.Now().Format("2006-01-02 15:04:05")
	}
	if err := r.repo.Create(rec); err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	r.active = rec
	r.buf = r.buf[:0]
	r.seq = 0
	copied := *rec
	return &copied, nil
}

// Add buffers a frame if a recording is active.
func (r *Recorder) Add(f *device.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}

	payload, err := device.EncodeFrame(f)
	if err != nil {
		return err
	}
	r.buf = append(r.buf, store.Frame{
		RecordingID: r.active.ID,
		Seq:         r.seq,
		Time:        f.Time,
		Payload:     payload,
	})
	r.seq++
	if len(r.buf) >= flushEvery {
		return r.flush()
	}
	return nil
}

// Stop flushes buffered frames and closes the recording.
func (r *Recorder) Stop() (*store.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil, ErrNotRecording
	}

	id := r.active.ID
	flushErr := r.flush()
	r.active = nil
	if err := r.repo.Finish(id, time.Now()); err != nil {
		return nil, fmt.Errorf("finish recording: %w", err)
	}
	if flushErr != nil {
		return nil, flushErr
	}
	return r.repo.GetByID(id)
}

// Active returns a copy of the open recording, or nil.
func (r *Recorder) Active() *store.Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	copied := *r.active
	copied.FrameCount += len(r.buf)
	return &copied
}

func (r *Recorder) flush() error {
	if len(r.buf) == 0 {
		return nil
	}
	if err := r.repo.AppendFrames(r.active.ID, r.buf); err != nil {
		return fmt.Errorf("append frames: %w", err)
	}
	r.active.FrameCount += len(r.buf)
	r.buf = r.buf[:0]
	return nil
}
