package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Preview keeps the most recent frame as JPEG for the MJPEG stream, so the
// stream never competes with tracking for the camera.
type Preview struct {
	mu   sync.RWMutex
	jpeg []byte
	seq  uint64
}

// Store encodes frame and makes it the latest preview image.
func (p *Preview) Store(frame *gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()

	data := append([]byte(nil), buf.GetBytes()...)

	p.mu.Lock()
	p.jpeg = data
	p.seq++
	p.mu.Unlock()
	return nil
}

// Latest returns the newest JPEG and its sequence number. seq is 0 until the
// first frame is stored. The slice must not be modified.
func (p *Preview) Latest() ([]byte, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.jpeg, p.seq
}
