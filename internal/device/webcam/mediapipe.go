package webcam

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/device"
)

// ErrScriptNotFound is returned when the MediaPipe helper script is missing.
var ErrScriptNotFound = errors.New("mediapipe_service.py not found")

// mediaPipeIdle is how long the helper process may sit unused before it is
// stopped. It is restarted on the next Detect.
const mediaPipeIdle = 30 * time.Second

// Landmarker finds hands in a camera frame.
type Landmarker interface {
	Detect(frame *gocv.Mat) ([]device.Landmarks, error)
	Close() error
}

// MediaPipeOptions configures the helper process.
type MediaPipeOptions struct {
	ScriptPath    string
	MaxHands      int
	MinConfidence float64
}

// MediaPipe runs hand landmark detection in a Python subprocess. Frames go
// out as a 4-byte big-endian length followed by JPEG bytes; each reply is a
// single JSON line.
type MediaPipe struct {
	opts   MediaPipeOptions
	script string

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	idleTimer *time.Timer
}

// NewMediaPipe locates the helper script. The process itself starts lazily.
func NewMediaPipe(opts MediaPipeOptions) (*MediaPipe, error) {
	script := findScript(opts.ScriptPath)
	if script == "" {
		return nil, ErrScriptNotFound
	}
	return &MediaPipe{opts: opts, script: script}, nil
}

// Detect sends one frame and waits for the landmarks.
func (d *MediaPipe) Detect(frame *gocv.Mat) ([]device.Landmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	data := buf.GetBytes()

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	if _, err := d.stdin.Write(length[:]); err != nil {
		return nil, d.fail(fmt.Errorf("write length: %w", err))
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, d.fail(fmt.Errorf("write frame: %w", err))
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return nil, d.fail(fmt.Errorf("read response: %w", err))
	}
	hands, err := parseResponse(line)
	if err != nil {
		return nil, err
	}

	d.resetIdleTimer()
	return hands, nil
}

// Close stops the helper process.
func (d *MediaPipe) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipe) ensureStarted() error {
	if d.cmd != nil {
		return nil
	}

	python := findVenvPython()
	if python == "" {
		python = "python3"
	}
	args := []string{d.script}
	if d.opts.MaxHands > 0 {
		args = append(args, "--max-hands", strconv.Itoa(d.opts.MaxHands))
	}
	if d.opts.MinConfidence > 0 {
		args = append(args, "--min-confidence", strconv.FormatFloat(d.opts.MinConfidence, 'f', -1, 64))
	}
	cmd := exec.Command(python, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}
	log.Printf("mediapipe: started %s (pid %d)", d.script, cmd.Process.Pid)

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	return nil
}

// fail tears down a broken process so the next Detect starts a fresh one.
func (d *MediaPipe) fail(err error) error {
	if cerr := d.shutdown(); cerr != nil {
		log.Printf("mediapipe: shutdown after error: %v", cerr)
	}
	return err
}

func (d *MediaPipe) shutdown() error {
	if d.cmd == nil {
		return nil
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	d.stdin.Close()
	err := d.cmd.Wait()
	d.cmd, d.stdin, d.stdout = nil, nil, nil
	return err
}

func (d *MediaPipe) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(mediaPipeIdle, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			log.Printf("mediapipe: idle shutdown: %v", err)
		}
	})
}

type jsonResponse struct {
	Hands []struct {
		Points     []device.Point3D `json:"points"`
		Handedness string           `json:"handedness"`
		Score      float64          `json:"score"`
	} `json:"hands"`
	Error string `json:"error,omitempty"`
}

func parseResponse(line []byte) ([]device.Landmarks, error) {
	var resp jsonResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("mediapipe: %s", resp.Error)
	}

	hands := make([]device.Landmarks, 0, len(resp.Hands))
	for _, h := range resp.Hands {
		if len(h.Points) != device.NumLandmarks {
			return nil, fmt.Errorf("mediapipe: hand has %d landmarks, want %d", len(h.Points), device.NumLandmarks)
		}
		lm := device.Landmarks{Handedness: h.Handedness, Score: h.Score}
		copy(lm.Points[:], h.Points)
		hands = append(hands, lm)
	}
	return hands, nil
}

func findScript(explicit string) string {
	candidates := []string{explicit}
	if explicit == "" {
		candidates = scriptCandidates("scripts/mediapipe_service.py")
	}
	return firstExisting(candidates)
}

// findVenvPython looks for a virtual environment next to the working
// directory, the executable or in the user's mudra directory.
func findVenvPython() string {
	return firstExisting(append(scriptCandidates("venv/bin/python"), "../../venv/bin/python"))
}

func scriptCandidates(rel string) []string {
	out := []string{rel, filepath.Join("..", rel)}
	if exe, err := os.Executable(); err == nil {
		out = append(out, filepath.Join(filepath.Dir(exe), rel))
	}
	if home, err := os.UserHomeDir(); err == nil {
		out = append(out, filepath.Join(home, ".mudra", rel))
	}
	return out
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
