package report

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/device"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/motion"
	"github.com/ayusman/mudra/internal/store"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// jitteryFrames holds a right hand still while its index tip flickers
// sideways by a millimeter every frame.
func jitteryFrames(n int) []*device.Frame {
	frames := make([]*device.Frame, n)
	for i := range frames {
		s := hand.OpenPalmSample(hand.Right, device.MockRightCenter)
		offset := 0.001
		if i%2 == 1 {
			offset = -offset
		}
		tip := &s.Keypoints[hand.IndexTip].Position
		*tip = r3.Add(*tip, r3.Vec{X: offset})
		frames[i] = &device.Frame{
			Time:  epoch.Add(time.Duration(i) * time.Second / 30),
			Head:  motion.IdentityPose(),
			Hands: []hand.Sample{s},
		}
	}
	return frames
}

func TestTrace_FilterRemovesJitter(t *testing.T) {
	traj := Trace(config.Default(), device.Hands, jitteryFrames(60), hand.Right, hand.IndexTip)
	require.Len(t, traj.Points, 60)

	assert.Equal(t, hand.Right, traj.Handedness)
	assert.Equal(t, hand.IndexTip, traj.Keypoint)
	assert.Zero(t, traj.Points[0].Seconds)
	assert.InDelta(t, 59.0/30, traj.Points[59].Seconds, 1e-9)

	raw, filtered := traj.MeanStep()
	assert.InDelta(t, 0.002, raw, 1e-9)
	assert.Less(t, filtered, raw/2, "filtered path should be much steadier than the raw one")
}

func TestTrace_SkipsInvisible(t *testing.T) {
	frames := jitteryFrames(10)
	for _, f := range frames[5:] {
		f.Hands = nil
	}
	traj := Trace(config.Default(), device.Hands, frames, hand.Right, hand.IndexTip)
	assert.Len(t, traj.Points, 5)

	left := Trace(config.Default(), device.Hands, frames, hand.Left, hand.IndexTip)
	assert.Empty(t, left.Points)
}

func TestTraceRecording(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	defer st.Close()

	recs := st.Recordings()
	require.NoError(t, recs.Create(&store.Recording{ID: "rec", Name: "mock", Provider: "mock"}))

	mock := device.NewMock(device.MockOptions{FPS: 30})
	ctx := context.Background()
	stored := make([]store.Frame, 30)
	for i := range stored {
		f, err := mock.Poll(ctx)
		require.NoError(t, err)
		payload, err := device.EncodeFrame(f)
		require.NoError(t, err)
		stored[i] = store.Frame{RecordingID: "rec", Seq: i, Time: f.Time, Payload: payload}
	}
	require.NoError(t, recs.AppendFrames("rec", stored))

	traj, err := TraceRecording(ctx, config.Default(), recs, "rec", hand.Right, hand.Wrist)
	require.NoError(t, err)
	assert.Len(t, traj.Points, 30)

	_, err = TraceRecording(ctx, config.Default(), recs, "missing", hand.Right, hand.Wrist)
	assert.Error(t, err)
}

func TestWritePNG(t *testing.T) {
	traj := Trace(config.Default(), device.Hands, jitteryFrames(20), hand.Right, hand.IndexTip)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, traj, DefaultWidth, DefaultHeight))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")), "output is not a PNG")

	err := WritePNG(&buf, Trajectory{}, DefaultWidth, DefaultHeight)
	assert.ErrorIs(t, err, ErrEmpty)
}
