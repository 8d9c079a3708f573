package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/hand"
)

func TestCapability(t *testing.T) {
	tests := []struct {
		caps Capability
		want string
	}{
		{0, "none"},
		{Hands, "hands"},
		{Hands | Eyes, "hands|eyes"},
		{Hands | Eyes | Head, "hands|eyes|head"},
	}
	for _, tt := range tests {
		if got := tt.caps.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.caps, got, tt.want)
		}
	}
	if (Hands | Head).Has(Eyes) {
		t.Error("Has(Eyes) on hands|head")
	}
	if !(Hands | Head).Has(Hands | Head) {
		t.Error("Has must accept a subset")
	}
}

func TestFrame_Hand(t *testing.T) {
	f := Frame{Hands: []hand.Sample{
		hand.OpenPalmSample(hand.Left, MockLeftCenter),
	}}
	if s := f.Hand(hand.Left); s == nil || s.Handedness != hand.Left {
		t.Errorf("Hand(left) = %v", s)
	}
	if s := f.Hand(hand.Right); s != nil {
		t.Errorf("Hand(right) = %v, want nil", s)
	}
}

func TestOpen(t *testing.T) {
	t.Run("mock", func(t *testing.T) {
		cfg := config.Default().Device
		p, err := Open(cfg, nil)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer p.Close()
		if p.Name() != "mock" || !p.Capabilities().Has(Hands|Eyes) {
			t.Errorf("got %s with %s", p.Name(), p.Capabilities())
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		cfg := config.Default().Device
		cfg.Kind = "glove"
		if _, err := Open(cfg, nil); !errors.Is(err, ErrUnknownProvider) {
			t.Errorf("error = %v, want ErrUnknownProvider", err)
		}
	})

	t.Run("webcam not linked", func(t *testing.T) {
		cfg := config.Default().Device
		cfg.Kind = config.DeviceWebcam
		if _, err := Open(cfg, nil); !errors.Is(err, ErrUnknownProvider) {
			t.Errorf("error = %v, want ErrUnknownProvider", err)
		}
	})

	t.Run("registered kind", func(t *testing.T) {
		var got config.DeviceConfig
		kind := "glove-" + time.Now().Format("150405.000000000")
		Register(kind, func(cfg config.DeviceConfig) (Provider, error) {
			got = cfg
			return NewMock(MockOptions{FPS: cfg.FPS}), nil
		})
		cfg := config.Default().Device
		cfg.Kind = kind
		cfg.FPS = 15
		p, err := Open(cfg, nil)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		defer p.Close()
		if got.FPS != 15 {
			t.Errorf("opener got %+v", got)
		}

		defer func() {
			if recover() == nil {
				t.Error("expected a panic on duplicate registration")
			}
		}()
		Register(kind, func(config.DeviceConfig) (Provider, error) { return nil, nil })
	})

	t.Run("replay without store", func(t *testing.T) {
		cfg := config.Default().Device
		cfg.Kind = config.DeviceReplay
		cfg.RecordingID = "r"
		if _, err := Open(cfg, nil); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("replay", func(t *testing.T) {
		cfg := config.Default().Device
		cfg.Kind = config.DeviceReplay
		cfg.RecordingID = "rec"
		src := fakeSource{"rec": recordFrames(t, 3)}
		p, err := Open(cfg, src)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if _, err := p.Poll(context.Background()); err != nil {
			t.Errorf("Poll: %v", err)
		}
	})
}

func TestMock_Script(t *testing.T) {
	m := NewMock(MockOptions{FPS: 10, Gaze: true, Jitter: -1})
	ctx := context.Background()

	intents := map[int]hand.Intent{}
	var frames []*Frame
	for i := 0; i < 60; i++ {
		f, err := m.Poll(ctx)
		if err != nil {
			t.Fatalf("Poll %d: %v", i, err)
		}
		frames = append(frames, f)
		if s := f.Hand(hand.Right); s != nil {
			intents[i] = s.Intent
		}
	}

	if got := frames[1].Time.Sub(frames[0].Time); got != 100*time.Millisecond {
		t.Errorf("frame spacing = %v, want 100ms", got)
	}

	checks := []struct {
		frame int
		want  hand.Intent
	}{
		{0, hand.IntentOpen},
		{25, hand.IntentPinching},
		{35, hand.IntentOpen},
		{45, hand.IntentGrasping},
	}
	for _, c := range checks {
		if intents[c.frame] != c.want {
			t.Errorf("frame %d intent = %q, want %q", c.frame, intents[c.frame], c.want)
		}
	}
	if frames[45].Hand(hand.Left) == nil {
		t.Error("left hand should join during the grasp")
	}
	if len(frames[55].Hands) != 0 {
		t.Errorf("frame 55 has %d hands, want none", len(frames[55].Hands))
	}
	for i, f := range frames {
		if f.Gaze == nil || !f.Gaze.Calibrated {
			t.Fatalf("frame %d: missing calibrated gaze", i)
		}
	}
}

func TestMock_Deterministic(t *testing.T) {
	a := NewMock(MockOptions{Seed: 7})
	b := NewMock(MockOptions{Seed: 7})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		fa, _ := a.Poll(ctx)
		fb, _ := b.Poll(ctx)
		if fa.Hands[0].Keypoints != fb.Hands[0].Keypoints {
			t.Fatalf("frame %d differs between runs with the same seed", i)
		}
	}
}

func TestMock_PushAndClose(t *testing.T) {
	m := NewMock(MockOptions{FPS: 30})
	ctx := context.Background()

	pushed := Frame{Hands: []hand.Sample{hand.PinchSample(hand.Left, MockLeftCenter)}}
	m.Push(pushed)

	f, err := m.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if f.Hand(hand.Left) == nil || f.Time.IsZero() {
		t.Errorf("expected the pushed frame with a filled timestamp, got %+v", f)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.Poll(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("Poll with cancelled ctx = %v", err)
	}

	m.Close()
	if _, err := m.Poll(ctx); !errors.Is(err, ErrProviderClosed) {
		t.Errorf("Poll after Close = %v, want ErrProviderClosed", err)
	}
}
