package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ayusman/mudra/internal/device"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/tracking"
)

// Start launches the tracking loop and the plugin worker. It is a no-op if
// the loop is already running.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})

	fps := a.cfg.Device.FPS
	if fps <= 0 {
		fps = 30
	}
	go a.run(ctx, time.Second/time.Duration(fps), a.done)

	log.Println("Tracking pipeline started")
	return nil
}

// Stop halts the loop and waits for it to exit.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Println("Tracking pipeline stopped")
}

// run polls the device once per tick while enabled. The router runs in its
// own goroutine so slow plugins never delay tracking.
func (a *App) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	workerDone := make(chan struct{})
	go a.routeEvents(ctx, workerDone)
	defer func() { <-workerDone }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}
			_, _, err := a.Step(ctx)
			switch {
			case err == nil:
			case errors.Is(err, device.ErrEndOfStream):
				log.Println("Replay finished; tracking disabled")
				a.SetEnabled(false)
			case errors.Is(err, context.Canceled):
				return
			default:
				log.Printf("Error polling device: %v", err)
			}
		}
	}
}

// Step polls one frame and runs it through the pipeline: recording,
// filtering, event dispatch and publication to subscribers.
func (a *App) Step(ctx context.Context) (tracking.Snapshot, []dispatch.Event, error) {
	f, err := a.provider.Poll(ctx)
	if err != nil {
		return tracking.Snapshot{}, nil, err
	}
	if a.recorder != nil {
		if err := a.recorder.Add(f); err != nil {
			log.Printf("Error recording frame: %v", err)
		}
	}

	a.mu.Lock()
	snap := a.session.Update(f)
	events := append(a.pending, a.dispatcher.Dispatch(a.prev, snap)...)
	a.pending = nil
	a.prev = snap
	if len(events) > 0 {
		last := events[len(events)-1]
		a.lastEvent = &last
	}
	a.mu.Unlock()

	a.hub.Publish(snap)
	if a.router != nil {
		for _, ev := range events {
			select {
			case a.events <- ev:
			default:
				log.Printf("Event queue full, dropping %s", ev.Kind)
			}
		}
	}
	return snap, events, nil
}

func (a *App) routeEvents(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.events:
			if _, err := a.router.Route(ctx, ev); err != nil {
				log.Printf("Error routing %s: %v", ev.Kind, err)
			}
		}
	}
}
