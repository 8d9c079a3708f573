// Package app wires a tracking device to the filters, the event dispatcher,
// the recorder and the snapshot subscribers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/device"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracking"
)

// eventQueue bounds the events waiting for plugin execution.
const eventQueue = 64

// Options configures an App.
type Options struct {
	Config *config.Config
	// Store is optional; without it recording, bindings and persisted
	// settings are unavailable.
	Store *store.Store
	// Provider overrides the device selected by Config.Device.
	Provider device.Provider
}

// App runs the tracking loop.
type App struct {
	store      *store.Store
	provider   device.Provider
	dispatcher *dispatch.Dispatcher
	router     *dispatch.Router
	plugins    *plugin.Manager
	recorder   *Recorder
	hub        *Hub

	mu        sync.RWMutex
	cfg       *config.Config
	session   *tracking.Session
	enabled   bool
	prev      tracking.Snapshot
	pending   []dispatch.Event
	lastEvent *dispatch.Event

	events chan dispatch.Event
	cancel context.CancelFunc
	done   chan struct{}
}

// New opens the device and builds the pipeline. The app starts disabled.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	provider := opts.Provider
	if provider == nil {
		var frames device.FrameSource
		if opts.Store != nil {
			frames = opts.Store.Recordings()
		}
		p, err := device.Open(cfg.Device, frames)
		if err != nil {
			return nil, fmt.Errorf("open device: %w", err)
		}
		provider = p
	}
	log.Printf("Using %s device (%s)", provider.Name(), provider.Capabilities())

	a := &App{
		store:      opts.Store,
		provider:   provider,
		dispatcher: dispatch.NewDispatcher(),
		plugins:    plugin.NewManager(cfg.Plugins.Dir),
		hub:        NewHub(),
		cfg:        cfg,
		session:    tracking.NewSession(cfg, provider.Capabilities()),
		events:     make(chan dispatch.Event, eventQueue),
	}
	if opts.Store != nil {
		a.recorder = NewRecorder(opts.Store.Recordings())
		a.router = dispatch.NewRouter(opts.Store.Bindings(), a.plugins,
			plugin.NewExecutor(cfg.Plugins.Timeout.Std()))
	}
	return a, nil
}

// SetEnabled turns frame processing on or off. A disabled app keeps running
// but does not poll the device.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled reports whether frames are processed.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// DiscoverPlugins rescans the plugin directory.
func (a *App) DiscoverPlugins() error {
	if err := a.plugins.Discover(); err != nil {
		return err
	}
	log.Printf("Loaded %d plugins from %s", len(a.plugins.List()), a.plugins.Dir())
	return nil
}

// Config returns the active configuration. Callers must not modify it.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// ApplyConfig validates cfg, rebuilds the filters with it and persists it
// when a store is configured. Device settings take effect on restart.
//
// Hands of the old filters are released: their up and lost events are
// delivered with the next frame, ahead of that frame's own events.
func (a *App) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if a.store != nil {
		if err := a.store.Settings().SetJSON(store.SettingConfig, cfg); err != nil {
			return fmt.Errorf("persist config: %w", err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if cfg.Device != a.cfg.Device {
		log.Println("Device settings changed; restart to apply them")
	}
	a.cfg = cfg
	a.session = tracking.NewSession(cfg, a.provider.Capabilities())
	a.pending = append(a.pending, a.dispatcher.Dispatch(a.prev, tracking.Snapshot{Time: a.prev.Time})...)
	a.prev = tracking.Snapshot{}
	return nil
}

// SetTrack changes the tracked hands without resetting the filters. The
// active configuration follows, so a later ApplyConfig built from Config
// keeps the setting. It is not persisted.
func (a *App) SetTrack(setting string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.session.SetTrack(setting); err != nil {
		return err
	}
	cfg := a.cfg.Clone()
	cfg.Hand.Track = setting
	a.cfg = cfg
	return nil
}

// Track returns the tracked hands setting.
func (a *App) Track() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.Track()
}

// Subscribe registers a snapshot subscriber.
func (a *App) Subscribe(buffer int) (<-chan tracking.Snapshot, func()) {
	return a.hub.Subscribe(buffer)
}

// Latest returns the most recent snapshot.
func (a *App) Latest() tracking.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.prev
}

// LastEvent returns the most recent input event, or nil.
func (a *App) LastEvent() *dispatch.Event {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lastEvent == nil {
		return nil
	}
	ev := *a.lastEvent
	return &ev
}

// StartRecording starts writing polled frames to the store.
func (a *App) StartRecording(name string) (*store.Recording, error) {
	if a.recorder == nil {
		return nil, ErrNoStore
	}
	rec, err := a.recorder.Start(name, a.provider.Name())
	if err != nil {
		return nil, err
	}
	log.Printf("Recording %s started", rec.ID)
	return rec, nil
}

// StopRecording closes the active recording.
func (a *App) StopRecording() (*store.Recording, error) {
	if a.recorder == nil {
		return nil, ErrNoStore
	}
	rec, err := a.recorder.Stop()
	if err != nil {
		return nil, err
	}
	log.Printf("Recording %s stopped after %d frames", rec.ID, rec.FrameCount)
	return rec, nil
}

// Recording returns the active recording, or nil.
func (a *App) Recording() *store.Recording {
	if a.recorder == nil {
		return nil
	}
	return a.recorder.Active()
}

// Provider returns the tracking device.
func (a *App) Provider() device.Provider { return a.provider }

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager { return a.plugins }

// Store returns the store, which may be nil.
func (a *App) Store() *store.Store { return a.store }

// Preview returns the camera preview when the device keeps one.
func (a *App) Preview() device.Preview {
	if p, ok := a.provider.(device.Previewer); ok {
		return p.Preview()
	}
	return nil
}

// Close stops the loop, finishes any recording and closes the device.
func (a *App) Close() error {
	a.Stop()
	if a.Recording() != nil {
		if _, err := a.StopRecording(); err != nil {
			log.Printf("Error finishing recording: %v", err)
		}
	}
	if err := a.provider.Close(); err != nil && !errors.Is(err, device.ErrProviderClosed) {
		return fmt.Errorf("close device: %w", err)
	}
	return nil
}

// PersistedConfig returns the configuration saved by ApplyConfig, or base
// when nothing has been saved.
func PersistedConfig(st *store.Store, base *config.Config) (*config.Config, error) {
	raw, err := st.Settings().Get(store.SettingConfig)
	if errors.Is(err, store.ErrNotFound) {
		return base, nil
	}
	if err != nil {
		return nil, err
	}
	cfg, err := config.Parse([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("persisted config: %w", err)
	}
	return cfg, nil
}
