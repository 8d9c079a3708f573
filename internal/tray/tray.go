// Package tray provides a system tray menu for the mudra tracking service.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// trackChoices are the tracked hand settings offered in the Hands submenu.
var trackChoices = []struct{ setting, title string }{
	{"both", "Both hands"},
	{"left", "Left hand"},
	{"right", "Right hand"},
	{"none", "No hands"},
}

// Tray is the system tray menu. Callbacks run on the menu goroutine and may
// be set before or after Run.
type Tray struct {
	onToggle   func(enabled bool)
	onTrack    func(setting string) error
	onRecord   func(recording bool) error
	onSettings func()
	onQuit     func()
	enabled    bool
	recording  bool
	track      string
	mu         sync.RWMutex

	menuToggle    *systray.MenuItem
	menuRecord    *systray.MenuItem
	menuLastEvent *systray.MenuItem
	menuTrack     map[string]*systray.MenuItem
}

// New creates a Tray. Tracking starts enabled with both hands tracked.
func New() *Tray {
	return &Tray{
		enabled: true,
		track:   "both",
	}
}

// OnToggle sets the callback for the tracking toggle.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnTrack sets the callback for the Hands submenu. A returned error leaves
// the selection unchanged.
func (t *Tray) OnTrack(fn func(setting string) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTrack = fn
}

// OnRecord sets the callback for the recording toggle. A returned error
// leaves the menu unchanged.
func (t *Tray) OnRecord(fn func(recording bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecord = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra Hand Tracking")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle hand tracking")
	menuHands := systray.AddMenuItem("Hands", "Choose the tracked hands")
	t.menuTrack = make(map[string]*systray.MenuItem, len(trackChoices))
	for _, c := range trackChoices {
		item := menuHands.AddSubMenuItemCheckbox(c.title, "Track "+c.setting, c.setting == t.track)
		t.menuTrack[c.setting] = item
	}
	systray.AddSeparator()

	t.menuRecord = systray.AddMenuItem(recordTitle(t.recording), "Record device frames")
	t.menuLastEvent = systray.AddMenuItem("Last: none", "Last input event")
	t.menuLastEvent.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	for _, c := range trackChoices {
		setting, item := c.setting, t.menuTrack[c.setting]
		go func() {
			for range item.ClickedCh {
				t.handleTrack(setting)
			}
		}()
	}

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuRecord.ClickedCh:
				t.handleRecord()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func recordTitle(recording bool) string {
	if recording {
		return "■ Stop Recording"
	}
	return "Start Recording"
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	t.menuToggle.SetTitle(toggleTitle(enabled))
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleTrack(setting string) {
	t.mu.RLock()
	callback := t.onTrack
	t.mu.RUnlock()

	if callback != nil {
		if err := callback(setting); err != nil {
			return
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.track = setting
	for s, item := range t.menuTrack {
		if s == setting {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func (t *Tray) handleRecord() {
	t.mu.RLock()
	next := !t.recording
	callback := t.onRecord
	t.mu.RUnlock()

	if callback != nil {
		if err := callback(next); err != nil {
			return
		}
	}
	t.SetRecording(next)
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetRecording updates the recording item, for recordings started elsewhere.
func (t *Tray) SetRecording(recording bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recording = recording
	if t.menuRecord != nil {
		t.menuRecord.SetTitle(recordTitle(recording))
	}
}

// SetLastEvent updates the last event display in the menu.
func (t *Tray) SetLastEvent(label string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastEvent != nil {
		if label == "" {
			t.menuLastEvent.SetTitle("Last: none")
		} else {
			t.menuLastEvent.SetTitle("Last: " + label)
		}
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// IsRecording reports whether the menu shows a recording in progress.
func (t *Tray) IsRecording() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.recording
}
