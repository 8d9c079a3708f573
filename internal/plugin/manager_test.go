package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, root, dir string, m Manifest) {
	t.Helper()
	path := filepath.Join(root, dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, manifestFile), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "keys", Manifest{
		Name:       "keyboard",
		Version:    "1.0.0",
		Executable: "keyboard",
		Actions:    []string{"keystroke", "shortcut"},
		Events:     []string{"select_down"},
	})
	writeManifest(t, root, "sys", Manifest{Name: "system-control", Executable: "system-control"})
	writeManifest(t, root, "nameless", Manifest{Executable: "x"})
	if err := os.MkdirAll(filepath.Join(root, "broken"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "broken", manifestFile), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	m := NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	plugins := m.List()
	if len(plugins) != 2 {
		t.Fatalf("got %d plugins, want 2", len(plugins))
	}
	if plugins[0].Manifest.Name != "keyboard" || plugins[1].Manifest.Name != "system-control" {
		t.Errorf("List not sorted by name: %s, %s", plugins[0].Manifest.Name, plugins[1].Manifest.Name)
	}

	kb, err := m.Get("keyboard")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if kb.Path != filepath.Join(root, "keys") || kb.Executable != filepath.Join(root, "keys", "keyboard") {
		t.Errorf("paths = %q, %q", kb.Path, kb.Executable)
	}
	if m.Dir() != root {
		t.Errorf("Dir = %q", m.Dir())
	}
}

func TestManager_Discover_MissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope"))
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(m.List()) != 0 {
		t.Error("expected no plugins")
	}
	if _, err := m.Get("keyboard"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get = %v, want ErrPluginNotFound", err)
	}
}

func TestManager_Rediscover(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "a", Manifest{Name: "a", Executable: "a"})
	m := NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(root, "a")); err != nil {
		t.Fatal(err)
	}
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get("a"); !errors.Is(err, ErrPluginNotFound) {
		t.Error("a removed plugin must disappear after Discover")
	}
}

func TestManifest(t *testing.T) {
	m := Manifest{Actions: []string{"keystroke"}, Events: []string{"select_down", "grip_down"}}
	tests := []struct {
		event string
		want  bool
	}{
		{"select_down", true},
		{"grip_down", true},
		{"saccade", false},
	}
	for _, tt := range tests {
		if got := m.Accepts(tt.event); got != tt.want {
			t.Errorf("Accepts(%q) = %v, want %v", tt.event, got, tt.want)
		}
	}
	if !(&Manifest{}).Accepts("saccade") {
		t.Error("a manifest without events accepts everything")
	}
	if !m.HasAction("keystroke") || m.HasAction("click") {
		t.Error("HasAction mismatch")
	}
}
