package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/device"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(store.MemoryPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

type fakePlugins map[string]*plugin.Plugin

func (f fakePlugins) Get(name string) (*plugin.Plugin, error) {
	if p, ok := f[name]; ok {
		return p, nil
	}
	return nil, plugin.ErrPluginNotFound
}

func TestBindingHandler_Workflow(t *testing.T) {
	s := newTestStore(t)
	plugins := fakePlugins{"keyboard": {Manifest: plugin.Manifest{
		Name:    "keyboard",
		Actions: []string{"keystroke"},
		Events:  []string{"select_down", "select_up"},
	}}}
	h := NewBindingHandler(s, plugins)

	rec := do(t, h, http.MethodPost, "/api/bindings",
		`{"event":"select_down","handedness":"Right","plugin_name":"keyboard","action_name":"keystroke","config":{"key":"space"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	var created bindingResponse
	decode(t, rec, &created)
	if created.ID == "" || created.Handedness != "right" || !created.Enabled {
		t.Errorf("created = %+v", created)
	}

	rec = do(t, h, http.MethodGet, "/api/bindings", "")
	var listed listBindingsResponse
	decode(t, rec, &listed)
	if len(listed.Bindings) != 1 {
		t.Fatalf("listed %d bindings, want 1", len(listed.Bindings))
	}

	rec = do(t, h, http.MethodPut, "/api/bindings/"+created.ID, `{"enabled":false,"handedness":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body)
	}
	var updated bindingResponse
	decode(t, rec, &updated)
	if updated.Enabled || updated.Handedness != "" || updated.ActionName != "keystroke" {
		t.Errorf("updated = %+v", updated)
	}

	if rec := do(t, h, http.MethodDelete, "/api/bindings/"+created.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/bindings/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestBindingHandler_Validation(t *testing.T) {
	plugins := fakePlugins{"keyboard": {Manifest: plugin.Manifest{
		Name:    "keyboard",
		Actions: []string{"keystroke"},
		Events:  []string{"select_down"},
	}}}
	h := NewBindingHandler(newTestStore(t), plugins)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing fields", `{"event":"select_down"}`},
		{"unknown event", `{"event":"wave","plugin_name":"keyboard","action_name":"keystroke"}`},
		{"bad handedness", `{"event":"select_down","handedness":"both","plugin_name":"keyboard","action_name":"keystroke"}`},
		{"unknown plugin", `{"event":"select_down","plugin_name":"mouse","action_name":"click"}`},
		{"unknown action", `{"event":"select_down","plugin_name":"keyboard","action_name":"click"}`},
		{"event not accepted", `{"event":"grip_down","plugin_name":"keyboard","action_name":"keystroke"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, "/api/bindings", tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body)
			}
		})
	}

	if rec := do(t, h, http.MethodPatch, "/api/bindings", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PATCH status = %d", rec.Code)
	}
}

type fakeRecorder struct {
	store  *store.Store
	active *store.Recording
	cfg    *config.Config
}

func (f *fakeRecorder) StartRecording(name string) (*store.Recording, error) {
	if f.active != nil {
		return nil, errors.New("recording already in progress")
	}
	f.active = &store.Recording{ID: "live", Name: name, Provider: "mock"}
	if err := f.store.Recordings().Create(f.active); err != nil {
		return nil, err
	}
	return f.active, nil
}

func (f *fakeRecorder) StopRecording() (*store.Recording, error) {
	if f.active == nil {
		return nil, errors.New("no recording in progress")
	}
	id := f.active.ID
	f.active = nil
	if err := f.store.Recordings().Finish(id, time.Now()); err != nil {
		return nil, err
	}
	return f.store.Recordings().GetByID(id)
}

func (f *fakeRecorder) Recording() *store.Recording { return f.active }

func (f *fakeRecorder) Config() *config.Config { return f.cfg }

func (f *fakeRecorder) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	f.cfg = cfg
	return nil
}

// seedRecording stores a short mock capture.
func seedRecording(t *testing.T, s *store.Store, id string, n int) {
	t.Helper()
	recs := s.Recordings()
	if err := recs.Create(&store.Recording{ID: id, Name: id, Provider: "mock"}); err != nil {
		t.Fatal(err)
	}
	mock := device.NewMock(device.MockOptions{FPS: 30})
	frames := make([]store.Frame, n)
	for i := range frames {
		f, err := mock.Poll(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		payload, err := device.EncodeFrame(f)
		if err != nil {
			t.Fatal(err)
		}
		frames[i] = store.Frame{RecordingID: id, Seq: i, Time: f.Time, Payload: payload}
	}
	if err := recs.AppendFrames(id, frames); err != nil {
		t.Fatal(err)
	}
}

func TestRecordingHandler_Workflow(t *testing.T) {
	s := newTestStore(t)
	h := NewRecordingHandler(s, &fakeRecorder{store: s, cfg: config.Default()})

	if rec := do(t, h, http.MethodGet, "/api/recordings/active", ""); rec.Code != http.StatusNotFound {
		t.Errorf("active before start = %d", rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/api/recordings/start", `{"name":"pinch"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodPost, "/api/recordings/start", ""); rec.Code != http.StatusConflict {
		t.Errorf("second start = %d, want 409", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/recordings/live", ""); rec.Code != http.StatusConflict {
		t.Errorf("deleting the live recording = %d, want 409", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/recordings/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d: %s", rec.Code, rec.Body)
	}
	var stopped recordingResponse
	decode(t, rec, &stopped)
	if stopped.Active || stopped.EndedAt == "" || stopped.Name != "pinch" {
		t.Errorf("stopped = %+v", stopped)
	}

	rec = do(t, h, http.MethodPut, "/api/recordings/live", `{"name":"renamed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("rename status = %d", rec.Code)
	}
	var renamed recordingResponse
	decode(t, rec, &renamed)
	if renamed.Name != "renamed" {
		t.Errorf("name = %q", renamed.Name)
	}

	rec = do(t, h, http.MethodGet, "/api/recordings", "")
	var listed listRecordingsResponse
	decode(t, rec, &listed)
	if len(listed.Recordings) != 1 {
		t.Errorf("listed %d recordings", len(listed.Recordings))
	}

	if rec := do(t, h, http.MethodDelete, "/api/recordings/live", ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/recordings/live", ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
}

func TestRecordingHandler_WithoutRecorder(t *testing.T) {
	h := NewRecordingHandler(newTestStore(t), nil)
	if rec := do(t, h, http.MethodPost, "/api/recordings/start", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("start = %d, want 503", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/recordings/start", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET start = %d, want 405", rec.Code)
	}
}

func TestRecordingHandler_Plot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping plot rendering in short mode")
	}
	s := newTestStore(t)
	seedRecording(t, s, "rec", 20)
	h := NewRecordingHandler(s, nil)

	rec := do(t, h, http.MethodGet, "/api/recordings/rec/plot.png?hand=right&keypoint=wrist", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("plot status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/recordings/missing/plot.png", http.StatusNotFound},
		{"/api/recordings/rec/plot.png?hand=both", http.StatusBadRequest},
		{"/api/recordings/rec/plot.png?keypoint=elbow", http.StatusBadRequest},
		{"/api/recordings/rec/plot.png?hand=left", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := do(t, h, http.MethodGet, tt.path, ""); rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestConfigHandler(t *testing.T) {
	target := &fakeRecorder{cfg: config.Default()}
	h := NewConfigHandler(target)

	rec := do(t, h, http.MethodGet, "/api/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var got config.Config
	decode(t, rec, &got)
	if got.Filter.HistorySize != config.Default().Filter.HistorySize {
		t.Errorf("history size = %d", got.Filter.HistorySize)
	}

	rec = do(t, h, http.MethodPut, "/api/config", `{"filter":{"smooth_time_seconds":0.25}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body)
	}
	if target.cfg.Filter.SmoothTimeSeconds != 0.25 {
		t.Errorf("smooth time = %v", target.cfg.Filter.SmoothTimeSeconds)
	}
	if target.cfg.Filter.HistorySize != config.Default().Filter.HistorySize {
		t.Error("a partial update must keep the other fields")
	}

	if rec := do(t, h, http.MethodPut, "/api/config", `{"filter":{"history_size":1}}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid config status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/config", `{`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d", rec.Code)
	}
}
