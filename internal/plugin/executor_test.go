package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// scriptPlugin writes a shell script plugin into a temp dir.
func scriptPlugin(t *testing.T, body string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script plugins need a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return &Plugin{
		Manifest:   Manifest{Name: "test", Version: "1.0.0", Executable: "plugin.sh", Actions: []string{"run"}},
		Path:       dir,
		Executable: path,
	}
}

func pinchRequest() *Request {
	return &Request{
		Action:     "run",
		Event:      "select_down",
		Handedness: "right",
		Pose:       json.RawMessage(`{"position":{"X":0.2,"Y":-0.25,"Z":0.45}}`),
		Config:     json.RawMessage(`{"key":"space"}`),
	}
}

func TestExecutor_Execute(t *testing.T) {
	p := scriptPlugin(t, `echo '{"success":true,"data":{"message":"hello"}}'`+"\n")
	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), p, pinchRequest())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !resp.Success || resp.Error != "" {
		t.Errorf("response = %+v, want success", resp)
	}
	var data map[string]string
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["message"] != "hello" {
		t.Errorf("message = %q", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	p := scriptPlugin(t, `INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`)
	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), p, pinchRequest())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var got Request
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("unmarshal echoed request: %v", err)
	}
	if got.Event != "select_down" || got.Handedness != "right" || got.Action != "run" {
		t.Errorf("plugin received %+v", got)
	}
	if len(got.Pose) == 0 {
		t.Error("pose was not forwarded")
	}
}

func TestExecutor_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "echo 'not valid json'\n"},
		{"non-zero exit", "echo 'failed' >&2\nexit 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := scriptPlugin(t, tt.body)
			if _, err := NewExecutor(5*time.Second).Execute(context.Background(), p, pinchRequest()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExecutor_ErrorResponse(t *testing.T) {
	p := scriptPlugin(t, `echo '{"success":false,"error":"something went wrong"}'`+"\n")
	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), p, pinchRequest())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.Success || resp.Error != "something went wrong" {
		t.Errorf("response = %+v", resp)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	p := scriptPlugin(t, "sleep 10\necho '{\"success\":true}'\n")
	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), p, pinchRequest())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}
