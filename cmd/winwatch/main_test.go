package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1broseidon/list-windows/internal/snapshot"
)

func TestRun_Once(t *testing.T) {
	path := filepath.Join(t.TempDir(), "windows.ini")
	data, err := snapshot.Marshal([]snapshot.Entry{
		{Title: "Terminal", AppID: "foot", Icon: "foot", Focused: true},
		{Title: "Mail", AppID: "org.example.Mail", Minimized: true},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := snapshot.WriteFile(path, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if rc := run([]string{"-once", "-snapshot", path}, &stdout, &stderr); rc != 0 {
		t.Fatalf("rc=%d stderr=%q", rc, stderr.String())
	}
	out := stdout.String()
	if !strings.HasPrefix(out, "2 windows\n") {
		t.Fatalf("output = %q", out)
	}
	if !strings.Contains(out, "F--") || !strings.Contains(out, "-m-") {
		t.Fatalf("flags missing: %q", out)
	}
}

func TestRun_OnceMissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	rc := run([]string{"-once", "-snapshot", filepath.Join(t.TempDir(), "absent.ini")}, &stdout, &stderr)
	if rc != 1 {
		t.Fatalf("rc=%d, want 1", rc)
	}
}
