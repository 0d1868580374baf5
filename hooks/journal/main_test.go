package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/formcoach/internal/coach"
)

func TestHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")

	req := `{"message": {"kind": "corrective", "exercise": "Push-Ups", "rep_number": 3,
		"text": "Rep 3: fair form\nKeep your hips up, avoid sagging", "created_at": "2026-03-01T09:00:03Z"}}`
	resp := handle(strings.NewReader(req), path)
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	resp = handle(strings.NewReader(req), path)
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read journal: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 journal lines, got %d", len(lines))
	}
	want := "2026-03-01T09:00:03Z\tPush-Ups\t#3\tcorrective\tRep 3: fair form | Keep your hips up, avoid sagging"
	if lines[0] != want {
		t.Errorf("expected %q, got %q", want, lines[0])
	}
}

func TestHandle_InvalidRequest(t *testing.T) {
	resp := handle(strings.NewReader("{"), filepath.Join(t.TempDir(), "journal.log"))
	if resp.Success || resp.Error == "" {
		t.Errorf("expected an error response, got %+v", resp)
	}
}

func TestFormatEntry_DefaultsTime(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	line := formatEntry(coach.Message{Kind: coach.KindPraise, Exercise: "Squats", RepNumber: 1})
	stamp, err := time.Parse(time.RFC3339, strings.SplitN(line, "\t", 2)[0])
	if err != nil {
		t.Fatalf("bad timestamp in %q: %v", line, err)
	}
	if stamp.Before(before.Truncate(time.Second)) {
		t.Errorf("expected a current timestamp, got %v", stamp)
	}
}
