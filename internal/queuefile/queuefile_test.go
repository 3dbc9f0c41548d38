package queuefile_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shelver/internal/queuefile"
)

func TestReadMissingFile(t *testing.T) {
	lines, err := queuefile.Read(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(lines))
	}
}

func TestReadSkipsBlankLinesAndKeepsNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responses.jsonl")
	content := "{\"relative_path\":\"A\"}\n\n   \nnot json\n{\"relative_path\":\"B\"}"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	lines, err := queuefile.Read(path)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	wantNumbers := []int{1, 4, 5}
	for i, line := range lines {
		if line.Number != wantNumbers[i] {
			t.Fatalf("line %d: number %d, want %d", i, line.Number, wantNumbers[i])
		}
	}
	if string(lines[1].Raw) != "not json" {
		t.Fatalf("unexpected raw line: %q", lines[1].Raw)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.jsonl")
	if err := os.WriteFile(path, []byte("stale\nstale\nstale\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := queuefile.Write(path, [][]byte{[]byte(`{"a":1}`), []byte(`{"b":2}` + "\n")}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\"a\":1}\n{\"b\":2}\n" {
		t.Fatalf("unexpected content: %q", data)
	}

	if err := queuefile.Write(path, nil); err != nil {
		t.Fatalf("Write empty returned error: %v", err)
	}
	exists, err := queuefile.Exists(path)
	if err != nil || !exists {
		t.Fatalf("expected empty queue file to exist, exists=%v err=%v", exists, err)
	}
	lines, err := queuefile.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected empty queue, got %d lines", len(lines))
	}
}

func TestWriteFailureLeavesPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue", "responses.jsonl")

	// The parent directory does not exist, so the temp file cannot be created.
	if err := queuefile.Write(path, [][]byte{[]byte(`{}`)}); err == nil {
		t.Fatal("expected error when queue directory is missing")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no queue file, stat err=%v", err)
	}
}

func TestEncodeLineIsCompact(t *testing.T) {
	line, err := queuefile.EncodeLine(map[string]any{"relative_path": "A & B <1>", "n": 2})
	if err != nil {
		t.Fatalf("EncodeLine returned error: %v", err)
	}
	if strings.Contains(string(line), "\n") {
		t.Fatalf("expected single line, got %q", line)
	}
	if string(line) != `{"n":2,"relative_path":"A & B <1>"}` {
		t.Fatalf("unexpected encoding: %s", line)
	}
}
