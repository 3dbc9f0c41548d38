package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCopyFileRenamesFinishedCopy(t *testing.T) {
	for _, verify := range []bool{false, true} {
		dir := t.TempDir()
		src := filepath.Join(dir, "01.m4b")
		dst := filepath.Join(dir, "library.m4b")
		content := []byte("chapter one audio")
		if err := os.WriteFile(src, content, 0o644); err != nil {
			t.Fatal(err)
		}
		stamp := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)
		if err := os.Chtimes(src, stamp, stamp); err != nil {
			t.Fatal(err)
		}

		written, err := CopyFile(src, dst, CopyOptions{Verify: verify})
		if err != nil {
			t.Fatalf("verify=%v: %v", verify, err)
		}
		if written != int64(len(content)) {
			t.Fatalf("verify=%v: written = %d, want %d", verify, written, len(content))
		}
		got, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != string(content) {
			t.Fatalf("content mismatch: got %q", got)
		}
		info, err := os.Stat(dst)
		if err != nil {
			t.Fatal(err)
		}
		if !info.ModTime().Equal(stamp) {
			t.Fatalf("modification time = %v, want %v", info.ModTime(), stamp)
		}
		if _, err := os.Stat(dst + PartialSuffix); !os.IsNotExist(err) {
			t.Fatalf("partial file left behind: %v", err)
		}
	}
}

func TestCopyFileOverwritesStalePartial(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "02.mp3")
	dst := filepath.Join(dir, "out.mp3")
	if err := os.WriteFile(src, []byte("full"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst+PartialSuffix, []byte("interrupted copy that was longer"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := CopyFile(src, dst, CopyOptions{}); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "full" {
		t.Fatalf("stale partial content leaked: %q", got)
	}
}

func TestCopyFileMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "cover.jpg")
	dst := filepath.Join(dir, "copy.jpg")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := CopyFile(src, dst, CopyOptions{Mode: 0o600}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected mode %o", info.Mode().Perm())
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst")
	if _, err := CopyFile(filepath.Join(dir, "nope"), dst, CopyOptions{Verify: true}); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst + PartialSuffix); !os.IsNotExist(err) {
		t.Fatalf("partial file created for missing source: %v", err)
	}
}

func TestCopyFileMissingDestinationDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "01.mp3")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := CopyFile(src, filepath.Join(dir, "absent", "01.mp3"), CopyOptions{}); err == nil {
		t.Fatal("expected error when the destination directory is missing")
	}
}

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "queue.jsonl")

	if err := os.WriteFile(target, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(target, []byte("new\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new\n" {
		t.Fatalf("content mismatch: got %q", got)
	}
	assertNoTempFiles(t, dir)
}

func TestWriteAtomicFuncFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "queue.jsonl")

	if err := os.WriteFile(target, []byte("line-1\nline-2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	crash := errors.New("simulated crash")
	err := WriteAtomicFunc(target, 0o644, func(w io.Writer) error {
		if _, err := io.WriteString(w, "partial"); err != nil {
			return err
		}
		return crash
	})
	if !errors.Is(err, crash) {
		t.Fatalf("expected simulated crash error, got %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "line-1\nline-2\n" {
		t.Fatalf("original content changed: %q", got)
	}
	assertNoTempFiles(t, dir)
}

func TestWriteFileAtomicCreatesMissingFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "fresh.txt")

	if err := WriteFileAtomic(target, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected mode %o", info.Mode().Perm())
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}
