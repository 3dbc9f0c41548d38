// Package queuefile reads and rewrites line-delimited JSON queue files.
//
// Queue files are the hand-off surface between shelver and the external
// enrichment agent. Every rewrite replaces the whole file through a temp file
// and rename, so a concurrent reader or an interrupted run sees either the old
// or the new content in full.
package queuefile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"shelver/internal/fileutil"
)

// Line is one non-blank line of a queue file with its 1-based line number.
type Line struct {
	Number int
	Raw    []byte
}

// Read returns the non-blank lines of path. A missing file yields no lines
// and no error.
func Read(path string) ([]Line, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open queue file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	var lines []Line
	number := 0
	for {
		raw, readErr := reader.ReadBytes('\n')
		if len(raw) > 0 {
			number++
			trimmed := bytes.TrimSpace(raw)
			if len(trimmed) > 0 {
				lines = append(lines, Line{Number: number, Raw: append([]byte(nil), trimmed...)})
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read queue file: %w", readErr)
		}
	}
	return lines, nil
}

// Write atomically replaces path with one line per entry. An empty slice
// produces an empty file.
func Write(path string, lines [][]byte) error {
	err := fileutil.WriteAtomicFunc(path, 0o644, func(w io.Writer) error {
		for _, line := range lines {
			if _, err := w.Write(bytes.TrimSpace(line)); err != nil {
				return err
			}
			if _, err := w.Write([]byte{'\n'}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rewrite queue file %s: %w", path, err)
	}
	return nil
}

// Exists reports whether the queue file is present.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat queue file: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("queue file %s is a directory", path)
	}
	return true, nil
}

// EncodeLine renders v as compact single-line JSON without HTML escaping.
func EncodeLine(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
