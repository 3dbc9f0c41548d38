package enrichment

import (
	"bytes"
	"fmt"
	"log/slog"

	"shelver/internal/logging"
	"shelver/internal/queuefile"
	"shelver/internal/services"
)

// Entry is one line of a response or manual-review queue. Record is nil for
// malformed lines, whose raw bytes are carried through rewrites unchanged.
type Entry struct {
	Line   queuefile.Line
	Record *ResponseRecord
	Err    error
}

// Malformed reports whether the line failed to parse.
func (e Entry) Malformed() bool {
	return e.Record == nil
}

// LoadQueue reads and parses a queue file. A missing file is an empty queue;
// an unreadable file is fatal.
func LoadQueue(path string) ([]Entry, error) {
	lines, err := queuefile.Read(path)
	if err != nil {
		return nil, services.Wrap(services.ErrFatal, "queue", "read", path, err)
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		rec, parseErr := ParseResponse(line.Raw)
		entries = append(entries, Entry{Line: line, Record: rec, Err: parseErr})
	}
	return entries, nil
}

// WriteQueue atomically replaces path with the given entries.
func WriteQueue(path string, entries []Entry) error {
	lines := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		if entry.Malformed() {
			lines = append(lines, entry.Line.Raw)
			continue
		}
		encoded, err := entry.Record.MarshalJSON()
		if err != nil {
			return services.Wrap(services.ErrFatal, "queue", "encode", entry.Record.RelativePath, err)
		}
		lines = append(lines, encoded)
	}
	if err := queuefile.Write(path, lines); err != nil {
		return services.Wrap(services.ErrFatal, "queue", "write", path, err)
	}
	return nil
}

// RecordEntry wraps a record for writing.
func RecordEntry(rec *ResponseRecord) Entry {
	return Entry{Record: rec}
}

// PathSet returns the relative paths of every well-formed entry.
func PathSet(entries []Entry) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if !entry.Malformed() {
			set[entry.Record.RelativePath] = struct{}{}
		}
	}
	return set
}

// ReplaceOrAppend puts rec into entries, replacing the last well-formed entry
// for the same relative path or appending when there is none. It returns the
// record that was replaced, if any, and whether the queue content changed.
func ReplaceOrAppend(entries []Entry, rec *ResponseRecord) ([]Entry, *ResponseRecord, bool, error) {
	for idx := len(entries) - 1; idx >= 0; idx-- {
		existing := entries[idx]
		if existing.Malformed() || existing.Record.RelativePath != rec.RelativePath {
			continue
		}
		same, err := sameRecord(existing.Record, rec)
		if err != nil {
			return entries, existing.Record, false, err
		}
		if same {
			return entries, existing.Record, false, nil
		}
		entries[idx] = RecordEntry(rec)
		return entries, existing.Record, true, nil
	}
	return append(entries, RecordEntry(rec)), nil, true, nil
}

func sameRecord(a, b *ResponseRecord) (bool, error) {
	left, err := a.MarshalJSON()
	if err != nil {
		return false, services.Wrap(services.ErrFatal, "queue", "encode", a.RelativePath, err)
	}
	right, err := b.MarshalJSON()
	if err != nil {
		return false, services.Wrap(services.ErrFatal, "queue", "encode", b.RelativePath, err)
	}
	return bytes.Equal(left, right), nil
}

// DedupeEntries keeps the last well-formed entry per relative path, in
// original order, and returns how many earlier duplicates were dropped.
func DedupeEntries(entries []Entry, queueName string, logger *slog.Logger) ([]Entry, int) {
	last := make(map[string]int, len(entries))
	for idx, entry := range entries {
		if !entry.Malformed() {
			last[entry.Record.RelativePath] = idx
		}
	}
	out := make([]Entry, 0, len(entries))
	dropped := 0
	for idx, entry := range entries {
		if !entry.Malformed() && last[entry.Record.RelativePath] != idx {
			dropped++
			logging.WarnWithContext(logger, "dropping superseded queue record", "queue_duplicate_record",
				logging.String("queue", queueName),
				logging.String(logging.FieldItem, entry.Record.RelativePath),
				logging.Int("line", entry.Line.Number),
				logging.String(logging.FieldImpact, "a later record for the same item is used instead"),
			)
			continue
		}
		out = append(out, entry)
	}
	return out, dropped
}

// WarnMalformed logs each malformed entry once.
func WarnMalformed(logger *slog.Logger, queueName string, entries []Entry) int {
	count := 0
	for _, entry := range entries {
		if !entry.Malformed() {
			continue
		}
		count++
		logging.WarnWithContext(logger, "skipping malformed queue line", "queue_malformed_record",
			logging.String("queue", queueName),
			logging.Int("line", entry.Line.Number),
			logging.Error(entry.Err),
			logging.String(logging.FieldErrorKind, services.ErrorKind(entry.Err)),
			logging.String(logging.FieldImpact, "line left in place; fix or remove it by hand"),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("edit line %d of the %s queue", entry.Line.Number, queueName)),
		)
	}
	return count
}
