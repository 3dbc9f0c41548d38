package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxSegmentBytes stays below the 255-byte name limit of common filesystems.
const maxSegmentBytes = 240

// droppedRunes are rejected by SMB and FAT shares that often host libraries.
const droppedRunes = `*?"<>|`

// SanitizeSegment turns a metadata value into a single library folder name.
// Path separators and colons become dashes, whitespace and control runs
// collapse to one space, and leading or trailing dots and spaces are trimmed,
// so "." and ".." come back empty. Callers substitute a fallback for "".
func SanitizeSegment(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	gap := false
	for _, r := range value {
		switch {
		case r == '/' || r == '\\' || r == ':':
			r = '-'
		case strings.ContainsRune(droppedRunes, r):
			continue
		case unicode.IsSpace(r) || unicode.IsControl(r):
			gap = true
			continue
		}
		if gap && b.Len() > 0 {
			b.WriteByte(' ')
		}
		gap = false
		b.WriteRune(r)
	}

	out := b.String()
	for len(out) > maxSegmentBytes {
		_, size := utf8.DecodeLastRuneInString(out)
		out = out[:len(out)-size]
	}
	return strings.Trim(out, ". ")
}
