package organizer_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"shelver/internal/organizer"
)

func TestRelativeDestination(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
		want     string
	}{
		{
			name:     "structured author and title with series",
			metadata: `{"author":{"first":"Terry","last":"Pratchett"},"title":{"main":"Guards! Guards!","subtitle":"A Discworld Novel"},"series":"Discworld","series_sequence":8,"publish_year":1989,"narrator":"Stephen Briggs"}`,
			want:     filepath.Join("Pratchett, Terry", "Discworld", "Vol 8 - 1989 - Guards! Guards! - A Discworld Novel {Stephen Briggs}"),
		},
		{
			name:     "plain strings without series",
			metadata: `{"author":"Jane Doe","title":"Standalone","year":"2001"}`,
			want:     filepath.Join("Jane Doe", "2001 - Standalone"),
		},
		{
			name:     "aliases and fractional index",
			metadata: `{"author":"A","title":"Novella","series":"Saga","series_index":2.5}`,
			want:     filepath.Join("A", "Saga", "Vol 2.5 - Novella"),
		},
		{
			name:     "unsafe characters sanitized",
			metadata: `{"author":"AC/DC","title":"Why: A Story?","series":"Back/Forth"}`,
			want:     filepath.Join("AC-DC", "Back-Forth", "Why- A Story"),
		},
		{
			name:     "missing fields fall back",
			metadata: `{"narrator":"Someone"}`,
			want:     filepath.Join("Unknown Author", "Untitled {Someone}"),
		},
		{
			name:     "dot segments cannot climb out of the author folder",
			metadata: `{"author":"..","title":"..","series":".."}`,
			want:     filepath.Join("Unknown Author", "Untitled"),
		},
		{
			name:     "dot series is dropped",
			metadata: `{"author":"Jane Doe","title":"Book","series":" . "}`,
			want:     filepath.Join("Jane Doe", "Book"),
		},
		{
			name:     "last name only",
			metadata: `{"author":{"last":"Homer"},"title":"The Odyssey"}`,
			want:     filepath.Join("Homer", "The Odyssey"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := organizer.ParseBookMetadata(json.RawMessage(tt.metadata))
			if err != nil {
				t.Fatalf("ParseBookMetadata: %v", err)
			}
			if got := meta.RelativeDestination(); got != tt.want {
				t.Fatalf("RelativeDestination() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseBookMetadataRejectsNonObject(t *testing.T) {
	for _, raw := range []string{`"text"`, `null`, `[1,2]`, `{`} {
		if _, err := organizer.ParseBookMetadata(json.RawMessage(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}
