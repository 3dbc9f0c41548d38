package organizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"shelver/internal/textutil"
)

const (
	unknownAuthor = "Unknown Author"
	untitled      = "Untitled"
)

// BookMetadata is the subset of enrichment metadata used for placement.
type BookMetadata struct {
	AuthorFirst    string
	AuthorLast     string
	AuthorName     string
	Title          string
	Subtitle       string
	Series         string
	SeriesSequence string
	Year           string
	Narrator       string
}

// ParseBookMetadata decodes the stored metadata payload. author and title may
// be strings or objects; series_sequence and publish_year may be strings or
// numbers, with series_index and year accepted as aliases.
func ParseBookMetadata(raw json.RawMessage) (BookMetadata, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return BookMetadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	if fields == nil {
		return BookMetadata{}, fmt.Errorf("decode metadata: not an object")
	}

	var meta BookMetadata
	switch value := fields["author"]; {
	case isObject(value):
		var author struct {
			First string `json:"first"`
			Last  string `json:"last"`
		}
		if err := json.Unmarshal(value, &author); err != nil {
			return BookMetadata{}, fmt.Errorf("decode author: %w", err)
		}
		meta.AuthorFirst = strings.TrimSpace(author.First)
		meta.AuthorLast = strings.TrimSpace(author.Last)
	default:
		meta.AuthorName = scalarText(value)
	}
	switch value := fields["title"]; {
	case isObject(value):
		var title struct {
			Main     string `json:"main"`
			Subtitle string `json:"subtitle"`
		}
		if err := json.Unmarshal(value, &title); err != nil {
			return BookMetadata{}, fmt.Errorf("decode title: %w", err)
		}
		meta.Title = strings.TrimSpace(title.Main)
		meta.Subtitle = strings.TrimSpace(title.Subtitle)
	default:
		meta.Title = scalarText(value)
		meta.Subtitle = scalarText(fields["subtitle"])
	}
	meta.Series = scalarText(fields["series"])
	meta.SeriesSequence = firstText(fields, "series_sequence", "series_index")
	meta.Year = firstText(fields, "publish_year", "year")
	meta.Narrator = scalarText(fields["narrator"])
	return meta, nil
}

// AuthorFolder renders "Last, First" for structured authors and the plain
// name otherwise.
func (m BookMetadata) AuthorFolder() string {
	var name string
	switch {
	case m.AuthorLast != "" && m.AuthorFirst != "":
		name = m.AuthorLast + ", " + m.AuthorFirst
	case m.AuthorLast != "":
		name = m.AuthorLast
	case m.AuthorFirst != "":
		name = m.AuthorFirst
	default:
		name = m.AuthorName
	}
	if name = textutil.SanitizeSegment(name); name == "" {
		return unknownAuthor
	}
	return name
}

// TitleFolder renders "Vol N - Year - Title - Subtitle {Narrator}", omitting
// absent parts.
func (m BookMetadata) TitleFolder() string {
	var parts []string
	if seq := textutil.SanitizeSegment(m.SeriesSequence); seq != "" {
		parts = append(parts, "Vol "+seq)
	}
	if year := textutil.SanitizeSegment(m.Year); year != "" {
		parts = append(parts, year)
	}
	title := textutil.SanitizeSegment(m.Title)
	if title == "" {
		title = untitled
	}
	parts = append(parts, title)
	if subtitle := textutil.SanitizeSegment(m.Subtitle); subtitle != "" {
		parts = append(parts, subtitle)
	}
	folder := strings.Join(parts, " - ")
	if narrator := textutil.SanitizeSegment(m.Narrator); narrator != "" {
		folder += " {" + narrator + "}"
	}
	return folder
}

// RelativeDestination joins the author, optional series, and title folders.
func (m BookMetadata) RelativeDestination() string {
	segments := []string{m.AuthorFolder()}
	if series := textutil.SanitizeSegment(m.Series); series != "" {
		segments = append(segments, series)
	}
	segments = append(segments, m.TitleFolder())
	return filepath.Join(segments...)
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func firstText(fields map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		if text := scalarText(fields[key]); text != "" {
			return text
		}
	}
	return ""
}

// scalarText renders a JSON string or number as text. Anything else is empty.
func scalarText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var number json.Number
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&number); err == nil {
		if f, err := number.Float64(); err == nil && f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return number.String()
	}
	return ""
}
