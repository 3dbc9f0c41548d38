// Package hints derives lightweight metadata hints for enrichment requests
// from an item's folder layout.
package hints

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Source describes the folder a guess is made from.
type Source struct {
	RelativePath string
	MediaFiles   []string
}

// Hints are the extracted fields attached to a request record.
type Hints struct {
	FolderName   string   `json:"folder_name,omitempty"`
	ParentFolder string   `json:"parent_folder,omitempty"`
	Files        []string `json:"files,omitempty"`
	TitleGuess   string   `json:"title_guess,omitempty"`
}

// Guesser extracts hints for an item. Implementations must not fail; a
// guesser with nothing to offer returns empty Hints.
type Guesser interface {
	Guess(src Source) Hints
}

// FolderGuesser derives hints from folder names alone.
type FolderGuesser struct{}

var bracketedNoise = regexp.MustCompile(`[\[(][^\])]*[\])]`)

// Guess implements Guesser.
func (FolderGuesser) Guess(src Source) Hints {
	rel := path.Clean(strings.TrimSpace(src.RelativePath))
	if rel == "." || rel == "" {
		return Hints{}
	}
	folder := path.Base(rel)
	parent := ""
	if dir := path.Dir(rel); dir != "." {
		parent = path.Base(dir)
	}
	var files []string
	if len(src.MediaFiles) > 0 {
		files = append([]string(nil), src.MediaFiles...)
	}
	return Hints{
		FolderName:   folder,
		ParentFolder: parent,
		Files:        files,
		TitleGuess:   CleanTitle(folder),
	}
}

// CleanTitle strips bracketed annotations and separator punctuation from a
// folder name and title-cases the remainder.
func CleanTitle(name string) string {
	base := bracketedNoise.ReplaceAllString(name, " ")
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'':
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return ""
	}
	return cases.Title(language.Und).String(title)
}
