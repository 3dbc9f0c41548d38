package hints

import (
	"reflect"
	"testing"
)

func TestFolderGuesser(t *testing.T) {
	got := FolderGuesser{}.Guess(Source{
		RelativePath: "Brandon Sanderson/the_way_of_kings (Unabridged)",
		MediaFiles:   []string{"Disc 1/01.mp3"},
	})
	want := Hints{
		FolderName:   "the_way_of_kings (Unabridged)",
		ParentFolder: "Brandon Sanderson",
		Files:        []string{"Disc 1/01.mp3"},
		TitleGuess:   "The Way Of Kings",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Guess() = %#v, want %#v", got, want)
	}
}

func TestFolderGuesserTopLevel(t *testing.T) {
	got := FolderGuesser{}.Guess(Source{RelativePath: "A"})
	if got.FolderName != "A" || got.ParentFolder != "" || got.Files != nil {
		t.Fatalf("unexpected hints: %#v", got)
	}
}

func TestCleanTitle(t *testing.T) {
	tests := map[string]string{
		"dune.[mp3]":          "Dune",
		"01 - the hobbit":     "01 The Hobbit",
		"[Tag] (2001)":        "",
		"ender's game":        "Ender's Game",
		"Foundation___Empire": "Foundation Empire",
	}
	for in, want := range tests {
		if got := CleanTitle(in); got != want {
			t.Errorf("CleanTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
