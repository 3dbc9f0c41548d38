package organizer

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"sort"
	"syscall"

	"shelver/internal/media"
	"shelver/internal/scanner"
)

// libraryUnavailableErrors lists syscall errors that indicate the library is unavailable.
var libraryUnavailableErrors = []error{
	syscall.ENODEV,
	syscall.ENOTCONN,
	syscall.EHOSTDOWN,
	syscall.EHOSTUNREACH,
	syscall.ETIMEDOUT,
	syscall.EIO,
	syscall.ESTALE,
	syscall.ENOSPC,
}

// isLibraryUnavailable checks whether an error indicates the library filesystem is unavailable.
func isLibraryUnavailable(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range libraryUnavailableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// collectFiles lists the files to copy for a candidate: its media files
// (disc subfolders included) plus companion files such as cover art at the
// top level of the folder. Paths are slash-separated and sorted.
func collectFiles(candidate scanner.Candidate, matcher *media.Matcher) ([]string, error) {
	seen := make(map[string]struct{}, len(candidate.MediaFiles))
	files := make([]string, 0, len(candidate.MediaFiles))
	for _, rel := range candidate.MediaFiles {
		seen[rel] = struct{}{}
		files = append(files, rel)
	}

	entries, err := os.ReadDir(candidate.AbsolutePath)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || matcher.IsIgnored(name) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		files = append(files, name)
	}
	for _, disc := range candidate.DiscFolders {
		discEntries, err := os.ReadDir(filepath.Join(candidate.AbsolutePath, disc))
		if err != nil {
			return nil, err
		}
		for _, entry := range discEntries {
			rel := path.Join(disc, entry.Name())
			if !entry.Type().IsRegular() || matcher.IsIgnored(entry.Name()) {
				continue
			}
			if _, ok := seen[rel]; ok {
				continue
			}
			seen[rel] = struct{}{}
			files = append(files, rel)
		}
	}
	sort.Strings(files)
	return files, nil
}
