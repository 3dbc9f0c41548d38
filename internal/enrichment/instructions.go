package enrichment

import (
	_ "embed"

	"shelver/internal/fileutil"
	"shelver/internal/services"
)

//go:embed instructions.md
var instructionDocument []byte

// Instructions returns the static document paired with the request queue.
func Instructions() []byte {
	return append([]byte(nil), instructionDocument...)
}

// WriteInstructions atomically (re)writes the instruction document.
func WriteInstructions(path string) error {
	if err := fileutil.WriteFileAtomic(path, instructionDocument, 0o644); err != nil {
		return services.Wrap(services.ErrFatal, "request", "write instructions", path, err)
	}
	return nil
}
