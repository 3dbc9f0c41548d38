package organizer

import (
	"fmt"
	"path/filepath"
	"strings"

	"shelver/internal/services"
)

// ValidateDestination verifies that target resolves to a folder strictly
// inside outputDir. This catches metadata that would otherwise escape the
// library or collapse onto its root.
func ValidateDestination(outputDir, target string) error {
	root := filepath.Clean(strings.TrimSpace(outputDir))
	if root == "" || root == "." {
		return services.Wrap(services.ErrConfiguration, "organize", "validate destination", "output directory not configured", nil)
	}
	clean := filepath.Clean(strings.TrimSpace(target))
	rel, err := filepath.Rel(root, clean)
	if err != nil {
		return services.Wrap(services.ErrPlacement, "organize", "validate destination", clean, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return services.Wrap(
			services.ErrPlacement,
			"organize",
			"validate destination",
			fmt.Sprintf("destination %q is not inside output directory %q", clean, root),
			nil,
		)
	}
	return nil
}
