package pacconf

import (
	"fmt"
	"os"
	"strings"
)

// ValidateMirrorList checks a mirror-list file against its validity
// contract: it must contain at least one server entry and no section
// markers. A '[' at the start of a line means configuration content leaked
// into the mirror list, a known corruption signal for this format.
func ValidateMirrorList(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read mirror list: %w", err)
	}

	entries := 0
	for i, raw := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(trimmed, "[") {
			return fmt.Errorf("mirror list %s: line %d: unexpected section marker %q", path, i+1, trimmed)
		}
		entries++
	}
	if entries == 0 {
		return fmt.Errorf("mirror list %s: no server entries", path)
	}
	return nil
}
