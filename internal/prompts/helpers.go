package prompts

import (
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// projectFromRoot derives a project identifier from the last element of
// a root path.
func projectFromRoot(root string) string {
	base := filepath.Base(filepath.Clean(root))
	id := strings.Trim(unsafeID.ReplaceAllString(base, "-"), "-.")
	if id == "" {
		return "project"
	}
	return strings.ToLower(id)
}
