package disk

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// unsafeChars matches everything that may not appear in a stored filename.
var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// ComposePath builds the storage path for a file inside baseDir:
// "<baseDir>/<32-hex-token>_<sanitized-name>". The random token keeps two
// uploads of the same display name from colliding, and the name after the
// first underscore is recoverable for the Content-Disposition header.
func ComposePath(baseDir, filename string) string {
	safe := sanitizeFilename(filename)
	if safe == "" {
		safe = "file"
	}
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	return baseDir + "/" + token + "_" + safe
}

// sanitizeFilename reduces a display name to a filesystem-safe form: path
// separators are dropped, spaces become underscores, and any remaining
// unsafe characters are stripped.
func sanitizeFilename(name string) string {
	// Keep only the final path segment, whichever separator the client used.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._-")
}

// DisplayName recovers the original display name from a storage path by
// stripping the random token prefix inserted by ComposePath. A segment
// without an underscore is returned as-is.
func DisplayName(path string) string {
	name := path
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "_"); i >= 0 {
		return name[i+1:]
	}
	return name
}
