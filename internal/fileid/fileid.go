// Package fileid derives deterministic document uids for documents read from files.
package fileid

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const prefix = "file:"

// FileID returns a stable identifier for the given absolute path.
// Same path always yields the same ID.
func FileID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	return fmt.Sprintf("%s%016x", prefix, xxhash.Sum64String(normalized))
}

// DocumentUID returns the uid for the document on line (1-based) of the file.
func DocumentUID(absolutePath string, line int) string {
	return fmt.Sprintf("%s:%d", FileID(absolutePath), line)
}

// ChunkUID returns the uid for chunk (0-based) of text extracted from the file.
func ChunkUID(absolutePath string, chunk int) string {
	return fmt.Sprintf("%s#%d", FileID(absolutePath), chunk)
}

// FromFile reports whether uid was produced by DocumentUID or ChunkUID for absolutePath.
func FromFile(uid, absolutePath string) bool {
	rest, ok := strings.CutPrefix(uid, FileID(absolutePath))
	return ok && (strings.HasPrefix(rest, ":") || strings.HasPrefix(rest, "#"))
}
