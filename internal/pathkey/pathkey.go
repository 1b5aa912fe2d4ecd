// Package pathkey derives the canonical, case-insensitive identity used for
// a track across every store in the pipeline.
package pathkey

import (
	"strings"

	"golang.org/x/text/cases"
)

var fold = cases.Fold()

// Key returns the TrackKey for path: backslashes normalized to forward
// slashes, then case-folded. It performs no filesystem access and is
// idempotent — Key(Key(p)) == Key(p) for all p. Case folding (rather than
// strings.ToLower) is used so keys derived from non-ASCII filenames collapse
// the same way across filesystems that preserve Unicode case differently.
func Key(path string) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	return fold.String(normalized)
}

// Equal reports whether two paths collapse to the same TrackKey.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}
