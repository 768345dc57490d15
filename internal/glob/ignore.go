package glob

import (
	"path/filepath"
	"strings"
)

// Ignored reports whether path should be skipped by the file watcher: any
// dot-prefixed path segment is always ignored, plus any of extraGlobs that
// matches the path (evaluated with filepath.Match per segment count, mirroring
// the segment-wise comparison PatternsOverlap already uses for glob-vs-glob
// checks).
func Ignored(path string, extraGlobs []string) bool {
	clean := filepath.ToSlash(path)
	for _, seg := range strings.Split(clean, "/") {
		if strings.HasPrefix(seg, ".") && seg != "" {
			return true
		}
	}
	for _, pattern := range extraGlobs {
		if ok, _ := filepath.Match(filepath.ToSlash(pattern), clean); ok {
			return true
		}
		if ok, _ := PatternsOverlap(pattern, clean); ok {
			return true
		}
	}
	return false
}
