package registry

import (
	"path/filepath"
	"strings"
)

// reservedFilenameChars covers the characters reserved in Windows
// filenames (the most restrictive common target) plus the path
// separator itself, so a uid maps to exactly one file path on any
// target OS.
const reservedFilenameChars = `<>:"/\|?*`

// RingPath maps a uid to the ring file path under baseDir, replacing
// any reserved filename character with an underscore.
func RingPath(baseDir, uid string) string {
	sanitized := strings.Map(func(r rune) rune {
		if strings.ContainsRune(reservedFilenameChars, r) {
			return '_'
		}
		return r
	}, uid)
	return filepath.Join(baseDir, sanitized+".ring")
}
