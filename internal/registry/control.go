// Package registry reconciles the host's virtual-endpoint set against
// a line-oriented control file the routing brain (C9) rewrites, per
// spec.md §4.7. Grounded on the teacher's config-loading idiom
// (internal/config/config.go's default-then-validate shape) for the
// parse/validate split, generalized from flag parsing to line parsing.
package registry

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
)

// Entry is one line of the control file: a display name and the
// stable uid the routing brain minted for the physical device it
// mirrors.
type Entry struct {
	Name string
	UID  string
}

// ParseControlFile parses the control file's `name|uid` lines. Blank
// lines are skipped; a malformed line is reported with its 1-based
// line number rather than aborting the whole parse, since a single
// corrupt line written mid-rewrite by the routing brain should not
// take down every other endpoint.
func ParseControlFile(data []byte) ([]Entry, error) {
	var entries []Entry
	var malformed []error
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			// Blank lines and '#'-prefixed comment lines (e.g. the
			// generation-id stamp cmd/radioform-host prepends on every
			// rewrite) are not endpoint entries.
			continue
		}
		parts := strings.SplitN(line, "|", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			malformed = append(malformed, fmt.Errorf("registry: control file line %d: malformed %q", lineNo, line))
			continue
		}
		entries = append(entries, Entry{Name: parts[0], UID: parts[1]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("registry: control file: %w", err)
	}
	return entries, errors.Join(malformed...)
}

// FormatControlFile renders entries back to the control file's
// `name|uid` line format, one per line.
func FormatControlFile(entries []Entry) []byte {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Name)
		b.WriteByte('|')
		b.WriteString(e.UID)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
