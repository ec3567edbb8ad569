// Package debugtab implements the debug-message registry of the
// executive: a table of enabled marker prefixes loaded from a
// line-oriented configuration file. A line is a '#' comment, blank, or
// ":marker-pattern", which enables every debug message whose marker
// matches the pattern as a prefix.
package debugtab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Table holds the enabled marker prefixes. The zero value (and a nil
// *Table) disables everything, so callers need no "is debugging on"
// check before asking.
type Table struct {
	prefixes []string
}

// Parse reads a marker configuration from r.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if !strings.HasPrefix(text, ":") {
			return nil, fmt.Errorf("debugtab: line %d: expected \":marker-pattern\", got %q", line, text)
		}
		t.Enable(strings.TrimPrefix(text, ":"))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseFile reads a marker configuration from the file at path.
func ParseFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Enable adds a marker prefix to the table.
func (t *Table) Enable(prefix string) {
	t.prefixes = append(t.prefixes, prefix)
}

// Enabled reports whether a debug message with the given marker should
// be emitted: true when any enabled pattern is a prefix of marker.
func (t *Table) Enabled(marker string) bool {
	if t == nil {
		return false
	}
	for _, p := range t.prefixes {
		if strings.HasPrefix(marker, p) {
			return true
		}
	}
	return false
}
