package filter

import (
	"path"
	"sort"

	"github.com/scbundle/scb/internal/marker"
)

// DefaultExtensions are used when no extension set is configured.
var DefaultExtensions = []string{".py", ".rs", ".c", ".h", ".cpp", ".hpp", ".css"}

// Extensions is a case-insensitive set of file extensions with leading dots.
// The empty set allows every file.
type Extensions map[string]struct{}

// ParseExtensions builds a set from user input such as "PY", ".rs" or "css".
func ParseExtensions(list []string) Extensions {
	set := make(Extensions, len(list))
	for _, e := range list {
		if norm := marker.NormalizeExt(e); norm != "" {
			set[norm] = struct{}{}
		}
	}
	return set
}

// Allows reports whether a file named name passes the set.
func (e Extensions) Allows(name string) bool {
	if len(e) == 0 {
		return true
	}
	_, ok := e[marker.NormalizeExt(path.Ext(name))]
	return ok
}

// Sorted returns the set members in lexical order.
func (e Extensions) Sorted() []string {
	out := make([]string, 0, len(e))
	for ext := range e {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
