// Package pathsafe validates relative paths read from untrusted input
// (bundle markers, diff headers) before they are joined onto a destination.
//
// Validation is purely lexical: the destination may not exist yet, so the
// filesystem is never consulted.
package pathsafe

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/jmgilman/go/errors"

	"github.com/scbundle/scb/internal/errkind"
)

// SafePath is a sanitized path that is guaranteed to resolve inside Root.
type SafePath struct {
	Root string // cleaned destination root
	Rel  string // forward-slash relative path, never empty
	Abs  string // Root joined with Rel in host form
}

// Sanitize normalizes raw against root. A single leading "/" is stripped so
// that an absolute path from a hostile bundle lands under root. Segments equal
// to ".." or empty are rejected, "." segments are dropped.
func Sanitize(raw, root string) (SafePath, error) {
	rel, err := Normalize(raw)
	if err != nil {
		return SafePath{}, err
	}

	cleanRoot := filepath.Clean(root)
	abs := filepath.Join(cleanRoot, filepath.FromSlash(rel))

	back, err := filepath.Rel(cleanRoot, abs)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return SafePath{}, traversal(raw, "resolves outside destination")
	}

	return SafePath{Root: cleanRoot, Rel: rel, Abs: abs}, nil
}

// Normalize applies the segment rules of Sanitize without a root and returns
// the forward-slash relative form.
func Normalize(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	if p == "" {
		return "", traversal(raw, "empty path")
	}
	p = strings.TrimPrefix(p, "/")

	segments := strings.Split(p, "/")
	kept := make([]string, 0, len(segments))
	for i, seg := range segments {
		switch {
		case seg == ".":
			continue
		case seg == "..":
			return "", traversal(raw, "parent segment")
		case seg == "":
			return "", traversal(raw, "empty segment")
		case strings.ContainsAny(seg, "\\\x00"):
			return "", traversal(raw, "illegal character in segment")
		case i == 0 && hasVolume(seg):
			return "", traversal(raw, "volume name")
		}
		kept = append(kept, seg)
	}
	if len(kept) == 0 {
		return "", traversal(raw, "resolves to destination root")
	}

	return path.Join(kept...), nil
}

// hasVolume reports drive-letter prefixes such as "C:" regardless of host OS.
func hasVolume(seg string) bool {
	if filepath.VolumeName(seg) != "" {
		return true
	}
	return len(seg) >= 2 && seg[1] == ':' && isLetter(seg[0])
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func traversal(raw, reason string) error {
	return errors.WithContext(
		errors.Newf(errkind.PathTraversal, "unsafe path %q: %s", raw, reason),
		"path", raw,
	)
}
