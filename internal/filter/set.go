package filter

// Set bundles every rule the encoder consults while walking a tree.
// The zero value keeps every non-hidden entry.
type Set struct {
	Extensions Extensions
	Chain      *Chain
	Gitignore  *Gitignore
}

// Dir reports whether the walker should descend into the directory whose
// base name is name and whose tree-relative path is relPath.
func (s Set) Dir(name, relPath string) bool {
	if Hidden(name) {
		return false
	}
	if s.Gitignore.Ignored(relPath, true) {
		return false
	}
	return s.Chain.Match(relPath, true, 0)
}

// File reports whether a regular file should be bundled.
func (s Set) File(name, relPath string, size int64) bool {
	if Hidden(name) {
		return false
	}
	if s.Gitignore.Ignored(relPath, false) {
		return false
	}
	if !s.Chain.Match(relPath, false, size) {
		return false
	}
	return s.Extensions.Allows(name)
}
