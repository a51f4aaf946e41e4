package filter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// Gitignore matches paths against the .gitignore at a tree root.
type Gitignore struct {
	m *ignore.GitIgnore
}

// LoadGitignore compiles root/.gitignore. A missing file yields a nil
// matcher, which ignores nothing.
func LoadGitignore(root string) (*Gitignore, error) {
	m, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("load .gitignore: %w", err)
	}
	return &Gitignore{m: m}, nil
}

// CompileGitignore builds a matcher from gitignore-syntax lines.
func CompileGitignore(lines ...string) *Gitignore {
	return &Gitignore{m: ignore.CompileIgnoreLines(lines...)}
}

// Ignored reports whether relPath is excluded. Directories are matched with
// a trailing slash so "build/" style patterns apply.
func (g *Gitignore) Ignored(relPath string, isDir bool) bool {
	if g == nil || g.m == nil {
		return false
	}
	if isDir {
		relPath += "/"
	}
	return g.m.MatchesPath(relPath)
}
