package engine

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jmgilman/go/errors"

	"github.com/scbundle/scb/internal/errkind"
	"github.com/scbundle/scb/internal/filter"
	"github.com/scbundle/scb/internal/marker"
	"github.com/scbundle/scb/internal/pathsafe"
)

// ScannerConfig controls scanner behavior.
type ScannerConfig struct {
	Root   string
	Filter filter.Set
	Logger *slog.Logger
}

// Scanner walks a source tree depth-first and collects the files that pass
// the filter. Symlinks are followed; a directory link that leads back to one
// of its own ancestors is reported instead of descended.
type Scanner struct {
	cfg      ScannerConfig
	log      *slog.Logger
	tasks    []FileTask
	failures []Failure
}

// NewScanner creates a scanner with the given config.
func NewScanner(cfg ScannerConfig) *Scanner {
	return &Scanner{cfg: cfg, log: loggerOrDefault(cfg.Logger)}
}

// Scan walks the tree. The error is non-nil only when the root itself is
// unusable or ctx is cancelled; per-entry problems are returned as failures.
func (s *Scanner) Scan(ctx context.Context) ([]FileTask, []Failure, error) {
	info, err := os.Stat(s.cfg.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("source: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("source %s is not a directory", s.cfg.Root)
	}
	real, err := filepath.EvalSymlinks(s.cfg.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve source: %w", err)
	}

	ancestors := map[string]bool{real: true}
	if err := s.walk(ctx, s.cfg.Root, "", real, ancestors); err != nil {
		return nil, nil, err
	}
	return s.tasks, s.failures, nil
}

func (s *Scanner) walk(ctx context.Context, dir, rel, realDir string, ancestors map[string]bool) error {
	// os.ReadDir sorts by file name, which fixes the traversal order.
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.fail(relOrDot(rel), ioFailure(err, dir, "read dir"))
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entry.Name()
		if filter.Hidden(name) {
			continue
		}
		full := filepath.Join(dir, name)
		childRel := path.Join(rel, name)
		isLink := entry.Type()&fs.ModeSymlink != 0

		info, err := os.Stat(full)
		if err != nil {
			s.fail(childRel, ioFailure(err, full, "stat"))
			continue
		}

		switch {
		case info.IsDir():
			if !s.cfg.Filter.Dir(name, childRel) {
				s.log.Debug("directory excluded", "path", childRel)
				continue
			}
			childReal := filepath.Join(realDir, name)
			if isLink {
				childReal, err = filepath.EvalSymlinks(full)
				if err != nil {
					s.fail(childRel, ioFailure(err, full, "resolve"))
					continue
				}
			}
			if ancestors[childReal] {
				s.fail(childRel, errors.WithContext(
					errors.Newf(errkind.CyclicSymlink, "%s links back to %s", childRel, childReal),
					"path", childRel))
				continue
			}
			ancestors[childReal] = true
			werr := s.walk(ctx, full, childRel, childReal, ancestors)
			delete(ancestors, childReal)
			if werr != nil {
				return werr
			}

		case info.Mode().IsRegular():
			if !s.cfg.Filter.File(name, childRel, info.Size()) {
				continue
			}
			if err := checkBundlePath(childRel); err != nil {
				s.fail(childRel, err)
				continue
			}
			s.tasks = append(s.tasks, FileTask{
				SrcPath: full,
				RelPath: childRel,
				Size:    info.Size(),
				Symlink: isLink,
			})

		default:
			s.log.Debug("skipping special file", "path", childRel, "mode", info.Mode().String())
		}
	}
	return nil
}

func (s *Scanner) fail(rel string, err error) {
	s.failures = append(s.failures, Failure{Path: rel, Err: err})
}

// ScanFiles builds tasks for an explicit file list, bypassing every filter.
// Paths are made relative to root, or to the deepest directory containing
// all of them when root is empty. Duplicates are dropped; order is kept.
func ScanFiles(ctx context.Context, files []string, root string) ([]FileTask, []Failure, string, error) {
	abs := make([]string, 0, len(files))
	for _, f := range files {
		a, err := filepath.Abs(f)
		if err != nil {
			return nil, nil, "", fmt.Errorf("resolve %s: %w", f, err)
		}
		abs = append(abs, a)
	}
	if root == "" {
		root = commonDir(abs)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, "", fmt.Errorf("resolve root: %w", err)
	}

	var (
		tasks    []FileTask
		failures []Failure
		seen     = make(map[string]bool)
	)
	for _, a := range abs {
		if err := ctx.Err(); err != nil {
			return nil, nil, "", err
		}

		back, err := filepath.Rel(root, a)
		if err != nil {
			failures = append(failures, Failure{Path: a, Err: ioFailure(err, a, "relative path")})
			continue
		}
		rel := filepath.ToSlash(back)
		if err := checkBundlePath(rel); err != nil {
			failures = append(failures, Failure{Path: rel, Err: err})
			continue
		}
		if seen[rel] {
			continue
		}

		info, err := os.Stat(a)
		if err != nil {
			failures = append(failures, Failure{Path: rel, Err: ioFailure(err, a, "stat")})
			continue
		}
		if !info.Mode().IsRegular() {
			failures = append(failures, Failure{Path: rel, Err: errors.WithContext(
				errors.Newf(errkind.IOFailure, "%s is not a regular file", a), "path", rel)})
			continue
		}

		seen[rel] = true
		lst, _ := os.Lstat(a)
		tasks = append(tasks, FileTask{
			SrcPath: a,
			RelPath: rel,
			Size:    info.Size(),
			Symlink: lst != nil && lst.Mode()&fs.ModeSymlink != 0,
		})
	}
	return tasks, failures, root, nil
}

// commonDir returns the deepest directory that contains every path.
func commonDir(paths []string) string {
	if len(paths) == 0 {
		return "."
	}
	dir := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		for !within(dir, p) {
			parent := filepath.Dir(dir)
			if parent == dir {
				return dir
			}
			dir = parent
		}
	}
	return dir
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// checkBundlePath reports an error for a tree path that would not come
// back as the same path after a merge and split: one that breaks its
// marker line, or one the split side would normalize into another name.
func checkBundlePath(rel string) error {
	if err := marker.CheckPath(rel); err != nil {
		return errors.WithContext(err, "path", rel)
	}
	norm, err := pathsafe.Normalize(rel)
	if err != nil {
		return err
	}
	if norm != rel {
		return errors.WithContext(
			errors.Newf(errkind.MalformedMarker, "path %q reads back as %q", rel, norm), "path", rel)
	}
	return nil
}

func relOrDot(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
