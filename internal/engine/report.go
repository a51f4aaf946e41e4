package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmgilman/go/errors"

	"github.com/scbundle/scb/internal/errkind"
)

// OverwriteMode selects what materialize does when a destination file
// already exists on disk.
type OverwriteMode string

const (
	// OverwriteRename keeps the existing file and writes the record under
	// the next free stem_N name. Identical content is left alone.
	OverwriteRename OverwriteMode = "rename"
	// OverwriteReplace replaces existing regular files.
	OverwriteReplace OverwriteMode = "overwrite"
	// OverwriteSkip leaves existing files untouched and drops the record.
	OverwriteSkip OverwriteMode = "skip"
)

// ParseOverwriteMode parses a mode name. The empty string is rename.
func ParseOverwriteMode(s string) (OverwriteMode, error) {
	switch m := OverwriteMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return OverwriteRename, nil
	case OverwriteRename, OverwriteReplace, OverwriteSkip:
		return m, nil
	default:
		return "", fmt.Errorf("unknown overwrite mode %q (want skip, overwrite or rename)", s)
	}
}

// Rename records a record written under a different name than it asked for.
type Rename struct {
	From string
	To   string
}

// Failure is a per-file hard failure.
type Failure struct {
	Path string
	Err  error
}

// Kind returns the error code of the failure.
func (f Failure) Kind() errors.ErrorCode {
	return errkind.Of(f.Err)
}

// Report aggregates the per-file outcomes of a merge or split.
type Report struct {
	Succeeded int
	Degraded  int
	Skipped   int
	Unchanged int
	Renamed   []Rename
	Failures  []Failure
}

// Failed returns the number of hard failures.
func (r Report) Failed() int { return len(r.Failures) }

// Total returns the number of files the run accounted for.
func (r Report) Total() int {
	return r.Succeeded + r.Degraded + r.Skipped + r.Unchanged + len(r.Failures)
}

func (r *Report) fail(log *slog.Logger, path string, err error) {
	log.Warn("file failed", "path", path, "kind", errkind.Of(err), "error", err)
	r.Failures = append(r.Failures, Failure{Path: path, Err: err})
}

// ioFailure tags err with the IOFailure kind.
func ioFailure(err error, path, op string) error {
	return errors.WithContext(errors.Wrapf(err, errkind.IOFailure, "%s %s", op, path), "path", path)
}
