// Package patch applies unified diffs to a directory tree.
//
// Hunk application is delegated to a Tool; the package parses the diff,
// refuses sections whose paths would escape the target directory, and
// turns the tool's outcome into per-file results. A tool that rejects some
// hunks is not an error: the rejection is reported on the file it affects.
package patch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/jmgilman/go/errors"

	"github.com/scbundle/scb/internal/errkind"
	"github.com/scbundle/scb/internal/event"
	"github.com/scbundle/scb/internal/pathsafe"
)

// AutoStrip asks Apply to pick the strip level from the header prefixes.
const AutoStrip = -1

// HunkResult is the outcome of one hunk, as far as the tool reported it.
type HunkResult struct {
	Number    int
	Succeeded bool
	Message   string
}

// Result is the outcome for one target file.
type Result struct {
	TargetFile string
	Succeeded  bool
	Message    string
	Hunks      []HunkResult
}

// Invocation is one call to a Tool.
type Invocation struct {
	// Patch holds only the sections that passed path checks.
	Patch  []byte
	Dir    string
	Strip  int
	DryRun bool
}

// Tool applies a unified diff to a directory.
//
// Implementations return one Result per file they touched. Rejected hunks
// are reported through the results; the error is reserved for a tool that
// could not run at all.
type Tool interface {
	ApplyPatch(ctx context.Context, inv Invocation) ([]Result, error)
}

// Options tunes Apply.
type Options struct {
	// Strip is the number of leading path components to remove, as with
	// patch -p. AutoStrip detects it; the zero value means -p0.
	Strip  int
	DryRun bool

	Events chan<- event.Event
	Logger *slog.Logger
}

// Report aggregates the results of one Apply call in diff order.
type Report struct {
	Results []Result
}

// Succeeded returns the number of files patched cleanly.
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Succeeded {
			n++
		}
	}
	return n
}

// Failed returns the results of files that were not fully patched.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Succeeded {
			out = append(out, res)
		}
	}
	return out
}

// Apply applies patchText to targetDir through tool.
//
// Sections whose paths fail sanitization are dropped from the text handed
// to the tool and reported as failed. The returned error is non-nil only
// when the target directory is unusable or the tool itself failed, in which
// case the report still holds the sections rejected before the tool ran.
func Apply(ctx context.Context, tool Tool, patchText []byte, targetDir string, opts Options) (Report, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if tool == nil {
		return Report{}, errors.New(errkind.ExternalToolFailure, "no patch tool configured")
	}
	root, err := filepath.Abs(targetDir)
	if err != nil {
		return Report{}, fmt.Errorf("resolve target: %w", err)
	}
	if info, err := os.Stat(root); err != nil {
		return Report{}, errors.WithContext(errors.Wrap(err, errkind.IOFailure, "open target directory"), "path", root)
	} else if !info.IsDir() {
		return Report{}, errors.WithContext(errors.New(errkind.IOFailure, "target is not a directory"), "path", root)
	}

	diff := Parse(patchText)
	if len(diff.Sections) == 0 {
		log.Warn("patch contains no file sections")
		return Report{}, nil
	}

	strip := opts.Strip
	if strip < 0 {
		strip = DetectStrip(diff.Sections)
		log.Debug("detected strip level", "strip", strip)
	}

	// Per section: the sanitized target, or the reason it was refused.
	targets := make([]string, len(diff.Sections))
	refused := make([]error, len(diff.Sections))

	var safe bytes.Buffer
	safe.Write(diff.Preamble)
	accepted := 0
	for i, s := range diff.Sections {
		rel, err := resolveSection(s, root, strip)
		if err != nil {
			refused[i] = err
			continue
		}
		targets[i] = rel
		safe.Write(s.Text())
		accepted++
	}

	var outcome []Result
	if accepted > 0 {
		outcome, err = tool.ApplyPatch(ctx, Invocation{
			Patch:  safe.Bytes(),
			Dir:    root,
			Strip:  strip,
			DryRun: opts.DryRun,
		})
	}

	var report Report
	if err != nil {
		for i, s := range diff.Sections {
			if refused[i] != nil {
				report.Results = append(report.Results, refusedResult(s, refused[i]))
			}
		}
		report.emit(opts.Events, log)
		return report, err
	}

	report.Results = merge(diff.Sections, targets, refused, outcome)
	report.emit(opts.Events, log)
	return report, nil
}

// resolveSection checks every header path of s and returns the sanitized
// target relative to root.
func resolveSection(s Section, root string, strip int) (string, error) {
	paths := s.Paths()
	if len(paths) == 0 {
		return "", errors.New(errkind.PathTraversal, "section has no file path")
	}

	var target string
	for _, p := range paths {
		stripped, ok := stripPath(p, strip)
		if !ok {
			return "", errors.WithContext(
				errors.Newf(errkind.PathTraversal, "strip level %d consumes the whole path", strip), "path", p)
		}
		sp, err := pathsafe.Sanitize(stripped, root)
		if err != nil {
			return "", err
		}
		// A symlink inside the tree may still point outside it.
		resolved, err := securejoin.SecureJoin(root, filepath.FromSlash(sp.Rel))
		if err != nil || resolved != sp.Abs {
			return "", errors.WithContext(
				errors.New(errkind.PathTraversal, "path crosses a symbolic link"), "path", p)
		}
		if p == s.Target() {
			target = sp.Rel
		}
	}
	return target, nil
}

func refusedResult(s Section, err error) Result {
	return Result{TargetFile: s.Target(), Message: err.Error()}
}

// merge pairs tool results with sections by target path, keeping diff
// order. Results the tool reported for no known section are appended.
func merge(sections []Section, targets []string, refused []error, outcome []Result) []Result {
	byPath := make(map[string][]Result)
	for _, r := range outcome {
		key := r.TargetFile
		if norm, err := pathsafe.Normalize(key); err == nil {
			key = norm
		}
		byPath[key] = append(byPath[key], r)
	}

	out := make([]Result, 0, len(sections))
	for i, s := range sections {
		if refused[i] != nil {
			out = append(out, refusedResult(s, refused[i]))
			continue
		}
		queue := byPath[targets[i]]
		if len(queue) == 0 {
			out = append(out, Result{TargetFile: targets[i], Message: "no outcome reported"})
			continue
		}
		r := queue[0]
		r.TargetFile = targets[i]
		out = append(out, r)
		byPath[targets[i]] = queue[1:]
	}

	for _, r := range outcome {
		key := r.TargetFile
		if norm, err := pathsafe.Normalize(key); err == nil {
			key = norm
		}
		if queue := byPath[key]; len(queue) > 0 {
			out = append(out, queue[0])
			byPath[key] = queue[1:]
		}
	}
	return out
}

func (r Report) emit(ch chan<- event.Event, log *slog.Logger) {
	for _, res := range r.Results {
		if res.Succeeded {
			log.Info("patched", "path", res.TargetFile)
			event.Emit(ch, event.Event{Type: event.PatchApplied, Path: res.TargetFile, Message: res.Message})
			continue
		}
		log.Warn("patch rejected", "path", res.TargetFile, "reason", res.Message)
		event.Emit(ch, event.Event{Type: event.PatchRejected, Path: res.TargetFile, Message: res.Message})
	}
}
