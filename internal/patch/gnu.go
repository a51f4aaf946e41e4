package patch

import (
	"context"
	"log/slog"
	"os"
	osexec "os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/exec"

	"github.com/scbundle/scb/internal/errkind"
)

// GNUPatch runs the patch(1) binary.
type GNUPatch struct {
	exec    exec.Executor
	binary  string
	timeout string
	log     *slog.Logger
}

// GNUOption configures a GNUPatch.
type GNUOption func(*GNUPatch)

// WithExecutor replaces the command executor, mainly for tests.
func WithExecutor(e exec.Executor) GNUOption {
	return func(g *GNUPatch) { g.exec = e }
}

// WithBinary sets the patch binary name or path. Defaults to "patch".
func WithBinary(name string) GNUOption {
	return func(g *GNUPatch) { g.binary = name }
}

// WithTimeout bounds a single run, e.g. "30s".
func WithTimeout(d string) GNUOption {
	return func(g *GNUPatch) { g.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GNUOption {
	return func(g *GNUPatch) { g.log = l }
}

// NewGNUPatch returns a Tool backed by GNU patch. Output is forced to the C
// locale so it can be parsed.
func NewGNUPatch(opts ...GNUOption) *GNUPatch {
	g := &GNUPatch{binary: "patch", log: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	if g.exec == nil {
		g.exec = exec.New(
			exec.WithInheritEnv(),
			exec.WithDisableColors(),
			exec.WithEnv(map[string]string{"LC_ALL": "C"}),
		)
	}
	return g
}

// ApplyPatch writes the patch to a temporary file and runs
//
//	patch --batch --forward --no-backup-if-mismatch -pN -d DIR -i FILE
//
// Exit status 1 means some hunks were rejected and is reported through the
// results. Any other failure without per-file output is ExternalToolFailure.
func (g *GNUPatch) ApplyPatch(ctx context.Context, inv Invocation) ([]Result, error) {
	f, err := os.CreateTemp("", "scb-*.patch")
	if err != nil {
		return nil, errors.Wrap(err, errkind.IOFailure, "create patch file")
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(inv.Patch); err != nil {
		f.Close()
		return nil, errors.Wrap(err, errkind.IOFailure, "write patch file")
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, errkind.IOFailure, "close patch file")
	}

	args := []string{
		g.binary,
		"--batch",
		"--forward",
		"--no-backup-if-mismatch",
		"-p" + strconv.Itoa(inv.Strip),
		"-d", inv.Dir,
		"-i", f.Name(),
	}
	if inv.DryRun {
		args = append(args, "--dry-run")
	}

	e := g.exec.Clone().WithContext(ctx)
	if g.timeout != "" {
		e = e.WithTimeout(g.timeout)
	}
	g.log.Debug("running patch", "args", args)
	res, runErr := e.Run(args...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	code := -1
	var out string
	if res != nil {
		code = res.ExitCode
		out = res.Combined
	}
	results := parseOutput(out, inv.Strip)

	switch {
	case runErr == nil:
		return results, nil
	case code == 1, code > 1 && len(results) > 0:
		g.log.Debug("patch reported rejects", "exit", code, "files", len(results))
		return results, nil
	}
	return nil, g.failure(runErr, code, out)
}

func (g *GNUPatch) failure(err error, code int, out string) error {
	if errors.Is(err, osexec.ErrNotFound) {
		return errors.WithContext(
			errors.Wrapf(err, errkind.ExternalToolFailure, "%s not found", g.binary), "binary", g.binary)
	}
	perr := errors.Wrapf(err, errkind.ExternalToolFailure, "%s failed with exit code %d", g.binary, code)
	if msg := firstLine(out); msg != "" {
		perr = errors.WithContext(perr, "output", msg)
	}
	return perr
}

var (
	hunkLine    = regexp.MustCompile(`^Hunk #(\d+) (succeeded|FAILED|ignored)\b`)
	hunksFailed = regexp.MustCompile(`^\d+ out of \d+ hunks? (FAILED|ignored)`)
)

// parseOutput turns patch's progress messages into per-file results.
func parseOutput(out string, strip int) []Result {
	var (
		results []Result
		cur     *Result
		missing bool
	)
	flush := func() {
		if cur == nil {
			return
		}
		if cur.Message == "" {
			if cur.Succeeded {
				cur.Message = "applied"
			} else {
				cur.Message = "hunks rejected"
			}
		}
		results = append(results, *cur)
		cur = nil
	}
	note := func(msg string) {
		cur.Succeeded = false
		if cur.Message == "" {
			cur.Message = msg
		}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "patching file "), strings.HasPrefix(line, "checking file "):
			flush()
			missing = false
			cur = &Result{TargetFile: unquoteName(line[len("patching file "):]), Succeeded: true}
		case strings.HasPrefix(line, "can't find file to patch"):
			flush()
			missing = true
			cur = &Result{Message: "can't find file to patch"}
		case missing && strings.HasPrefix(line, "|+++ "):
			if p := headerPath(line[5:]); p != devNull {
				cur.TargetFile = echoed(p, strip)
			}
		case missing && strings.HasPrefix(line, "|--- "):
			if p := headerPath(line[5:]); p != devNull && cur.TargetFile == "" {
				cur.TargetFile = echoed(p, strip)
			}
		case strings.HasPrefix(line, "No file to patch"):
			missing = false
		case cur == nil:
		case hunkLine.MatchString(line):
			m := hunkLine.FindStringSubmatch(line)
			n, _ := strconv.Atoi(m[1])
			ok := m[2] == "succeeded"
			cur.Hunks = append(cur.Hunks, HunkResult{Number: n, Succeeded: ok, Message: strings.TrimSpace(line)})
			if !ok {
				cur.Succeeded = false
			}
		case hunksFailed.MatchString(line):
			note(line)
		case strings.HasPrefix(line, "Reversed (or previously applied) patch detected"):
			note("reversed or previously applied patch")
		case strings.Contains(line, "refusing to patch"), strings.HasPrefix(line, "Ignoring potentially dangerous file name"):
			note(line)
		}
	}
	flush()
	return results
}

// echoed strips a header path echoed back by patch to the name it would
// have patched.
func echoed(p string, strip int) string {
	if s, ok := stripPath(p, strip); ok {
		return s
	}
	return p
}

func unquoteName(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		if s[0] == '"' {
			if unq, err := strconv.Unquote(s); err == nil {
				return unq
			}
		}
		return s[1 : len(s)-1]
	}
	return s
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
