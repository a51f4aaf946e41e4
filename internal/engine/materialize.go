package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/jmgilman/go/errors"

	"github.com/scbundle/scb/internal/bundle"
	"github.com/scbundle/scb/internal/errkind"
	"github.com/scbundle/scb/internal/event"
	"github.com/scbundle/scb/internal/pathsafe"
	"github.com/scbundle/scb/internal/stats"
)

// MaterializeConfig describes where and how records are written.
type MaterializeConfig struct {
	Root   string
	Mode   OverwriteMode
	DryRun bool

	Progress ProgressFunc
	Events   chan<- event.Event
	Stats    *stats.Collector
	Logger   *slog.Logger
}

type materializer struct {
	cfg     MaterializeConfig
	root    string
	log     *slog.Logger
	stats   *stats.Collector
	tmp     *tmpRegistry
	claimed map[string]bool
	report  Report
}

// Materialize writes records under cfg.Root. Each record path is sanitized
// first; a record that fails is reported and the rest continue. Records
// that collide with a path already claimed in this run are kept under a
// stem_N name. The error is non-nil when the root cannot be created, when
// every record failed, or when ctx is cancelled. Cancellation removes the
// temporary file of the record in progress.
func Materialize(ctx context.Context, records []bundle.FileRecord, cfg MaterializeConfig) (Report, error) {
	if cfg.Mode == "" {
		cfg.Mode = OverwriteRename
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return Report{}, fmt.Errorf("resolve destination: %w", err)
	}
	if !cfg.DryRun {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return Report{}, ioFailure(err, root, "create destination")
		}
	}

	m := &materializer{
		cfg:     cfg,
		root:    root,
		log:     loggerOrDefault(cfg.Logger),
		stats:   cfg.Stats,
		tmp:     &tmpRegistry{},
		claimed: make(map[string]bool),
	}
	if m.stats == nil {
		m.stats = stats.NewCollector()
	}
	defer m.tmp.cleanup()

	var totalSize int64
	for _, r := range records {
		totalSize += int64(len(r.Content))
	}
	m.stats.SetTotals(int64(len(records)), totalSize)

	prog := newProgress(cfg.Progress, len(records))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return m.report, err
		}
		m.write(rec)
		prog.update(i + 1)
	}

	if n := len(records); n > 0 && m.report.Failed() == n {
		return m.report, fmt.Errorf("all %d records failed: %w", n, m.report.Failures[0].Err)
	}
	return m.report, nil
}

func (m *materializer) write(rec bundle.FileRecord) {
	sp, err := pathsafe.Sanitize(rec.Path, m.root)
	if err != nil {
		m.fail(rec.Path, err)
		return
	}

	data := rec.Content
	if rec.Degraded() {
		data = rec.Placeholder()
	}
	m.stats.AddFilesScanned(1)

	rel := sp.Rel
	if m.claimed[rel] {
		// DuplicateDestination: resolved by renaming, never surfaced.
		rel = m.nextFree(rel)
		m.renamed(sp.Rel, rel, "duplicate in bundle")
	} else if info, err := os.Lstat(sp.Abs); err == nil {
		switch {
		case info.Mode().IsRegular() && sameContent(sp.Abs, info.Size(), data):
			m.claimed[rel] = true
			m.report.Unchanged++
			m.stats.AddFilesUnchanged(1)
			event.Emit(m.cfg.Events, event.Event{Type: event.FileUnchanged, Path: rel})
			return
		case m.cfg.Mode == OverwriteSkip:
			m.claimed[rel] = true
			m.report.Skipped++
			m.stats.AddFilesSkipped(1)
			event.Emit(m.cfg.Events, event.Event{Type: event.FileSkipped, Path: rel})
			m.log.Debug("destination exists, skipping", "path", rel)
			return
		case m.cfg.Mode == OverwriteReplace && info.Mode().IsRegular():
			m.log.Debug("replacing existing file", "path", rel)
		default:
			rel = m.nextFree(rel)
			m.renamed(sp.Rel, rel, "destination exists")
		}
	}
	m.claimed[rel] = true

	if !m.cfg.DryRun {
		dst, err := securejoin.SecureJoin(m.root, filepath.FromSlash(rel))
		if err != nil {
			m.fail(rec.Path, errors.WithContext(
				errors.Wrap(err, errkind.PathTraversal, "resolve destination"), "path", rec.Path))
			return
		}
		if err := writeBytesAtomic(dst, data, m.tmp); err != nil {
			m.fail(rec.Path, ioFailure(err, dst, "write"))
			return
		}
	}

	m.stats.AddBytesProcessed(int64(len(data)))
	if rec.Degraded() {
		m.report.Degraded++
		m.stats.AddFilesDegraded(1)
		event.Emit(m.cfg.Events, event.Event{Type: event.FileDegraded, Path: rel, Message: rec.Message})
		return
	}
	m.report.Succeeded++
	m.stats.AddFilesWritten(1)
	event.Emit(m.cfg.Events, event.Event{Type: event.FileWritten, Path: rel, Size: int64(len(data))})
}

// nextFree returns the first stem_N.ext sibling of rel, N from 1, that is
// neither claimed in this run nor present on disk.
func (m *materializer) nextFree(rel string) string {
	dir, base := path.Split(rel)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}
	for n := 1; ; n++ {
		candidate := dir + fmt.Sprintf("%s_%d%s", stem, n, ext)
		if m.claimed[candidate] {
			continue
		}
		if _, err := os.Lstat(filepath.Join(m.root, filepath.FromSlash(candidate))); err == nil {
			continue
		}
		return candidate
	}
}

func (m *materializer) renamed(from, to, reason string) {
	m.report.Renamed = append(m.report.Renamed, Rename{From: from, To: to})
	m.stats.AddFilesRenamed(1)
	m.log.Info("renamed to avoid collision", "path", from, "dest", to, "reason", reason)
	event.Emit(m.cfg.Events, event.Event{Type: event.FileRenamed, Path: from, Dest: to})
}

func (m *materializer) fail(p string, err error) {
	m.report.fail(m.log, p, err)
	m.stats.AddFilesFailed(1)
	event.Emit(m.cfg.Events, event.Event{Type: event.FileFailed, Path: p, Error: err})
}

// SplitConfig describes a bundle-file-to-tree split.
type SplitConfig struct {
	MaterializeConfig
	// Bundle is the bundle file to read. zstd-compressed files are accepted.
	Bundle string
}

// Split reads, decodes and materializes a bundle file. An unreadable
// bundle aborts the run; malformed markers are logged and tolerated.
func Split(ctx context.Context, cfg SplitConfig) (Report, error) {
	log := loggerOrDefault(cfg.Logger)

	data, err := bundle.ReadFile(cfg.Bundle)
	if err != nil {
		return Report{}, errors.Wrap(err, errkind.IOFailure, "read bundle")
	}

	records, issues := bundle.DecodeWithIssues(data)
	for _, is := range issues {
		log.Warn("malformed marker", "line", is.Line, "error", is.Err)
	}
	log.Debug("bundle decoded", "bundle", cfg.Bundle, "records", len(records))

	return Materialize(ctx, records, cfg.MaterializeConfig)
}
