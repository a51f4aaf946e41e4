// Package engine runs the bundler operations against real directory trees:
// merge (tree to bundle), split (bundle to tree) and verify (round trip).
//
// Every operation takes an explicit config value; nothing is shared between
// calls. Per-file problems are collected into a Report and only unusable
// inputs abort a run.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/scbundle/scb/internal/bundle"
	"github.com/scbundle/scb/internal/errkind"
	"github.com/scbundle/scb/internal/event"
	"github.com/scbundle/scb/internal/filter"
	"github.com/scbundle/scb/internal/stats"
)

// EncodeConfig describes a tree-to-bundle conversion.
type EncodeConfig struct {
	// Source is the directory to scan. Ignored when Files is set.
	Source string
	// Files switches to source-files mode: an explicit list of files that
	// bypasses every filter. Paths are relative to Root.
	Files []string
	// Root anchors relative paths in source-files mode. Defaults to the
	// deepest directory containing all Files.
	Root string

	Extensions filter.Extensions
	Filter     *filter.Chain
	// Gitignore applies Source/.gitignore.
	Gitignore bool
	// Fallbacks are tried after UTF-8. Nil selects bundle.DefaultFallbacks.
	Fallbacks []string
	// Index writes the file index block.
	Index bool
	// IncludeRootName prefixes every path with the base name of the tree root.
	IncludeRootName bool

	Progress ProgressFunc
	Events   chan<- event.Event
	Stats    *stats.Collector
	Logger   *slog.Logger
}

// EncodedFile describes one record of an encode result.
type EncodedFile struct {
	Path     string // path inside the bundle
	Source   string // file it was read from
	Encoding string
	Size     int64
	Degraded bool
}

// EncodeResult is the outcome of Encode.
type EncodeResult struct {
	Bundle []byte
	Files  []EncodedFile
	Report Report
}

// Encode scans the configured tree and renders it as a bundle. Unreadable
// and undecodable files degrade to placeholder records. The error is
// non-nil only for an unusable source or a cancelled context.
func Encode(ctx context.Context, cfg EncodeConfig) (EncodeResult, error) {
	log := loggerOrDefault(cfg.Logger)
	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}

	texts, err := bundle.NewTextDecoder(cfg.Fallbacks)
	if err != nil {
		return EncodeResult{}, err
	}

	event.Emit(cfg.Events, event.Event{Type: event.ScanStarted})
	tasks, failures, root, err := scan(ctx, cfg, log)
	if err != nil {
		return EncodeResult{}, err
	}

	var totalSize int64
	for _, t := range tasks {
		totalSize += t.Size
	}
	collector.SetTotals(int64(len(tasks)), totalSize)
	event.Emit(cfg.Events, event.Event{Type: event.ScanComplete, Total: int64(len(tasks)), TotalSize: totalSize})

	var result EncodeResult
	for _, f := range failures {
		result.Report.fail(log, f.Path, f.Err)
		collector.AddFilesFailed(1)
		event.Emit(cfg.Events, event.Event{Type: event.FileFailed, Path: f.Path, Error: f.Err})
	}

	prefix := ""
	if cfg.IncludeRootName {
		prefix = filepath.Base(root)
	}

	prog := newProgress(cfg.Progress, len(tasks))
	records := make([]bundle.FileRecord, 0, len(tasks))
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return EncodeResult{}, err
		}
		collector.AddFilesScanned(1)

		rel := task.RelPath
		if prefix != "" {
			rel = path.Join(prefix, rel)
			if err := checkBundlePath(rel); err != nil {
				result.Report.fail(log, rel, err)
				collector.AddFilesFailed(1)
				event.Emit(cfg.Events, event.Event{Type: event.FileFailed, Path: rel, Error: err})
				prog.update(i + 1)
				continue
			}
		}

		rec := readRecord(task, rel, texts, log)
		records = append(records, rec)
		result.Files = append(result.Files, EncodedFile{
			Path:     rel,
			Source:   task.SrcPath,
			Encoding: rec.Encoding,
			Size:     int64(len(rec.Content)),
			Degraded: rec.Degraded(),
		})

		if rec.Degraded() {
			result.Report.Degraded++
			collector.AddFilesDegraded(1)
			event.Emit(cfg.Events, event.Event{Type: event.FileDegraded, Path: rel, Message: rec.Message})
		} else {
			result.Report.Succeeded++
			collector.AddFilesEncoded(1)
			event.Emit(cfg.Events, event.Event{Type: event.FileEncoded, Path: rel, Size: task.Size})
		}
		collector.AddBytesProcessed(task.Size)
		prog.update(i + 1)
	}

	var buf bytes.Buffer
	enc := bundle.NewEncoder(&buf, bundle.EncoderOptions{Index: cfg.Index, Logger: log})
	if err := enc.WriteAll(records); err != nil {
		return EncodeResult{}, err
	}
	collector.AddAmbiguousLines(int64(enc.Ambiguous()))

	result.Bundle = buf.Bytes()
	return result, nil
}

func scan(ctx context.Context, cfg EncodeConfig, log *slog.Logger) ([]FileTask, []Failure, string, error) {
	if len(cfg.Files) > 0 {
		return ScanFiles(ctx, cfg.Files, cfg.Root)
	}

	set := filter.Set{Extensions: cfg.Extensions, Chain: cfg.Filter}
	if cfg.Gitignore {
		gi, err := filter.LoadGitignore(cfg.Source)
		if err != nil {
			return nil, nil, "", err
		}
		set.Gitignore = gi
	}

	root, err := filepath.Abs(cfg.Source)
	if err != nil {
		return nil, nil, "", fmt.Errorf("resolve source: %w", err)
	}
	tasks, failures, err := NewScanner(ScannerConfig{Root: root, Filter: set, Logger: log}).Scan(ctx)
	return tasks, failures, root, err
}

// readRecord reads one file into a record, degrading on read or decode
// failure.
func readRecord(task FileTask, rel string, texts *bundle.TextDecoder, log *slog.Logger) bundle.FileRecord {
	raw, err := os.ReadFile(task.SrcPath)
	if err != nil {
		err = ioFailure(err, task.SrcPath, "read")
		log.Warn("file unreadable, writing placeholder", "path", rel, "kind", errkind.IOFailure, "error", err)
		return bundle.ReadErrorRecord(rel, err)
	}

	text, enc, ok := texts.Decode(raw)
	if !ok {
		log.Info("binary content omitted", "path", rel, "kind", errkind.BinaryContent, "size", len(raw))
		return bundle.BinaryRecord(rel)
	}
	if enc != bundle.UTF8 {
		log.Debug("decoded with fallback encoding", "path", rel, "encoding", enc)
	}
	return bundle.TextRecord(rel, text, enc)
}

// MergeConfig describes a tree-to-file merge.
type MergeConfig struct {
	EncodeConfig
	// Output is the bundle file to write.
	Output string
	// Compress writes the bundle as a zstd frame.
	Compress bool
}

// Merge encodes the tree and writes the bundle to cfg.Output atomically.
// Nothing is written when encoding fails or is cancelled.
func Merge(ctx context.Context, cfg MergeConfig) (EncodeResult, error) {
	res, err := Encode(ctx, cfg.EncodeConfig)
	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return EncodeResult{}, err
	}

	reg := &tmpRegistry{}
	defer reg.cleanup()

	err = writeFileAtomic(cfg.Output, 0o644, reg, func(w io.Writer) error {
		sw, err := bundle.NewStreamWriter(w, cfg.Compress)
		if err != nil {
			return err
		}
		if _, err := sw.Write(res.Bundle); err != nil {
			sw.Close()
			return err
		}
		return sw.Close()
	})
	if err != nil {
		return res, ioFailure(err, cfg.Output, "write bundle")
	}

	loggerOrDefault(cfg.Logger).Info("bundle written",
		"output", cfg.Output, "files", len(res.Files), "bytes", len(res.Bundle), "compressed", cfg.Compress)
	return res, nil
}
