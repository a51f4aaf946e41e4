package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/scbundle/scb/internal/stats"
)

// plainPresenter prints one line per notable event to stdout, and periodic
// progress to stderr when not a TTY.
type plainPresenter struct {
	w       io.Writer
	errW    io.Writer
	stats   *stats.Collector
	root    string
	verbose bool
}

const plainProgressInterval = 5 * time.Second

func (p *plainPresenter) Run(events <-chan Event) error {
	ticker := time.NewTicker(plainProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.printProgress()
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	path := StripRoot(p.root, ev.Path)
	switch ev.Type {
	case FileEncoded, FileWritten:
		fmt.Fprintf(p.w, "%s  %s\n", path, FormatBytes(ev.Size))
	case FileDegraded:
		fmt.Fprintf(p.w, "%s  placeholder  %s\n", path, ev.Message)
	case FileRenamed:
		fmt.Fprintf(p.w, "%s  renamed to %s\n", path, ev.Dest)
	case FileUnchanged:
		if p.verbose {
			fmt.Fprintf(p.w, "%s  unchanged\n", path)
		}
	case FileSkipped:
		fmt.Fprintf(p.w, "%s  skipped\n", path)
	case FileFailed:
		fmt.Fprintf(p.w, "%s  %s\n", path, errText(ev))
	case VerifyStarted:
		fmt.Fprintln(p.w, "verifying...")
	case VerifyOK:
		if p.verbose {
			fmt.Fprintf(p.w, "%s  ok\n", path)
		}
	case VerifyFailed:
		fmt.Fprintf(p.w, "MISMATCH: %s\n", path)
	case PatchApplied:
		fmt.Fprintf(p.w, "patched: %s\n", path)
	case PatchRejected:
		fmt.Fprintf(p.w, "rejected: %s  %s\n", path, ev.Message)
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	if snap.FilesTotal > 0 {
		pct := float64(snap.FilesDone()) / float64(snap.FilesTotal) * 100
		fmt.Fprintf(p.errW, "progress: %.0f%% %s/%s files %s\n",
			pct,
			FormatCount(snap.FilesDone()), FormatCount(snap.FilesTotal),
			FormatBytes(snap.BytesProcessed),
		)
		return
	}
	fmt.Fprintf(p.errW, "progress: %s files %s\n",
		FormatCount(snap.FilesDone()),
		FormatBytes(snap.BytesProcessed),
	)
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}

func errText(ev Event) string {
	switch {
	case ev.Error != nil:
		return ev.Error.Error()
	case ev.Message != "":
		return ev.Message
	}
	return "error"
}
