package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/scbundle/scb/internal/stats"
)

// barPresenter keeps a single progress line at the bottom of the terminal
// and prints notable events above it. Routine successes only move the bar.
type barPresenter struct {
	w       io.Writer
	stats   *stats.Collector
	root    string
	theme   Theme
	st      styles
	width   int
	verbose bool

	drawn    bool
	lastDraw time.Time
}

const (
	barWidth        = 20
	barMinInterval  = 50 * time.Millisecond
	barRedrawPeriod = 100 * time.Millisecond
)

func (p *barPresenter) Run(events <-chan Event) error {
	// Fire the first tick quickly so the rate has data, then once a second.
	secTicker := time.NewTicker(250 * time.Millisecond)
	defer secTicker.Stop()
	firstTickDone := false

	redraw := time.NewTicker(barRedrawPeriod)
	defer redraw.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clear()
				return nil
			}
			p.handleEvent(ev)
			p.maybeDraw()
		case <-redraw.C:
			p.draw()
		case <-secTicker.C:
			p.stats.Tick()
			if !firstTickDone {
				firstTickDone = true
				secTicker.Reset(time.Second)
			}
		}
	}
}

func (p *barPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case FileDegraded:
		p.line(p.st.warn.Render("◌"), ev.Path, p.st.muted.Render(ev.Message))
	case FileRenamed:
		p.line(p.st.accent.Render("→"), ev.Path, p.st.muted.Render("renamed to ")+ev.Dest)
	case FileSkipped:
		p.line(p.st.muted.Render("–"), ev.Path, p.st.muted.Render("skipped"))
	case FileFailed:
		p.line(p.st.fail.Render("✗"), ev.Path, p.st.fail.Render(errText(ev)))
	case FileEncoded, FileWritten:
		if p.verbose {
			p.line(p.st.ok.Render("✓"), ev.Path, p.st.muted.Render(FormatBytes(ev.Size)))
		}
	case FileUnchanged:
		if p.verbose {
			p.line(p.st.muted.Render("="), ev.Path, p.st.muted.Render("unchanged"))
		}
	case VerifyStarted:
		p.clear()
		fmt.Fprintln(p.w, p.st.muted.Render("verifying checksums..."))
	case VerifyFailed:
		p.line(p.st.fail.Render("✗"), ev.Path, p.st.fail.Render("CHECKSUM MISMATCH"))
	case PatchApplied:
		p.line(p.st.ok.Render("✓"), ev.Path, p.st.muted.Render("patched"))
	case PatchRejected:
		p.line(p.st.fail.Render("✗"), ev.Path, p.st.fail.Render(ev.Message))
	}
}

// line prints a feed line above the bar.
func (p *barPresenter) line(icon, path, detail string) {
	p.clear()
	fmt.Fprintf(p.w, "%s  %s  %s\n", icon, p.styledPath(path), detail)
	p.draw()
}

func (p *barPresenter) maybeDraw() {
	if time.Since(p.lastDraw) < barMinInterval {
		return
	}
	p.draw()
}

func (p *barPresenter) draw() {
	snap := p.stats.Snapshot()
	p.clear()

	var pct float64
	if snap.FilesTotal > 0 {
		pct = float64(snap.FilesDone()) / float64(snap.FilesTotal)
	}
	text := fmt.Sprintf(" %3.0f%%  %s   %s / %s files   %s   eta %s",
		pct*100, ProgressBar(pct, barWidth),
		FormatCount(snap.FilesDone()), FormatCount(snap.FilesTotal),
		FormatBytes(snap.BytesProcessed),
		FormatETA(p.stats.ETA()),
	)
	if len([]rune(text)) > p.width {
		text = string([]rune(text)[:p.width])
	}
	fmt.Fprint(p.w, text)

	p.drawn = true
	p.lastDraw = time.Now()
}

// clear erases the bar line in place.
func (p *barPresenter) clear() {
	if !p.drawn {
		return
	}
	fmt.Fprint(p.w, "\r\033[K")
	p.drawn = false
}

// styledPath mutes the directory so the file name stands out, and keeps the
// whole path within half the terminal width.
func (p *barPresenter) styledPath(path string) string {
	path = TruncPath(StripRoot(p.root, path), max(p.width/2, 16))
	dir, base := splitPath(path)
	if dir == "" {
		return p.st.value.Render(base)
	}
	return p.st.muted.Render(dir+"/") + p.st.value.Render(base)
}

func (p *barPresenter) Summary() string {
	return RenderSummary(p.stats.Snapshot(), p.theme)
}
