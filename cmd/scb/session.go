package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/scbundle/scb/internal/event"
	"github.com/scbundle/scb/internal/stats"
	"github.com/scbundle/scb/internal/ui"
)

// session wires one engine run to a presenter and an optional event log.
type session struct {
	events    chan event.Event
	stats     *stats.Collector
	presenter ui.Presenter
	wg        sync.WaitGroup
}

func (a *app) startSession(root string) *session {
	s := &session{
		events: make(chan event.Event, 256),
		stats:  stats.NewCollector(),
	}

	isTTY := ui.IsTTY(os.Stderr)
	s.presenter = ui.NewPresenter(ui.Config{
		Writer:     a.stdout,
		ErrWriter:  a.stderr,
		Stats:      s.stats,
		Root:       root,
		Theme:      a.theme,
		Width:      ui.TermWidth(os.Stderr),
		IsTTY:      isTTY,
		Quiet:      a.quiet,
		Verbose:    a.verbose,
		NoProgress: a.noProgress,
	})

	// With --log, tee events so each one is also recorded in the log file.
	presenterEvents := s.events
	if a.logFile != "" {
		teed := make(chan event.Event, 256)
		log := a.logger
		go func() {
			defer close(teed)
			for ev := range s.events {
				attrs := []any{"type", ev.Type.String(), "path", ev.Path}
				if ev.Size > 0 {
					attrs = append(attrs, "size", ev.Size)
				}
				if ev.Error != nil {
					attrs = append(attrs, "error", ev.Error)
				}
				log.Debug("event", attrs...)
				teed <- ev
			}
		}()
		presenterEvents = teed
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.presenter.Run(presenterEvents) //nolint:errcheck // presenter errors are non-fatal
	}()
	return s
}

// finish closes the event stream, waits for the presenter to drain and
// prints the summary.
func (a *app) finish(s *session) {
	close(s.events)
	s.wg.Wait()
	if !a.quiet {
		fmt.Fprintln(a.stderr, s.presenter.Summary())
	}
}
