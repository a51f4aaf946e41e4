package ui

import (
	"fmt"
	"strings"

	"github.com/scbundle/scb/internal/stats"
)

type summaryField struct {
	label string
	value string
	warn  bool
}

func summaryFields(snap stats.Snapshot) (bool, []summaryField) {
	failed := snap.FilesFailed + snap.FilesVerifyFailed
	fields := []summaryField{
		{label: "files", value: FormatCount(snap.FilesEncoded + snap.FilesWritten)},
		{label: "size", value: FormatBytes(snap.BytesProcessed)},
	}
	optional := []struct {
		label string
		n     int64
		warn  bool
	}{
		{"degraded", snap.FilesDegraded, true},
		{"renamed", snap.FilesRenamed, false},
		{"unchanged", snap.FilesUnchanged, false},
		{"skipped", snap.FilesSkipped, false},
		{"verified", snap.FilesVerified, false},
		{"ambiguous", snap.AmbiguousLines, true},
	}
	for _, o := range optional {
		if o.n > 0 {
			fields = append(fields, summaryField{label: o.label, value: FormatCount(o.n), warn: o.warn})
		}
	}
	fields = append(fields,
		summaryField{label: "time", value: FormatDuration(snap.Elapsed)},
		summaryField{label: "errors", value: fmt.Sprintf("%d", failed), warn: failed > 0},
	)
	return failed == 0, fields
}

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  files 1,204  size 3.1 MB  renamed 2  time 1s  errors 0
func CompletionSummary(snap stats.Snapshot) string {
	ok, fields := summaryFields(snap)
	icon := "✓"
	if !ok {
		icon = "✗"
	}
	var b strings.Builder
	b.WriteString("done " + icon)
	for _, f := range fields {
		fmt.Fprintf(&b, "  %s %s", f.label, f.value)
	}
	return b.String()
}

// RenderSummary is CompletionSummary styled with theme colors.
func RenderSummary(snap stats.Snapshot, theme Theme) string {
	st := theme.styles()
	ok, fields := summaryFields(snap)

	var b strings.Builder
	if ok {
		b.WriteString(st.ok.Render("done ✓"))
	} else {
		b.WriteString(st.fail.Render("done ✗"))
	}
	for _, f := range fields {
		val := st.value.Render(f.value)
		if f.warn {
			val = st.warn.Render(f.value)
			if f.label == "errors" {
				val = st.fail.Render(f.value)
			}
		}
		b.WriteString("  " + st.label.Render(f.label) + " " + val)
	}
	return b.String()
}
