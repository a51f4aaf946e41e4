package bundle

import (
	"bytes"
	"strings"

	"github.com/jmgilman/go/errors"

	"github.com/scbundle/scb/internal/errkind"
	"github.com/scbundle/scb/internal/marker"
)

// Issue describes a marker line the decoder could not use as written.
// Issues never stop decoding.
type Issue struct {
	Line int // 1-based line number in the bundle
	Err  error
}

type decodeState int

const (
	awaitingMarker decodeState = iota
	inContent
	inError
)

type decoder struct {
	state   decodeState
	current FileRecord
	// crlf is set when the opening marker ended in "\r\n", as it does
	// after an editor converted the bundle's line endings.
	crlf    bool
	content bytes.Buffer
	records []FileRecord
	issues  []Issue
}

// Decode parses bundle text into records in bundle order. Text without any
// marker line yields no records. Paths are returned as written; callers
// sanitize them before touching the filesystem.
func Decode(text []byte) []FileRecord {
	records, _ := DecodeWithIssues(text)
	return records
}

// DecodeWithIssues is Decode plus the malformed-marker findings.
func DecodeWithIssues(text []byte) ([]FileRecord, []Issue) {
	d := &decoder{}
	for n, l := range splitLines(text) {
		d.feed(n+1, l)
	}
	d.finish(0)
	return d.records, d.issues
}

func (d *decoder) feed(n int, line []byte) {
	m, ok := marker.Parse(string(line))
	if !ok {
		switch d.state {
		case inContent:
			d.content.Write(line)
		case inError:
			if strings.TrimSpace(string(line)) != "" {
				d.issue(n, "unexpected text inside error block")
			}
		}
		return
	}

	switch m.Kind {
	case marker.KindStart:
		d.finish(n)
		d.state = inContent
		d.current = FileRecord{Path: m.Value}
		d.crlf = bytes.HasSuffix(line, []byte("\r\n"))
	case marker.KindEnd:
		if d.state != inContent {
			d.issue(n, "END FILE without open record")
			return
		}
		if m.Value != d.current.Path {
			d.issue(n, "END FILE path does not match "+d.current.Path)
		}
		d.closeContent()
	case marker.KindErrorStart:
		d.finish(n)
		d.state = inError
		d.current = FileRecord{Path: m.Value}
	case marker.KindError:
		if d.state != inError {
			d.issue(n, "ERROR outside error block")
			return
		}
		d.current.Message = m.Value
		d.current.IsBinary = strings.HasPrefix(m.Value, PlaceholderBinary)
	case marker.KindErrorEnd:
		if d.state != inError {
			d.issue(n, "ERROR END without ERROR START")
			return
		}
		d.closeError()
	}
}

// finish closes whatever record is pending. n is the line that forced the
// close, or 0 at end of stream.
func (d *decoder) finish(n int) {
	switch d.state {
	case inContent:
		d.closeContent()
	case inError:
		if n > 0 {
			d.issue(n, "error block for "+d.current.Path+" not closed")
		}
		d.closeError()
	}
}

// closeContent emits the pending text record, dropping the one separator
// newline the encoder appends after content. In a CRLF bundle the
// separator is "\r\n".
func (d *decoder) closeContent() {
	b := d.content.Bytes()
	if d.crlf && bytes.HasSuffix(b, []byte("\r\n")) {
		b = b[:len(b)-2]
	} else {
		b = bytes.TrimSuffix(b, []byte{'\n'})
	}
	d.current.Content = bytes.Clone(b)
	if d.current.Content == nil {
		d.current.Content = []byte{}
	}
	d.records = append(d.records, d.current)
	d.reset()
}

func (d *decoder) closeError() {
	if d.current.Message == "" {
		d.current.Message = PlaceholderReadError
	}
	d.records = append(d.records, d.current)
	d.reset()
}

func (d *decoder) reset() {
	d.state = awaitingMarker
	d.current = FileRecord{}
	d.crlf = false
	d.content.Reset()
}

func (d *decoder) issue(n int, msg string) {
	d.issues = append(d.issues, Issue{
		Line: n,
		Err:  errors.WithContext(errors.New(errkind.MalformedMarker, msg), "line", n),
	})
}

// splitLines splits text after every "\n", keeping terminators. A final
// line without a terminator is kept as is.
func splitLines(text []byte) [][]byte {
	var out [][]byte
	for len(text) > 0 {
		i := bytes.IndexByte(text, '\n')
		if i < 0 {
			out = append(out, text)
			break
		}
		out = append(out, text[:i+1])
		text = text[i+1:]
	}
	return out
}
