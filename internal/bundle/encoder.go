package bundle

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/scbundle/scb/internal/marker"
)

// Index block literals.
const (
	IndexStart = "# " + marker.Tag + " FILE INDEX START"
	IndexEnd   = "# " + marker.Tag + " FILE INDEX END"
)

// EncoderOptions configures an Encoder.
type EncoderOptions struct {
	// Index writes the file index block before the first record.
	Index bool
	// Logger receives warnings about content lines that look like markers.
	// Nil uses slog.Default.
	Logger *slog.Logger
}

// Encoder writes records to a bundle stream.
type Encoder struct {
	w         *bufio.Writer
	opts      EncoderOptions
	log       *slog.Logger
	ambiguous int
	err       error
}

// NewEncoder returns an Encoder writing to w. Call Flush when done.
func NewEncoder(w io.Writer, opts EncoderOptions) *Encoder {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Encoder{w: bufio.NewWriter(w), opts: opts, log: log}
}

// Ambiguous returns how many content lines written so far would decode as
// marker lines.
func (e *Encoder) Ambiguous() int { return e.ambiguous }

// WriteAll writes the optional index followed by every record.
// An empty record list produces no output at all.
func (e *Encoder) WriteAll(records []FileRecord) error {
	if len(records) == 0 {
		return e.Flush()
	}
	if e.opts.Index {
		e.WriteIndex(records)
	}
	for _, r := range records {
		e.Write(r)
	}
	return e.Flush()
}

// WriteIndex writes the file index block describing records.
func (e *Encoder) WriteIndex(records []FileRecord) {
	if len(records) == 0 {
		return
	}
	pathW, sizeW, linesW := 0, 0, 0
	sizes := make([]string, len(records))
	lines := make([]string, len(records))
	for i, r := range records {
		pathW = max(pathW, len(r.Path))
		if r.Degraded() {
			continue
		}
		sizes[i] = strconv.FormatFloat(float64(len(r.Content))/1024, 'f', 1, 64)
		lines[i] = strconv.Itoa(r.Lines())
		sizeW = max(sizeW, len(sizes[i]))
		linesW = max(linesW, len(lines[i]))
	}

	e.line(IndexStart)
	e.line(fmt.Sprintf("# Total Files: %d", len(records)))
	e.line("# ")
	for i, r := range records {
		if r.Degraded() {
			e.line(fmt.Sprintf("# %-*s %s", pathW, r.Path, r.Message))
			continue
		}
		e.line(fmt.Sprintf("# %-*s | SIZE: %*skb | LINES: %*s",
			pathW, r.Path, sizeW, sizes[i], linesW, lines[i]))
	}
	e.line(IndexEnd)
	e.line("")
}

// Write appends one record. Errors are sticky and returned by Flush.
func (e *Encoder) Write(r FileRecord) {
	d := marker.Describe(path.Ext(r.Path))
	if err := d.Fits(r.Path); err != nil {
		e.log.Warn("record path will not decode unchanged", "path", r.Path, "error", err)
	}

	if r.Degraded() {
		for _, l := range d.ErrorBlock(r.Path, firstLine(r.Message)) {
			e.line(l)
		}
		e.line("")
		return
	}

	e.line(d.Start(r.Path))
	e.checkAmbiguous(r)
	e.write(r.Content)
	e.write([]byte{'\n'})
	if d.Block {
		e.line(d.End(r.Path))
		e.line("")
	}
}

// Flush writes buffered data and returns the first error encountered.
func (e *Encoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	return nil
}

func (e *Encoder) checkAmbiguous(r FileRecord) {
	if !bytes.Contains(r.Content, []byte(marker.Tag)) {
		return
	}
	for n, l := range strings.Split(string(r.Content), "\n") {
		if marker.Ambiguous(l) {
			e.ambiguous++
			e.log.Warn("content line will be read back as a marker",
				"path", r.Path, "line", n+1)
		}
	}
}

func (e *Encoder) line(s string) {
	e.write([]byte(s + "\n"))
}

func (e *Encoder) write(b []byte) {
	if e.err != nil {
		return
	}
	if _, err := e.w.Write(b); err != nil {
		e.err = fmt.Errorf("write bundle: %w", err)
	}
}

// Encode renders records as bundle text.
func Encode(records []FileRecord, opts EncoderOptions) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes do not fail.
	_ = NewEncoder(&buf, opts).WriteAll(records)
	return buf.Bytes()
}
