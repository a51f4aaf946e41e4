// Package bundle converts between file records and bundle text.
//
// A bundle is plain UTF-8 text. Each file is introduced by a marker line
// written in the comment syntax of the file's language, followed by the
// file content verbatim and one separator newline. Block-comment languages
// also get a closing marker. Files that cannot be embedded are represented
// by an ERROR START / ERROR / ERROR END triple.
//
// Content lines that happen to look like marker lines are read back as
// markers. The format has no escaping, so such files do not round-trip;
// the encoder logs them and the decoder does not guess.
package bundle

import (
	"strings"
)

// Placeholder texts for records whose content is not embedded.
const (
	PlaceholderBinary    = "[BINARY FILE - CONTENT OMITTED]"
	PlaceholderReadError = "[READ ERROR - CONTENT OMITTED]"
)

// FileRecord is one file of a bundle.
type FileRecord struct {
	// Path is forward-slash and relative to the bundle root.
	Path    string
	Content []byte
	// IsBinary is set when the source bytes were not decodable as text.
	IsBinary bool
	// Message is the placeholder line of a degraded record.
	Message string
	// Encoding names the text encoding the content was decoded from.
	// Empty for decoded and degraded records.
	Encoding string
}

// TextRecord returns a record embedding content.
func TextRecord(path string, content []byte, encoding string) FileRecord {
	return FileRecord{Path: path, Content: content, Encoding: encoding}
}

// BinaryRecord returns a degraded record for undecodable content.
func BinaryRecord(path string) FileRecord {
	return FileRecord{Path: path, IsBinary: true, Message: PlaceholderBinary}
}

// ReadErrorRecord returns a degraded record for a file that could not be read.
func ReadErrorRecord(path string, err error) FileRecord {
	msg := PlaceholderReadError
	if err != nil {
		msg += " " + firstLine(err.Error())
	}
	return FileRecord{Path: path, Message: msg}
}

// Degraded reports whether the record carries a placeholder instead of content.
func (r FileRecord) Degraded() bool {
	return r.IsBinary || r.Message != ""
}

// Placeholder returns the bytes materialize writes for a degraded record.
func (r FileRecord) Placeholder() []byte {
	return []byte(r.Message + "\n")
}

// Lines counts content lines the way the file index reports them.
func (r FileRecord) Lines() int {
	return strings.Count(string(r.Content), "\n") + 1
}

// firstLine keeps error text on a single marker line.
func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
