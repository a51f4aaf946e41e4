package bundle

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// UTF8 is the primary encoding every file is first read as.
const UTF8 = "utf-8"

// DefaultFallbacks are the encodings tried after UTF-8, in order.
var DefaultFallbacks = []string{"windows-1252", "iso-8859-1"}

// TextDecoder turns raw file bytes into UTF-8 text.
type TextDecoder struct {
	fallbacks []namedEncoding
}

type namedEncoding struct {
	name string
	enc  encoding.Encoding
}

// NewTextDecoder resolves fallback encoding names through the IANA registry.
// A nil list selects DefaultFallbacks; an empty non-nil list means UTF-8 only.
func NewTextDecoder(fallbacks []string) (*TextDecoder, error) {
	if fallbacks == nil {
		fallbacks = DefaultFallbacks
	}
	d := &TextDecoder{}
	for _, name := range fallbacks {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == UTF8 || name == "utf8" {
			continue
		}
		enc, err := ianaindex.IANA.Encoding(name)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("unsupported encoding %q", name)
		}
		d.fallbacks = append(d.fallbacks, namedEncoding{name: name, enc: enc})
	}
	return d, nil
}

// Decode returns raw as UTF-8 and the name of the encoding it was read as.
// ok is false when raw contains a NUL byte or no encoding accepts it.
func (d *TextDecoder) Decode(raw []byte) (text []byte, enc string, ok bool) {
	if bytes.IndexByte(raw, 0) >= 0 {
		return nil, "", false
	}
	if utf8.Valid(raw) {
		return raw, UTF8, true
	}
	for _, fb := range d.fallbacks {
		out, err := fb.enc.NewDecoder().Bytes(raw)
		if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
			continue
		}
		return out, fb.name, true
	}
	return nil, "", false
}
