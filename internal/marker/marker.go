// Package marker maps file extensions to comment delimiters and formats and
// parses the per-file marker lines of a bundle.
package marker

import (
	"path"
	"strings"

	"github.com/jmgilman/go/errors"

	"github.com/scbundle/scb/internal/errkind"
)

// Tag is the literal that identifies a bundle marker line.
const Tag = "[[ SCB ]]"

// Descriptor describes how a path is wrapped into marker lines for one
// comment syntax. Line-comment descriptors leave the close fields empty.
type Descriptor struct {
	Extension   string
	OpenPrefix  string
	OpenSuffix  string
	ClosePrefix string
	CloseSuffix string
	Block       bool
}

// style is one comment syntax. Block styles use the same delimiter pair for
// the opening and the closing marker, so the two can never disagree.
type style struct {
	open  string
	close string // empty for line comments
}

var (
	hashStyle     = style{open: "#"}
	slashStyle    = style{open: "//"}
	docStyle      = style{open: "///"}
	dashStyle     = style{open: "--"}
	semiStyle     = style{open: ";"}
	percentStyle  = style{open: "%"}
	cBlockStyle   = style{open: "/*", close: "*/"}
	htmlStyle     = style{open: "<!--", close: "-->"}
	mlBlockStyle  = style{open: "(*", close: "*)"}
	fallbackStyle = hashStyle
)

// styles lists every registered syntax, fallback included.
var styles = []style{
	hashStyle, slashStyle, docStyle, dashStyle, semiStyle, percentStyle,
	cBlockStyle, htmlStyle, mlBlockStyle,
}

var registry = buildRegistry(map[style][]string{
	hashStyle: {
		".py", ".sh", ".bash", ".zsh", ".rb", ".pl", ".r", ".yaml", ".yml",
		".toml", ".cmake", ".mk", ".ps1", ".nim", ".jl", ".tf",
	},
	slashStyle: {
		".c", ".h", ".cpp", ".hpp", ".cc", ".cxx", ".hh", ".go", ".java",
		".js", ".jsx", ".ts", ".tsx", ".mjs", ".cs", ".swift", ".kt", ".kts",
		".scala", ".dart", ".php", ".zig", ".proto", ".groovy",
	},
	docStyle:     {".rs"},
	dashStyle:    {".sql", ".lua", ".hs", ".elm", ".ada"},
	semiStyle:    {".lisp", ".clj", ".el", ".scm", ".asm", ".ini"},
	percentStyle: {".tex", ".erl", ".m"},
	cBlockStyle:  {".css", ".scss", ".less"},
	htmlStyle:    {".html", ".htm", ".xml", ".svg", ".md", ".vue"},
	mlBlockStyle: {".ml", ".mli"},
})

func buildRegistry(families map[style][]string) map[string]style {
	out := make(map[string]style)
	for st, exts := range families {
		for _, ext := range exts {
			if _, dup := out[ext]; dup {
				panic("marker: extension registered twice: " + ext)
			}
			out[ext] = st
		}
	}
	return out
}

// NormalizeExt lower-cases ext and ensures a single leading dot.
// An empty input stays empty.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	return "." + strings.TrimLeft(ext, ".")
}

// Describe returns the descriptor for ext. Matching is case-insensitive and
// the leading dot is optional. Unknown extensions get the "#" line style.
func Describe(ext string) Descriptor {
	norm := NormalizeExt(ext)
	st, ok := registry[norm]
	if !ok {
		st = fallbackStyle
	}
	return st.descriptor(norm)
}

// Known reports whether ext has a registered comment style.
func Known(ext string) bool {
	_, ok := registry[NormalizeExt(ext)]
	return ok
}

func (s style) descriptor(ext string) Descriptor {
	d := Descriptor{
		Extension:  ext,
		OpenPrefix: s.open + " " + Tag + " ",
	}
	if s.close != "" {
		d.Block = true
		d.OpenSuffix = " " + s.close
		d.ClosePrefix = s.open + " " + Tag + " "
		d.CloseSuffix = " " + s.close
	}
	return d
}

// Start formats the opening marker for path, without a line terminator.
func (d Descriptor) Start(path string) string {
	return d.OpenPrefix + string(KindStart) + ": " + path + d.OpenSuffix
}

// End formats the closing marker for path. It is only meaningful for block
// descriptors; line descriptors return the line-comment form.
func (d Descriptor) End(path string) string {
	prefix, suffix := d.ClosePrefix, d.CloseSuffix
	if !d.Block {
		prefix, suffix = d.OpenPrefix, ""
	}
	return prefix + string(KindEnd) + ": " + path + suffix
}

// ErrorBlock formats the three lines that stand in for a file whose content
// could not be embedded.
func (d Descriptor) ErrorBlock(path, message string) [3]string {
	return [3]string{
		d.OpenPrefix + string(KindErrorStart) + ": " + path + d.OpenSuffix,
		d.OpenPrefix + string(KindError) + ": " + message + d.OpenSuffix,
		d.OpenPrefix + string(KindErrorEnd) + ": " + path + d.OpenSuffix,
	}
}

// Fits returns a MalformedMarker error when p cannot be written on a
// marker line of d and parsed back unchanged. Line breaks split the
// marker; surrounding whitespace and a trailing comment delimiter are
// consumed by Parse.
func (d Descriptor) Fits(p string) error {
	if strings.ContainsAny(p, "\r\n") {
		return errors.Newf(errkind.MalformedMarker, "path %q contains a line break", p)
	}
	m, ok := Parse(d.Start(p))
	if !ok || m.Kind != KindStart || m.Value != p {
		return errors.Newf(errkind.MalformedMarker, "path %q does not survive a marker line", p)
	}
	return nil
}

// CheckPath is Fits with the descriptor for p's own extension.
func CheckPath(p string) error {
	return Describe(path.Ext(p)).Fits(p)
}
