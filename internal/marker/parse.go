package marker

import (
	"regexp"
	"sort"
	"strings"
)

// Kind identifies a marker line.
type Kind string

const (
	KindStart      Kind = "START FILE"
	KindEnd        Kind = "END FILE"
	KindErrorStart Kind = "ERROR START"
	KindError      Kind = "ERROR"
	KindErrorEnd   Kind = "ERROR END"
)

// Marker is a parsed marker line. Value holds the path, or the message for
// KindError lines.
type Marker struct {
	Kind  Kind
	Value string
}

var linePattern = compileLinePattern()

// compileLinePattern builds one expression that accepts the marker grammar
// under every registered comment delimiter. Longer delimiters are tried
// first so "///" is not read as "//" followed by text.
func compileLinePattern() *regexp.Regexp {
	var opens, closes []string
	seenClose := map[string]bool{}
	for _, st := range styles {
		opens = append(opens, regexp.QuoteMeta(st.open))
		if st.close != "" && !seenClose[st.close] {
			seenClose[st.close] = true
			closes = append(closes, regexp.QuoteMeta(st.close))
		}
	}
	byLen := func(s []string) {
		sort.SliceStable(s, func(i, j int) bool { return len(s[i]) > len(s[j]) })
	}
	byLen(opens)
	byLen(closes)

	kinds := []string{
		string(KindErrorStart), string(KindErrorEnd), string(KindError),
		string(KindStart), string(KindEnd),
	}

	expr := `^(?:` + strings.Join(opens, "|") + `)\s+` +
		regexp.QuoteMeta(Tag) + ` (` + strings.Join(kinds, "|") + `):\s+` +
		`(.+?)(?:\s*(?:` + strings.Join(closes, "|") + `))?$`
	return regexp.MustCompile(expr)
}

// Parse recognizes a marker line. Surrounding whitespace, including a
// trailing "\r" or "\n", is ignored.
func Parse(line string) (Marker, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.Contains(trimmed, Tag) {
		return Marker{}, false
	}
	m := linePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Marker{}, false
	}
	value := strings.TrimSpace(m[2])
	if value == "" {
		return Marker{}, false
	}
	return Marker{Kind: Kind(m[1]), Value: value}, true
}

// Ambiguous reports whether a content line would be read back as a marker.
// Such lines cannot round-trip through a bundle.
func Ambiguous(line string) bool {
	_, ok := Parse(line)
	return ok
}
