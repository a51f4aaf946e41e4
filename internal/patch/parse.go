package patch

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

const devNull = "/dev/null"

var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,(\d+))? \+\d+(?:,(\d+))? @@`)

// Section is the part of a unified diff that touches one file.
type Section struct {
	// OldPath and NewPath are the header paths as written, prefixes included.
	OldPath string
	NewPath string
	Hunks   int

	text []byte
}

// Target returns the path the section writes to: the new path, or the old
// one for deletions.
func (s Section) Target() string {
	if s.NewPath == "" || s.NewPath == devNull {
		return s.OldPath
	}
	return s.NewPath
}

// Paths returns every real header path of the section.
func (s Section) Paths() []string {
	var out []string
	for _, p := range []string{s.OldPath, s.NewPath} {
		if p != "" && p != devNull {
			out = append(out, p)
		}
	}
	return out
}

// Text returns the section's lines exactly as they appeared in the diff.
func (s Section) Text() []byte { return s.text }

// Diff is a parsed unified diff.
type Diff struct {
	// Preamble is everything before the first section, such as a commit
	// message.
	Preamble []byte
	Sections []Section
}

// Parse splits a unified diff into per-file sections. Sections start at a
// "diff" line or at a "---"/"+++" header pair. Hunk bodies are consumed by
// their line counts, so removed lines that look like headers stay inside
// their hunk. Parse never fails; text it does not understand is kept with
// the section it follows.
func Parse(text []byte) Diff {
	var (
		d       Diff
		cur     *Section
		fromGit bool
		oldLeft int
		newLeft int
	)
	flush := func() {
		if cur != nil {
			d.Sections = append(d.Sections, *cur)
			cur = nil
		}
	}

	lines := splitLines(text)
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		s := trimEOL(line)

		if oldLeft > 0 || newLeft > 0 {
			switch {
			case strings.HasPrefix(s, `\`):
			case strings.HasPrefix(s, "-"):
				oldLeft--
			case strings.HasPrefix(s, "+"):
				newLeft--
			default:
				oldLeft--
				newLeft--
			}
			cur.text = append(cur.text, line...)
			continue
		}

		switch {
		case strings.HasPrefix(s, "diff "):
			flush()
			cur = &Section{}
			cur.OldPath, cur.NewPath = diffLinePaths(s)
			fromGit = true
		case strings.HasPrefix(s, "--- ") && i+1 < len(lines) && strings.HasPrefix(trimEOL(lines[i+1]), "+++ "):
			if cur == nil || !fromGit {
				flush()
				cur = &Section{}
			}
			fromGit = false
			cur.OldPath = headerPath(s[4:])
			cur.NewPath = headerPath(trimEOL(lines[i+1])[4:])
			cur.text = append(cur.text, line...)
			i++
			line = lines[i]
		case strings.HasPrefix(s, "@@ ") && cur != nil:
			oldLeft, newLeft = hunkCounts(s)
			cur.Hunks++
			fromGit = false
		}

		if cur == nil {
			d.Preamble = append(d.Preamble, line...)
		} else {
			cur.text = append(cur.text, line...)
		}
	}
	flush()
	return d
}

// DetectStrip returns 1 when every section uses git-style a/ and b/
// prefixes, and 0 otherwise.
func DetectStrip(sections []Section) int {
	if len(sections) == 0 {
		return 0
	}
	for _, s := range sections {
		if !prefixed(s.OldPath, "a/") || !prefixed(s.NewPath, "b/") {
			return 0
		}
	}
	return 1
}

func prefixed(p, prefix string) bool {
	return p == "" || p == devNull || strings.HasPrefix(p, prefix)
}

// stripPath removes n leading components from p the way patch -pN does.
func stripPath(p string, n int) (string, bool) {
	for range n {
		i := strings.IndexByte(p, '/')
		if i < 0 {
			return "", false
		}
		p = strings.TrimLeft(p[i+1:], "/")
	}
	return p, p != ""
}

func hunkCounts(header string) (int, int) {
	m := hunkHeader.FindStringSubmatch(header)
	if m == nil {
		return 0, 0
	}
	return count(m[1]), count(m[2])
}

func count(s string) int {
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// headerPath extracts the path from a ---/+++ header, dropping the
// timestamp that diff appends after a tab.
func headerPath(s string) string {
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"`) {
		if unq, err := strconv.Unquote(s); err == nil {
			return unq
		}
	}
	return s
}

func diffLinePaths(line string) (string, string) {
	rest, ok := strings.CutPrefix(line, "diff --git ")
	if ok && strings.HasPrefix(rest, "a/") {
		if i := strings.LastIndex(rest, " b/"); i >= 0 {
			return rest[:i], rest[i+1:]
		}
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return "", ""
	}
	return headerPath(fields[len(fields)-2]), headerPath(fields[len(fields)-1])
}

func splitLines(text []byte) [][]byte {
	var lines [][]byte
	for len(text) > 0 {
		i := bytes.IndexByte(text, '\n')
		if i < 0 {
			lines = append(lines, text)
			break
		}
		lines = append(lines, text[:i+1])
		text = text[i+1:]
	}
	return lines
}

func trimEOL(b []byte) string {
	return strings.TrimRight(string(b), "\r\n")
}
