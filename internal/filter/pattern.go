package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// pattern is a compiled glob. Globs containing a "/" are anchored at the
// tree root; others match the final path component at any depth.
type pattern struct {
	src     string
	re      *regexp.Regexp
	dirOnly bool
}

func compile(glob string) (*pattern, error) {
	if strings.TrimSpace(glob) == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	p := &pattern{src: glob}

	body := glob
	if strings.HasSuffix(body, "/") {
		p.dirOnly = true
		body = strings.TrimRight(body, "/")
	}
	anchored := strings.Contains(body, "/")
	body = strings.TrimPrefix(body, "/")

	expr := translate(body)
	if anchored {
		expr = "^" + expr + "$"
	} else {
		expr = "(?:^|/)" + expr + "$"
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", glob, err)
	}
	p.re = re
	return p, nil
}

func (p *pattern) match(relPath string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}
	return p.re.MatchString(relPath)
}

func (p *pattern) String() string { return p.src }

// translate turns glob syntax into a regular expression body.
//
//	**/  any number of leading directories
//	**   anything, slashes included
//	*    anything except a slash
//	?    one character except a slash
//	[..] character class, "!" negates
func translate(glob string) string {
	var b strings.Builder
	rs := []rune(glob)
	for i := 0; i < len(rs); i++ {
		switch c := rs[i]; c {
		case '*':
			if i+1 < len(rs) && rs[i+1] == '*' {
				if i+2 < len(rs) && rs[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 2
				} else {
					b.WriteString(".*")
					i++
				}
				continue
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := classEnd(rs, i)
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := string(rs[i+1 : end])
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}

// classEnd returns the index of the "]" closing the class opened at start,
// or -1. A "]" directly after "[" or "[!" is literal.
func classEnd(rs []rune, start int) int {
	j := start + 1
	if j < len(rs) && rs[j] == '!' {
		j++
	}
	if j < len(rs) && rs[j] == ']' {
		j++
	}
	for ; j < len(rs); j++ {
		if rs[j] == ']' {
			return j
		}
	}
	return -1
}
