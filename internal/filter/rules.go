package filter

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile appends the rules in a filter file to the chain. One rule per
// line in Add syntax; blank lines and lines starting with "#" are skipped.
func (c *Chain) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open filter file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := c.Add(line); err != nil {
			return fmt.Errorf("filter file %s line %d: %w", path, n, err)
		}
	}
	return sc.Err()
}

// ParseSize parses sizes such as "512", "100K", "1.5M" or "2G" into bytes.
// Units are powers of 1024; a trailing "B" is accepted ("10KB").
func ParseSize(s string) (int64, error) {
	orig := s
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	if len(s) > 1 {
		s = strings.TrimSuffix(s, "B")
	}

	mult := float64(1)
	switch s[len(s)-1] {
	case 'K':
		mult = 1 << 10
	case 'M':
		mult = 1 << 20
	case 'G':
		mult = 1 << 30
	case 'T':
		mult = 1 << 40
	}
	if mult > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", orig)
	}
	return int64(n * mult), nil
}
