// Package filter decides which entries of a source tree go into a bundle.
//
// Decisions combine four independent rules, applied in this order: hidden
// entries are always skipped, an optional .gitignore at the tree root, the
// ordered include/exclude chain (first match wins), and finally the
// extension set for regular files.
package filter

import (
	"strings"
)

// Rule is a single include or exclude rule.
type Rule struct {
	Pattern *pattern
	Include bool
}

// Chain holds an ordered list of rules plus size bounds.
type Chain struct {
	rules   []Rule
	minSize int64
	maxSize int64
}

// NewChain creates an empty chain that includes everything.
func NewChain() *Chain {
	return &Chain{}
}

// AddExclude appends an exclude rule.
func (c *Chain) AddExclude(glob string) error {
	p, err := compile(glob)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: p})
	return nil
}

// AddInclude appends an include rule.
func (c *Chain) AddInclude(glob string) error {
	p, err := compile(glob)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: p, Include: true})
	return nil
}

// Add appends a rule written in filter-file syntax: "+ glob" includes,
// "- glob" or a bare glob excludes.
func (c *Chain) Add(rule string) error {
	rule = strings.TrimSpace(rule)
	switch {
	case strings.HasPrefix(rule, "+ "):
		return c.AddInclude(strings.TrimSpace(rule[2:]))
	case strings.HasPrefix(rule, "- "):
		return c.AddExclude(strings.TrimSpace(rule[2:]))
	default:
		return c.AddExclude(rule)
	}
}

// SetMinSize skips regular files smaller than n bytes. Zero disables.
func (c *Chain) SetMinSize(n int64) { c.minSize = n }

// SetMaxSize skips regular files larger than n bytes. Zero disables.
func (c *Chain) SetMaxSize(n int64) { c.maxSize = n }

// Len returns the number of rules.
func (c *Chain) Len() int { return len(c.rules) }

// Empty reports whether the chain has no rules and no size bounds.
func (c *Chain) Empty() bool {
	return len(c.rules) == 0 && c.minSize == 0 && c.maxSize == 0
}

// Match reports whether relPath should be kept. relPath uses forward
// slashes and is relative to the tree root; size is ignored for directories.
func (c *Chain) Match(relPath string, isDir bool, size int64) bool {
	if c == nil {
		return true
	}
	if !isDir {
		if c.minSize > 0 && size < c.minSize {
			return false
		}
		if c.maxSize > 0 && size > c.maxSize {
			return false
		}
	}
	for _, r := range c.rules {
		if r.Pattern.match(relPath, isDir) {
			return r.Include
		}
	}
	return true
}

// Hidden reports whether a directory entry name is hidden.
func Hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
