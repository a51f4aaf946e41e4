// Package patchtest provides an in-memory patch.Tool for tests.
package patchtest

import (
	"context"
	"strings"
	"sync"

	"github.com/scbundle/scb/internal/patch"
)

// Tool records invocations and answers with canned results. Files without
// a canned result are reported as applied.
type Tool struct {
	// Results maps a stripped target path to the result to report for it.
	Results map[string]patch.Result
	// Err, when set, is returned instead of any result.
	Err error

	mu    sync.Mutex
	calls []patch.Invocation
}

// ApplyPatch implements patch.Tool.
func (t *Tool) ApplyPatch(ctx context.Context, inv patch.Invocation) ([]patch.Result, error) {
	t.mu.Lock()
	t.calls = append(t.calls, inv)
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.Err != nil {
		return nil, t.Err
	}

	var out []patch.Result
	for _, s := range patch.Parse(inv.Patch).Sections {
		target := s.Target()
		for range inv.Strip {
			if i := strings.IndexByte(target, '/'); i >= 0 {
				target = target[i+1:]
			}
		}
		if r, ok := t.Results[target]; ok {
			r.TargetFile = target
			out = append(out, r)
			continue
		}
		out = append(out, patch.Result{TargetFile: target, Succeeded: true, Message: "applied"})
	}
	return out, nil
}

// Calls returns the invocations seen so far.
func (t *Tool) Calls() []patch.Invocation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]patch.Invocation(nil), t.calls...)
}
