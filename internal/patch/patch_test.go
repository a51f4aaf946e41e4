package patch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbundle/scb/internal/errkind"
	"github.com/scbundle/scb/internal/event"
	"github.com/scbundle/scb/internal/patch"
	"github.com/scbundle/scb/internal/patch/patchtest"
)

func section(from, to string) string {
	return "--- " + from + "\n+++ " + to + "\n@@ -1 +1 @@\n-old\n+new\n"
}

func TestApplyReportsPerFileInDiffOrder(t *testing.T) {
	dir := t.TempDir()
	tool := &patchtest.Tool{Results: map[string]patch.Result{
		"lib/util.py": {Succeeded: false, Message: "1 out of 2 hunks FAILED"},
	}}

	text := section("a/src/main.py", "b/src/main.py") +
		section("a/lib/util.py", "b/lib/util.py") +
		section("a/../../evil.py", "b/../../evil.py")

	rep, err := patch.Apply(context.Background(), tool, []byte(text), dir, patch.Options{Strip: patch.AutoStrip})
	require.NoError(t, err)

	require.Len(t, rep.Results, 3)
	assert.Equal(t, "src/main.py", rep.Results[0].TargetFile)
	assert.True(t, rep.Results[0].Succeeded)
	assert.Equal(t, "lib/util.py", rep.Results[1].TargetFile)
	assert.False(t, rep.Results[1].Succeeded)
	assert.Equal(t, "1 out of 2 hunks FAILED", rep.Results[1].Message)
	assert.Equal(t, "b/../../evil.py", rep.Results[2].TargetFile)
	assert.False(t, rep.Results[2].Succeeded)

	assert.Equal(t, 1, rep.Succeeded())
	assert.Len(t, rep.Failed(), 2)

	calls := tool.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 1, calls[0].Strip)
	assert.NotContains(t, string(calls[0].Patch), "evil")
	assert.Contains(t, string(calls[0].Patch), "b/lib/util.py")
}

func TestApplyExplicitStrip(t *testing.T) {
	tool := &patchtest.Tool{}
	rep, err := patch.Apply(context.Background(), tool,
		[]byte(section("a/x.py", "b/x.py")), t.TempDir(), patch.Options{})
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	assert.Equal(t, "b/x.py", rep.Results[0].TargetFile)
	assert.Equal(t, 0, tool.Calls()[0].Strip)
}

func TestApplyRefusesUnsafePaths(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "tree")
	outside := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))

	tests := []struct {
		name string
		text string
	}{
		{"parent segment", section("a/../x.py", "b/../x.py")},
		{"old path escapes", section("a/../../etc/passwd", "b/ok.py")},
		{"strip consumes path", section("x.py", "x.py")},
		{"through symlink", section("a/link/x.py", "b/link/x.py")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := &patchtest.Tool{}
			rep, err := patch.Apply(context.Background(), tool, []byte(tt.text), dir, patch.Options{Strip: 1})
			require.NoError(t, err)
			require.Len(t, rep.Results, 1)
			assert.False(t, rep.Results[0].Succeeded)
			assert.NotEmpty(t, rep.Results[0].Message)
			assert.Empty(t, tool.Calls(), "tool must not run when nothing is safe")
		})
	}
}

func TestApplyToolFailureIsFatal(t *testing.T) {
	tool := &patchtest.Tool{Err: errors.New(errkind.ExternalToolFailure, "patch not found")}
	text := section("a/ok.py", "b/ok.py") + section("a/../bad.py", "b/../bad.py")

	rep, err := patch.Apply(context.Background(), tool, []byte(text), t.TempDir(), patch.Options{Strip: patch.AutoStrip})
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.ExternalToolFailure))
	require.Len(t, rep.Results, 1)
	assert.Equal(t, "b/../bad.py", rep.Results[0].TargetFile)
}

// silentTool runs without reporting anything.
type silentTool struct{}

func (silentTool) ApplyPatch(context.Context, patch.Invocation) ([]patch.Result, error) {
	return nil, nil
}

func TestApplyMissingOutcome(t *testing.T) {
	text := section("a/b/c.py", "b/b/c.py")
	rep, err := patch.Apply(context.Background(), silentTool{}, []byte(text), t.TempDir(), patch.Options{Strip: 2})
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	assert.Equal(t, "c.py", rep.Results[0].TargetFile)
	assert.False(t, rep.Results[0].Succeeded)
	assert.Equal(t, "no outcome reported", rep.Results[0].Message)
}

func TestApplyDeepStrip(t *testing.T) {
	tool := &patchtest.Tool{}
	text := section("a/b/c.py", "b/b/c.py")
	rep, err := patch.Apply(context.Background(), tool, []byte(text), t.TempDir(), patch.Options{Strip: 2})
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	assert.Equal(t, "c.py", rep.Results[0].TargetFile)
	assert.True(t, rep.Results[0].Succeeded)
}

func TestApplyEmptyPatch(t *testing.T) {
	tool := &patchtest.Tool{}
	rep, err := patch.Apply(context.Background(), tool, []byte("nothing to see\n"), t.TempDir(), patch.Options{})
	require.NoError(t, err)
	assert.Empty(t, rep.Results)
	assert.Empty(t, tool.Calls())
}

func TestApplyPreconditions(t *testing.T) {
	_, err := patch.Apply(context.Background(), nil, nil, t.TempDir(), patch.Options{})
	assert.True(t, errkind.Is(err, errkind.ExternalToolFailure))

	_, err = patch.Apply(context.Background(), &patchtest.Tool{}, nil,
		filepath.Join(t.TempDir(), "missing"), patch.Options{})
	assert.True(t, errkind.Is(err, errkind.IOFailure))

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = patch.Apply(context.Background(), &patchtest.Tool{}, nil, file, patch.Options{})
	assert.True(t, errkind.Is(err, errkind.IOFailure))
}

func TestApplyDryRunAndEvents(t *testing.T) {
	tool := &patchtest.Tool{Results: map[string]patch.Result{
		"b.py": {Message: "can't find file to patch"},
	}}
	events := make(chan event.Event, 4)
	text := section("a/a.py", "b/a.py") + section("a/b.py", "b/b.py")

	_, err := patch.Apply(context.Background(), tool, []byte(text), t.TempDir(), patch.Options{
		Strip:  patch.AutoStrip,
		DryRun: true,
		Events: events,
	})
	require.NoError(t, err)
	assert.True(t, tool.Calls()[0].DryRun)

	close(events)
	var got []event.Event
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, event.PatchApplied, got[0].Type)
	assert.Equal(t, "a.py", got[0].Path)
	assert.Equal(t, event.PatchRejected, got[1].Type)
	assert.Equal(t, "can't find file to patch", got[1].Message)
}
