package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbundle/scb/internal/bundle"
	"github.com/scbundle/scb/internal/errkind"
	"github.com/scbundle/scb/internal/event"
	"github.com/scbundle/scb/internal/filter"
	"github.com/scbundle/scb/internal/stats"
)

func TestMergeSplitRoundTrip(t *testing.T) {
	src := t.TempDir()
	want := createSourceTree(t, src)

	for _, compress := range []bool{false, true} {
		out := filepath.Join(t.TempDir(), "bundle.txt")
		res, err := Merge(context.Background(), MergeConfig{
			EncodeConfig: EncodeConfig{Source: src, Index: true},
			Output:       out,
			Compress:     compress,
		})
		require.NoError(t, err)
		assert.Equal(t, len(want), res.Report.Succeeded)
		assert.Zero(t, res.Report.Failed())

		dst := t.TempDir()
		rep, err := Split(context.Background(), SplitConfig{
			Bundle:            out,
			MaterializeConfig: MaterializeConfig{Root: dst},
		})
		require.NoError(t, err)
		assert.Equal(t, len(want), rep.Succeeded)
		assert.Empty(t, rep.Renamed)
		assert.Equal(t, want, readTree(t, dst))
	}
}

func TestEncodeIsIdempotent(t *testing.T) {
	src := t.TempDir()
	createSourceTree(t, src)

	cfg := EncodeConfig{Source: src, Index: true}
	first, err := Encode(context.Background(), cfg)
	require.NoError(t, err)
	second, err := Encode(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, first.Bundle, second.Bundle)
}

func TestEncodeExtensionFilter(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.py": "a\n", "b.rs": "b\n", "c.md": "c\n"})

	for _, exts := range [][]string{{".py"}, {".PY"}, {"py"}} {
		res, err := Encode(context.Background(), EncodeConfig{
			Source:     src,
			Extensions: filter.ParseExtensions(exts),
		})
		require.NoError(t, err)

		records := bundle.Decode(res.Bundle)
		require.Len(t, records, 1, "filter %v", exts)
		assert.Equal(t, "a.py", records[0].Path)
	}
}

func TestEncodeEmptyFilterIncludesEverything(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.py": "a", "Makefile": "all:", "notes.txt": "n", ".hidden": "h"})

	res, err := Encode(context.Background(), EncodeConfig{Source: src})
	require.NoError(t, err)
	assert.Len(t, bundle.Decode(res.Bundle), 3)
}

func TestEncodeEmptyDirectory(t *testing.T) {
	res, err := Encode(context.Background(), EncodeConfig{Source: t.TempDir(), Index: true})
	require.NoError(t, err)
	assert.Empty(t, res.Bundle)
	assert.Zero(t, res.Report.Total())
	assert.Empty(t, bundle.Decode(res.Bundle))
}

func TestEncodeMissingSource(t *testing.T) {
	_, err := Encode(context.Background(), EncodeConfig{Source: filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}

func TestEncodeBinaryFileDegrades(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"blob.py": "\xff\xfe\x00\x01",
		"ok.py":   "ok\n",
	})

	res, err := Encode(context.Background(), EncodeConfig{Source: src})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Degraded)
	assert.Equal(t, 1, res.Report.Succeeded)

	records := bundle.Decode(res.Bundle)
	require.Len(t, records, 2)
	assert.True(t, records[0].IsBinary)
	assert.Equal(t, bundle.PlaceholderBinary, records[0].Message)
	assert.Equal(t, "ok\n", string(records[1].Content))

	dst := t.TempDir()
	rep, err := Materialize(context.Background(), records, MaterializeConfig{Root: dst})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Degraded)
	assert.Equal(t, bundle.PlaceholderBinary+"\n", readTree(t, dst)["blob.py"])
}

func TestEncodeUnreadableFileDegrades(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	src := t.TempDir()
	writeTree(t, src, map[string]string{"locked.py": "secret", "open.py": "open"})
	require.NoError(t, os.Chmod(filepath.Join(src, "locked.py"), 0o000))
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(src, "locked.py"), 0o644) })

	res, err := Encode(context.Background(), EncodeConfig{Source: src})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Degraded)

	records := bundle.Decode(res.Bundle)
	require.Len(t, records, 2)
	assert.True(t, strings.HasPrefix(records[0].Message, bundle.PlaceholderReadError))
}

func TestEncodeFallbackEncoding(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"legacy.py": "name = 'caf\xe9'\n"})

	res, err := Encode(context.Background(), EncodeConfig{Source: src})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "windows-1252", res.Files[0].Encoding)

	records := bundle.Decode(res.Bundle)
	require.Len(t, records, 1)
	assert.Equal(t, "name = 'café'\n", string(records[0].Content))
}

func TestEncodeCSSBlockMarkers(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"style.css": "a { color: red; }\n"})

	res, err := Encode(context.Background(), EncodeConfig{Source: src})
	require.NoError(t, err)

	text := string(res.Bundle)
	assert.Contains(t, text, "/* [[ SCB ]] START FILE: style.css */\n")
	assert.Contains(t, text, "/* [[ SCB ]] END FILE: style.css */\n")

	records := bundle.Decode(res.Bundle)
	require.Len(t, records, 1)
	assert.Equal(t, "a { color: red; }\n", string(records[0].Content))
}

func TestEncodeIncludeRootName(t *testing.T) {
	src := filepath.Join(t.TempDir(), "proj")
	writeTree(t, src, map[string]string{"pkg/a.py": "a"})

	res, err := Encode(context.Background(), EncodeConfig{Source: src, IncludeRootName: true})
	require.NoError(t, err)
	records := bundle.Decode(res.Bundle)
	require.Len(t, records, 1)
	assert.Equal(t, "proj/pkg/a.py", records[0].Path)
}

func TestEncodeRefusesPathsThatBreakMarkers(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"good.py":   "g = 1\n",
		"a\nb.py":   "v = 1\n",
		"trail.py ": "t\n",
	})

	res, err := Encode(context.Background(), EncodeConfig{Source: src})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Succeeded)
	require.Equal(t, 2, res.Report.Failed())
	for _, f := range res.Report.Failures {
		assert.Equal(t, errkind.MalformedMarker, f.Kind())
	}

	records := bundle.Decode(res.Bundle)
	require.Len(t, records, 1)
	assert.Equal(t, "good.py", records[0].Path)
	assert.Equal(t, "g = 1\n", string(records[0].Content))
}

func TestEncodeIncludeRootNameWithLeadingSpace(t *testing.T) {
	src := filepath.Join(t.TempDir(), " proj")
	writeTree(t, src, map[string]string{"a.py": "a"})

	res, err := Encode(context.Background(), EncodeConfig{Source: src, IncludeRootName: true})
	require.NoError(t, err)
	require.Equal(t, 1, res.Report.Failed())
	assert.Equal(t, " proj/a.py", res.Report.Failures[0].Path)
	assert.Empty(t, bundle.Decode(res.Bundle))
}

func TestEncodeGitignore(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		".gitignore":   "build/\n*.gen.py\n",
		"main.py":      "m",
		"x.gen.py":     "g",
		"build/out.py": "o",
		"pkg/y.gen.py": "g",
		"pkg/keep.py":  "k",
	})

	res, err := Encode(context.Background(), EncodeConfig{Source: src, Gitignore: true})
	require.NoError(t, err)

	var paths []string
	for _, f := range res.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"main.py", "pkg/keep.py"}, paths)
}

func TestEncodeSourceFilesMode(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pkg/b.md":       "b",
		"pkg/sub/a.txt":  "a",
		"pkg/.secret.py": "s",
	})

	res, err := Encode(context.Background(), EncodeConfig{
		Files: []string{
			filepath.Join(root, "pkg", "sub", "a.txt"),
			filepath.Join(root, "pkg", ".secret.py"),
			filepath.Join(root, "pkg", "b.md"),
		},
		Extensions: filter.ParseExtensions([]string{".py"}),
	})
	require.NoError(t, err)

	records := bundle.Decode(res.Bundle)
	require.Len(t, records, 3)
	assert.Equal(t, "sub/a.txt", records[0].Path)
	assert.Equal(t, ".secret.py", records[1].Path)
	assert.Equal(t, "b.md", records[2].Path)
}

func TestEncodeProgressIsBounded(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{}
	for i := range 450 {
		files[filepath.ToSlash(filepath.Join("d", string(rune('a'+i%26)), strings.Repeat("f", 1+i/26)+".py"))] = "x"
	}
	writeTree(t, src, files)

	var mu sync.Mutex
	var calls [][2]int
	res, err := Encode(context.Background(), EncodeConfig{
		Source: src,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, [2]int{done, total})
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Files, 450)

	assert.LessOrEqual(t, len(calls), 101)
	assert.Equal(t, [2]int{450, 450}, calls[len(calls)-1])

	silent, err := Encode(context.Background(), EncodeConfig{Source: src})
	require.NoError(t, err)
	assert.Equal(t, silent.Bundle, res.Bundle)
}

func TestEncodeCancelled(t *testing.T) {
	src := t.TempDir()
	createSourceTree(t, src)
	out := filepath.Join(t.TempDir(), "out.txt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Merge(ctx, MergeConfig{EncodeConfig: EncodeConfig{Source: src}, Output: out})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, out)
}

func TestEncodeEventsAndStats(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.py": "a", "b.py": "\x00"})

	events := make(chan event.Event, 16)
	collector := stats.NewCollector()
	_, err := Encode(context.Background(), EncodeConfig{Source: src, Events: events, Stats: collector})
	require.NoError(t, err)
	close(events)

	var types []event.Type
	for ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []event.Type{event.ScanStarted, event.ScanComplete, event.FileEncoded, event.FileDegraded}, types)

	snap := collector.Snapshot()
	assert.Equal(t, int64(2), snap.FilesTotal)
	assert.Equal(t, int64(1), snap.FilesEncoded)
	assert.Equal(t, int64(1), snap.FilesDegraded)
}

func TestEncodeCountsAmbiguousLines(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"gen.py": "x = 1\n# [[ SCB ]] START FILE: fake.py\ny = 2\n"})

	collector := stats.NewCollector()
	res, err := Encode(context.Background(), EncodeConfig{Source: src, Stats: collector})
	require.NoError(t, err)
	assert.Equal(t, int64(1), collector.Snapshot().AmbiguousLines)
	assert.Len(t, bundle.Decode(res.Bundle), 2)
}

func TestMergeWritesAtomically(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.py": "a\n"})
	outDir := t.TempDir()
	out := filepath.Join(outDir, "b.txt")
	require.NoError(t, os.WriteFile(out, []byte("old"), 0o644))

	res, err := Merge(context.Background(), MergeConfig{
		EncodeConfig: EncodeConfig{Source: src},
		Output:       out,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(res.Bundle, got))
	assert.Empty(t, tmpLeftovers(t, outDir))
}
