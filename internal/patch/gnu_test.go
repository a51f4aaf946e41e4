package patch

import (
	"context"
	"io"
	"os"
	osexec "os/exec"
	"path/filepath"
	"testing"

	"github.com/jmgilman/go/exec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbundle/scb/internal/errkind"
)

// fakeExec is an exec.Executor whose Run is scripted by the test.
type fakeExec struct {
	run     func(args ...string) (*exec.Result, error)
	timeout string
}

func (f *fakeExec) WithEnv(map[string]string) exec.Executor { return f }
func (f *fakeExec) WithDir(string) exec.Executor { return f }
func (f *fakeExec) WithContext(context.Context) exec.Executor { return f }
func (f *fakeExec) WithDisableColors() exec.Executor { return f }
func (f *fakeExec) WithInheritEnv() exec.Executor { return f }
func (f *fakeExec) WithStdout(io.Writer) exec.Executor { return f }
func (f *fakeExec) WithStderr(io.Writer) exec.Executor { return f }
func (f *fakeExec) WithPassthrough() exec.Executor { return f }
func (f *fakeExec) Clone() exec.Executor { return f }

func (f *fakeExec) WithTimeout(d string) exec.Executor {
	f.timeout = d
	return f
}

func (f *fakeExec) Run(args ...string) (*exec.Result, error) {
	return f.run(args...)
}

func exitWith(code int, out string) (*exec.Result, error) {
	res := &exec.Result{Stdout: out, Combined: out, ExitCode: code}
	if code == 0 {
		return res, nil
	}
	return res, &exec.ExecError{ExitCode: code, Stdout: out}
}

func TestGNUPatchInvocation(t *testing.T) {
	var (
		gotArgs  []string
		gotPatch string
		patchArg string
	)
	fe := &fakeExec{run: func(args ...string) (*exec.Result, error) {
		gotArgs = args
		for i, a := range args {
			if a == "-i" {
				patchArg = args[i+1]
				data, err := os.ReadFile(patchArg)
				require.NoError(t, err)
				gotPatch = string(data)
			}
		}
		return exitWith(0, "patching file a.py\n")
	}}

	g := NewGNUPatch(WithExecutor(fe), WithTimeout("5s"))
	results, err := g.ApplyPatch(context.Background(), Invocation{
		Patch: []byte("the patch"),
		Dir:   "/work",
		Strip: 1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.py", results[0].TargetFile)
	assert.True(t, results[0].Succeeded)

	assert.Equal(t, []string{
		"patch", "--batch", "--forward", "--no-backup-if-mismatch",
		"-p1", "-d", "/work", "-i", patchArg,
	}, gotArgs)
	assert.Equal(t, "the patch", gotPatch)
	assert.Equal(t, "5s", fe.timeout)
	assert.NoFileExists(t, patchArg)
}

func TestGNUPatchDryRunAndBinary(t *testing.T) {
	var gotArgs []string
	fe := &fakeExec{run: func(args ...string) (*exec.Result, error) {
		gotArgs = args
		return exitWith(0, "checking file a.py\n")
	}}

	g := NewGNUPatch(WithExecutor(fe), WithBinary("gpatch"))
	_, err := g.ApplyPatch(context.Background(), Invocation{Dir: "/w", DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "gpatch", gotArgs[0])
	assert.Contains(t, gotArgs, "-p0")
	assert.Equal(t, "--dry-run", gotArgs[len(gotArgs)-1])
}

func TestGNUPatchPartialRejectIsNotAnError(t *testing.T) {
	fe := &fakeExec{run: func(...string) (*exec.Result, error) {
		return exitWith(1, "patching file a.py\nHunk #1 FAILED at 3.\n1 out of 1 hunk FAILED -- saving rejects to file a.py.rej\n")
	}}

	results, err := NewGNUPatch(WithExecutor(fe)).ApplyPatch(context.Background(), Invocation{Dir: "/w"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Succeeded)
}

func TestGNUPatchToolFailures(t *testing.T) {
	tests := []struct {
		name string
		run  func(...string) (*exec.Result, error)
	}{
		{
			name: "missing binary",
			run: func(...string) (*exec.Result, error) {
				return &exec.Result{ExitCode: -1}, &exec.ExecError{ExitCode: -1, Err: osexec.ErrNotFound}
			},
		},
		{
			name: "garbage input",
			run: func(...string) (*exec.Result, error) {
				return exitWith(2, "patch: **** Only garbage was found in the patch input.\n")
			},
		},
		{
			name: "no result at all",
			run: func(...string) (*exec.Result, error) {
				return nil, &exec.ExecError{ExitCode: -1}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGNUPatch(WithExecutor(&fakeExec{run: tt.run}))
			results, err := g.ApplyPatch(context.Background(), Invocation{Dir: "/w"})
			require.Error(t, err)
			assert.Nil(t, results)
			assert.True(t, errkind.Is(err, errkind.ExternalToolFailure))
		})
	}
}

func TestGNUPatchExitTwoWithOutputKeepsResults(t *testing.T) {
	fe := &fakeExec{run: func(...string) (*exec.Result, error) {
		return exitWith(2, "patching file a.py\npatch: **** write error\n")
	}}
	results, err := NewGNUPatch(WithExecutor(fe)).ApplyPatch(context.Background(), Invocation{Dir: "/w"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestGNUPatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fe := &fakeExec{run: func(...string) (*exec.Result, error) {
		cancel()
		return exitWith(-1, "")
	}}
	_, err := NewGNUPatch(WithExecutor(fe)).ApplyPatch(ctx, Invocation{Dir: "/w"})
	assert.ErrorIs(t, err, context.Canceled)
}

// TestGNUPatchBinary drives the real patch binary when one is installed.
func TestGNUPatchBinary(t *testing.T) {
	if _, err := osexec.LookPath("patch"); err != nil {
		t.Skip("patch binary not installed")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("unrelated\n"), 0o644))

	diff := "--- a/hello.txt\n+++ b/hello.txt\n@@ -1 +1 @@\n-hello\n+world\n" +
		"--- a/other.txt\n+++ b/other.txt\n@@ -1 +1 @@\n-expected\n+changed\n"

	results, err := NewGNUPatch().ApplyPatch(context.Background(), Invocation{
		Patch: []byte(diff),
		Dir:   dir,
		Strip: 1,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Succeeded)
	assert.False(t, results[1].Succeeded)

	data, err := os.ReadFile(filepath.Join(dir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "world\n", string(data))
}
