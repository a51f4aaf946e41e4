package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gitDiff = `From: someone
Subject: tweak

diff --git a/src/main.py b/src/main.py
index 1111111..2222222 100644
--- a/src/main.py
+++ b/src/main.py
@@ -1,3 +1,3 @@
 import os
--- removed header lookalike
+++ added header lookalike
 print(os.name)
diff --git a/new.txt b/new.txt
new file mode 100644
--- /dev/null
+++ b/new.txt
@@ -0,0 +1 @@
+hello
`

func TestParseGitDiff(t *testing.T) {
	d := Parse([]byte(gitDiff))

	assert.Equal(t, "From: someone\nSubject: tweak\n\n", string(d.Preamble))
	require.Len(t, d.Sections, 2)

	assert.Equal(t, "a/src/main.py", d.Sections[0].OldPath)
	assert.Equal(t, "b/src/main.py", d.Sections[0].NewPath)
	assert.Equal(t, 1, d.Sections[0].Hunks)
	assert.Contains(t, string(d.Sections[0].Text()), "--- removed header lookalike")

	assert.Equal(t, devNull, d.Sections[1].OldPath)
	assert.Equal(t, "b/new.txt", d.Sections[1].Target())
	assert.Equal(t, []string{"b/new.txt"}, d.Sections[1].Paths())

	var joined []byte
	joined = append(joined, d.Preamble...)
	for _, s := range d.Sections {
		joined = append(joined, s.Text()...)
	}
	assert.Equal(t, gitDiff, string(joined))
	assert.Equal(t, 1, DetectStrip(d.Sections))
}

func TestParsePlainDiff(t *testing.T) {
	text := "--- old/a.c\t2024-01-01 00:00:00\n" +
		"+++ new/a.c\t2024-01-02 00:00:00\n" +
		"@@ -1 +1 @@\n" +
		"-x\n" +
		"+y\n" +
		"--- b.c\n" +
		"+++ b.c\n" +
		"@@ -1,2 +1,2 @@\n" +
		"-1\n" +
		"+2\n" +
		" 3\n"

	d := Parse([]byte(text))
	require.Len(t, d.Sections, 2)
	assert.Empty(t, d.Preamble)
	assert.Equal(t, "old/a.c", d.Sections[0].OldPath)
	assert.Equal(t, "new/a.c", d.Sections[0].NewPath)
	assert.Equal(t, "b.c", d.Sections[1].Target())
	assert.Equal(t, 0, DetectStrip(d.Sections))
}

func TestParseDeletionAndQuotedNames(t *testing.T) {
	text := "--- \"a/with space.py\"\n" +
		"+++ /dev/null\n" +
		"@@ -1 +0,0 @@\n" +
		"-gone\n"

	d := Parse([]byte(text))
	require.Len(t, d.Sections, 1)
	assert.Equal(t, "a/with space.py", d.Sections[0].Target())
}

func TestParseNoSections(t *testing.T) {
	d := Parse([]byte("just some text\nno diff here\n"))
	assert.Empty(t, d.Sections)
	assert.Equal(t, "just some text\nno diff here\n", string(d.Preamble))
	assert.Equal(t, 0, DetectStrip(nil))
}

func TestStripPath(t *testing.T) {
	tests := []struct {
		in    string
		n     int
		want  string
		valid bool
	}{
		{"a/b/c", 1, "b/c", true},
		{"a/b/c", 2, "c", true},
		{"a//b", 1, "b", true},
		{"x", 0, "x", true},
		{"a", 1, "", false},
		{"a/b", 3, "", false},
	}
	for _, tt := range tests {
		got, ok := stripPath(tt.in, tt.n)
		assert.Equal(t, tt.valid, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseOutput(t *testing.T) {
	out := `patching file src/main.py
Hunk #1 succeeded at 3 (offset 2 lines).
patching file lib/util.py
Hunk #1 FAILED at 10.
Hunk #2 succeeded at 20.
1 out of 2 hunks FAILED -- saving rejects to file lib/util.py.rej
can't find file to patch at input line 30
Perhaps you used the wrong -p or --strip option?
The text leading up to this was:
--------------------------
|diff --git a/gone.py b/gone.py
|--- a/gone.py
|+++ b/gone.py
--------------------------
No file to patch.  Skipping patch.
1 out of 1 hunk ignored
patching file done.py
Reversed (or previously applied) patch detected!  Skipping patch.
1 out of 1 hunk ignored -- saving rejects to file done.py.rej
patching file 'with space.py'
`
	results := parseOutput(out, 1)
	require.Len(t, results, 5)

	assert.Equal(t, Result{
		TargetFile: "src/main.py",
		Succeeded:  true,
		Message:    "applied",
		Hunks:      []HunkResult{{Number: 1, Succeeded: true, Message: "Hunk #1 succeeded at 3 (offset 2 lines)."}},
	}, results[0])

	assert.Equal(t, "lib/util.py", results[1].TargetFile)
	assert.False(t, results[1].Succeeded)
	assert.Equal(t, "1 out of 2 hunks FAILED -- saving rejects to file lib/util.py.rej", results[1].Message)
	require.Len(t, results[1].Hunks, 2)
	assert.False(t, results[1].Hunks[0].Succeeded)
	assert.True(t, results[1].Hunks[1].Succeeded)

	assert.Equal(t, "gone.py", results[2].TargetFile)
	assert.False(t, results[2].Succeeded)
	assert.Equal(t, "can't find file to patch", results[2].Message)

	assert.Equal(t, "done.py", results[3].TargetFile)
	assert.False(t, results[3].Succeeded)
	assert.Equal(t, "reversed or previously applied patch", results[3].Message)

	assert.Equal(t, "with space.py", results[4].TargetFile)
	assert.True(t, results[4].Succeeded)
}

func TestParseOutputDryRun(t *testing.T) {
	results := parseOutput("checking file a.py\nchecking file b.py\n", 0)
	require.Len(t, results, 2)
	assert.Equal(t, "a.py", results[0].TargetFile)
	assert.Equal(t, "b.py", results[1].TargetFile)
}

func TestParseOutputGarbage(t *testing.T) {
	assert.Empty(t, parseOutput("patch: **** Only garbage was found in the patch input.\n", 1))
	assert.Empty(t, parseOutput("", 1))
}
