package engine

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// createSourceTree populates root with a small mixed-language tree:
//
//	main.py              script with a trailing newline
//	lib/util.rs          no trailing newline
//	lib/empty.c          zero bytes
//	lib/blank.h          newlines only
//	web/site.css         block-comment language
//	web/page.html        block-comment language, CRLF line endings
//	docs/名前.py          unicode name
//	a/b/c/d/e/deep.py    deep nesting
func createSourceTree(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{
		"main.py":           "import sys\n\nprint(sys.argv)\n",
		"lib/util.rs":       "fn util() -> u8 { 1 }",
		"lib/empty.c":       "",
		"lib/blank.h":       "\n\n\n",
		"web/site.css":      "body {\n  margin: 0;\n}\n",
		"web/page.html":     "<html>\r\n<body></body>\r\n</html>\r\n",
		"docs/名前.py":        "x = 'ü'\n",
		"a/b/c/d/e/deep.py": "   \n\tdeep\n  ",
	}
	writeTree(t, root, files)
	return files
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// readTree returns every regular file under root keyed by slash path.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

// tmpLeftovers lists temp files left under root by interrupted writes.
func tmpLeftovers(t *testing.T, root string) []string {
	t.Helper()
	var left []string
	for rel := range readTree(t, root) {
		if strings.HasSuffix(rel, ".scb-tmp") {
			left = append(left, rel)
		}
	}
	return left
}
