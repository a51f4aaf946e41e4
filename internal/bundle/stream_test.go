package bundle_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbundle/scb/internal/bundle"
)

func TestStreamCompressedRoundTrip(t *testing.T) {
	text := bundle.Encode([]bundle.FileRecord{
		bundle.TextRecord("a.py", bytes.Repeat([]byte("print('hi')\n"), 200), bundle.UTF8),
	}, bundle.EncoderOptions{Index: true})

	var buf bytes.Buffer
	w, err := bundle.NewStreamWriter(&buf, true)
	require.NoError(t, err)
	_, err = w.Write(text)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Less(t, buf.Len(), len(text))

	got, err := bundle.ReadStream(&buf)
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestStreamPlain(t *testing.T) {
	var buf bytes.Buffer
	w, err := bundle.NewStreamWriter(&buf, false)
	require.NoError(t, err)
	_, err = w.Write([]byte("plain"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := bundle.ReadStream(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "plain", string(got))
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.txt")
	require.NoError(t, os.WriteFile(path, []byte("xy"), 0o644))

	got, err := bundle.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "xy", string(got))

	_, err = bundle.ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
