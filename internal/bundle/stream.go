package bundle

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ReadStream reads a whole bundle from r, decompressing zstd-framed input.
func ReadStream(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zstdMagic))
	if !bytes.Equal(head, zstdMagic) {
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, fmt.Errorf("read bundle: %w", err)
		}
		return data, nil
	}

	dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress bundle: %w", err)
	}
	return data, nil
}

// ReadFile reads the bundle at path.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()
	return ReadStream(f)
}

// NewStreamWriter wraps w so that written bundle text is zstd-compressed
// when compress is set. Close must be called to finish the frame; it does
// not close w.
func NewStreamWriter(w io.Writer, compress bool) (io.WriteCloser, error) {
	if !compress {
		return nopCloser{w}, nil
	}
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return enc, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
