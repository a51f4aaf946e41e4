package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// writeFileAtomic creates dst by writing to a temporary sibling and renaming
// it into place, so dst is either absent, the old file, or complete.
func writeFileAtomic(dst string, perm os.FileMode, reg *tmpRegistry, fill func(io.Writer) error) error {
	dir := filepath.Dir(dst)
	base := filepath.Base(dst)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.scb-tmp", base, uuid.New().String()[:8]))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent dir %s: %w", dir, err)
	}

	reg.register(tmpPath)
	defer func() {
		reg.deregister(tmpPath)
		_ = os.Remove(tmpPath) // no-op if rename succeeded
	}()

	tmpFd, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("create tmp %s: %w", tmpPath, err)
	}

	if err := fill(tmpFd); err != nil {
		tmpFd.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}

	if err := tmpFd.Close(); err != nil {
		return fmt.Errorf("close tmp %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, dst, err)
	}
	return nil
}

func writeBytesAtomic(dst string, data []byte, reg *tmpRegistry) error {
	return writeFileAtomic(dst, 0o644, reg, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
