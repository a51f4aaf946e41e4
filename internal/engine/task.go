package engine

// FileTask is one source file selected for a bundle.
type FileTask struct {
	SrcPath string // absolute path on disk, symlinks not resolved
	RelPath string // forward-slash path relative to the tree root
	Size    int64
	Symlink bool // reached through a symlink
}
