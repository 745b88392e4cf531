package fass

import "io"

// WalkEntry is one item visited by FilesystemManager.Walk.
// Err is set when the entry could not be read; the walk continues past it.
type WalkEntry struct {
	Path *Path
	// Rel is the path relative to the walk root ("." for the root itself).
	Rel string
	Err error
}

// WalkFunc is called for every directory and regular file under a walk root.
// Returning an error aborts the walk.
type WalkFunc func(entry WalkEntry) error

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access so the engine can be tested against temp trees
// and so the copy strategy lives in one place.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and validates
	// it's a regular file or directory (not a symlink, device, etc.).
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Exists reports whether path exists. Errors other than "not exist"
	// are returned as-is.
	Exists(path string) (bool, error)

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string) error

	// Walk visits root and everything below it in lexical order.
	// Symlinks, devices, sockets and pipes are skipped and never followed,
	// so the walk terminates on cyclic link structures. Ignored entries
	// are skipped as well.
	Walk(root *Path, fn WalkFunc) error

	// CopyFile copies src to dst byte for byte, creating dst's parent
	// directories. dst is replaced atomically, so a crash never leaves a
	// truncated backup copy behind.
	CopyFile(src, dst string) error

	// Remove deletes a single file. A missing file is not an error.
	Remove(path string) error
}
