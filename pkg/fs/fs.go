// Package fs provides the filesystem seam used by greenbox region
// provisioning, plus advisory file locking.
//
// The main types are:
//   - [FS]: interface for the filesystem operations regions need
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using the [os] package
//   - [Locker]: flock(2)-based exclusive locks on lock files
//
// Example usage:
//
//	fsys := fs.NewReal()
//	lock, err := fs.NewLocker(fsys).TryLock("/dev/shm/greenbox/feed.gb.lock")
//	if errors.Is(err, fs.ErrWouldBlock) {
//	    // another process owns the region
//	}
//	defer lock.Close()
package fs

import (
	"io"
	"os"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File]. [File.Fd] must return a real OS
// file descriptor, usable with syscalls such as flock and mmap, until the
// file is closed.
type File interface {
	io.ReadWriteCloser

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Truncate changes the size of the file. See [os.File.Truncate].
	// Extending a file fills the new bytes with zeros.
	Truncate(size int64) error

	// Sync commits the file's contents to storage. See [os.File.Sync].
	Sync() error
}

// FS defines the filesystem operations used to provision regions.
//
// All methods mirror their [os] package equivalents so tests can intercept
// them. Implementations must be safe for concurrent use.
type FS interface {
	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic replaces path with data via temp file + rename, so
	// readers see either the old or the new content, never a partial file.
	WriteFileAtomic(path string, data []byte) error

	// ReadDir reads a directory and returns its entries sorted by name.
	// See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	// Returns [os.ErrNotExist] if the file doesn't exist.
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
