package shmregion

import "errors"

var (
	// ErrBusy is returned by [Create] when another writer holds the region.
	ErrBusy = errors.New("shmregion: busy")

	// ErrNotExist is returned when a region or its metadata is absent.
	// [Attach] wraps it together with [ring.ErrSizeMismatch].
	ErrNotExist = errors.New("shmregion: does not exist")

	// ErrInvalidName is returned for empty names or names containing a path
	// separator.
	ErrInvalidName = errors.New("shmregion: invalid name")

	// ErrClosed is returned by operations on a closed [Region].
	ErrClosed = errors.New("shmregion: closed")

	// ErrReadOnly is returned by writer-only operations on an attached region.
	ErrReadOnly = errors.New("shmregion: read-only")
)
