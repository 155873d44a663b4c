package shmregion

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/greenbox/pkg/fs"
	"github.com/calvinalkan/greenbox/pkg/ring"
)

// Region is a mapped region file.
//
// A Region returned by [Create] is writable and holds the writer lock until
// closed. A Region returned by [Attach] is read-only. Methods are safe for
// concurrent use, but the slice returned by [Region.Bytes] must not be used
// after [Region.Close].
type Region struct {
	mu     sync.Mutex
	closed bool

	path     string
	layout   ring.Layout
	data     []byte
	writable bool
	lock     *fs.Lock
	meta     Meta
	ident    fileIdentity
	fs       fs.FS
	logger   *slog.Logger
}

// fileIdentity identifies the inode a Region has mapped.
type fileIdentity struct {
	dev uint64
	ino uint64
}

// Create provisions a fresh region for a writer.
//
// It takes the writer lock (an error wrapping [ErrBusy] if another writer
// holds it), removes any stale region left by a previous writer, creates a
// zero-filled file of exactly the layout's size, maps it shared read-write,
// and publishes the metadata sidecar. A regular file squatting on the
// directory path is removed.
//
// Invalid layouts return [ring.ErrInvalidInput]; bad names return
// [ErrInvalidName].
func Create(opts Options) (*Region, error) {
	opts = opts.withDefaults()

	layout, err := ring.NewLayout(opts.BlockSize, opts.BlockCount)
	if err != nil {
		return nil, err
	}

	err = validateName(opts.Name)
	if err != nil {
		return nil, err
	}

	err = ensureDir(opts.FS, opts.Dir, opts.Logger)
	if err != nil {
		return nil, err
	}

	path := RegionPath(opts.Dir, opts.Name)

	lock, err := acquireWriterLock(opts.FS, lockPath(path), opts)
	if err != nil {
		return nil, err
	}

	r, err := createLocked(opts, layout, path, lock)
	if err != nil {
		closeErr := lock.Close()
		if closeErr != nil {
			closeErr = fmt.Errorf("release writer lock: %w", closeErr)
		}

		return nil, errors.Join(err, closeErr)
	}

	opts.Logger.Debug("region created",
		"path", path,
		"block_size", layout.BlockSize(),
		"block_count", layout.BlockCount(),
		"writer_id", r.meta.WriterID,
	)

	return r, nil
}

func ensureDir(fsys fs.FS, dir string, logger *slog.Logger) error {
	info, err := fsys.Stat(dir)
	if err == nil && !info.IsDir() {
		logger.Debug("removing file in place of region dir", "path", dir)

		err = fsys.Remove(dir)
		if err != nil {
			return fmt.Errorf("remove file at region dir: %w", err)
		}
	}

	err = fsys.MkdirAll(dir, dirPerm)
	if err != nil {
		return fmt.Errorf("create region dir: %w", err)
	}

	return nil
}

func acquireWriterLock(fsys fs.FS, path string, opts Options) (*fs.Lock, error) {
	locker := fs.NewLocker(fsys)

	var (
		lock *fs.Lock
		err  error
	)

	switch {
	case opts.LockTimeout < 0:
		lock, err = locker.Lock(path)
	case opts.LockTimeout > 0:
		lock, err = locker.LockWithTimeout(path, opts.LockTimeout)
	default:
		lock, err = locker.TryLock(path)
	}

	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return nil, fmt.Errorf("region %q has a live writer: %w", opts.Name, ErrBusy)
		}

		return nil, fmt.Errorf("acquire writer lock: %w", err)
	}

	return lock, nil
}

func createLocked(opts Options, layout ring.Layout, path string, lock *fs.Lock) (*Region, error) {
	for _, stale := range []string{path, metaPath(path)} {
		err := opts.FS.Remove(stale)
		if err == nil {
			opts.Logger.Debug("removed stale file", "path", stale)

			continue
		}

		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale region: %w", err)
		}
	}

	f, err := opts.FS.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, regionPerm)
	if err != nil {
		return nil, fmt.Errorf("create region file: %w", err)
	}

	size := layout.RegionSize()

	data, ident, err := mapFile(f, size, true)
	if err != nil {
		_ = opts.FS.Remove(path)

		return nil, err
	}

	meta, err := newMeta(opts.Name, layout.BlockSize(), layout.BlockCount(), size)
	if err == nil {
		err = writeMeta(opts.FS, metaPath(path), meta)
	}

	if err != nil {
		_ = unix.Munmap(data)
		_ = opts.FS.Remove(path)

		return nil, err
	}

	return &Region{
		path:     path,
		layout:   layout,
		data:     data,
		writable: true,
		lock:     lock,
		meta:     meta,
		ident:    ident,
		fs:       opts.FS,
		logger:   opts.Logger,
	}, nil
}

// Attach maps an existing region read-only.
//
// A missing region file returns an error wrapping both
// [ring.ErrSizeMismatch] and [ErrNotExist]; a file whose size is not
// (blockSize+2)*blockCount wraps [ring.ErrSizeMismatch]. Either way the
// writer has not created this region with the given layout.
//
// The sidecar is read on a best-effort basis; see [Region.Meta].
func Attach(opts Options) (*Region, error) {
	opts = opts.withDefaults()

	layout, err := ring.NewLayout(opts.BlockSize, opts.BlockCount)
	if err != nil {
		return nil, err
	}

	err = validateName(opts.Name)
	if err != nil {
		return nil, err
	}

	path := RegionPath(opts.Dir, opts.Name)

	f, err := opts.FS.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("region %s not ready, writer has not created it: %w: %w",
				path, ring.ErrSizeMismatch, ErrNotExist)
		}

		return nil, fmt.Errorf("open region file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("stat region file: %w", err)
	}

	if info.Size() != int64(layout.RegionSize()) {
		_ = f.Close()

		return nil, fmt.Errorf("region %s is %d bytes, want (%d+2)*%d = %d, writer has not created it with this layout: %w",
			path, info.Size(), layout.BlockSize(), layout.BlockCount(), layout.RegionSize(), ring.ErrSizeMismatch)
	}

	data, ident, err := mapFile(f, layout.RegionSize(), false)
	if err != nil {
		return nil, err
	}

	meta, err := readMeta(opts.FS, metaPath(path))
	if err != nil && !errors.Is(err, ErrNotExist) {
		opts.Logger.Debug("ignoring unreadable metadata", "path", metaPath(path), "error", err)
	}

	opts.Logger.Debug("region attached", "path", path, "writer_id", meta.WriterID)

	return &Region{
		path:   path,
		layout: layout,
		data:   data,
		meta:   meta,
		ident:  ident,
		fs:     opts.FS,
		logger: opts.Logger,
	}, nil
}

// mapFile maps the first size bytes of f shared and closes f. The mapping
// outlives the descriptor.
func mapFile(f fs.File, size int, writable bool) ([]byte, fileIdentity, error) {
	fail := func(err error) ([]byte, fileIdentity, error) {
		return nil, fileIdentity{}, errors.Join(err, f.Close())
	}

	if writable {
		// Extending fills with zeros, which is the initial slot state.
		err := f.Truncate(int64(size))
		if err != nil {
			return fail(fmt.Errorf("size region file: %w", err))
		}
	}

	info, err := f.Stat()
	if err != nil {
		return fail(fmt.Errorf("stat region file: %w", err))
	}

	ident, err := identityOf(info)
	if err != nil {
		return fail(err)
	}

	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, prot, unix.MAP_SHARED)
	if err != nil {
		return fail(fmt.Errorf("mmap region: %w", err))
	}

	err = f.Close()
	if err != nil {
		return nil, fileIdentity{}, errors.Join(fmt.Errorf("close region file: %w", err), unix.Munmap(data))
	}

	return data, ident, nil
}

func identityOf(info os.FileInfo) (fileIdentity, error) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return fileIdentity{}, fmt.Errorf("stat Sys=%T, want *syscall.Stat_t", info.Sys())
	}

	return fileIdentity{dev: uint64(st.Dev), ino: st.Ino}, nil
}

// Bytes returns the mapped region. For attached regions the mapping is
// read-only and writing to it faults.
func (r *Region) Bytes() []byte { return r.data }

// Layout returns the region's ring layout.
func (r *Region) Layout() ring.Layout { return r.layout }

// Path returns the region file path.
func (r *Region) Path() string { return r.path }

// Writable reports whether the region was created by this process.
func (r *Region) Writable() bool { return r.writable }

// Meta returns the region metadata. For attached regions whose sidecar was
// missing or unreadable it is the zero Meta.
func (r *Region) Meta() Meta { return r.meta }

// Sync flushes the mapping with msync(MS_SYNC). On tmpfs this only orders
// the pages; it matters when Dir points at a disk-backed filesystem.
func (r *Region) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	if !r.writable {
		return ErrReadOnly
	}

	err := unix.Msync(r.data, unix.MS_SYNC)
	if err != nil {
		return fmt.Errorf("msync: %w", err)
	}

	return nil
}

// Replaced reports whether the file at the region path is no longer the one
// this Region mapped: it was removed, or a new writer created a new one.
func (r *Region) Replaced() (bool, error) {
	info, err := r.fs.Stat(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}

		return false, fmt.Errorf("stat region file: %w", err)
	}

	ident, err := identityOf(info)
	if err != nil {
		return false, err
	}

	return ident != r.ident, nil
}

// Close unmaps the region and, for writers, releases the writer lock. The
// region files stay in place; use [Region.Destroy] to remove them.
//
// Close is idempotent.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closeLocked()
}

func (r *Region) closeLocked() error {
	if r.closed {
		return nil
	}

	r.closed = true

	var unmapErr, unlockErr error

	err := unix.Munmap(r.data)
	if err != nil {
		unmapErr = fmt.Errorf("munmap: %w", err)
	}

	r.data = nil

	if r.lock != nil {
		err = r.lock.Close()
		if err != nil {
			unlockErr = fmt.Errorf("release writer lock: %w", err)
		}
	}

	r.logger.Debug("region closed", "path", r.path)

	return errors.Join(unmapErr, unlockErr)
}

// Destroy removes the region file and its sidecar, then closes the region.
// Only the writer may destroy a region. The lock file is left in place so
// its inode stays stable for future writers.
func (r *Region) Destroy() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	if !r.writable {
		return ErrReadOnly
	}

	var errs []error

	for _, p := range []string{r.path, metaPath(r.path)} {
		err := r.fs.Remove(p)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}

	errs = append(errs, r.closeLocked())

	r.logger.Debug("region destroyed", "path", r.path)

	return errors.Join(errs...)
}
