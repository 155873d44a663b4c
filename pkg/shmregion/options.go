package shmregion

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/calvinalkan/greenbox/pkg/fs"
)

// DefaultDir is where regions live unless [Options.Dir] says otherwise.
const DefaultDir = "/dev/shm/greenbox"

// File name suffixes.
const (
	regionExt = ".gb"
	lockExt   = ".gb.lock"
	metaExt   = ".gb.json"
)

const (
	dirPerm    = 0o755
	regionPerm = 0o644
)

// Options configures [Create] and [Attach].
type Options struct {
	// Dir holds the region files. Empty means [DefaultDir].
	Dir string

	// Name identifies the region. It must be non-empty and must not contain
	// a path separator.
	Name string

	// BlockSize and BlockCount define the ring layout (see [ring.NewLayout]).
	BlockSize  int
	BlockCount int

	// LockTimeout bounds how long [Create] waits for the writer lock.
	// Zero tries once. Negative waits until the lock is free.
	LockTimeout time.Duration

	// FS is the filesystem seam. Nil means [fs.NewReal].
	FS fs.FS

	// Logger receives debug events. Nil discards them.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Dir == "" {
		o.Dir = DefaultDir
	}

	if o.FS == nil {
		o.FS = fs.NewReal()
	}

	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	return o
}

// RegionPath returns <dir>/<name>.gb. An empty dir means [DefaultDir].
func RegionPath(dir, name string) string {
	if dir == "" {
		dir = DefaultDir
	}

	return filepath.Join(dir, name+regionExt)
}

func lockPath(regionPath string) string {
	return strings.TrimSuffix(regionPath, regionExt) + lockExt
}

func metaPath(regionPath string) string {
	return strings.TrimSuffix(regionPath, regionExt) + metaExt
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is empty: %w", ErrInvalidName)
	}

	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return fmt.Errorf("name %q contains a path separator: %w", name, ErrInvalidName)
	}

	if name == "." || name == ".." {
		return fmt.Errorf("name %q is reserved: %w", name, ErrInvalidName)
	}

	return nil
}
