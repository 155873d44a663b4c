package fs

import (
	"errors"
	iofs "io/fs"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
type ChaosConfig struct {
	OpenFailRate    float64 // Fail OpenFile
	ReadFailRate    float64 // Fail ReadFile and File.Read
	WriteFailRate   float64 // Fail WriteFileAtomic, File.Write and File.Truncate
	StatFailRate    float64 // Fail Stat/Exists
	ReadDirFailRate float64 // Fail ReadDir
	MkdirFailRate   float64 // Fail MkdirAll
	RemoveFailRate  float64 // Fail Remove
}

// DefaultChaosConfig returns a config with reasonable fault rates for testing.
func DefaultChaosConfig() ChaosConfig {
	return ChaosConfig{
		OpenFailRate:    0.02,
		ReadFailRate:    0.02,
		WriteFailRate:   0.03,
		StatFailRate:    0.01,
		ReadDirFailRate: 0.02,
		MkdirFailRate:   0.01,
		RemoveFailRate:  0.02,
	}
}

// ChaosMode controls how Chaos behaves.
type ChaosMode uint8

const (
	// ChaosModePassthrough behaves like the underlying FS, ignoring fault
	// rates and sticky faults.
	ChaosModePassthrough ChaosMode = iota

	// ChaosModeInject enables fault-rate injection and sticky faults.
	ChaosModeInject

	// ChaosModeStickyOnly applies only sticky faults set with [Chaos.FailPath].
	ChaosModeStickyOnly
)

// Chaos operation names, as used by [Chaos.FailPath].
const (
	OpOpen    = "open"
	OpRead    = "read"
	OpWrite   = "write"
	OpStat    = "stat"
	OpReadDir = "readdir"
	OpMkdir   = "mkdir"
	OpRemove  = "remove"
)

// ChaosStats counts injected faults per operation.
type ChaosStats struct {
	OpenFails    int64
	ReadFails    int64
	WriteFails   int64
	StatFails    int64
	ReadDirFails int64
	MkdirFails   int64
	RemoveFails  int64
}

// Chaos wraps an [FS] and injects failures for testing.
//
// Injected errors are real OS errors (a syscall.Errno in an *os.PathError),
// so errors.Is and os.IsNotExist behave as with real failures. Use
// [IsInjected] to tell them apart from genuine ones.
//
// Faults are either random, driven by [ChaosConfig] rates and a seed, or
// sticky: [Chaos.FailPath] makes one operation on one path fail until
// [Chaos.ResetPath].
type Chaos struct {
	fs     FS
	config ChaosConfig
	mode   atomic.Uint32

	mu     sync.Mutex
	rng    *rand.Rand
	sticky map[stickyKey]syscall.Errno

	counts [7]atomic.Int64
}

type stickyKey struct {
	op   string
	path string
}

// NewChaos creates a new Chaos filesystem wrapping fs, starting in
// [ChaosModeInject]. The seed controls random fault injection for
// reproducibility.
func NewChaos(fs FS, seed int64, config ChaosConfig) *Chaos {
	c := &Chaos{
		fs:     fs,
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
		sticky: make(map[stickyKey]syscall.Errno),
	}
	c.mode.Store(uint32(ChaosModeInject))

	return c
}

// SetMode updates Chaos behavior. Safe to call concurrently with filesystem
// operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// FailPath makes op on path fail with errno until [Chaos.ResetPath].
func (c *Chaos) FailPath(op, path string, errno syscall.Errno) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sticky[stickyKey{op, path}] = errno
}

// ResetPath clears all sticky faults on path.
func (c *Chaos) ResetPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.sticky {
		if k.path == path {
			delete(c.sticky, k)
		}
	}
}

// Stats returns the number of faults injected so far.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:    c.counts[0].Load(),
		ReadFails:    c.counts[1].Load(),
		WriteFails:   c.counts[2].Load(),
		StatFails:    c.counts[3].Load(),
		ReadDirFails: c.counts[4].Load(),
		MkdirFails:   c.counts[5].Load(),
		RemoveFails:  c.counts[6].Load(),
	}
}

// TotalFaults returns the total number of injected faults.
func (c *Chaos) TotalFaults() int64 {
	var n int64
	for i := range c.counts {
		n += c.counts[i].Load()
	}

	return n
}

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	err := c.fault(OpOpen, path, []syscall.Errno{syscall.EACCES, syscall.EMFILE, syscall.EIO})
	if err != nil {
		return nil, err
	}

	f, err := c.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, c: c, path: path}, nil
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	err := c.fault(OpRead, path, []syscall.Errno{syscall.EIO, syscall.EACCES})
	if err != nil {
		return nil, err
	}

	return c.fs.ReadFile(path)
}

func (c *Chaos) WriteFileAtomic(path string, data []byte) error {
	err := c.fault(OpWrite, path, []syscall.Errno{syscall.ENOSPC, syscall.EIO, syscall.EROFS})
	if err != nil {
		return err
	}

	return c.fs.WriteFileAtomic(path, data)
}

func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	err := c.fault(OpReadDir, path, []syscall.Errno{syscall.EIO, syscall.EACCES})
	if err != nil {
		return nil, err
	}

	return c.fs.ReadDir(path)
}

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	err := c.fault(OpMkdir, path, []syscall.Errno{syscall.EACCES, syscall.ENOSPC})
	if err != nil {
		return err
	}

	return c.fs.MkdirAll(path, perm)
}

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	err := c.fault(OpStat, path, []syscall.Errno{syscall.EIO, syscall.EACCES})
	if err != nil {
		return nil, err
	}

	return c.fs.Stat(path)
}

func (c *Chaos) Exists(path string) (bool, error) {
	err := c.fault(OpStat, path, []syscall.Errno{syscall.EIO, syscall.EACCES})
	if err != nil {
		return false, err
	}

	return c.fs.Exists(path)
}

func (c *Chaos) Remove(path string) error {
	err := c.fault(OpRemove, path, []syscall.Errno{syscall.EACCES, syscall.EBUSY})
	if err != nil {
		return err
	}

	return c.fs.Remove(path)
}

// fault returns an injected error for op on path, or nil to proceed.
func (c *Chaos) fault(op, path string, errs []syscall.Errno) error {
	mode := ChaosMode(c.mode.Load())
	if mode == ChaosModePassthrough {
		return nil
	}

	c.mu.Lock()
	errno, ok := c.sticky[stickyKey{op, path}]

	if !ok && mode == ChaosModeInject && c.rng.Float64() < c.rate(op) {
		errno, ok = errs[c.rng.Intn(len(errs))], true
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}

	c.counts[opIndex(op)].Add(1)

	pathErr := &os.PathError{Op: op, Path: path, Err: errno}
	injectedPathErrors.Store(pathErr, struct{}{})

	return pathErr
}

func (c *Chaos) rate(op string) float64 {
	switch op {
	case OpOpen:
		return c.config.OpenFailRate
	case OpRead:
		return c.config.ReadFailRate
	case OpWrite:
		return c.config.WriteFailRate
	case OpStat:
		return c.config.StatFailRate
	case OpReadDir:
		return c.config.ReadDirFailRate
	case OpMkdir:
		return c.config.MkdirFailRate
	case OpRemove:
		return c.config.RemoveFailRate
	}

	return 0
}

func opIndex(op string) int {
	switch op {
	case OpOpen:
		return 0
	case OpRead:
		return 1
	case OpWrite:
		return 2
	case OpStat:
		return 3
	case OpReadDir:
		return 4
	case OpMkdir:
		return 5
	default:
		return 6
	}
}

// injectedPathErrors holds every *os.PathError produced by Chaos.
var injectedPathErrors sync.Map // map[*fs.PathError]struct{}

// IsInjected reports whether err (or any error it wraps) was injected by
// [Chaos].
func IsInjected(err error) bool {
	var pathErr *iofs.PathError
	if !errors.As(err, &pathErr) {
		return false
	}

	_, ok := injectedPathErrors.Load(pathErr)

	return ok
}

// chaosFile injects read and write faults into an open file. Fd, Stat and
// Sync pass through so locking and mapping see the real descriptor.
type chaosFile struct {
	File

	c    *Chaos
	path string
}

func (cf *chaosFile) Read(p []byte) (int, error) {
	err := cf.c.fault(OpRead, cf.path, []syscall.Errno{syscall.EIO})
	if err != nil {
		return 0, err
	}

	return cf.File.Read(p)
}

func (cf *chaosFile) Write(p []byte) (int, error) {
	err := cf.c.fault(OpWrite, cf.path, []syscall.Errno{syscall.ENOSPC, syscall.EIO})
	if err != nil {
		return 0, err
	}

	return cf.File.Write(p)
}

func (cf *chaosFile) Truncate(size int64) error {
	err := cf.c.fault(OpWrite, cf.path, []syscall.Errno{syscall.ENOSPC, syscall.EIO})
	if err != nil {
		return err
	}

	return cf.File.Truncate(size)
}

// Compile-time interface check.
var _ FS = (*Chaos)(nil)
