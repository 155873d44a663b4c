package greenbox

import (
	"errors"
	"log/slog"
	"time"

	"github.com/calvinalkan/greenbox/pkg/shmregion"
)

// Polling defaults for [Reader.Next].
const (
	DefaultPollInterval    = time.Millisecond
	DefaultMaxPollInterval = 50 * time.Millisecond
)

var (
	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("greenbox: closed")

	// ErrReplaced is returned by [Reader.Next] when the region it attached
	// to was removed or recreated by a new writer. Attach again to follow
	// the new writer.
	ErrReplaced = errors.New("greenbox: region replaced")
)

// Options configures [Create] and [Attach]. Writer and readers of one box
// must agree on Dir, Name, BlockSize and BlockCount.
type Options struct {
	// Dir holds region files. Empty means [shmregion.DefaultDir].
	Dir string

	// Name identifies the box.
	Name string

	// BlockSize is the per-slot payload area, terminator included; the
	// longest message is BlockSize-1 bytes.
	BlockSize int

	// BlockCount is the number of slots (>= 2).
	BlockCount int

	// LockTimeout bounds how long [Create] waits for a previous writer to
	// go away. Zero fails at once with [shmregion.ErrBusy]. Negative waits
	// without bound.
	LockTimeout time.Duration

	// PollInterval is the first sleep of [Reader.Next] when nothing is
	// available; sleeps double up to MaxPollInterval.
	PollInterval    time.Duration
	MaxPollInterval time.Duration

	// Logger receives debug events. Nil discards them.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}

	if o.MaxPollInterval <= 0 {
		o.MaxPollInterval = DefaultMaxPollInterval
	}

	if o.MaxPollInterval < o.PollInterval {
		o.MaxPollInterval = o.PollInterval
	}

	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	return o
}

func (o Options) regionOptions() shmregion.Options {
	return shmregion.Options{
		Dir:         o.Dir,
		Name:        o.Name,
		BlockSize:   o.BlockSize,
		BlockCount:  o.BlockCount,
		LockTimeout: o.LockTimeout,
		Logger:      o.Logger,
	}
}
