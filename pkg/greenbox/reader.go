package greenbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvinalkan/greenbox/pkg/ring"
	"github.com/calvinalkan/greenbox/pkg/shmregion"
)

// Stats counts the outcomes of a Reader's read attempts.
type Stats struct {
	Delivered uint64 `json:"delivered"`
	Busy      uint64 `json:"busy"`
	Torn      uint64 `json:"torn"`
	Empty     uint64 `json:"empty"`
}

// Reader consumes a box. Readers never write to the region and never affect
// the writer or each other.
type Reader struct {
	region *shmregion.Region
	ring   *ring.Reader
	opts   Options
	logger *slog.Logger
	stats  Stats
	closed bool
}

// Attach maps the box named by opts for reading. The cursor starts at
// slot 0.
//
// Returns an error wrapping [ring.ErrSizeMismatch] if the writer has not
// created the box with this layout.
func Attach(opts Options) (*Reader, error) {
	opts = opts.withDefaults()

	region, err := shmregion.Attach(opts.regionOptions())
	if err != nil {
		return nil, err
	}

	rr, err := ring.Attach(region.Bytes(), opts.BlockSize, opts.BlockCount)
	if err != nil {
		_ = region.Close()

		return nil, err
	}

	return &Reader{region: region, ring: rr, opts: opts, logger: opts.Logger}, nil
}

// Get returns the next message without blocking. ok is false if nothing is
// available right now or the Reader is closed.
func (r *Reader) Get() ([]byte, bool) {
	if r.closed {
		return nil, false
	}

	msg, status := r.ring.TryRead()
	r.count(status)

	return msg, status == ring.StatusOK
}

func (r *Reader) count(status ring.Status) {
	switch status {
	case ring.StatusOK:
		r.stats.Delivered++
	case ring.StatusBusy:
		r.stats.Busy++
	case ring.StatusTorn:
		r.stats.Torn++
		r.logger.Debug("torn read", "path", r.region.Path(), "slot", r.ring.Cursor())
	case ring.StatusEmpty:
		r.stats.Empty++
	}
}

// Next returns the next message, polling until one is available or ctx is
// done. Sleeps between attempts start at PollInterval and double up to
// MaxPollInterval.
//
// Each time the backoff is at its cap, Next checks whether the region was
// replaced and returns [ErrReplaced] if so.
func (r *Reader) Next(ctx context.Context) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}

	backoff := r.opts.PollInterval

	var timer *time.Timer

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		msg, ok := r.Get()
		if ok {
			return msg, nil
		}

		if backoff >= r.opts.MaxPollInterval {
			replaced, err := r.region.Replaced()
			if err != nil {
				return nil, fmt.Errorf("check region: %w", err)
			}

			if replaced {
				return nil, fmt.Errorf("%s: %w", r.region.Path(), ErrReplaced)
			}
		}

		if timer == nil {
			timer = time.NewTimer(backoff)
		} else {
			timer.Reset(backoff)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff = min(backoff*2, r.opts.MaxPollInterval)
	}
}

// Stats returns counters for this Reader's read attempts.
func (r *Reader) Stats() Stats { return r.stats }

// Layout returns the box layout.
func (r *Reader) Layout() ring.Layout { return r.ring.Layout() }

// Cursor returns the slot the next read looks at.
func (r *Reader) Cursor() int { return r.ring.Cursor() }

// Meta returns the writer's metadata as read at attach time.
func (r *Reader) Meta() shmregion.Meta { return r.region.Meta() }

// Close detaches from the box. The writer is unaffected. Close is
// idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true

	return r.region.Close()
}
