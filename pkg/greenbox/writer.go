package greenbox

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/calvinalkan/greenbox/pkg/ring"
	"github.com/calvinalkan/greenbox/pkg/shmregion"
)

// Writer owns a box. Only one Writer per box may exist across all
// processes.
type Writer struct {
	region *shmregion.Region
	ring   *ring.Writer
	logger *slog.Logger
	puts   uint64
	closed bool
}

// Create provisions the box named by opts and returns its writer.
//
// Possible errors:
//   - [ring.ErrInvalidInput]: bad BlockSize or BlockCount
//   - [shmregion.ErrInvalidName]: bad Name
//   - [shmregion.ErrBusy]: another writer holds the box
//   - filesystem and mmap errors
func Create(opts Options) (*Writer, error) {
	opts = opts.withDefaults()

	region, err := shmregion.Create(opts.regionOptions())
	if err != nil {
		return nil, err
	}

	rw, err := ring.NewWriter(region.Bytes(), opts.BlockSize, opts.BlockCount)
	if err != nil {
		return nil, errors.Join(err, region.Destroy())
	}

	return &Writer{region: region, ring: rw, logger: opts.Logger}, nil
}

// Put stores msg in the next slot. It never blocks.
//
// Returns an error wrapping [ring.ErrCapacity] if msg is longer than
// BlockSize-1 or contains '\n', and [ErrClosed] after [Writer.Close].
func (w *Writer) Put(msg []byte) error {
	if w.closed {
		return ErrClosed
	}

	err := w.ring.Write(msg)
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}

	w.puts++

	return nil
}

// PutString is [Writer.Put] for strings.
func (w *Writer) PutString(msg string) error {
	return w.Put([]byte(msg))
}

// Layout returns the box layout.
func (w *Writer) Layout() ring.Layout { return w.ring.Layout() }

// Path returns the region file path.
func (w *Writer) Path() string { return w.region.Path() }

// Meta returns the metadata published for this writer.
func (w *Writer) Meta() shmregion.Meta { return w.region.Meta() }

// Puts returns the number of successful puts.
func (w *Writer) Puts() uint64 { return w.puts }

// Close destroys the box: the region file and its sidecar are removed and
// the writer lock is released. Attached readers keep their mapping, but will
// see nothing new. Close is idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	w.closed = true

	w.logger.Debug("closing writer", "path", w.region.Path(), "puts", w.puts)

	return w.region.Destroy()
}
