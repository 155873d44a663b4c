package ring

// writeStep identifies a point inside [Writer.Write]; used by tests to
// interleave reads with a write in progress.
type writeStep int

const (
	stepPayloadWritten writeStep = iota + 1
	stepPassToggled
	stepNextAnnounced
	stepCurrentReleased
)

// Writer is the single producer of a ring region.
//
// A Writer owns the write cursor. It is NOT safe for concurrent use, and at
// most one Writer may exist per region (across all processes).
type Writer struct {
	layout Layout
	mem    region
	cursor int

	// stepHook, if set, runs after each step of Write. Tests only.
	stepHook func(writeStep)
}

// NewWriter takes ownership of buf as the writer of a ring with the given
// layout parameters.
//
// buf must be exactly (blockSize+2)*blockCount bytes; otherwise NewWriter
// returns an error wrapping [ErrSizeMismatch]. Invalid parameters return
// [ErrInvalidInput].
//
// NewWriter marks slot 0 as being written (state 's', pass 0x01) before any
// message is written, so readers never consume the slot it is preparing.
func NewWriter(buf []byte, blockSize, blockCount int) (*Writer, error) {
	layout, err := NewLayout(blockSize, blockCount)
	if err != nil {
		return nil, err
	}

	err = layout.checkRegion(buf)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		layout: layout,
		mem:    region{buf: buf},
	}

	w.mem.storeByte(layout.stateOffset(0), stateWriting)
	w.mem.storeByte(layout.passOffset(0), passInitial)

	return w, nil
}

// Layout returns the ring layout.
func (w *Writer) Layout() Layout { return w.layout }

// Cursor returns the slot the next Write will fill.
func (w *Writer) Cursor() int { return w.cursor }

// Write stores msg in the slot at the cursor and advances the cursor.
//
// Write never blocks and never waits for readers: whatever the slot held
// before is overwritten, whether or not a reader consumed it.
//
// Returns an error wrapping [ErrCapacity] if msg is longer than
// blockSize-1 bytes or contains the terminator byte. Rejected messages leave
// the region untouched.
func (w *Writer) Write(msg []byte) error {
	err := w.layout.ValidateMessage(msg)
	if err != nil {
		return err
	}

	cur := w.cursor
	next := w.layout.next(cur)

	// Payload, then terminator. The slot was announced as busy by the
	// previous Write (or NewWriter), so readers reject it meanwhile.
	data := w.layout.dataOffset(cur)
	w.mem.storeBytes(data, msg)
	w.mem.storeByte(data+len(msg), Terminator)
	w.step(stepPayloadWritten)

	// The order below is load-bearing: finish (pass), announce the next slot,
	// then release the current one.
	pass := w.mem.loadByte(w.layout.passOffset(cur))
	w.mem.storeByte(w.layout.passOffset(cur), pass^1)
	w.step(stepPassToggled)

	w.mem.storeByte(w.layout.stateOffset(next), stateWriting)
	w.step(stepNextAnnounced)

	w.mem.storeByte(w.layout.stateOffset(cur), stateStable)
	w.step(stepCurrentReleased)

	w.cursor = next

	return nil
}

func (w *Writer) step(s writeStep) {
	if w.stepHook != nil {
		w.stepHook(s)
	}
}
