package ring

// Status describes the outcome of [Reader.TryRead].
type Status int

const (
	// StatusOK means a complete, untorn message was returned.
	StatusOK Status = iota

	// StatusBusy means the writer was mutating the slot (state 's').
	// This is also what a reader sees once it has caught up with the writer.
	StatusBusy

	// StatusTorn means the writer completed a write to the slot while the
	// payload was being read.
	StatusTorn

	// StatusEmpty means the slot holds no terminated payload, which is
	// the case for slots the writer has never filled.
	StatusEmpty
)

// String returns a lower-case name for s.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBusy:
		return "busy"
	case StatusTorn:
		return "torn"
	case StatusEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Reader consumes messages from a ring region.
//
// Each Reader owns an independent cursor starting at slot 0 and never
// writes to the region. A Reader is NOT safe for concurrent use.
type Reader struct {
	layout Layout
	mem    region
	cursor int

	// afterPayload, if set, runs between the payload read and the state
	// check. Tests only.
	afterPayload func()
}

// Attach returns a Reader over buf.
//
// buf must be exactly (blockSize+2)*blockCount bytes; otherwise Attach
// returns an error wrapping [ErrSizeMismatch], which usually means the writer
// has not created this region with matching parameters.
func Attach(buf []byte, blockSize, blockCount int) (*Reader, error) {
	layout, err := NewLayout(blockSize, blockCount)
	if err != nil {
		return nil, err
	}

	err = layout.checkRegion(buf)
	if err != nil {
		return nil, err
	}

	return &Reader{layout: layout, mem: region{buf: buf}}, nil
}

// Layout returns the ring layout.
func (r *Reader) Layout() Layout { return r.layout }

// Cursor returns the slot the next read will look at.
func (r *Reader) Cursor() int { return r.cursor }

// Read returns the message at the cursor and advances it.
//
// ok is false when nothing is available: the slot is being written, was
// rewritten during the read, or was never written. The cursor does not move
// in that case, so calling Read again retries the same slot. Read never
// blocks; callers that want to wait must poll.
func (r *Reader) Read() (msg []byte, ok bool) {
	msg, status := r.TryRead()

	return msg, status == StatusOK
}

// TryRead is like [Reader.Read] but reports why nothing was available.
// msg is nil unless the status is [StatusOK].
func (r *Reader) TryRead() ([]byte, Status) {
	cur := r.cursor

	// Order: pass, payload, state, pass. Any overlap with a Write on this
	// slot fails the state check or the pass comparison.
	pass1 := r.mem.loadByte(r.layout.passOffset(cur))

	data := r.layout.dataOffset(cur)
	msg, terminated := r.mem.loadUntil(data, data+r.layout.blockSize, Terminator)

	if r.afterPayload != nil {
		r.afterPayload()
	}

	if r.mem.loadByte(r.layout.stateOffset(cur)) == stateWriting {
		return nil, StatusBusy
	}

	if r.mem.loadByte(r.layout.passOffset(cur)) != pass1 {
		return nil, StatusTorn
	}

	if !terminated {
		return nil, StatusEmpty
	}

	r.cursor = r.layout.next(cur)

	return msg, StatusOK
}
