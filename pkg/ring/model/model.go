// Package model provides a deliberately simple, in-memory model of the
// ring's observable single-threaded behavior.
//
// The model is intentionally easy to audit: it keeps messages as strings and
// tracks the writer's busy announcements as flags instead of bytes. Tests
// drive the real ring and the model with the same operations and compare
// their results.
package model

import (
	"strings"

	"github.com/calvinalkan/greenbox/pkg/ring"
)

// Slot mirrors what a reader can observe about one slot.
type Slot struct {
	Message string
	Written bool
	Busy    bool
}

// RingState is the shared region: the slots and the writer cursor.
type RingState struct {
	BlockSize    int
	BlockCount   int
	Slots        []Slot
	WriterCursor int
	HasWriter    bool
}

// ReaderModel is one reader's cursor over a RingState.
type ReaderModel struct {
	Ring   *RingState
	Cursor int
}

// NewRing validates parameters like [ring.NewLayout] and returns an empty,
// zero-initialized ring without a writer.
func NewRing(blockSize, blockCount int) (*RingState, error) {
	if blockSize < 1 || blockCount < 2 {
		return nil, ring.ErrInvalidInput
	}

	return &RingState{
		BlockSize:  blockSize,
		BlockCount: blockCount,
		Slots:      make([]Slot, blockCount),
	}, nil
}

// StartWriter models [ring.NewWriter]: the cursor resets to 0 and slot 0 is
// announced busy.
func (m *RingState) StartWriter() {
	m.HasWriter = true
	m.WriterCursor = 0
	m.Slots[0].Busy = true
}

// Write models [ring.Writer.Write].
func (m *RingState) Write(msg string) error {
	if len(msg) > m.BlockSize-1 || strings.IndexByte(msg, ring.Terminator) >= 0 {
		return ring.ErrCapacity
	}

	cur := m.WriterCursor
	next := (cur + 1) % m.BlockCount

	m.Slots[cur].Message = msg
	m.Slots[cur].Written = true
	m.Slots[next].Busy = true
	m.Slots[cur].Busy = false
	m.WriterCursor = next

	return nil
}

// NewReader returns a reader positioned at slot 0.
func (m *RingState) NewReader() *ReaderModel {
	return &ReaderModel{Ring: m}
}

// Read models [ring.Reader.TryRead] when no write overlaps the read.
func (r *ReaderModel) Read() (string, ring.Status) {
	slot := r.Ring.Slots[r.Cursor]

	if slot.Busy {
		return "", ring.StatusBusy
	}

	if !slot.Written {
		return "", ring.StatusEmpty
	}

	r.Cursor = (r.Cursor + 1) % r.Ring.BlockCount

	return slot.Message, ring.StatusOK
}

// Clone makes a deep copy so tests can fork the exact same state.
func (m *RingState) Clone() *RingState {
	if m == nil {
		return nil
	}

	clone := *m
	clone.Slots = append([]Slot(nil), m.Slots...)

	return &clone
}
