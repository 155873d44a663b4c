package ring

import "fmt"

// Slot format constants.
const (
	// Control bytes in front of every payload.
	slotHeaderSize = 2

	offState = 0 // byte
	offPass  = 1 // byte
	offData  = 2 // payload, then terminator

	// stateWriting marks a slot the writer is mutating or about to mutate.
	stateWriting byte = 's'
	// stateStable marks a slot the writer is not touching.
	stateStable byte = 0x00

	// passInitial is the pass value the writer puts on slot 0 at startup.
	passInitial byte = 0x01

	// Terminator ends a payload inside its slot.
	Terminator byte = '\n'
)

// Hardcoded implementation limits.
//
// They keep offset arithmetic away from int overflow and bound the mapping
// sizes we claim to support. Violations return ErrInvalidInput.
const (
	// Maximum allowed block size (bytes).
	maxBlockSize = 64 << 20 // 64 MiB

	// Maximum allowed number of slots.
	maxBlockCount = 100_000_000

	// Maximum allowed region size (bytes).
	maxRegionSize = uint64(1) << 40 // 1 TiB
)

// maxInt is the largest value of int on this platform.
const maxInt = int(^uint(0) >> 1)

// Layout describes how a region is divided into slots.
//
// Writer and readers of the same region must use identical layouts or the
// protocol silently desynchronizes; the region size check in [NewWriter] and
// [Attach] catches most mismatches.
type Layout struct {
	blockSize  int
	blockCount int
}

// NewLayout validates blockSize and blockCount and returns the layout.
//
// blockSize counts the payload bytes plus one terminator byte, so the
// longest message is blockSize-1 bytes.
func NewLayout(blockSize, blockCount int) (Layout, error) {
	if blockSize < 1 {
		return Layout{}, fmt.Errorf("block_size must be >= 1, got %d: %w", blockSize, ErrInvalidInput)
	}

	if blockSize > maxBlockSize {
		return Layout{}, fmt.Errorf("block_size %d exceeds max %d: %w", blockSize, maxBlockSize, ErrInvalidInput)
	}

	// With a single slot, announcing the next slot would be undone by
	// releasing the current one, and a write in progress would look stable.
	if blockCount < 2 {
		return Layout{}, fmt.Errorf("block_count must be >= 2, got %d: %w", blockCount, ErrInvalidInput)
	}

	if blockCount > maxBlockCount {
		return Layout{}, fmt.Errorf("block_count %d exceeds max %d: %w", blockCount, maxBlockCount, ErrInvalidInput)
	}

	// Compute in uint64 to avoid int wraparound on 32-bit platforms.
	size := uint64(blockSize+slotHeaderSize) * uint64(blockCount)
	if size > maxRegionSize || size > uint64(maxInt) {
		return Layout{}, fmt.Errorf("region size %d exceeds limit: %w", size, ErrInvalidInput)
	}

	return Layout{blockSize: blockSize, blockCount: blockCount}, nil
}

// BlockSize returns the per-slot payload area size, terminator included.
func (l Layout) BlockSize() int { return l.blockSize }

// BlockCount returns the number of slots.
func (l Layout) BlockCount() int { return l.blockCount }

// SlotSize returns the size of one slot in bytes (blockSize+2).
func (l Layout) SlotSize() int { return l.blockSize + slotHeaderSize }

// RegionSize returns the exact region length, (blockSize+2)*blockCount.
func (l Layout) RegionSize() int { return l.SlotSize() * l.blockCount }

// MaxMessage returns the longest message a slot accepts (blockSize-1).
func (l Layout) MaxMessage() int { return l.blockSize - 1 }

// SlotOffset returns the byte offset of slot i, (blockSize+2)*i.
//
// i must be in [0, BlockCount()).
func (l Layout) SlotOffset(i int) int { return l.SlotSize() * i }

// next returns the slot after i, wrapping at BlockCount().
func (l Layout) next(i int) int { return (i + 1) % l.blockCount }

func (l Layout) stateOffset(i int) int { return l.SlotOffset(i) + offState }

func (l Layout) passOffset(i int) int { return l.SlotOffset(i) + offPass }

func (l Layout) dataOffset(i int) int { return l.SlotOffset(i) + offData }

// checkRegion verifies that buf is exactly as long as the layout requires.
func (l Layout) checkRegion(buf []byte) error {
	if len(buf) != l.RegionSize() {
		return fmt.Errorf("region is %d bytes, want (%d+2)*%d = %d: %w",
			len(buf), l.blockSize, l.blockCount, l.RegionSize(), ErrSizeMismatch)
	}

	return nil
}

// ValidateMessage reports whether msg fits a slot of this layout.
// Returns an error wrapping ErrCapacity if it does not.
func (l Layout) ValidateMessage(msg []byte) error {
	if len(msg) > l.MaxMessage() {
		return fmt.Errorf("message is %d bytes, max %d: %w", len(msg), l.MaxMessage(), ErrCapacity)
	}

	for i, b := range msg {
		if b == Terminator {
			return fmt.Errorf("message contains terminator byte at %d: %w", i, ErrCapacity)
		}
	}

	return nil
}
