package ring

import (
	"sync/atomic"
	"unsafe"
)

// isLittleEndian is true if the CPU uses little-endian byte order.
// Computed once at package init time.
var isLittleEndian = func() bool {
	var x uint32 = 0x04030201

	return *(*byte)(unsafe.Pointer(&x)) == 0x01
}()

// byteShift[k] is the bit position of the k-th byte (in memory order) of a
// natively loaded uint32. Byte order only changes the shifts; the bytes in
// the region stay raw.
var byteShift = func() [4]uint {
	if isLittleEndian {
		return [4]uint{0, 8, 16, 24}
	}

	return [4]uint{24, 16, 8, 0}
}()

// region is a byte view whose every access is atomic.
//
// sync/atomic has no byte operations, so each byte is read or written through
// the 4-byte aligned word that contains it. Alignment is computed from the
// absolute address: mmap'd regions are page aligned, and heap allocations are
// rounded to at least 8 bytes, so the containing word is always backed by the
// same mapping or allocation even when it extends past len(buf).
//
// Only the writer stores. Stores merge into the word with a CAS loop so bytes
// belonging to a neighbouring slot are preserved. Since the writer is the sole
// mutator the CAS normally succeeds on the first attempt.
type region struct {
	buf []byte
}

// word returns the aligned word holding buf[off] and the index of that byte
// inside the word.
func (r region) word(off int) (*uint32, int) {
	p := unsafe.Pointer(&r.buf[off])
	k := int(uintptr(p) & 3)

	// SAFETY: see the region doc comment; the aligned word never leaves the
	// allocation or mapping backing buf.
	return (*uint32)(unsafe.Add(p, -k)), k
}

// loadByte atomically loads buf[off].
func (r region) loadByte(off int) byte {
	ptr, k := r.word(off)

	return byte(atomic.LoadUint32(ptr) >> byteShift[k])
}

// storeByte atomically stores b at buf[off].
func (r region) storeByte(off int, b byte) {
	ptr, k := r.word(off)
	shift := byteShift[k]

	for {
		old := atomic.LoadUint32(ptr)
		updated := old&^(0xFF<<shift) | uint32(b)<<shift

		if atomic.CompareAndSwapUint32(ptr, old, updated) {
			return
		}
	}
}

// storeBytes atomically stores src at buf[off:], one word at a time.
func (r region) storeBytes(off int, src []byte) {
	for len(src) > 0 {
		ptr, k := r.word(off)
		n := min(4-k, len(src))

		for {
			old := atomic.LoadUint32(ptr)
			updated := old

			for j := range n {
				shift := byteShift[k+j]
				updated = updated&^(0xFF<<shift) | uint32(src[j])<<shift
			}

			if atomic.CompareAndSwapUint32(ptr, old, updated) {
				break
			}
		}

		off += n
		src = src[n:]
	}
}

// loadUntil atomically loads bytes from buf[off:limit] up to the first
// occurrence of term. It returns a copy of the bytes before term and whether
// term was found before limit.
func (r region) loadUntil(off, limit int, term byte) ([]byte, bool) {
	out := make([]byte, 0, min(limit-off, 256))

	for off < limit {
		ptr, k := r.word(off)
		w := atomic.LoadUint32(ptr)

		for ; k < 4 && off < limit; k++ {
			b := byte(w >> byteShift[k])
			if b == term {
				return out, true
			}

			out = append(out, b)
			off++
		}
	}

	return out, false
}
