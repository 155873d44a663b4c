// Package ring implements the greenbox slot ring: a single-writer,
// multi-reader message channel laid out in a fixed byte region that is
// typically shared between processes through a memory mapping.
//
// The writer never blocks and never waits for readers. When readers fall
// behind, old messages are overwritten. Readers detect slots that are being
// rewritten while they read them and report nothing-available instead of
// returning torn data.
//
// # Layout
//
// The region holds blockCount slots of blockSize+2 bytes each:
//
//	offset 0      state   's' while the writer mutates the slot, 0x00 otherwise
//	offset 1      pass    toggled (0x00 <-> 0x01) after every completed write
//	offset 2..    payload up to blockSize-1 message bytes followed by '\n'
//
// # Basic Usage
//
//	w, err := ring.NewWriter(buf, 256, 64)
//	if err != nil {
//	    // ErrInvalidInput or ErrSizeMismatch
//	}
//	err = w.Write([]byte("hello")) // ErrCapacity if too long
//
//	r, err := ring.Attach(buf, 256, 64)
//	msg, ok := r.Read() // ok=false: nothing available, poll again later
//
// # Concurrency
//
// Exactly one [Writer] may exist per region. Any number of [Reader] values
// may read the same region, each with its own cursor. Neither type is safe
// for concurrent use by multiple goroutines; give each goroutine its own
// [Reader].
//
// Every region access goes through sync/atomic on the aligned 32-bit word
// containing the byte, so the write and read orderings hold on weakly
// ordered CPUs and readers only ever load (a read-only mapping is enough).
//
// # Overruns
//
// A reader that falls a full lap behind the writer resumes on newer data
// without any signal. The ring has no lap counter; this loss is accepted.
//
// The pass bit has two values, so a read that overlaps an even number of
// rewrites of the same slot (two laps of the writer while one read is in
// progress) is not detected. Readers that can stall that long must keep the
// writer from lapping them twice by other means, for example by sizing the
// ring generously.
package ring
