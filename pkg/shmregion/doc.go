// Package shmregion provisions the shared-memory files that back greenbox
// rings.
//
// A region named "feed" lives at <dir>/feed.gb, where dir defaults to
// /dev/shm/greenbox (a tmpfs on Linux, so the file never touches disk). The
// file is exactly (blockSize+2)*blockCount bytes and holds nothing but ring
// slots; there is no header. Two companion files sit next to it:
//
//	feed.gb.lock  flock target, held exclusively by the live writer
//	feed.gb.json  metadata sidecar (layout, writer id, pid, creation time)
//
// The sidecar is informational. Readers must still be told the layout by
// the application; [Attach] only checks that the file size agrees with it.
//
// # Writers
//
// [Create] takes the writer lock, replaces any stale region with a fresh
// zero-filled file, maps it read-write, and publishes the sidecar. A second
// writer for the same name gets [ErrBusy]. [Region.Destroy] unmaps and
// removes the region and sidecar, then releases the lock.
//
// # Readers
//
// [Attach] maps an existing region read-only. A missing file or a size that
// does not match the layout is reported as [ring.ErrSizeMismatch]: the
// writer has not created this region (yet). A reader mapping stays valid if
// the writer goes away, but it then refers to an unlinked file; use
// [Region.Replaced] to notice a restarted writer and attach again.
package shmregion
