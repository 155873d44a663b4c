// Package greenbox pairs a shared-memory region with the ring protocol and
// exposes process-level writer and reader handles.
//
// A writer process creates a named box and puts messages; any number of
// reader processes attach to the same name and layout and get them:
//
//	w, err := greenbox.Create(greenbox.Options{Name: "feed", BlockSize: 256, BlockCount: 1024})
//	...
//	err = w.PutString("tick 1")
//
//	r, err := greenbox.Attach(greenbox.Options{Name: "feed", BlockSize: 256, BlockCount: 1024})
//	...
//	msg, err := r.Next(ctx)
//
// Puts never wait for readers. A reader that falls a full lap behind loses
// messages silently; size BlockCount for the slowest reader.
//
// Handles are not safe for concurrent use. Open one Reader per goroutine.
package greenbox
