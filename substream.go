// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"fmt"
	"io"
)

// File is an open view of one entry's payload.  It stays usable across
// insertions, removals, resizes and moves of other entries in the same
// archive: the owning archive updates the window in place.  If the
// backing entry itself is removed the view is orphaned; reads then
// return io.EOF and writes fail.
//
// Flush matters only for filtered views, where it encodes the buffered
// content back into the archive.  On raw views it is a no-op.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.ReaderAt
	io.WriterAt
	// Size returns the view length in bytes (decoded length for
	// filtered views).
	Size() int64
	// Offset returns the view's current position in the archive.
	Offset() int64
	// Flush writes buffered content back to the archive.
	Flush() error
}

// Sub is a bounded, relocatable window into an archive's segmented
// stream.  The archive tracks every Sub it opens by weak reference and
// moves or resizes the window when the backing entry moves or resizes.
type Sub struct {
	seg      *SegStream
	entry    *Entry
	off      int64
	length   int64
	pos      int64
	orphaned bool
}

// Read reads from the window at the current position.
func (f *Sub) Read(p []byte) (int, error) {
	if f.orphaned || f.pos >= f.length {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	want := int64(len(p))
	if avail := f.length - f.pos; want > avail {
		want = avail
	}

	n, err := f.seg.ReadAt(p[:want], f.off+f.pos)
	f.pos += int64(n)
	if err == io.EOF && int64(n) == want {
		err = nil
	}

	return n, err
}

// Write writes at the current position.  Writes that would extend past
// the window fail with ErrBeyondWindow; resize the entry first.
func (f *Sub) Write(p []byte) (int, error) {
	if f.orphaned {
		return 0, ErrOrphaned
	}
	if f.pos+int64(len(p)) > f.length {
		return 0, fmt.Errorf("%w: write [%d,%d) in %d-byte window",
			ErrBeyondWindow, f.pos, f.pos+int64(len(p)), f.length)
	}

	n, err := f.seg.WriteAt(p, f.off+f.pos)
	f.pos += int64(n)
	return n, err
}

// Seek sets the position for the next Read or Write.
func (f *Sub) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = f.pos + offset
	case io.SeekEnd:
		next = f.length + offset
	default:
		return 0, fmt.Errorf("substream: invalid seek whence %d", whence)
	}

	if next < 0 {
		return 0, ErrNegativeSeek
	}

	f.pos = next
	return next, nil
}

// ReadAt reads from the window at a window-relative offset.
func (f *Sub) ReadAt(p []byte, off int64) (int, error) {
	if f.orphaned || off >= f.length {
		return 0, io.EOF
	}

	want := int64(len(p))
	if avail := f.length - off; want > avail {
		want = avail
	}

	n, err := f.seg.ReadAt(p[:want], f.off+off)
	if err == io.EOF && int64(n) == want {
		err = nil
	}
	if err == nil && int64(n) == want && want < int64(len(p)) {
		err = io.EOF
	}

	return n, err
}

// WriteAt writes into the window at a window-relative offset.
func (f *Sub) WriteAt(p []byte, off int64) (int, error) {
	if f.orphaned {
		return 0, ErrOrphaned
	}
	if off < 0 || off+int64(len(p)) > f.length {
		return 0, fmt.Errorf("%w: write [%d,%d) in %d-byte window",
			ErrBeyondWindow, off, off+int64(len(p)), f.length)
	}

	return f.seg.WriteAt(p, f.off+off)
}

// Size returns the window length in bytes.
func (f *Sub) Size() int64 {
	if f.orphaned {
		return 0
	}

	return f.length
}

// Offset returns the window's current position in the archive.
func (f *Sub) Offset() int64 {
	return f.off
}

// Flush is a no-op: raw substream writes go straight to the segmented
// stream.
func (f *Sub) Flush() error {
	return nil
}

// relocate moves the window by delta.  Called by the owning archive
// during shift operations.
func (f *Sub) relocate(delta int64) {
	f.off += delta
}

// setSize changes the window length.  Called by the owning archive when
// the backing entry is resized.
func (f *Sub) setSize(n int64) {
	f.length = n
}

// orphan detaches the view after its backing entry is removed.
func (f *Sub) orphan() {
	f.orphaned = true
	f.length = 0
}
