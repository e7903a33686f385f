// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"fmt"
	"io"
)

// segCopyChunk is the buffer size used when shifting backing-store ranges.
const segCopyChunk = 64 * 1024

// segment is one piece of the logical stream: either a reference to a
// range of the backing store, or an in-memory buffer.
type segment struct {
	buf []byte // in-memory data; nil for backing references
	src int64  // backing offset for references
	n   int64  // length for references
}

func (s *segment) isRef() bool {
	return s.buf == nil
}

func (s *segment) length() int64 {
	if s.isRef() {
		return s.n
	}

	return int64(len(s.buf))
}

// SegStream is a stream wrapper that supports inserting and removing
// arbitrary byte ranges without rewriting the backing store until Flush.
//
// The logical content is a list of segments.  Edits split segments as
// needed, so the cost of one edit is proportional to the number of
// segments rather than the stream length.  Flush materialises the
// logical content back into the backing store.
type SegStream struct {
	backing  Stream
	segments []segment
}

// NewSegStream wraps backing.  The initial logical content is the whole
// backing store.
func NewSegStream(backing Stream) *SegStream {
	s := &SegStream{backing: backing}
	if size := backing.Size(); size > 0 {
		s.segments = []segment{{src: 0, n: size}}
	}

	return s
}

// Size returns the current logical length.
func (s *SegStream) Size() int64 {
	var total int64
	for i := range s.segments {
		total += s.segments[i].length()
	}

	return total
}

// Truncate sets the logical length, dropping the tail or growing it
// with zeroed space.
func (s *SegStream) Truncate(size int64) error {
	cur := s.Size()
	switch {
	case size < cur:
		return s.RemoveAt(size, cur-size)
	case size > cur:
		return s.InsertAt(cur, size-cur)
	default:
		return nil
	}
}

// splitAt ensures a segment boundary exists at logical position pos and
// returns the index of the segment starting there.  pos == Size() returns
// len(segments).
func (s *SegStream) splitAt(pos int64) (int, error) {
	if pos < 0 {
		return 0, fmt.Errorf("%w: position %d", ErrNegativeSeek, pos)
	}

	var at int64
	for i := range s.segments {
		if at == pos {
			return i, nil
		}

		segLen := s.segments[i].length()
		if pos < at+segLen {
			within := pos - at
			head, tail := s.segments[i], s.segments[i]
			if s.segments[i].isRef() {
				head.n = within
				tail.src += within
				tail.n -= within
			} else {
				head.buf = s.segments[i].buf[:within:within]
				tail.buf = s.segments[i].buf[within:]
			}

			s.segments = append(s.segments[:i], append([]segment{head, tail}, s.segments[i+1:]...)...)
			return i + 1, nil
		}

		at += segLen
	}

	if at != pos {
		return 0, fmt.Errorf("segmented stream: position %d past end %d", pos, at)
	}

	return len(s.segments), nil
}

// InsertAt makes n bytes of zeroed space at logical position pos.  Bytes
// at and after pos keep their content but move forward by n.
func (s *SegStream) InsertAt(pos int64, n int64) error {
	if n < 0 {
		return fmt.Errorf("segmented stream: negative insert length %d", n)
	}
	if n == 0 {
		return nil
	}

	i, err := s.splitAt(pos)
	if err != nil {
		return err
	}

	s.segments = append(s.segments[:i], append([]segment{{buf: make([]byte, n)}}, s.segments[i:]...)...)
	return nil
}

// RemoveAt drops n bytes at logical position pos.  Bytes after the
// removed range move backward by n.
func (s *SegStream) RemoveAt(pos int64, n int64) error {
	if n < 0 {
		return fmt.Errorf("segmented stream: negative remove length %d", n)
	}
	if n == 0 {
		return nil
	}
	if pos+n > s.Size() {
		return fmt.Errorf("segmented stream: remove [%d,%d) past end %d", pos, pos+n, s.Size())
	}

	first, err := s.splitAt(pos)
	if err != nil {
		return err
	}

	last, err := s.splitAt(pos + n)
	if err != nil {
		return err
	}

	s.segments = append(s.segments[:first], s.segments[last:]...)
	return nil
}

// ReadAt reads logical content into p starting at off.  Short reads at
// end of stream return io.EOF.
func (s *SegStream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: offset %d", ErrNegativeSeek, off)
	}

	read := 0
	at := int64(0)

	// Walk segments, skipping up to off, then filling p.
	for i := 0; i < len(s.segments) && read < len(p); i++ {
		seg := &s.segments[i]
		segLen := seg.length()
		if off >= at+segLen {
			at += segLen
			continue
		}

		within := int64(0)
		if off > at {
			within = off - at
		}

		want := int64(len(p) - read)
		avail := segLen - within
		if want > avail {
			want = avail
		}

		if seg.isRef() {
			n, err := s.backing.ReadAt(p[read:read+int(want)], seg.src+within)
			read += n
			if err != nil && (err != io.EOF || int64(n) < want) {
				return read, err
			}
		} else {
			read += copy(p[read:read+int(want)], seg.buf[within:within+want])
		}

		at += segLen
		off = at
	}

	if read < len(p) {
		return read, io.EOF
	}

	return read, nil
}

// WriteAt writes p into the logical content starting at off.  Writing
// past the current end grows the stream.  Ranges that referenced the
// backing store become in-memory buffers.
func (s *SegStream) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: offset %d", ErrNegativeSeek, off)
	}

	size := s.Size()
	if off > size {
		if err := s.InsertAt(size, off-size); err != nil {
			return 0, err
		}
		size = off
	}

	end := off + int64(len(p))
	if end > size {
		if err := s.InsertAt(size, end-size); err != nil {
			return 0, err
		}
	}

	first, err := s.splitAt(off)
	if err != nil {
		return 0, err
	}

	last, err := s.splitAt(end)
	if err != nil {
		return 0, err
	}

	written := 0
	for i := first; i < last; i++ {
		seg := &s.segments[i]
		segLen := seg.length()
		if seg.isRef() {
			// Copy-on-write: materialise the covered range, then overlay.
			buf := make([]byte, segLen)
			if _, err := io.ReadFull(io.NewSectionReader(s.backing, seg.src, segLen), buf); err != nil {
				return written, fmt.Errorf("segmented stream: materialise range: %w", err)
			}
			seg.buf = buf
			seg.src, seg.n = 0, 0
		}

		written += copy(seg.buf, p[written:])
	}

	return written, nil
}

// Flush materialises the logical content into the backing store and
// collapses the segment list back to a single backing reference.
//
// Backing references are shifted first so no unread source range is
// clobbered: ranges moving backward are copied front-to-back, ranges
// moving forward back-to-front.  In-memory buffers are written last,
// then the store is truncated to the logical size.  Flush is not
// atomic; on error the store is in an undefined state and the archive
// should be discarded.
func (s *SegStream) Flush() error {
	type refMove struct {
		src, dst, n int64
	}
	type bufWrite struct {
		dst int64
		buf []byte
	}

	var moves []refMove
	var writes []bufWrite
	var at int64
	for i := range s.segments {
		seg := &s.segments[i]
		if seg.isRef() {
			moves = append(moves, refMove{src: seg.src, dst: at, n: seg.n})
		} else if len(seg.buf) > 0 {
			writes = append(writes, bufWrite{dst: at, buf: seg.buf})
		}

		at += seg.length()
	}
	newSize := at

	// Both the source and destination offsets of backing references are
	// strictly increasing in segment order, so shifting left-movers
	// front-to-back and then right-movers back-to-front never overwrites
	// a range that is still waiting to be read.
	for _, m := range moves {
		if m.dst < m.src {
			if err := s.shiftRange(m.src, m.dst, m.n); err != nil {
				return err
			}
		}
	}
	for i := len(moves) - 1; i >= 0; i-- {
		m := moves[i]
		if m.dst > m.src {
			if err := s.shiftRange(m.src, m.dst, m.n); err != nil {
				return err
			}
		}
	}

	for _, w := range writes {
		if _, err := s.backing.WriteAt(w.buf, w.dst); err != nil {
			return fmt.Errorf("segmented stream: commit buffer at %d: %w", w.dst, err)
		}
	}

	if err := s.backing.Truncate(newSize); err != nil {
		return fmt.Errorf("segmented stream: truncate to %d: %w", newSize, err)
	}

	if newSize > 0 {
		s.segments = []segment{{src: 0, n: newSize}}
	} else {
		s.segments = nil
	}

	return nil
}

// shiftRange moves n bytes within the backing store from src to dst,
// chunked, in the direction that keeps an overlapping move safe.
func (s *SegStream) shiftRange(src, dst, n int64) error {
	if src == dst || n == 0 {
		return nil
	}

	buf := make([]byte, segCopyChunk)
	if dst < src {
		var done int64
		for done < n {
			chunk := n - done
			if chunk > segCopyChunk {
				chunk = segCopyChunk
			}

			if _, err := io.ReadFull(io.NewSectionReader(s.backing, src+done, chunk), buf[:chunk]); err != nil {
				return fmt.Errorf("segmented stream: shift read at %d: %w", src+done, err)
			}
			if _, err := s.backing.WriteAt(buf[:chunk], dst+done); err != nil {
				return fmt.Errorf("segmented stream: shift write at %d: %w", dst+done, err)
			}

			done += chunk
		}

		return nil
	}

	remaining := n
	for remaining > 0 {
		chunk := remaining
		if chunk > segCopyChunk {
			chunk = segCopyChunk
		}
		remaining -= chunk

		if _, err := io.ReadFull(io.NewSectionReader(s.backing, src+remaining, chunk), buf[:chunk]); err != nil {
			return fmt.Errorf("segmented stream: shift read at %d: %w", src+remaining, err)
		}
		if _, err := s.backing.WriteAt(buf[:chunk], dst+remaining); err != nil {
			return fmt.Errorf("segmented stream: shift write at %d: %w", dst+remaining, err)
		}
	}

	return nil
}
