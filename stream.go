// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Stream is the random-access byte store an archive is bound to.
// *MemStream and *FileStream implement it; any file-like store with
// positioned reads, positioned writes and truncation will do.
type Stream interface {
	io.ReaderAt
	io.WriterAt
	// Size returns the current length of the store in bytes.
	Size() int64
	// Truncate sets the length of the store.  Growing pads with zeroes.
	Truncate(size int64) error
}

// MemStream is an in-memory Stream backed by a byte slice.
type MemStream struct {
	data []byte
}

// NewMemStream creates a MemStream over a copy of data.
func NewMemStream(data []byte) *MemStream {
	return &MemStream{data: append([]byte(nil), data...)}
}

// ReadAt reads into p starting at off.  Short reads return io.EOF.
func (m *MemStream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: offset %d", ErrNegativeSeek, off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}

	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// WriteAt writes p starting at off, growing the store as needed.
func (m *MemStream) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: offset %d", ErrNegativeSeek, off)
	}

	end := off + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}

	return copy(m.data[off:], p), nil
}

// Size returns the store length in bytes.
func (m *MemStream) Size() int64 {
	return int64(len(m.data))
}

// Truncate sets the store length, zero-padding on growth.
func (m *MemStream) Truncate(size int64) error {
	if size < 0 {
		return fmt.Errorf("%w: size %d", ErrNegativeSeek, size)
	}

	if size <= int64(len(m.data)) {
		m.data = m.data[:size]
		return nil
	}

	grown := make([]byte, size)
	copy(grown, m.data)
	m.data = grown
	return nil
}

// Bytes returns the current store content.  The slice is live until the
// next mutation.
func (m *MemStream) Bytes() []byte {
	return m.data
}

// FileStream is a Stream over an *os.File opened read-write.
type FileStream struct {
	f    *os.File
	size int64
}

// OpenFileStream opens path read-write and wraps it in a FileStream.
func OpenFileStream(path string) (*FileStream, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	return &FileStream{f: f, size: fi.Size()}, nil
}

// CreateFileStream creates (or truncates) path and wraps it in a FileStream.
func CreateFileStream(path string) (*FileStream, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}

	return &FileStream{f: f}, nil
}

// ReadAt reads into p starting at off.
func (s *FileStream) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

// WriteAt writes p starting at off, growing the file as needed.
func (s *FileStream) WriteAt(p []byte, off int64) (int, error) {
	n, err := s.f.WriteAt(p, off)
	if end := off + int64(n); end > s.size {
		s.size = end
	}

	return n, err
}

// Size returns the file length in bytes.
func (s *FileStream) Size() int64 {
	return s.size
}

// Truncate sets the file length.
func (s *FileStream) Truncate(size int64) error {
	if err := s.f.Truncate(size); err != nil {
		return fmt.Errorf("truncate archive: %w", err)
	}

	s.size = size
	return nil
}

// Sync flushes file contents to stable storage.
func (s *FileStream) Sync() error {
	return s.f.Sync()
}

// Close closes the underlying file.
func (s *FileStream) Close() error {
	return s.f.Close()
}

// Little-endian field helpers.  All archive formats handled here are
// MS-DOS era and exclusively little-endian.

func readU8(r io.ReaderAt, off int64) (uint8, error) {
	var b [1]byte
	if _, err := r.ReadAt(b[:], off); err != nil {
		return 0, err
	}

	return b[0], nil
}

func readU16(r io.ReaderAt, off int64) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(io.NewSectionReader(r, off, 2), b[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU32(r io.ReaderAt, off int64) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(io.NewSectionReader(r, off, 4), b[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b[:]), nil
}

func readU64(r io.ReaderAt, off int64) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(io.NewSectionReader(r, off, 8), b[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b[:]), nil
}

func writeU8(w io.WriterAt, off int64, v uint8) error {
	_, err := w.WriteAt([]byte{v}, off)
	return err
}

func writeU16(w io.WriterAt, off int64, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.WriteAt(b[:], off)
	return err
}

func writeU32(w io.WriterAt, off int64, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.WriteAt(b[:], off)
	return err
}

func writeU64(w io.WriterAt, off int64, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.WriteAt(b[:], off)
	return err
}

// readPadded reads a fixed-length string field and trims it at the first
// zero byte.
func readPadded(r io.ReaderAt, off int64, fieldLen int) (string, error) {
	buf := make([]byte, fieldLen)
	if _, err := io.ReadFull(io.NewSectionReader(r, off, int64(fieldLen)), buf); err != nil {
		return "", err
	}

	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}

	return string(buf), nil
}

// writePadded writes value followed by zero padding up to fieldLen bytes.
// Values longer than the field fail with ErrStringTooLong.
func writePadded(w io.WriterAt, off int64, value string, fieldLen int) error {
	if len(value) > fieldLen {
		return fmt.Errorf("%w: %q in %d-byte field", ErrStringTooLong, value, fieldLen)
	}

	buf := make([]byte, fieldLen)
	copy(buf, value)
	_, err := w.WriteAt(buf, off)
	return err
}
