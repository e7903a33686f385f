// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"bytes"
	"compress/lzw"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/woozymasta/lzss"
)

// Filter is a named pair of byte transforms.  Decode runs when an entry
// is opened with filtering enabled; Encode runs when the filtered view
// is flushed back into the archive.  Encode may produce a different
// size than its input.
type Filter struct {
	// Name is the identifier recorded on entries that use this filter.
	Name string
	// Encode transforms payload bytes to their stored form.
	Encode func(data []byte) ([]byte, error)
	// Decode transforms stored bytes to payload form.  realSize is the
	// expected decoded length, or zero when unknown.
	Decode func(data []byte, realSize int64) ([]byte, error)
}

// FilterTable maps filter names to transforms.  Archives receive the
// table at construction; there is no process-wide filter state.
type FilterTable struct {
	m map[string]Filter
}

// NewFilterTable creates an empty table.
func NewFilterTable() *FilterTable {
	return &FilterTable{m: make(map[string]Filter)}
}

// Register adds or replaces a filter by name.
func (t *FilterTable) Register(f Filter) {
	t.m[f.Name] = f
}

// Lookup resolves a filter by name.
func (t *FilterTable) Lookup(name string) (Filter, bool) {
	f, ok := t.m[name]
	return f, ok
}

// DefaultFilters builds a table with all built-in filters registered.
func DefaultFilters() *FilterTable {
	t := NewFilterTable()
	t.Register(Filter{
		Name:   "xor-blood",
		Encode: func(data []byte) ([]byte, error) { return rffCrypt(data, 0, 256), nil },
		Decode: func(data []byte, _ int64) ([]byte, error) { return rffCrypt(data, 0, 256), nil },
	})
	t.Register(Filter{
		Name:   "lzss",
		Encode: compressLZSS,
		Decode: decompressLZSS,
	})
	t.Register(Filter{
		Name:   "lzw-epfs",
		Encode: compressLZW,
		Decode: decompressLZW,
	})
	t.Register(Filter{
		Name:   "lzw-bash",
		Encode: compressLZW,
		Decode: decompressLZW,
	})
	t.Register(Filter{
		Name:   "deflate",
		Encode: compressFlate,
		Decode: decompressFlate,
	})

	return t
}

// rffCrypt applies the RFF XOR cipher: byte i is XORed with seed + i/2.
// The cipher is its own inverse.  limit bounds how many leading bytes
// are transformed; zero means the whole buffer.
func rffCrypt(data []byte, seed byte, limit int) []byte {
	out := make([]byte, len(data))
	copy(out, data)

	n := len(out)
	if limit > 0 && limit < n {
		n = limit
	}

	for i := 0; i < n; i++ {
		out[i] ^= seed + byte(i>>1)
	}

	return out
}

// compressLZSS compresses data with LZSS.
func compressLZSS(data []byte) ([]byte, error) {
	return lzss.Compress(data, lzss.DefaultCompressOptions())
}

// decompressLZSS expands LZSS data to realSize bytes.
func decompressLZSS(data []byte, realSize int64) ([]byte, error) {
	if realSize <= 0 {
		return nil, fmt.Errorf("lzss filter: unknown decoded size")
	}

	var buf bytes.Buffer
	buf.Grow(int(realSize))
	if _, err := lzss.DecompressToWriter(&buf, bytes.NewReader(data), int(realSize), nil); err != nil {
		return nil, fmt.Errorf("lzss filter: %w", err)
	}

	return buf.Bytes(), nil
}

func compressLZW(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.LSB, 8)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("lzw filter: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lzw filter: %w", err)
	}

	return buf.Bytes(), nil
}

func decompressLZW(data []byte, _ int64) ([]byte, error) {
	r := lzw.NewReader(bytes.NewReader(data), lzw.LSB, 8)
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("lzw filter: %w", err)
	}

	return out, nil
}

func compressFlate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("deflate filter: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("deflate filter: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate filter: %w", err)
	}

	return buf.Bytes(), nil
}

func decompressFlate(data []byte, _ int64) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("deflate filter: %w", err)
	}

	return out, nil
}

// filteredFile wraps a raw substream with a filter.  The stored bytes
// are decoded into memory on open; reads and writes work on the decoded
// buffer, and Flush encodes it back, resizing the entry to fit.
type filteredFile struct {
	arc    *FATArchive
	entry  *Entry
	raw    *Sub
	filter Filter
	buf    []byte
	pos    int64
	dirty  bool
}

func newFilteredFile(arc *FATArchive, entry *Entry, raw *Sub, filter Filter) (*filteredFile, error) {
	stored := make([]byte, entry.StoredSize)
	if entry.StoredSize > 0 {
		if _, err := io.ReadFull(io.NewSectionReader(raw, 0, entry.StoredSize), stored); err != nil {
			return nil, fmt.Errorf("read stored payload of %s: %w", entry.Name, err)
		}
	}

	// Freshly inserted entries have no stored form to decode yet.
	var decoded []byte
	if len(stored) > 0 {
		var err error
		decoded, err = filter.Decode(stored, entry.RealSize)
		if err != nil {
			return nil, fmt.Errorf("decode %s with %s: %w", entry.Name, filter.Name, err)
		}
	}

	return &filteredFile{arc: arc, entry: entry, raw: raw, filter: filter, buf: decoded}, nil
}

func (f *filteredFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.buf)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	n := copy(p, f.buf[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *filteredFile) Write(p []byte) (int, error) {
	if end := f.pos + int64(len(p)); end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}

	n := copy(f.buf[f.pos:], p)
	f.pos += int64(n)
	f.dirty = true
	return n, nil
}

func (f *filteredFile) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = f.pos + offset
	case io.SeekEnd:
		next = int64(len(f.buf)) + offset
	default:
		return 0, fmt.Errorf("filtered stream: invalid seek whence %d", whence)
	}

	if next < 0 {
		return 0, ErrNegativeSeek
	}

	f.pos = next
	return next, nil
}

func (f *filteredFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.buf)) {
		return 0, io.EOF
	}

	n := copy(p, f.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (f *filteredFile) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrNegativeSeek
	}

	if end := off + int64(len(p)); end > int64(len(f.buf)) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}

	f.dirty = true
	return copy(f.buf[off:], p), nil
}

// Size returns the decoded payload length.
func (f *filteredFile) Size() int64 {
	return int64(len(f.buf))
}

// Offset returns the underlying window's position in the archive.
func (f *filteredFile) Offset() int64 {
	return f.raw.Offset()
}

// Flush encodes the buffer, resizes the entry to the encoded length and
// writes the stored form back into the archive.
func (f *filteredFile) Flush() error {
	if !f.dirty {
		return nil
	}

	encoded, err := f.filter.Encode(f.buf)
	if err != nil {
		return fmt.Errorf("encode %s with %s: %w", f.entry.Name, f.filter.Name, err)
	}

	if err := f.arc.Resize(f.entry, int64(len(encoded)), int64(len(f.buf))); err != nil {
		return err
	}

	if len(encoded) > 0 {
		if _, err := f.raw.WriteAt(encoded, 0); err != nil {
			return err
		}
	}

	f.dirty = false
	return nil
}
