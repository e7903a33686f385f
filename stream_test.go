package gamearc

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestMemStream_ReadWriteTruncate(t *testing.T) {
	t.Parallel()

	m := NewMemStream([]byte("hello"))

	buf := make([]byte, 3)
	if _, err := m.ReadAt(buf, 1); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != "ell" {
		t.Fatalf("read %q", buf)
	}

	// Short read at end returns io.EOF.
	n, err := m.ReadAt(buf, 3)
	if err != io.EOF || n != 2 {
		t.Fatalf("short read n=%d err=%v", n, err)
	}

	// Writes past the end grow the store.
	if _, err := m.WriteAt([]byte("world"), 5); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if string(m.Bytes()) != "helloworld" {
		t.Fatalf("content=%q", m.Bytes())
	}

	if err := m.Truncate(5); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if string(m.Bytes()) != "hello" {
		t.Fatalf("content after truncate=%q", m.Bytes())
	}

	// Growing truncate zero-pads.
	if err := m.Truncate(7); err != nil {
		t.Fatalf("Truncate grow: %v", err)
	}
	if !bytes.Equal(m.Bytes(), []byte("hello\x00\x00")) {
		t.Fatalf("content after grow=%q", m.Bytes())
	}
}

func TestFileStream_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.bin")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := OpenFileStream(path)
	if err != nil {
		t.Fatalf("OpenFileStream: %v", err)
	}
	defer func() { _ = s.Close() }()

	if s.Size() != 10 {
		t.Fatalf("Size=%d, want 10", s.Size())
	}

	if _, err := s.WriteAt([]byte("abc"), 8); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if s.Size() != 11 {
		t.Fatalf("Size after grow=%d, want 11", s.Size())
	}

	if err := s.Truncate(4); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	buf := make([]byte, 4)
	if _, err := s.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != "0123" {
		t.Fatalf("content=%q", buf)
	}
}

func TestLittleEndianHelpers(t *testing.T) {
	t.Parallel()

	m := NewMemStream(nil)

	if err := writeU8(m, 0, 0xAB); err != nil {
		t.Fatalf("writeU8: %v", err)
	}
	if err := writeU16(m, 1, 0x1234); err != nil {
		t.Fatalf("writeU16: %v", err)
	}
	if err := writeU32(m, 3, 0xDEADBEEF); err != nil {
		t.Fatalf("writeU32: %v", err)
	}
	if err := writeU64(m, 7, 0x0102030405060708); err != nil {
		t.Fatalf("writeU64: %v", err)
	}

	if v, err := readU8(m, 0); err != nil || v != 0xAB {
		t.Fatalf("readU8=%x err=%v", v, err)
	}
	if v, err := readU16(m, 1); err != nil || v != 0x1234 {
		t.Fatalf("readU16=%x err=%v", v, err)
	}
	if v, err := readU32(m, 3); err != nil || v != 0xDEADBEEF {
		t.Fatalf("readU32=%x err=%v", v, err)
	}
	if v, err := readU64(m, 7); err != nil || v != 0x0102030405060708 {
		t.Fatalf("readU64=%x err=%v", v, err)
	}

	want := []byte{0xAB, 0x34, 0x12, 0xEF, 0xBE, 0xAD, 0xDE, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(m.Bytes(), want) {
		t.Fatalf("stored bytes=%x, want %x", m.Bytes(), want)
	}
}

func TestPaddedStrings(t *testing.T) {
	t.Parallel()

	m := NewMemStream(nil)

	if err := writePadded(m, 0, "HELLO", 8); err != nil {
		t.Fatalf("writePadded: %v", err)
	}
	if !bytes.Equal(m.Bytes(), []byte("HELLO\x00\x00\x00")) {
		t.Fatalf("stored bytes=%q", m.Bytes())
	}

	got, err := readPadded(m, 0, 8)
	if err != nil {
		t.Fatalf("readPadded: %v", err)
	}
	if got != "HELLO" {
		t.Fatalf("read %q", got)
	}

	// Over-long values fail without writing.
	err = writePadded(m, 0, "TOOLONGNAME", 8)
	if !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("err=%v, want ErrStringTooLong", err)
	}

	// A field with no terminator reads its full width.
	full := NewMemStream([]byte("ABCDEFGH"))
	got, err = readPadded(full, 0, 8)
	if err != nil {
		t.Fatalf("readPadded full: %v", err)
	}
	if got != "ABCDEFGH" {
		t.Fatalf("read %q", got)
	}
}
