package gamearc

import (
	"bytes"
	"io"
	"slices"
	"testing"
)

// segOp is one scripted edit applied to both the segmented stream and a
// plain byte-slice reference model.
type segOp struct {
	kind string // "insert", "remove", "write"
	pos  int64
	n    int64
	data []byte
}

func TestSegStream_MatchesReferenceModel(t *testing.T) {
	t.Parallel()

	initial := []byte("0123456789abcdefghij")

	tests := []struct {
		name string
		ops  []segOp
	}{
		{
			name: "no edits",
			ops:  nil,
		},
		{
			name: "insert at front shifts everything right",
			ops: []segOp{
				{kind: "insert", pos: 0, n: 5},
				{kind: "write", pos: 0, data: []byte("XXXXX")},
			},
		},
		{
			name: "remove at front shifts everything left",
			ops: []segOp{
				{kind: "remove", pos: 0, n: 7},
			},
		},
		{
			name: "insert mid",
			ops: []segOp{
				{kind: "insert", pos: 10, n: 4},
				{kind: "write", pos: 10, data: []byte("wxyz")},
			},
		},
		{
			name: "remove mid",
			ops: []segOp{
				{kind: "remove", pos: 5, n: 10},
			},
		},
		{
			name: "insert then larger remove later moves tail both ways",
			ops: []segOp{
				{kind: "insert", pos: 2, n: 3},
				{kind: "remove", pos: 12, n: 8},
			},
		},
		{
			name: "remove then insert later",
			ops: []segOp{
				{kind: "remove", pos: 0, n: 4},
				{kind: "insert", pos: 10, n: 6},
				{kind: "write", pos: 10, data: []byte("INSERT")},
			},
		},
		{
			name: "overwrite spanning segments",
			ops: []segOp{
				{kind: "insert", pos: 5, n: 2},
				{kind: "write", pos: 3, data: []byte("ABCDEF")},
			},
		},
		{
			name: "remove everything",
			ops: []segOp{
				{kind: "remove", pos: 0, n: 20},
			},
		},
		{
			name: "append past end",
			ops: []segOp{
				{kind: "write", pos: 20, data: []byte("tail")},
			},
		},
		{
			name: "many small edits",
			ops: []segOp{
				{kind: "insert", pos: 1, n: 1},
				{kind: "insert", pos: 4, n: 2},
				{kind: "remove", pos: 9, n: 3},
				{kind: "write", pos: 0, data: []byte("Z")},
				{kind: "insert", pos: 15, n: 5},
				{kind: "write", pos: 15, data: []byte("12345")},
				{kind: "remove", pos: 2, n: 2},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			backing := NewMemStream(initial)
			seg := NewSegStream(backing)
			model := slices.Clone(initial)

			for _, op := range tc.ops {
				switch op.kind {
				case "insert":
					if err := seg.InsertAt(op.pos, op.n); err != nil {
						t.Fatalf("InsertAt(%d, %d): %v", op.pos, op.n, err)
					}
					model = slices.Insert(model, int(op.pos), make([]byte, op.n)...)
				case "remove":
					if err := seg.RemoveAt(op.pos, op.n); err != nil {
						t.Fatalf("RemoveAt(%d, %d): %v", op.pos, op.n, err)
					}
					model = slices.Delete(model, int(op.pos), int(op.pos+op.n))
				case "write":
					if _, err := seg.WriteAt(op.data, op.pos); err != nil {
						t.Fatalf("WriteAt(%q, %d): %v", op.data, op.pos, err)
					}
					if grow := int(op.pos) + len(op.data) - len(model); grow > 0 {
						model = append(model, make([]byte, grow)...)
					}
					copy(model[op.pos:], op.data)
				}
			}

			if seg.Size() != int64(len(model)) {
				t.Fatalf("Size()=%d, want %d", seg.Size(), len(model))
			}

			got := make([]byte, len(model))
			if len(model) > 0 {
				if _, err := io.ReadFull(io.NewSectionReader(seg, 0, int64(len(model))), got); err != nil {
					t.Fatalf("pre-flush ReadAt: %v", err)
				}
				if !bytes.Equal(got, model) {
					t.Fatalf("pre-flush content=%q, want %q", got, model)
				}
			}

			if err := seg.Flush(); err != nil {
				t.Fatalf("Flush: %v", err)
			}
			if !bytes.Equal(backing.Bytes(), model) {
				t.Fatalf("post-flush backing=%q, want %q", backing.Bytes(), model)
			}

			// A second flush after collapse must be a no-op.
			if err := seg.Flush(); err != nil {
				t.Fatalf("second Flush: %v", err)
			}
			if !bytes.Equal(backing.Bytes(), model) {
				t.Fatalf("idempotent flush backing=%q, want %q", backing.Bytes(), model)
			}
		})
	}
}

func TestSegStream_EditsAreCheapUntilFlush(t *testing.T) {
	t.Parallel()

	backing := NewMemStream(bytes.Repeat([]byte("x"), 1024))
	seg := NewSegStream(backing)

	if err := seg.InsertAt(512, 16); err != nil {
		t.Fatalf("InsertAt: %v", err)
	}

	// Backing store untouched until flush.
	if got := backing.Size(); got != 1024 {
		t.Fatalf("backing size changed before flush: %d", got)
	}
	if got := seg.Size(); got != 1040 {
		t.Fatalf("logical size=%d, want 1040", got)
	}
}

func TestSegStream_RemoveBeyondEndFails(t *testing.T) {
	t.Parallel()

	seg := NewSegStream(NewMemStream([]byte("abc")))
	if err := seg.RemoveAt(1, 5); err == nil {
		t.Fatal("RemoveAt past end must fail")
	}
}

func TestSegStream_ReadShortAtEOF(t *testing.T) {
	t.Parallel()

	seg := NewSegStream(NewMemStream([]byte("abcde")))
	buf := make([]byte, 10)
	n, err := seg.ReadAt(buf, 2)
	if err != io.EOF {
		t.Fatalf("err=%v, want io.EOF", err)
	}
	if n != 3 || string(buf[:n]) != "cde" {
		t.Fatalf("read %q (%d bytes), want %q", buf[:n], n, "cde")
	}
}
