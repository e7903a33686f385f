package gamearc

import (
	"bytes"
	"errors"
	"testing"
)

func TestRFF_EncryptedInsert(t *testing.T) {
	t.Parallel()

	backing := NewMemStream(nil)
	arc := buildEncryptedRFF(t, backing)

	// Insert an encrypted third file at the end and write its payload
	// through the xor-blood filter.
	e, err := arc.Insert(nil, "three.dat", 0, TypeGeneric, AttrEncrypted)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if e.Filter != "xor-blood" {
		t.Fatalf("filter=%q, want xor-blood", e.Filter)
	}

	view, err := arc.Open(e, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	plaintext := []byte("This is three.dat")
	if _, err := view.Write(plaintext); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := view.Flush(); err != nil {
		t.Fatalf("view Flush: %v", err)
	}
	if err := arc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	raw := backing.Bytes()

	// The stored payload must be the XOR-encoded form.
	stored := raw[e.Offset : e.Offset+e.StoredSize]
	if !bytes.Equal(stored, rffCrypt(plaintext, 0, 256)) {
		t.Fatalf("stored payload=%x, want xor-encoded form", stored)
	}

	// The FAT, decrypted with offFAT & 0xFF, must hold three entries.
	offFAT, err := readU32(backing, rffFATOffsetOffset)
	if err != nil {
		t.Fatalf("read FAT offset: %v", err)
	}
	numFiles, err := readU32(backing, rffFileCountOffset)
	if err != nil {
		t.Fatalf("read file count: %v", err)
	}
	if numFiles != 3 {
		t.Fatalf("file count=%d, want 3", numFiles)
	}

	fat := rffCrypt(raw[offFAT:offFAT+3*rffFATEntryLen], byte(offFAT), 0)
	wantEntries := []struct {
		offset uint32
		size   uint32
		ext    string
		base   string
	}{
		{32, 15, "DAT", "ONE"},
		{47, 15, "DAT", "TWO"},
		{62, 17, "DAT", "THREE"},
	}
	for i, want := range wantEntries {
		slot := fat[i*rffFATEntryLen : (i+1)*rffFATEntryLen]
		gotOffset := uint32(slot[16]) | uint32(slot[17])<<8 | uint32(slot[18])<<16 | uint32(slot[19])<<24
		gotSize := uint32(slot[20]) | uint32(slot[21])<<8 | uint32(slot[22])<<16 | uint32(slot[23])<<24
		if gotOffset != want.offset || gotSize != want.size {
			t.Fatalf("entry %d offset/size = %d/%d, want %d/%d", i, gotOffset, gotSize, want.offset, want.size)
		}
		if slot[33]&rffFlagEncrypted == 0 {
			t.Fatalf("entry %d missing encrypted flag", i)
		}
		if got := trimNuls(slot[34:37]); got != want.ext {
			t.Fatalf("entry %d ext=%q, want %q", i, got, want.ext)
		}
		if got := trimNuls(slot[37:45]); got != want.base {
			t.Fatalf("entry %d base=%q, want %q", i, got, want.base)
		}
	}

	// A reparse must decode the payload back to the plaintext.
	reparsed, err := (&rffType{filters: DefaultFilters()}).Open(backing, nil)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	three := reparsed.Find("three.dat")
	if three == nil {
		t.Fatal("THREE.DAT missing after reparse")
	}
	decoded, err := reparsed.Open(three, true)
	if err != nil {
		t.Fatalf("Open filtered: %v", err)
	}
	got := make([]byte, decoded.Size())
	if _, err := decoded.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("decoded payload=%q, want %q", got, plaintext)
	}
}

func TestRFF_VersionDowngradeGuard(t *testing.T) {
	t.Parallel()

	backing := NewMemStream(nil)
	arc := buildEncryptedRFF(t, backing)

	// Encrypted files block the downgrade to v2.0.
	err := arc.SetEnumAttribute(0, 0)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err=%v, want ErrUnsupported", err)
	}
}

func TestRFF_V20StripsEncryptionRequest(t *testing.T) {
	t.Parallel()

	backing := NewMemStream(nil)
	arc, err := (&rffType{filters: DefaultFilters()}).Create(backing, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// v2.0 has no encryption support: the attribute is dropped.
	e, err := arc.Insert(nil, "plain.dat", 4, TypeGeneric, AttrEncrypted)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if e.Attr&AttrEncrypted != 0 || e.Filter != "" {
		t.Fatalf("v2.0 insert kept encryption: attr=%v filter=%q", e.Attr, e.Filter)
	}
}

func TestRFF_NameValidation(t *testing.T) {
	t.Parallel()

	backing := NewMemStream(nil)
	arc, err := (&rffType{filters: DefaultFilters()}).Create(backing, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, name := range []string{"basenametoolong", "NAME.LONG", "LONGBASENAME.X"} {
		if _, err := arc.Insert(nil, name, 1, TypeGeneric, AttrDefault); !errors.Is(err, ErrNameInvalid) {
			t.Fatalf("Insert(%q) err=%v, want ErrNameInvalid", name, err)
		}
	}
	if len(arc.Files()) != 0 {
		t.Fatal("failed inserts must not change the file list")
	}
}

// buildEncryptedRFF creates a v3.1 RFF with encrypted ONE.DAT and
// TWO.DAT entries, flushed to backing.
func buildEncryptedRFF(t *testing.T, backing *MemStream) Archive {
	t.Helper()

	arc, err := (&rffType{filters: DefaultFilters()}).Create(backing, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := arc.SetEnumAttribute(0, 1); err != nil {
		t.Fatalf("set version: %v", err)
	}

	for _, name := range []string{"one.dat", "two.dat"} {
		payload := []byte("This is " + name)
		e, err := arc.Insert(nil, name, 0, TypeGeneric, AttrEncrypted)
		if err != nil {
			t.Fatalf("Insert %s: %v", name, err)
		}

		view, err := arc.Open(e, true)
		if err != nil {
			t.Fatalf("Open %s: %v", name, err)
		}
		if _, err := view.Write(payload); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
		if err := view.Flush(); err != nil {
			t.Fatalf("view Flush %s: %v", name, err)
		}
	}

	if err := arc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	return arc
}

func trimNuls(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return string(b)
}
