package gamearc

import (
	"bytes"
	"slices"
	"strings"
	"testing"
)

func TestEPF_RenameKeepsPayloadAndHeader(t *testing.T) {
	t.Parallel()

	backing := NewMemStream(nil)
	buildEPF(t, backing)
	baseline := slices.Clone(backing.Bytes())

	arc, err := (&epfType{filters: DefaultFilters()}).Open(backing, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := arc.Rename(arc.Find("ONE.DAT"), "THREE.DAT"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := arc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	raw := backing.Bytes()
	if len(raw) != len(baseline) {
		t.Fatalf("archive length changed: %d -> %d", len(baseline), len(raw))
	}

	// Header and payload regions are untouched.
	offFAT, err := readU32(backing, epfFATOffsetPos)
	if err != nil {
		t.Fatalf("read FAT offset: %v", err)
	}
	if !bytes.Equal(raw[:offFAT], baseline[:offFAT]) {
		t.Fatal("bytes before the FAT changed on rename")
	}

	// The first FAT entry's name field reads the new name, null-padded.
	nameField := raw[offFAT : offFAT+epfNameFieldLen]
	if !bytes.Equal(nameField, []byte("THREE.DAT\x00\x00\x00\x00")) {
		t.Fatalf("name field=%q", nameField)
	}

	// Everything after the name field is untouched.
	rest := raw[offFAT+epfNameFieldLen:]
	if !bytes.Equal(rest, baseline[offFAT+epfNameFieldLen:]) {
		t.Fatal("bytes after the name field changed on rename")
	}
}

func TestEPF_ParseAndRead(t *testing.T) {
	t.Parallel()

	backing := NewMemStream(nil)
	buildEPF(t, backing)

	arc, err := (&epfType{filters: DefaultFilters()}).Open(backing, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	files := arc.Files()
	if len(files) != 2 {
		t.Fatalf("parsed %d files, want 2", len(files))
	}
	if got := readAllEntry(t, arc, "ONE.DAT"); string(got) != "This is one.dat" {
		t.Fatalf("ONE.DAT payload=%q", got)
	}
	if got := readAllEntry(t, arc, "TWO.DAT"); string(got) != "This is two.dat" {
		t.Fatalf("TWO.DAT payload=%q", got)
	}
}

func TestEPF_DescriptionAttribute(t *testing.T) {
	t.Parallel()

	backing := NewMemStream(nil)
	buildEPF(t, backing)

	arc, err := (&epfType{filters: DefaultFilters()}).Open(backing, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	attrs := arc.Attributes()
	if len(attrs) != 1 || attrs[0].Type != AttributeText || attrs[0].TextValue != "" {
		t.Fatalf("attributes=%+v", attrs)
	}

	if err := arc.SetTextAttribute(0, "A test description"); err != nil {
		t.Fatalf("SetTextAttribute: %v", err)
	}
	if err := arc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// The description sits between the last file and the FAT.
	reparsed, err := (&epfType{filters: DefaultFilters()}).Open(backing, nil)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if got := reparsed.Attributes()[0].TextValue; got != "A test description" {
		t.Fatalf("description after reparse=%q", got)
	}
	if got := readAllEntry(t, reparsed, "TWO.DAT"); string(got) != "This is two.dat" {
		t.Fatalf("payload corrupted by description write: %q", got)
	}
}

func TestEPF_CompressedInsertRoundTrip(t *testing.T) {
	t.Parallel()

	backing := NewMemStream(nil)
	buildEPF(t, backing)

	arc, err := (&epfType{filters: DefaultFilters()}).Open(backing, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	e, err := arc.Insert(nil, "PACKED.DAT", 0, TypeGeneric, AttrCompressed)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if e.Filter != "lzw-epfs" {
		t.Fatalf("filter=%q, want lzw-epfs", e.Filter)
	}

	payload := bytes.Repeat([]byte("compressible "), 32)
	view, err := arc.Open(e, true)
	if err != nil {
		t.Fatalf("Open filtered: %v", err)
	}
	if _, err := view.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := view.Flush(); err != nil {
		t.Fatalf("view Flush: %v", err)
	}
	if err := arc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reparsed, err := (&epfType{filters: DefaultFilters()}).Open(backing, nil)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}

	packed := reparsed.Find("PACKED.DAT")
	if packed == nil {
		t.Fatal("PACKED.DAT missing after reparse")
	}
	if packed.Attr&AttrCompressed == 0 {
		t.Fatal("compressed attribute lost")
	}
	if packed.RealSize != int64(len(payload)) {
		t.Fatalf("real size=%d, want %d", packed.RealSize, len(payload))
	}
	if packed.StoredSize >= packed.RealSize {
		t.Fatalf("stored size %d not smaller than real size %d", packed.StoredSize, packed.RealSize)
	}

	decoded, err := reparsed.Open(packed, true)
	if err != nil {
		t.Fatalf("Open filtered: %v", err)
	}
	got := make([]byte, decoded.Size())
	if _, err := decoded.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("decoded payload differs from original")
	}
}

// buildEPF creates the two-file initial-state fixture: ONE.DAT and
// TWO.DAT with fifteen-byte payloads and an empty description.
func buildEPF(t *testing.T, backing *MemStream) {
	t.Helper()

	arc, err := (&epfType{filters: DefaultFilters()}).Create(backing, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, name := range []string{"ONE.DAT", "TWO.DAT"} {
		payload := []byte("This is " + strings.ToLower(name))
		e, err := arc.Insert(nil, name, int64(len(payload)), TypeGeneric, AttrDefault)
		if err != nil {
			t.Fatalf("Insert %s: %v", name, err)
		}

		view, err := arc.Open(e, false)
		if err != nil {
			t.Fatalf("Open %s: %v", name, err)
		}
		if _, err := view.Write(payload); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
	}

	if err := arc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}
