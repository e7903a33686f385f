package gamearc

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestGDDoofus_FormatFull(t *testing.T) {
	t.Parallel()

	// All 64 FAT slots populated with one-byte files.
	fat := make([]byte, gdFATSidecarSize)
	content := make([]byte, gdFATSlots)
	for i := 0; i < gdFATSlots; i++ {
		binary.LittleEndian.PutUint16(fat[i*gdFATEntryLen:], 1)
	}

	arc, err := (&gdDoofusType{filters: DefaultFilters()}).Open(
		NewMemStream(content),
		SuppData{SuppFAT: NewMemStream(fat)},
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := len(arc.Files()); got != gdFATSlots {
		t.Fatalf("parsed %d files, want %d", got, gdFATSlots)
	}

	_, err = arc.Insert(nil, "", 1, TypeGeneric, AttrDefault)
	if !errors.Is(err, ErrFormatFull) {
		t.Fatalf("err=%v, want ErrFormatFull", err)
	}
	if got := len(arc.Files()); got != gdFATSlots {
		t.Fatalf("failed insert changed file list: %d files", got)
	}
}

func TestGDDoofus_InsertRemoveKeepsTableFixed(t *testing.T) {
	t.Parallel()

	fatStore := NewMemStream(buildDoofusFAT(3, 4))
	contentStore := NewMemStream(make([]byte, 3*4))

	arc, err := (&gdDoofusType{filters: DefaultFilters()}).Open(
		contentStore,
		SuppData{SuppFAT: fatStore},
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	files := arc.Files()
	if len(files) != 3 {
		t.Fatalf("parsed %d files, want 3", len(files))
	}

	if err := arc.Remove(files[1]); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	e, err := arc.Insert(nil, "", 6, "music/tbsa", AttrDefault)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if e.Index != 2 {
		t.Fatalf("new entry index=%d, want 2", e.Index)
	}

	if err := arc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// The sidecar keeps its fixed size with the new slot in place.
	if fatStore.Size() != gdFATSidecarSize {
		t.Fatalf("sidecar size=%d, want %d", fatStore.Size(), gdFATSidecarSize)
	}

	raw := fatStore.Bytes()
	if got := binary.LittleEndian.Uint16(raw[2*gdFATEntryLen:]); got != 6 {
		t.Fatalf("slot 2 size=%d, want 6", got)
	}
	if got := binary.LittleEndian.Uint16(raw[2*gdFATEntryLen+2:]); got != gdTypeMusicTBSA {
		t.Fatalf("slot 2 type=0x%x, want 0x%x", got, gdTypeMusicTBSA)
	}
	if got := binary.LittleEndian.Uint16(raw[3*gdFATEntryLen:]); got != 0 {
		t.Fatalf("slot 3 size=%d, want vacant", got)
	}
}

func TestGDDoofus_RenameUnsupported(t *testing.T) {
	t.Parallel()

	arc, err := (&gdDoofusType{filters: DefaultFilters()}).Open(
		NewMemStream(make([]byte, 4)),
		SuppData{SuppFAT: NewMemStream(buildDoofusFAT(1, 4))},
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	err = arc.Rename(arc.Files()[0], "name")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err=%v, want ErrUnsupported", err)
	}
}

func TestGDDoofus_MissingSidecar(t *testing.T) {
	t.Parallel()

	_, err := (&gdDoofusType{filters: DefaultFilters()}).Open(NewMemStream(nil), nil)
	if !errors.Is(err, ErrSuppMissing) {
		t.Fatalf("err=%v, want ErrSuppMissing", err)
	}

	supps := (&gdDoofusType{}).RequiredSupps(nil, "doofus.g-d")
	if supps[SuppFAT] != "doofus.exe" {
		t.Fatalf("RequiredSupps=%v", supps)
	}
}

// buildDoofusFAT returns a bare 64-slot FAT sidecar with n live
// entries of the given size each.
func buildDoofusFAT(n int, size uint16) []byte {
	fat := make([]byte, gdFATSidecarSize)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(fat[i*gdFATEntryLen:], size)
	}

	return fat
}
