package gamearc

import (
	"bytes"
	"testing"
)

func TestDATBash_RemoveLeavesScratchBuild(t *testing.T) {
	t.Parallel()

	// Removing a file from a two-file archive must leave the same bytes
	// as building an archive with only the survivor.
	twoFiles := NewMemStream(nil)
	arc := buildDATBash(t, twoFiles, []bashFixtureFile{
		{name: "foo.mif", payload: []byte("info data")},
		{name: "bar.snd", payload: []byte("sound data")},
	})

	if err := arc.Remove(arc.Find("foo.mif")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := arc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	oneFile := NewMemStream(nil)
	buildDATBash(t, oneFile, []bashFixtureFile{
		{name: "bar.snd", payload: []byte("sound data")},
	})

	if !bytes.Equal(twoFiles.Bytes(), oneFile.Bytes()) {
		t.Fatalf("after remove\n got %x\nwant %x", twoFiles.Bytes(), oneFile.Bytes())
	}
}

func TestDATBash_TypeCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		wantCode uint16
		wantMime string
	}{
		{"level1.mif", 0, "map/bash-info"},
		{"back.mbg", 1, "map/bash-bg"},
		{"front.mfg", 2, "map/bash-fg"},
		{"tiles.tbg", 3, "image/bash-tiles-bg"},
		{"tiles.tfg", 4, "image/bash-tiles-fg"},
		{"bonus.tbn", 5, "image/bash-tiles-bn"},
		{"list.sgl", 6, "map/bash-sgl"},
		{"sprites.msp", 7, "map/bash-sprites"},
		{"noise.snd", 8, "sound/bash"},
		{"pic.pbg", 12, "image/bash-pbg"},
		{"pic.pfg", 13, "image/bash-pfg"},
		{"colors.pal", 14, "image/bash-palette"},
		{"pic.pbn", 16, "image/bash-pbn"},
		{"hero.spr", 64, "image/bash-sprite"},
		{"readme.txt", 32, TypeGeneric},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			code, native, mime := datBashCodeForName(tc.name)
			if code != tc.wantCode || mime != tc.wantMime {
				t.Fatalf("code/mime = %d/%q, want %d/%q", code, mime, tc.wantCode, tc.wantMime)
			}

			// Round trip back to the logical name.
			gotName, gotMime := datBashNameForCode(code, native)
			if gotName != tc.name || gotMime != tc.wantMime {
				t.Fatalf("round trip name/mime = %q/%q, want %q/%q", gotName, gotMime, tc.name, tc.wantMime)
			}
		})
	}
}

func TestDATBash_ParseEmbeddedFAT(t *testing.T) {
	t.Parallel()

	backing := NewMemStream(nil)
	buildDATBash(t, backing, []bashFixtureFile{
		{name: "a.mif", payload: []byte("one")},
		{name: "b.spr", payload: []byte("two2")},
	})

	arc, err := (&datBashType{filters: DefaultFilters()}).Open(backing, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	files := arc.Files()
	if len(files) != 2 {
		t.Fatalf("parsed %d files, want 2", len(files))
	}

	first := files[0]
	if first.Name != "A.mif" && first.Name != "A.MIF" {
		// Insert uppercases the native name; the fake extension is
		// appended lower-case on parse.
		t.Fatalf("entry 0 name=%q", first.Name)
	}
	if first.HeaderLen != datBashEFATLen {
		t.Fatalf("entry 0 header len=%d, want %d", first.HeaderLen, datBashEFATLen)
	}
	if first.Offset != 0 {
		t.Fatalf("entry 0 offset=%d, want 0", first.Offset)
	}
	if files[1].Offset != datBashEFATLen+3 {
		t.Fatalf("entry 1 offset=%d, want %d", files[1].Offset, datBashEFATLen+3)
	}

	if got := readAllEntry(t, arc, files[1].Name); string(got) != "two2" {
		t.Fatalf("payload=%q", got)
	}
}

func TestDATBash_RenameRewritesTypeCode(t *testing.T) {
	t.Parallel()

	backing := NewMemStream(nil)
	arc := buildDATBash(t, backing, []bashFixtureFile{
		{name: "thing.mif", payload: []byte("x")},
	})

	e := arc.Find("thing.mif")
	if err := arc.Rename(e, "thing.spr"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := arc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	code, err := readU16(backing, 0)
	if err != nil {
		t.Fatalf("read type code: %v", err)
	}
	if code != 64 {
		t.Fatalf("type code=%d, want 64", code)
	}
	if e.Type != "image/bash-sprite" {
		t.Fatalf("entry type=%q", e.Type)
	}
}

func TestDATBash_IsInstance(t *testing.T) {
	t.Parallel()

	bash := &datBashType{filters: DefaultFilters()}

	good := NewMemStream(nil)
	buildDATBash(t, good, []bashFixtureFile{
		{name: "a.mif", payload: []byte("one")},
	})
	if got := bash.IsInstance(good); got != DefinitelyYes {
		t.Fatalf("well-formed archive: %v", got)
	}

	// Control characters in the filename reject the archive.
	bad := NewMemStream(nil)
	buildDATBash(t, bad, []bashFixtureFile{
		{name: "a.mif", payload: []byte("one")},
	})
	raw := bad.Bytes()
	raw[datBashNameOffset] = 0x01
	if got := bash.IsInstance(NewMemStream(raw)); got != DefinitelyNo {
		t.Fatalf("control characters: %v", got)
	}

	// An entry running past the end rejects the archive.
	truncated := NewMemStream(good.Bytes()[:good.Size()-2])
	if got := bash.IsInstance(truncated); got != DefinitelyNo {
		t.Fatalf("truncated archive: %v", got)
	}
}

// bashFixtureFile is one input for buildDATBash.
type bashFixtureFile struct {
	name    string
	payload []byte
}

// buildDATBash creates a Monster Bash DAT with the given files in
// order, flushed to backing.
func buildDATBash(t *testing.T, backing *MemStream, files []bashFixtureFile) Archive {
	t.Helper()

	arc, err := (&datBashType{filters: DefaultFilters()}).Create(backing, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, f := range files {
		e, err := arc.Insert(nil, f.name, int64(len(f.payload)), TypeGeneric, AttrDefault)
		if err != nil {
			t.Fatalf("Insert %s: %v", f.name, err)
		}

		view, err := arc.Open(e, false)
		if err != nil {
			t.Fatalf("Open %s: %v", f.name, err)
		}
		if _, err := view.Write(f.payload); err != nil {
			t.Fatalf("Write %s: %v", f.name, err)
		}
	}

	if err := arc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	return arc
}
