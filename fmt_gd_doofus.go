// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Doofus G-D binary layout.  The archive itself is raw concatenated
// payloads; the FAT lives in a fixed 64-slot table inside the game
// executable, supplied as a sidecar stream.
const (
	gdFATEntryLen = 8 // u16le size + u16le type + 4 bytes padding
	gdFATSlots    = 64

	// The only known doofus.exe build.
	gdKnownEXESize   = 580994
	gdEXEFATOffset   = 0x015372
	gdFATSidecarSize = gdFATSlots * gdFATEntryLen

	gdTypeMusicTBSA = 0x59EE
)

// gdTypeNames maps known Doofus type codes to media types.
var gdTypeNames = map[uint16]string{
	0x1636:          "unknown/doofus-1636",
	0x2376:          "unknown/doofus-2376",
	0x3276:          "unknown/doofus-3276",
	0x3F2E:          "unknown/doofus-3f2e",
	0x3F64:          "unknown/doofus-3f64",
	0x48BE:          "unknown/doofus-48be",
	0x43EE:          "unknown/doofus-43ee",
	gdTypeMusicTBSA: "music/tbsa",
}

type gdDoofusType struct {
	filters *FilterTable
}

func (t *gdDoofusType) Code() string {
	return "gd-doofus"
}

func (t *gdDoofusType) FriendlyName() string {
	return "Doofus DAT File"
}

func (t *gdDoofusType) FileExtensions() []string {
	return []string{"g-d"}
}

func (t *gdDoofusType) Games() []string {
	return []string{"Doofus"}
}

func (t *gdDoofusType) IsInstance(content Stream) Certainty {
	// There is no identifying information in this archive format at all.
	return Unsure
}

func (t *gdDoofusType) Create(content Stream, supps SuppData) (Archive, error) {
	// The FAT has to go inside a specific build of the game executable,
	// so archives cannot be made from scratch.
	return nil, fmt.Errorf("%w: cannot create archives from scratch in this format", ErrUnsupported)
}

func (t *gdDoofusType) Open(content Stream, supps SuppData) (Archive, error) {
	fatSupp, ok := supps[SuppFAT]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSuppMissing, SuppFAT)
	}

	var offFAT int64
	switch fatSupp.Size() {
	case gdKnownEXESize: // only known version
		offFAT = gdEXEFATOffset
	case gdFATSidecarSize: // bare FAT table
		offFAT = 0
	default:
		return nil, fmt.Errorf("%w: unknown executable version", ErrFormatCorrupt)
	}

	return openGDDoofus(content, newSectionStream(fatSupp, offFAT, gdFATSidecarSize), t.filters)
}

func (t *gdDoofusType) RequiredSupps(content Stream, filename string) map[SuppItem]string {
	return map[SuppItem]string{SuppFAT: "doofus.exe"}
}

// gdDoofusArchive edits Doofus archives.  The FAT is a fixed table in a
// sidecar: empty slots carry a zero size, and insert/remove keep the
// table length constant by trading slots with the zeroed tail.
type gdDoofusArchive struct {
	*FATArchive
	NoHooks

	fat      *SegStream
	numFiles int
	maxFiles int
}

func openGDDoofus(content Stream, fatStore Stream, filters *FilterTable) (*gdDoofusArchive, error) {
	a := &gdDoofusArchive{
		FATArchive: newFATArchive(content, 0, NoFilenames, filters),
		fat:        NewSegStream(fatStore),
		maxFiles:   int(fatStore.Size() / gdFATEntryLen),
	}
	a.setHooks(a)

	size := a.seg().Size()
	var off int64
	for slot := 0; slot < a.maxFiles; slot++ {
		storedSize, err := readU16(a.fat, int64(slot)*gdFATEntryLen)
		if err != nil {
			return nil, fmt.Errorf("read FAT slot %d: %w", slot, err)
		}
		if storedSize == 0 {
			continue // vacant slot
		}

		typeCode, err := readU16(a.fat, int64(slot)*gdFATEntryLen+2)
		if err != nil {
			return nil, fmt.Errorf("read FAT slot %d: %w", slot, err)
		}

		e := &Entry{
			Type:       TypeGeneric,
			Index:      a.numFiles,
			Offset:     off,
			StoredSize: int64(storedSize),
			RealSize:   int64(storedSize),
			valid:      true,
		}
		if name, ok := gdTypeNames[typeCode]; ok {
			e.Type = name
		}

		off += e.StoredSize
		if off > size {
			return nil, fmt.Errorf("%w: archive truncated or FAT corrupt", ErrFormatCorrupt)
		}

		a.files = append(a.files, e)
		a.numFiles++
	}

	return a, nil
}

func (a *gdDoofusArchive) updateSize(e *Entry, delta int64) error {
	if e.StoredSize > 0xFFFF {
		return fmt.Errorf("%w: payload larger than 64 KiB", ErrUnsupported)
	}

	return writeU16(a.fat, int64(e.Index)*gdFATEntryLen, uint16(e.StoredSize))
}

func (a *gdDoofusArchive) preInsert(before, e *Entry) error {
	if a.numFiles >= a.maxFiles {
		return fmt.Errorf("%w: all %d FAT slots are in use", ErrFormatFull, a.maxFiles)
	}
	if e.StoredSize > 0xFFFF {
		return fmt.Errorf("%w: payload larger than 64 KiB", ErrUnsupported)
	}

	e.HeaderLen = 0

	// Drop the last vacant slot so the table keeps its fixed size, then
	// make room for the new slot.
	if err := a.fat.RemoveAt(a.fat.Size()-gdFATEntryLen, gdFATEntryLen); err != nil {
		return err
	}

	slot := int64(e.Index) * gdFATEntryLen
	if err := a.fat.InsertAt(slot, gdFATEntryLen); err != nil {
		return err
	}
	if err := writeU16(a.fat, slot, uint16(e.StoredSize)); err != nil {
		return err
	}
	if err := writeU16(a.fat, slot+2, gdTypeCodeFor(e.Type)); err != nil {
		return err
	}

	a.numFiles++
	return nil
}

func (a *gdDoofusArchive) preRemove(e *Entry) error {
	if err := a.fat.RemoveAt(int64(e.Index)*gdFATEntryLen, gdFATEntryLen); err != nil {
		return err
	}

	// Pad the table back out to its fixed size.
	if err := a.fat.InsertAt(a.fat.Size(), gdFATEntryLen); err != nil {
		return err
	}

	a.numFiles--
	return nil
}

// Flush commits the archive content, then the FAT sidecar.  There is no
// cross-file atomicity: a failure between the two leaves the pair
// inconsistent.
func (a *gdDoofusArchive) Flush() error {
	if err := a.FATArchive.Flush(); err != nil {
		return err
	}

	return a.fat.Flush()
}

// gdTypeCodeFor reverses the media-type mapping for writing a slot.
func gdTypeCodeFor(mime string) uint16 {
	if mime == "music/tbsa" {
		return gdTypeMusicTBSA
	}

	if hex, ok := strings.CutPrefix(mime, "unknown/doofus-"); ok {
		if v, err := strconv.ParseUint(hex, 16, 16); err == nil {
			return uint16(v)
		}
	}

	return 0
}

// sectionStream exposes a fixed window of a parent stream as a Stream.
// The window cannot change size; only same-size truncation succeeds.
type sectionStream struct {
	parent Stream
	off    int64
	n      int64
}

func newSectionStream(parent Stream, off, n int64) *sectionStream {
	return &sectionStream{parent: parent, off: off, n: n}
}

func (s *sectionStream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: offset %d", ErrNegativeSeek, off)
	}
	if off >= s.n {
		return 0, io.EOF
	}

	short := false
	if max := s.n - off; int64(len(p)) > max {
		p = p[:max]
		short = true
	}

	n, err := s.parent.ReadAt(p, s.off+off)
	if err == nil && short {
		err = io.EOF
	}

	return n, err
}

func (s *sectionStream) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > s.n {
		return 0, fmt.Errorf("%w: write [%d,%d) in %d-byte section",
			ErrBeyondWindow, off, off+int64(len(p)), s.n)
	}

	return s.parent.WriteAt(p, s.off+off)
}

func (s *sectionStream) Size() int64 {
	return s.n
}

func (s *sectionStream) Truncate(size int64) error {
	if size == s.n {
		return nil
	}

	return fmt.Errorf("%w: fixed-size section", ErrUnsupported)
}
