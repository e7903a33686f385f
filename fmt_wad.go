// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"fmt"
	"io"
	"strings"
)

// Doom WAD binary layout.
const (
	wadHeaderLen       = 12
	wadFileCountOffset = 4
	wadFATOffsetOffset = 8
	wadNameFieldLen    = 8
	wadMaxNameLen      = wadNameFieldLen
	wadFATEntryLen     = 16
	wadFirstFileOffset = wadHeaderLen // empty archive only

	// wadSafetyMaxFiles caps the file count we will load.
	wadSafetyMaxFiles = 8192
)

type wadType struct {
	filters *FilterTable
}

func (t *wadType) Code() string {
	return "wad-doom"
}

func (t *wadType) FriendlyName() string {
	return "Doom WAD File"
}

func (t *wadType) FileExtensions() []string {
	return []string{"wad", "rts"}
}

func (t *wadType) Games() []string {
	return []string{
		"Doom",
		"Duke Nukem 3D",
		"Heretic",
		"Hexen",
		"Redneck Rampage",
		"Rise of the Triad",
		"Shadow Warrior",
	}
}

func (t *wadType) IsInstance(content Stream) Certainty {
	if content.Size() < wadHeaderLen {
		return DefinitelyNo // too short
	}

	var sig [4]byte
	if _, err := io.ReadFull(io.NewSectionReader(content, 0, 4), sig[:]); err != nil {
		return DefinitelyNo
	}

	if string(sig[:]) == "IWAD" || string(sig[:]) == "PWAD" {
		return DefinitelyYes
	}

	return DefinitelyNo
}

func (t *wadType) Create(content Stream, supps SuppData) (Archive, error) {
	if err := content.Truncate(0); err != nil {
		return nil, err
	}
	if _, err := content.WriteAt([]byte("IWAD\x00\x00\x00\x00\x0c\x00\x00\x00"), 0); err != nil {
		return nil, err
	}

	return openWAD(content, t.filters)
}

func (t *wadType) Open(content Stream, supps SuppData) (Archive, error) {
	return openWAD(content, t.filters)
}

func (t *wadType) RequiredSupps(content Stream, filename string) map[SuppItem]string {
	return nil
}

// wadArchive edits Doom WAD files.  The FAT sits at the end of the
// archive; edits go to an in-memory mirror which flush writes back
// after the last file, updating the header's FAT offset.
type wadArchive struct {
	*FATArchive
	NoHooks

	fat      *SegStream
	modified bool
}

func openWAD(content Stream, filters *FilterTable) (*wadArchive, error) {
	a := &wadArchive{FATArchive: newFATArchive(content, wadFirstFileOffset, wadMaxNameLen, filters)}
	a.setHooks(a)
	seg := a.seg()

	size := seg.Size()
	if size < wadHeaderLen {
		return nil, fmt.Errorf("%w: file too short", ErrFormatCorrupt)
	}

	var sig [4]byte
	if _, err := io.ReadFull(io.NewSectionReader(seg, 0, 4), sig[:]); err != nil {
		return nil, fmt.Errorf("read signature: %w", err)
	}

	numFiles, err := readU32(seg, wadFileCountOffset)
	if err != nil {
		return nil, fmt.Errorf("read file count: %w", err)
	}
	offFAT, err := readU32(seg, wadFATOffsetOffset)
	if err != nil {
		return nil, fmt.Errorf("read FAT offset: %w", err)
	}

	if numFiles >= wadSafetyMaxFiles {
		return nil, fmt.Errorf("%w: too many files", ErrFormatCorrupt)
	}
	fatLen := int64(numFiles) * wadFATEntryLen
	if int64(offFAT)+fatLen > size {
		return nil, fmt.Errorf("%w: FAT past end of file", ErrFormatCorrupt)
	}

	fatBytes := make([]byte, fatLen)
	if fatLen > 0 {
		if _, err := io.ReadFull(io.NewSectionReader(seg, int64(offFAT), fatLen), fatBytes); err != nil {
			return nil, fmt.Errorf("read FAT: %w", err)
		}
	}
	a.fat = NewSegStream(NewMemStream(fatBytes))

	for i := 0; i < int(numFiles); i++ {
		base := int64(i) * wadFATEntryLen
		offset, err := readU32(a.fat, base)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}
		lumpSize, err := readU32(a.fat, base+4)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}
		name, err := readPadded(a.fat, base+8, wadNameFieldLen)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}

		a.files = append(a.files, &Entry{
			Name:       name,
			Type:       TypeGeneric,
			Index:      i,
			Offset:     int64(offset),
			StoredSize: int64(lumpSize),
			RealSize:   int64(lumpSize),
			valid:      true,
		})
	}

	a.attrs = append(a.attrs, Attribute{
		Type: AttributeEnum,
		Name: "Type",
		Desc: "Type of WAD format.  IWAD files contain all data for the " +
			"game; PWAD files take priority and override files, with anything " +
			"missing read from the IWAD instead.",
		EnumNames: []string{"IWAD", "PWAD"},
	})
	if sig[0] == 'P' {
		a.attrs[0].EnumValue = 1
	}

	return a, nil
}

func (a *wadArchive) fatEntryOff(e *Entry) int64 {
	return int64(e.Index) * wadFATEntryLen
}

func (a *wadArchive) updateName(e *Entry, name string) error {
	a.modified = true
	return writePadded(a.fat, a.fatEntryOff(e)+8, name, wadNameFieldLen)
}

func (a *wadArchive) updateOffset(e *Entry, delta int64) error {
	a.modified = true
	return writeU32(a.fat, a.fatEntryOff(e), uint32(e.Offset))
}

func (a *wadArchive) updateSize(e *Entry, delta int64) error {
	a.modified = true
	return writeU32(a.fat, a.fatEntryOff(e)+4, uint32(e.StoredSize))
}

func (a *wadArchive) preInsert(before, e *Entry) error {
	e.HeaderLen = 0
	e.Name = strings.ToUpper(e.Name)

	base := a.fatEntryOff(e)
	if err := a.fat.InsertAt(base, wadFATEntryLen); err != nil {
		return err
	}
	if err := writeU32(a.fat, base, uint32(e.Offset)); err != nil {
		return err
	}
	if err := writeU32(a.fat, base+4, uint32(e.StoredSize)); err != nil {
		return err
	}
	if err := writePadded(a.fat, base+8, e.Name, wadNameFieldLen); err != nil {
		return err
	}

	a.modified = true
	return nil
}

func (a *wadArchive) postInsert(e *Entry) error {
	return a.updateFileCount(len(a.files))
}

func (a *wadArchive) preRemove(e *Entry) error {
	a.modified = true
	return a.fat.RemoveAt(a.fatEntryOff(e), wadFATEntryLen)
}

func (a *wadArchive) postRemove(e *Entry) error {
	return a.updateFileCount(len(a.files))
}

func (a *wadArchive) updateFileCount(n int) error {
	return writeU32(a.seg(), wadFileCountOffset, uint32(n))
}

// Flush writes the pending WAD type attribute, rebuilds the on-disk FAT
// after the last file, and commits.
func (a *wadArchive) Flush() error {
	if len(a.attrs) > 0 && a.attrs[0].Changed {
		val := byte('I')
		if a.attrs[0].EnumValue == 1 {
			val = 'P'
		}
		if err := writeU8(a.seg(), 0, val); err != nil {
			return err
		}
		a.attrs[0].Changed = false
	}

	if a.modified {
		if err := a.rewriteFAT(); err != nil {
			return err
		}
		a.modified = false
	}

	return a.FATArchive.Flush()
}

// rewriteFAT places the in-memory FAT immediately after the last file's
// data and points the header at it.
func (a *wadArchive) rewriteFAT() error {
	seg := a.seg()

	offFAT := int64(wadFirstFileOffset)
	if n := len(a.files); n > 0 {
		last := a.files[n-1]
		offFAT = last.Offset + last.HeaderLen + last.StoredSize
	}

	if err := writeU32(seg, wadFATOffsetOffset, uint32(offFAT)); err != nil {
		return err
	}

	// Grow or shrink the tail so the archive ends right after the FAT.
	fatLen := a.fat.Size()
	delta := offFAT + fatLen - seg.Size()
	if delta > 0 {
		if err := seg.InsertAt(offFAT, delta); err != nil {
			return err
		}
	} else if delta < 0 {
		if err := seg.RemoveAt(offFAT, -delta); err != nil {
			return err
		}
	}

	if fatLen > 0 {
		fatBytes := make([]byte, fatLen)
		if _, err := io.ReadFull(io.NewSectionReader(a.fat, 0, fatLen), fatBytes); err != nil {
			return err
		}
		if _, err := seg.WriteAt(fatBytes, offFAT); err != nil {
			return err
		}
	}

	return nil
}
