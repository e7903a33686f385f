// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"fmt"
	"io"
	"strings"
)

// Duke Nukem 3D GRP binary layout.
const (
	grpSignature       = "KenSilverman"
	grpHeaderLen       = 16 // signature + u32le file count
	grpFileCountOffset = 12
	grpFATOffset       = grpHeaderLen
	grpNameFieldLen    = 12
	grpMaxNameLen      = grpNameFieldLen
	grpFATEntryLen     = 16 // filename + u32le size
	grpFirstFileOffset = grpFATOffset // empty archive only

	grpSafetyMaxFiles = 8192
)

type grpType struct {
	filters *FilterTable
}

func (t *grpType) Code() string {
	return "grp-duke3d"
}

func (t *grpType) FriendlyName() string {
	return "Duke Nukem 3D Group File"
}

func (t *grpType) FileExtensions() []string {
	return []string{"grp"}
}

func (t *grpType) Games() []string {
	return []string{
		"Blood",
		"Duke Nukem 3D",
		"Redneck Rampage",
		"Shadow Warrior",
	}
}

func (t *grpType) IsInstance(content Stream) Certainty {
	if content.Size() < grpHeaderLen {
		return DefinitelyNo // too short
	}

	var sig [12]byte
	if _, err := io.ReadFull(io.NewSectionReader(content, 0, 12), sig[:]); err != nil {
		return DefinitelyNo
	}

	if string(sig[:]) == grpSignature {
		return DefinitelyYes
	}

	return DefinitelyNo
}

func (t *grpType) Create(content Stream, supps SuppData) (Archive, error) {
	if err := content.Truncate(0); err != nil {
		return nil, err
	}
	if _, err := content.WriteAt(append([]byte(grpSignature), 0, 0, 0, 0), 0); err != nil {
		return nil, err
	}

	return openGRP(content, t.filters)
}

func (t *grpType) Open(content Stream, supps SuppData) (Archive, error) {
	return openGRP(content, t.filters)
}

func (t *grpType) RequiredSupps(content Stream, filename string) map[SuppItem]string {
	return nil
}

// grpArchive edits GRP files.  The FAT sits between the header and the
// first file; no offsets are stored, so payload positions are derived
// from the running size total.
type grpArchive struct {
	*FATArchive
	NoHooks
}

func openGRP(content Stream, filters *FilterTable) (*grpArchive, error) {
	a := &grpArchive{FATArchive: newFATArchive(content, grpFirstFileOffset, grpMaxNameLen, filters)}
	a.setHooks(a)
	seg := a.seg()

	size := seg.Size()
	if size < grpHeaderLen {
		return nil, fmt.Errorf("%w: file too short", ErrFormatCorrupt)
	}

	numFiles, err := readU32(seg, grpFileCountOffset)
	if err != nil {
		return nil, fmt.Errorf("read file count: %w", err)
	}
	if numFiles >= grpSafetyMaxFiles {
		return nil, fmt.Errorf("%w: too many files", ErrFormatCorrupt)
	}

	offNext := grpFATOffset + int64(numFiles)*grpFATEntryLen
	if offNext > size {
		return nil, fmt.Errorf("%w: FAT past end of file", ErrFormatCorrupt)
	}

	for i := 0; i < int(numFiles); i++ {
		base := grpFATOffset + int64(i)*grpFATEntryLen
		name, err := readPadded(seg, base, grpNameFieldLen)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}
		fileSize, err := readU32(seg, base+grpNameFieldLen)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}

		a.files = append(a.files, &Entry{
			Name:       name,
			Type:       TypeGeneric,
			Index:      i,
			Offset:     offNext,
			StoredSize: int64(fileSize),
			RealSize:   int64(fileSize),
			valid:      true,
		})

		offNext += int64(fileSize)
		if offNext > size {
			return nil, fmt.Errorf("%w: entry %d past end of file", ErrFormatCorrupt, i)
		}
	}

	return a, nil
}

func (a *grpArchive) fatEntryOff(e *Entry) int64 {
	return grpFATOffset + int64(e.Index)*grpFATEntryLen
}

func (a *grpArchive) updateName(e *Entry, name string) error {
	return writePadded(a.seg(), a.fatEntryOff(e), name, grpNameFieldLen)
}

func (a *grpArchive) updateSize(e *Entry, delta int64) error {
	return writeU32(a.seg(), a.fatEntryOff(e)+grpNameFieldLen, uint32(e.StoredSize))
}

func (a *grpArchive) preInsert(before, e *Entry) error {
	e.HeaderLen = 0
	e.Name = strings.ToUpper(e.Name)

	// The new entry is not in the list yet, so account for the FAT
	// growth on it by hand before the list-wide shift below.
	e.Offset += grpFATEntryLen

	base := a.fatEntryOff(e)
	if err := a.seg().InsertAt(base, grpFATEntryLen); err != nil {
		return err
	}
	if err := writePadded(a.seg(), base, e.Name, grpNameFieldLen); err != nil {
		return err
	}
	if err := writeU32(a.seg(), base+grpNameFieldLen, uint32(e.StoredSize)); err != nil {
		return err
	}

	// Everything after the old end of the FAT moves forward by one
	// FAT slot.
	if err := a.shiftFiles(nil, grpFATOffset+int64(len(a.files))*grpFATEntryLen, grpFATEntryLen, 0); err != nil {
		return err
	}

	return a.updateFileCount(len(a.files) + 1)
}

func (a *grpArchive) preRemove(e *Entry) error {
	// GRP stores no offsets, so this shift only updates the in-memory
	// entries and open views for the FAT shrinking by one slot.
	if err := a.shiftFiles(nil, grpFATOffset+int64(len(a.files))*grpFATEntryLen, -grpFATEntryLen, 0); err != nil {
		return err
	}

	if err := a.seg().RemoveAt(a.fatEntryOff(e), grpFATEntryLen); err != nil {
		return err
	}

	return a.updateFileCount(len(a.files) - 1)
}

func (a *grpArchive) updateFileCount(n int) error {
	return writeU32(a.seg(), grpFileCountOffset, uint32(n))
}
