// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"fmt"
	"strings"
)

// Terminal Velocity POD binary layout.
const (
	podFileCountOffset = 0
	podDescOffset      = 4
	podDescLen         = 80
	podFATOffset       = 84
	podFATEntryLen     = 40 // filename + u32le size + u32le offset
	podNameFieldLen    = 32
	podMaxNameLen      = podNameFieldLen
	podFirstFileOffset = podFATOffset // empty archive only

	podEntrySizeOffset   = 32
	podEntryOffsetOffset = 36

	podSafetyMaxFiles = 8192
)

type podType struct {
	filters *FilterTable
}

func (t *podType) Code() string {
	return "pod-tv"
}

func (t *podType) FriendlyName() string {
	return "Terminal Velocity POD File"
}

func (t *podType) FileExtensions() []string {
	return []string{"pod"}
}

func (t *podType) Games() []string {
	return []string{"Terminal Velocity"}
}

func (t *podType) IsInstance(content Stream) Certainty {
	size := content.Size()
	if size < podFATOffset {
		return DefinitelyNo // too short
	}

	numFiles, err := readU32(content, podFileCountOffset)
	if err != nil || numFiles >= podSafetyMaxFiles {
		return DefinitelyNo
	}
	if podFATOffset+int64(numFiles)*podFATEntryLen > size {
		return DefinitelyNo
	}

	for i := 0; i < int(numFiles); i++ {
		base := podFATOffset + int64(i)*podFATEntryLen
		name, err := readPadded(content, base, podNameFieldLen)
		if err != nil {
			return DefinitelyNo
		}
		for j := 0; j < len(name); j++ {
			if name[j] < 32 {
				return DefinitelyNo
			}
		}

		entrySize, err := readU32(content, base+podEntrySizeOffset)
		if err != nil {
			return DefinitelyNo
		}
		entryOffset, err := readU32(content, base+podEntryOffsetOffset)
		if err != nil {
			return DefinitelyNo
		}
		if int64(entryOffset)+int64(entrySize) > size {
			return DefinitelyNo
		}
	}

	// No signature; structural checks are the best we can do.
	return PossiblyYes
}

func (t *podType) Create(content Stream, supps SuppData) (Archive, error) {
	if err := content.Truncate(0); err != nil {
		return nil, err
	}

	hdr := make([]byte, podFATOffset)
	copy(hdr[podDescOffset:], "Empty POD file")
	if _, err := content.WriteAt(hdr, 0); err != nil {
		return nil, err
	}

	return openPOD(content, t.filters)
}

func (t *podType) Open(content Stream, supps SuppData) (Archive, error) {
	return openPOD(content, t.filters)
}

func (t *podType) RequiredSupps(content Stream, filename string) map[SuppItem]string {
	return nil
}

// podArchive edits POD files.  The FAT sits between the 84-byte header
// and the first file and stores absolute payload offsets.
type podArchive struct {
	*FATArchive
	NoHooks
}

func openPOD(content Stream, filters *FilterTable) (*podArchive, error) {
	a := &podArchive{FATArchive: newFATArchive(content, podFirstFileOffset, podMaxNameLen, filters)}
	a.setHooks(a)
	seg := a.seg()

	size := seg.Size()
	if size < podFATOffset {
		return nil, fmt.Errorf("%w: file too short", ErrFormatCorrupt)
	}

	numFiles, err := readU32(seg, podFileCountOffset)
	if err != nil {
		return nil, fmt.Errorf("read file count: %w", err)
	}
	if numFiles >= podSafetyMaxFiles {
		return nil, fmt.Errorf("%w: too many files", ErrFormatCorrupt)
	}
	if podFATOffset+int64(numFiles)*podFATEntryLen > size {
		return nil, fmt.Errorf("%w: FAT past end of file", ErrFormatCorrupt)
	}

	for i := 0; i < int(numFiles); i++ {
		base := podFATOffset + int64(i)*podFATEntryLen
		name, err := readPadded(seg, base, podNameFieldLen)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}
		entrySize, err := readU32(seg, base+podEntrySizeOffset)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}
		entryOffset, err := readU32(seg, base+podEntryOffsetOffset)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}

		a.files = append(a.files, &Entry{
			Name:       name,
			Type:       TypeGeneric,
			Index:      i,
			Offset:     int64(entryOffset),
			StoredSize: int64(entrySize),
			RealSize:   int64(entrySize),
			valid:      true,
		})
	}

	desc, err := readPadded(seg, podDescOffset, podDescLen)
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}
	a.attrs = append(a.attrs, Attribute{
		Type:       AttributeText,
		Name:       "Description",
		Desc:       "Description of this POD file",
		TextValue:  desc,
		TextMaxLen: podDescLen,
	})

	return a, nil
}

func (a *podArchive) fatEntryOff(e *Entry) int64 {
	return podFATOffset + int64(e.Index)*podFATEntryLen
}

func (a *podArchive) updateName(e *Entry, name string) error {
	return writePadded(a.seg(), a.fatEntryOff(e), name, podNameFieldLen)
}

func (a *podArchive) updateSize(e *Entry, delta int64) error {
	return writeU32(a.seg(), a.fatEntryOff(e)+podEntrySizeOffset, uint32(e.StoredSize))
}

func (a *podArchive) updateOffset(e *Entry, delta int64) error {
	return writeU32(a.seg(), a.fatEntryOff(e)+podEntryOffsetOffset, uint32(e.Offset))
}

func (a *podArchive) preInsert(before, e *Entry) error {
	e.HeaderLen = 0
	e.Name = strings.ToUpper(e.Name)

	// The new entry is not in the list yet, so account for the FAT
	// growth on it by hand before the list-wide shift below.
	e.Offset += podFATEntryLen

	base := a.fatEntryOff(e)
	if err := a.seg().InsertAt(base, podFATEntryLen); err != nil {
		return err
	}
	if err := writePadded(a.seg(), base, e.Name, podNameFieldLen); err != nil {
		return err
	}
	if err := writeU32(a.seg(), base+podEntrySizeOffset, uint32(e.StoredSize)); err != nil {
		return err
	}
	if err := writeU32(a.seg(), base+podEntryOffsetOffset, uint32(e.Offset)); err != nil {
		return err
	}

	if err := a.shiftFiles(nil, podFATOffset+int64(len(a.files))*podFATEntryLen, podFATEntryLen, 0); err != nil {
		return err
	}

	return a.updateFileCount(len(a.files) + 1)
}

func (a *podArchive) preRemove(e *Entry) error {
	if err := a.shiftFiles(nil, podFATOffset+int64(len(a.files))*podFATEntryLen, -podFATEntryLen, 0); err != nil {
		return err
	}

	if err := a.seg().RemoveAt(a.fatEntryOff(e), podFATEntryLen); err != nil {
		return err
	}

	return a.updateFileCount(len(a.files) - 1)
}

func (a *podArchive) updateFileCount(n int) error {
	return writeU32(a.seg(), podFileCountOffset, uint32(n))
}

// SetTextAttribute writes an accepted description straight into the
// fixed header field.
func (a *podArchive) SetTextAttribute(index int, value string) error {
	if err := a.FATArchive.SetTextAttribute(index, value); err != nil {
		return err
	}

	if index == 0 {
		if err := writePadded(a.seg(), podDescOffset, value, podDescLen); err != nil {
			return err
		}
		a.attrs[0].Changed = false
	}

	return nil
}
