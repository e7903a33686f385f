// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"fmt"
	"io"
	"strings"
)

// East Point Software EPFS binary layout.
const (
	epfHeaderLen       = 11
	epfFATOffsetPos    = 4
	epfFileCountPos    = 9
	epfFirstFileOffset = epfHeaderLen

	epfNameFieldLen = 13
	epfMaxNameLen   = 12
	epfFATEntryLen  = 22

	// Field positions inside one FAT entry.
	epfEntryFlagsOffset    = 13
	epfEntrySizeOffset     = 14
	epfEntryRealSizeOffset = 18

	epfFlagCompressed = 1
)

type epfType struct {
	filters *FilterTable
}

func (t *epfType) Code() string {
	return "epf-lionking"
}

func (t *epfType) FriendlyName() string {
	return "East Point Software EPFS File"
}

func (t *epfType) FileExtensions() []string {
	return []string{"epf"}
}

func (t *epfType) Games() []string {
	return []string{
		"Alien Breed Tower Assault",
		"Arcade Pool",
		"Jungle Book, The",
		"Lion King, The",
		"Overdrive",
		"Project X",
		"Sensible Golf",
		"Smurfs, The",
		"Universe",
	}
}

func (t *epfType) IsInstance(content Stream) Certainty {
	if content.Size() < epfHeaderLen {
		return DefinitelyNo // too short
	}

	var sig [4]byte
	if _, err := io.ReadFull(io.NewSectionReader(content, 0, 4), sig[:]); err != nil {
		return DefinitelyNo
	}

	if string(sig[:]) == "EPFS" {
		return DefinitelyYes
	}

	return DefinitelyNo
}

func (t *epfType) Create(content Stream, supps SuppData) (Archive, error) {
	if err := content.Truncate(0); err != nil {
		return nil, err
	}

	hdr := make([]byte, epfHeaderLen)
	copy(hdr, "EPFS")
	hdr[epfFATOffsetPos] = epfHeaderLen
	if _, err := content.WriteAt(hdr, 0); err != nil {
		return nil, err
	}

	return openEPF(content, t.filters)
}

func (t *epfType) Open(content Stream, supps SuppData) (Archive, error) {
	return openEPF(content, t.filters)
}

func (t *epfType) RequiredSupps(content Stream, filename string) map[SuppItem]string {
	return nil
}

// epfArchive edits EPFS files.  The FAT sits at the end of the archive
// and is edited in place; payload offsets are not stored, so they are
// derived sequentially.  Free-form text between the last file and the
// FAT is exposed as a description attribute.
type epfArchive struct {
	*FATArchive
	NoHooks

	offFAT int64
}

func openEPF(content Stream, filters *FilterTable) (*epfArchive, error) {
	a := &epfArchive{FATArchive: newFATArchive(content, epfFirstFileOffset, epfMaxNameLen, filters)}
	a.setHooks(a)
	seg := a.seg()

	size := seg.Size()
	if size < epfHeaderLen {
		return nil, fmt.Errorf("%w: file too short", ErrFormatCorrupt)
	}

	offFAT, err := readU32(seg, epfFATOffsetPos)
	if err != nil {
		return nil, fmt.Errorf("read FAT offset: %w", err)
	}
	numFiles, err := readU16(seg, epfFileCountPos)
	if err != nil {
		return nil, fmt.Errorf("read file count: %w", err)
	}

	a.offFAT = int64(offFAT)
	if a.offFAT > size || a.offFAT+int64(numFiles)*epfFATEntryLen > size {
		return nil, fmt.Errorf("%w: header corrupted or file truncated", ErrFormatCorrupt)
	}

	offNext := int64(epfFirstFileOffset)
	for i := 0; i < int(numFiles); i++ {
		base := a.offFAT + int64(i)*epfFATEntryLen
		name, err := readPadded(seg, base, epfNameFieldLen)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}
		flags, err := readU8(seg, base+epfEntryFlagsOffset)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}
		storedSize, err := readU32(seg, base+epfEntrySizeOffset)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}
		realSize, err := readU32(seg, base+epfEntryRealSizeOffset)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}

		e := &Entry{
			Name:       name,
			Type:       TypeGeneric,
			Index:      i,
			Offset:     offNext,
			StoredSize: int64(storedSize),
			RealSize:   int64(realSize),
			valid:      true,
		}
		if flags&epfFlagCompressed != 0 {
			e.Attr |= AttrCompressed
			e.Filter = "lzw-epfs"
		}

		offNext += e.StoredSize
		a.files = append(a.files, e)
	}

	// The gap between the last file and the FAT is a description.
	a.attrs = append(a.attrs, Attribute{
		Type: AttributeText,
		Name: "Comment",
		Desc: "Description",
	})
	offDesc := a.descOffset()
	if sizeDesc := a.offFAT - offDesc; sizeDesc > 0 {
		desc := make([]byte, sizeDesc)
		if _, err := io.ReadFull(io.NewSectionReader(seg, offDesc, sizeDesc), desc); err != nil {
			return nil, fmt.Errorf("read description: %w", err)
		}
		a.attrs[0].TextValue = string(desc)
	}

	return a, nil
}

func (a *epfArchive) fatEntryOff(e *Entry) int64 {
	return a.offFAT + int64(e.Index)*epfFATEntryLen
}

func (a *epfArchive) updateName(e *Entry, name string) error {
	return writePadded(a.seg(), a.fatEntryOff(e), name, epfNameFieldLen)
}

func (a *epfArchive) updateSize(e *Entry, delta int64) error {
	base := a.fatEntryOff(e)
	if err := writeU32(a.seg(), base+epfEntrySizeOffset, uint32(e.StoredSize)); err != nil {
		return err
	}
	if err := writeU32(a.seg(), base+epfEntryRealSizeOffset, uint32(e.RealSize)); err != nil {
		return err
	}

	// The payload change about to land moves the FAT with it.
	a.offFAT += delta
	return a.updateFATOffset()
}

func (a *epfArchive) preInsert(before, e *Entry) error {
	e.HeaderLen = 0
	if e.Attr&AttrCompressed != 0 {
		e.Filter = "lzw-epfs"
	}

	return nil
}

func (a *epfArchive) postInsert(e *Entry) error {
	a.offFAT += e.StoredSize

	base := a.fatEntryOff(e)
	if err := a.seg().InsertAt(base, epfFATEntryLen); err != nil {
		return err
	}

	e.Name = strings.ToUpper(e.Name)
	var flags uint8
	if e.Attr&AttrCompressed != 0 {
		flags = epfFlagCompressed
	}

	if err := writePadded(a.seg(), base, e.Name, epfNameFieldLen); err != nil {
		return err
	}
	if err := writeU8(a.seg(), base+epfEntryFlagsOffset, flags); err != nil {
		return err
	}
	if err := writeU32(a.seg(), base+epfEntrySizeOffset, uint32(e.StoredSize)); err != nil {
		return err
	}
	if err := writeU32(a.seg(), base+epfEntryRealSizeOffset, uint32(e.RealSize)); err != nil {
		return err
	}

	if err := a.updateFATOffset(); err != nil {
		return err
	}

	return a.updateFileCount(len(a.files))
}

func (a *epfArchive) preRemove(e *Entry) error {
	if err := a.seg().RemoveAt(a.fatEntryOff(e), epfFATEntryLen); err != nil {
		return err
	}

	a.offFAT -= e.StoredSize
	if err := a.updateFATOffset(); err != nil {
		return err
	}

	return a.updateFileCount(len(a.files) - 1)
}

func (a *epfArchive) updateFileCount(n int) error {
	return writeU16(a.seg(), epfFileCountPos, uint16(n))
}

func (a *epfArchive) updateFATOffset() error {
	return writeU32(a.seg(), epfFATOffsetPos, uint32(a.offFAT))
}

// descOffset returns where the description region begins: right after
// the last file's payload.
func (a *epfArchive) descOffset() int64 {
	if n := len(a.files); n > 0 {
		last := a.files[n-1]
		return last.Offset + last.StoredSize
	}

	return epfFirstFileOffset
}

// Flush writes a pending description change, adjusting the FAT offset
// for the size difference, then commits.
func (a *epfArchive) Flush() error {
	if len(a.attrs) > 0 && a.attrs[0].Changed {
		seg := a.seg()
		offDesc := a.descOffset()
		sizeDesc := a.offFAT - offDesc
		text := a.attrs[0].TextValue
		delta := int64(len(text)) - sizeDesc

		if delta < 0 {
			if err := seg.RemoveAt(offDesc, -delta); err != nil {
				return err
			}
		} else if delta > 0 {
			if err := seg.InsertAt(offDesc, delta); err != nil {
				return err
			}
		}

		if len(text) > 0 {
			if _, err := seg.WriteAt([]byte(text), offDesc); err != nil {
				return err
			}
		}

		a.offFAT += delta
		if err := a.updateFATOffset(); err != nil {
			return err
		}
		a.attrs[0].Changed = false
	}

	return a.FATArchive.Flush()
}
