// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"fmt"
	"io"
	"strings"
)

// Blood RFF binary layout.
const (
	rffVersionOffset   = 4
	rffFATOffsetOffset = 8
	rffFileCountOffset = 12
	rffHeaderLen       = 32
	rffFirstFileOffset = rffHeaderLen
	rffFATEntryLen     = 48

	// Field positions inside one FAT entry.
	rffEntryOffsetOffset = 16
	rffEntrySizeOffset   = 20
	rffEntryFlagsOffset  = 33
	rffEntryNameOffset   = 34

	rffFlagEncrypted = 0x10

	rffVersion20 = 0x200
	rffVersion31 = 0x301

	rffSafetyMaxFiles = 8192
)

type rffType struct {
	filters *FilterTable
}

func (t *rffType) Code() string {
	return "rff-blood"
}

func (t *rffType) FriendlyName() string {
	return "Monolith Resource File Format"
}

func (t *rffType) FileExtensions() []string {
	return []string{"rff"}
}

func (t *rffType) Games() []string {
	return []string{"Blood"}
}

func (t *rffType) IsInstance(content Stream) Certainty {
	if content.Size() < rffHeaderLen {
		return DefinitelyNo // too short
	}

	var sig [4]byte
	if _, err := io.ReadFull(io.NewSectionReader(content, 0, 4), sig[:]); err != nil {
		return DefinitelyNo
	}

	if string(sig[:]) == "RFF\x1A" {
		return DefinitelyYes
	}

	return DefinitelyNo
}

func (t *rffType) Create(content Stream, supps SuppData) (Archive, error) {
	if err := content.Truncate(0); err != nil {
		return nil, err
	}

	hdr := make([]byte, rffHeaderLen)
	copy(hdr, "RFF\x1A")
	hdr[rffVersionOffset] = 0x00
	hdr[rffVersionOffset+1] = 0x02 // default version 2.0
	hdr[rffFATOffsetOffset] = rffHeaderLen
	if _, err := content.WriteAt(hdr, 0); err != nil {
		return nil, err
	}

	return openRFF(content, t.filters)
}

func (t *rffType) Open(content Stream, supps SuppData) (Archive, error) {
	return openRFF(content, t.filters)
}

func (t *rffType) RequiredSupps(content Stream, filename string) map[SuppItem]string {
	return nil
}

// rffArchive edits Blood RFF files.  The FAT sits at the end of the
// archive and, from version 3.1 on, is XOR-obfuscated with a key
// derived from its own offset.  Edits go to a decrypted in-memory
// mirror which flush re-encrypts and writes back.
type rffArchive struct {
	*FATArchive
	NoHooks

	fat      *SegStream
	version  uint16
	modified bool
}

func openRFF(content Stream, filters *FilterTable) (*rffArchive, error) {
	a := &rffArchive{FATArchive: newFATArchive(content, rffFirstFileOffset, StdDOSFilenameLen, filters)}
	a.setHooks(a)
	seg := a.seg()

	size := seg.Size()
	if size < rffHeaderLen {
		return nil, fmt.Errorf("%w: file too short", ErrFormatCorrupt)
	}

	version, err := readU16(seg, rffVersionOffset)
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	offFAT, err := readU32(seg, rffFATOffsetOffset)
	if err != nil {
		return nil, fmt.Errorf("read FAT offset: %w", err)
	}
	numFiles, err := readU32(seg, rffFileCountOffset)
	if err != nil {
		return nil, fmt.Errorf("read file count: %w", err)
	}

	if numFiles >= rffSafetyMaxFiles {
		return nil, fmt.Errorf("%w: too many files", ErrFormatCorrupt)
	}
	if version != rffVersion20 && version != rffVersion31 {
		return nil, fmt.Errorf("%w: unknown RFF version 0x%x", ErrFormatCorrupt, version)
	}
	a.version = version

	fatLen := int64(numFiles) * rffFATEntryLen
	if int64(offFAT)+fatLen > size {
		return nil, fmt.Errorf("%w: FAT past end of file", ErrFormatCorrupt)
	}

	fatBytes := make([]byte, fatLen)
	if fatLen > 0 {
		if _, err := io.ReadFull(io.NewSectionReader(seg, int64(offFAT), fatLen), fatBytes); err != nil {
			return nil, fmt.Errorf("read FAT: %w", err)
		}
	}
	if version >= rffVersion31 {
		fatBytes = rffCrypt(fatBytes, byte(offFAT), 0)
	}
	a.fat = NewSegStream(NewMemStream(fatBytes))

	for i := 0; i < int(numFiles); i++ {
		base := int64(i) * rffFATEntryLen
		offset, err := readU32(a.fat, base+rffEntryOffsetOffset)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}
		storedSize, err := readU32(a.fat, base+rffEntrySizeOffset)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}
		flags, err := readU8(a.fat, base+rffEntryFlagsOffset)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}
		ext, err := readPadded(a.fat, base+rffEntryNameOffset, 3)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}
		baseName, err := readPadded(a.fat, base+rffEntryNameOffset+3, 8)
		if err != nil {
			return nil, fmt.Errorf("read FAT entry %d: %w", i, err)
		}

		e := &Entry{
			Name:       baseName + "." + ext,
			Type:       TypeGeneric,
			Index:      i,
			Offset:     int64(offset),
			StoredSize: int64(storedSize),
			RealSize:   int64(storedSize),
			valid:      true,
		}
		if flags&rffFlagEncrypted != 0 {
			e.Attr |= AttrEncrypted
			e.Filter = "xor-blood"
		}

		a.files = append(a.files, e)
	}

	a.attrs = append(a.attrs, Attribute{
		Type:      AttributeEnum,
		Name:      "Version",
		Desc:      "File version",
		EnumNames: []string{"v2.0 - no encryption", "v3.1 - selectable encryption"},
	})
	if version == rffVersion31 {
		a.attrs[0].EnumValue = 1
	}

	return a, nil
}

func (a *rffArchive) fatEntryOff(e *Entry) int64 {
	return int64(e.Index) * rffFATEntryLen
}

func (a *rffArchive) updateName(e *Entry, name string) error {
	base, ext, err := splitFilename83(name)
	if err != nil {
		return err
	}

	off := a.fatEntryOff(e) + rffEntryNameOffset
	if err := writePadded(a.fat, off, ext, 3); err != nil {
		return err
	}
	if err := writePadded(a.fat, off+3, base, 8); err != nil {
		return err
	}

	a.modified = true
	return nil
}

func (a *rffArchive) updateOffset(e *Entry, delta int64) error {
	a.modified = true
	return writeU32(a.fat, a.fatEntryOff(e)+rffEntryOffsetOffset, uint32(e.Offset))
}

func (a *rffArchive) updateSize(e *Entry, delta int64) error {
	a.modified = true
	return writeU32(a.fat, a.fatEntryOff(e)+rffEntrySizeOffset, uint32(e.StoredSize))
}

func (a *rffArchive) preInsert(before, e *Entry) error {
	e.HeaderLen = 0

	var flags uint8
	if e.Attr&AttrEncrypted != 0 {
		if a.version >= rffVersion31 {
			e.Filter = "xor-blood"
			flags |= rffFlagEncrypted
		} else {
			// This version has no encryption support.
			e.Attr &^= AttrEncrypted
		}
	}

	e.Name = strings.ToUpper(e.Name)
	base, ext, err := splitFilename83(e.Name)
	if err != nil {
		return err
	}

	slot := a.fatEntryOff(e)
	if err := a.fat.InsertAt(slot, rffFATEntryLen); err != nil {
		return err
	}
	if err := writeU32(a.fat, slot+rffEntryOffsetOffset, uint32(e.Offset)); err != nil {
		return err
	}
	if err := writeU32(a.fat, slot+rffEntrySizeOffset, uint32(e.StoredSize)); err != nil {
		return err
	}
	if err := writeU8(a.fat, slot+rffEntryFlagsOffset, flags); err != nil {
		return err
	}
	if err := writePadded(a.fat, slot+rffEntryNameOffset, ext, 3); err != nil {
		return err
	}
	if err := writePadded(a.fat, slot+rffEntryNameOffset+3, base, 8); err != nil {
		return err
	}

	a.modified = true
	return nil
}

func (a *rffArchive) postInsert(e *Entry) error {
	return a.updateFileCount(len(a.files))
}

func (a *rffArchive) preRemove(e *Entry) error {
	a.modified = true
	return a.fat.RemoveAt(a.fatEntryOff(e), rffFATEntryLen)
}

func (a *rffArchive) postRemove(e *Entry) error {
	return a.updateFileCount(len(a.files))
}

func (a *rffArchive) updateFileCount(n int) error {
	return writeU32(a.seg(), rffFileCountOffset, uint32(n))
}

// SetEnumAttribute guards the version change: dropping to v2.0 is
// refused while encrypted files remain, and an accepted change is
// written to the header immediately.
func (a *rffArchive) SetEnumAttribute(index int, value int) error {
	if index == 0 && value == 0 {
		for _, e := range a.files {
			if e.Attr&AttrEncrypted != 0 {
				return fmt.Errorf("%w: archive contains encrypted files but the "+
					"target version does not support encryption", ErrUnsupported)
			}
		}
	}

	if err := a.FATArchive.SetEnumAttribute(index, value); err != nil {
		return err
	}

	if index == 0 && a.attrs[0].Changed {
		if a.attrs[0].EnumValue == 1 {
			a.version = rffVersion31
		} else {
			a.version = rffVersion20
		}

		if err := writeU16(a.seg(), rffVersionOffset, a.version); err != nil {
			return err
		}
		if err := writeU16(a.seg(), rffVersionOffset+2, 0); err != nil {
			return err
		}
		a.attrs[0].Changed = false
		a.modified = true
	}

	return nil
}

// Flush rebuilds the on-disk FAT after the last file, re-encrypting it
// for v3.1 archives, and commits.
func (a *rffArchive) Flush() error {
	if a.modified {
		seg := a.seg()

		offFAT := int64(rffFirstFileOffset)
		if n := len(a.files); n > 0 {
			last := a.files[n-1]
			offFAT = last.Offset + last.HeaderLen + last.StoredSize
		}

		if err := writeU32(seg, rffFATOffsetOffset, uint32(offFAT)); err != nil {
			return err
		}

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
			if a.version >= rffVersion31 {
				fatBytes = rffCrypt(fatBytes, byte(offFAT), 0)
			}
			if _, err := seg.WriteAt(fatBytes, offFAT); err != nil {
				return err
			}
		}

		a.modified = false
	}

	return a.FATArchive.Flush()
}

// splitFilename83 validates an 8.3 filename and splits it into base and
// extension.
func splitFilename83(full string) (base, ext string, err error) {
	dot := strings.LastIndexByte(full, '.')
	switch {
	case dot < 0 && len(full) > 8,
		dot >= 0 && len(full)-dot > 4,
		dot > 8:
		return "", "", fmt.Errorf("%w: maximum filename length is 8.3 chars", ErrNameInvalid)
	}

	if dot < 0 {
		return full, "", nil
	}

	return full[:dot], full[dot+1:], nil
}
