// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"fmt"
	"strings"
)

// Monster Bash DAT binary layout.  There is no header; the archive is a
// stream of embedded FAT entries, each followed by its payload.
const (
	datBashMaxNameLen   = 30
	datBashNameFieldLen = 31
	datBashEFATLen      = 37 // embedded FAT entry size

	// Field positions inside one embedded FAT entry.
	datBashTypeOffset     = 0
	datBashSizeOffset     = 2
	datBashNameOffset     = 4
	datBashRealSizeOffset = 35
)

// datBashTypeCode maps a Monster Bash type code to the extension tag
// appended to native names and the media type exposed on entries.
type datBashTypeCode struct {
	code uint16
	ext  string // with leading dot; empty means name used verbatim
	mime string
}

// datBashTypeCodes is the 1-to-1 type-code table.  Code 8 keeps its
// extension in the native name; code 32 stores the name verbatim.
var datBashTypeCodes = []datBashTypeCode{
	{0, ".mif", "map/bash-info"},
	{1, ".mbg", "map/bash-bg"},
	{2, ".mfg", "map/bash-fg"},
	{3, ".tbg", "image/bash-tiles-bg"},
	{4, ".tfg", "image/bash-tiles-fg"},
	{5, ".tbn", "image/bash-tiles-bn"},
	{6, ".sgl", "map/bash-sgl"},
	{7, ".msp", "map/bash-sprites"},
	{8, ".snd", "sound/bash"},
	{12, ".pbg", "image/bash-pbg"},
	{13, ".pfg", "image/bash-pfg"},
	{14, ".pal", "image/bash-palette"},
	{16, ".pbn", "image/bash-pbn"},
	{64, ".spr", "image/bash-sprite"},
}

type datBashType struct {
	filters *FilterTable
}

func (t *datBashType) Code() string {
	return "dat-bash"
}

func (t *datBashType) FriendlyName() string {
	return "Monster Bash DAT File"
}

func (t *datBashType) FileExtensions() []string {
	return []string{"dat"}
}

func (t *datBashType) Games() []string {
	return []string{"Monster Bash"}
}

func (t *datBashType) IsInstance(content Stream) Certainty {
	size := content.Size()

	var pos int64
	for pos < size {
		if pos+datBashEFATLen > size {
			return DefinitelyNo
		}

		storedSize, err := readU16(content, pos+datBashSizeOffset)
		if err != nil {
			return DefinitelyNo
		}
		name, err := readPadded(content, pos+datBashNameOffset, datBashNameFieldLen)
		if err != nil {
			return DefinitelyNo
		}
		for i := 0; i < len(name); i++ {
			if name[i] < 32 {
				return DefinitelyNo // control characters in filename
			}
		}

		pos += datBashEFATLen + int64(storedSize)
		if pos > size {
			return DefinitelyNo // entry points past end of archive
		}
	}

	return DefinitelyYes
}

func (t *datBashType) Create(content Stream, supps SuppData) (Archive, error) {
	if err := content.Truncate(0); err != nil {
		return nil, err
	}

	return openDATBash(content, t.filters)
}

func (t *datBashType) Open(content Stream, supps SuppData) (Archive, error) {
	return openDATBash(content, t.filters)
}

func (t *datBashType) RequiredSupps(content Stream, filename string) map[SuppItem]string {
	return nil
}

// datBashArchive edits Monster Bash DAT files.  Each entry's FAT data
// is embedded right before its payload, so the entry header length is
// always the embedded FAT size.
type datBashArchive struct {
	*FATArchive
	NoHooks
}

func openDATBash(content Stream, filters *FilterTable) (*datBashArchive, error) {
	a := &datBashArchive{FATArchive: newFATArchive(content, 0, datBashMaxNameLen, filters)}
	a.setHooks(a)
	seg := a.seg()

	size := seg.Size()
	var pos int64
	for i := 0; pos < size; i++ {
		if pos+datBashEFATLen > size {
			return nil, fmt.Errorf("%w: truncated entry %d", ErrFormatCorrupt, i)
		}

		typeCode, err := readU16(seg, pos+datBashTypeOffset)
		if err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}
		storedSize, err := readU16(seg, pos+datBashSizeOffset)
		if err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}
		name, err := readPadded(seg, pos+datBashNameOffset, datBashNameFieldLen)
		if err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}
		realSize, err := readU16(seg, pos+datBashRealSizeOffset)
		if err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}

		e := &Entry{
			Index:      i,
			Offset:     pos,
			HeaderLen:  datBashEFATLen,
			StoredSize: int64(storedSize),
			RealSize:   int64(storedSize),
			valid:      true,
		}
		if realSize != 0 {
			e.Attr |= AttrCompressed
			e.Filter = "lzw-bash"
			e.RealSize = int64(realSize)
		}
		e.Name, e.Type = datBashNameForCode(typeCode, name)

		pos += datBashEFATLen + e.StoredSize
		if pos > size {
			return nil, fmt.Errorf("%w: entry %d past end of archive", ErrFormatCorrupt, i)
		}

		a.files = append(a.files, e)
	}

	return a, nil
}

func (a *datBashArchive) updateName(e *Entry, name string) error {
	typeCode, native, mime := datBashCodeForName(name)
	if len(native) > datBashMaxNameLen {
		return fmt.Errorf("%w: maximum filename length is %d chars", ErrNameInvalid, datBashMaxNameLen)
	}

	if err := writeU16(a.seg(), e.Offset+datBashTypeOffset, typeCode); err != nil {
		return err
	}
	if err := writePadded(a.seg(), e.Offset+datBashNameOffset, native, datBashNameFieldLen); err != nil {
		return err
	}

	e.Type = mime
	return nil
}

func (a *datBashArchive) updateSize(e *Entry, delta int64) error {
	if e.StoredSize > 0xFFFF {
		return fmt.Errorf("%w: payload larger than 64 KiB", ErrUnsupported)
	}

	if err := writeU16(a.seg(), e.Offset+datBashSizeOffset, uint16(e.StoredSize)); err != nil {
		return err
	}

	var realSize uint16
	if e.Attr&AttrCompressed != 0 {
		realSize = uint16(e.RealSize)
	}

	return writeU16(a.seg(), e.Offset+datBashRealSizeOffset, realSize)
}

func (a *datBashArchive) preInsert(before, e *Entry) error {
	if e.StoredSize > 0xFFFF {
		return fmt.Errorf("%w: payload larger than 64 KiB", ErrUnsupported)
	}

	e.HeaderLen = datBashEFATLen
	e.Name = strings.ToUpper(e.Name)
	if e.Attr&AttrCompressed != 0 {
		e.Filter = "lzw-bash"
	}

	if err := a.seg().InsertAt(e.Offset, datBashEFATLen); err != nil {
		return err
	}

	// The embedded header pushes every following file back; offsets are
	// adjusted with the *new* values so later writes land correctly.
	return a.shiftFiles(nil, e.Offset, datBashEFATLen, 0)
}

func (a *datBashArchive) postInsert(e *Entry) error {
	typeCode, native, mime := datBashCodeForName(e.Name)
	if len(native) > datBashMaxNameLen {
		return fmt.Errorf("%w: maximum filename length is %d chars", ErrNameInvalid, datBashMaxNameLen)
	}
	e.Type = mime

	var realSize uint16
	if e.Attr&AttrCompressed != 0 {
		realSize = uint16(e.RealSize)
	}

	if err := writeU16(a.seg(), e.Offset+datBashTypeOffset, typeCode); err != nil {
		return err
	}
	if err := writeU16(a.seg(), e.Offset+datBashSizeOffset, uint16(e.StoredSize)); err != nil {
		return err
	}
	if err := writePadded(a.seg(), e.Offset+datBashNameOffset, native, datBashNameFieldLen); err != nil {
		return err
	}

	return writeU16(a.seg(), e.Offset+datBashRealSizeOffset, realSize)
}

// datBashNameForCode converts a stored type code and native name into
// the logical filename and media type.
func datBashNameForCode(code uint16, native string) (name, mime string) {
	if code == 32 {
		return native, TypeGeneric
	}

	for _, tc := range datBashTypeCodes {
		if tc.code != code {
			continue
		}

		// Code 8 keeps its extension in the native name already.
		if tc.code == 8 {
			return native, tc.mime
		}

		return native + tc.ext, tc.mime
	}

	return fmt.Sprintf("%s.%d", native, code), fmt.Sprintf("unknown/bash-%d", code)
}

// datBashCodeForName converts a logical filename into its type code,
// native on-disk name and media type.
func datBashCodeForName(name string) (code uint16, native, mime string) {
	dot := strings.LastIndexByte(name, '.')
	if dot >= 0 {
		ext := strings.ToLower(name[dot:])
		for _, tc := range datBashTypeCodes {
			if tc.ext != ext {
				continue
			}

			if tc.code == 8 {
				// .snd names are stored verbatim.
				return tc.code, name, tc.mime
			}

			return tc.code, name[:dot], tc.mime
		}
	}

	return 32, name, TypeGeneric
}
