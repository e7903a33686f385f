// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"fmt"
	"strings"
)

// Stellar 7 RES binary layout.  No header; the archive is a stream of
// embedded FAT entries, each followed by its payload.  Entries flagged
// as folders hold nested RES archives.
const (
	resNameFieldLen = 4
	resMaxNameLen   = resNameFieldLen
	resFATEntryLen  = 8 // filename + u32le folder-flag/size

	resEntrySizeOffset = 4
	resFolderBit       = 0x80000000

	resSafetyMaxFiles = 8192
)

type resType struct {
	filters *FilterTable
}

func (t *resType) Code() string {
	return "res-stellar7"
}

func (t *resType) FriendlyName() string {
	return "Stellar 7 Resource File"
}

func (t *resType) FileExtensions() []string {
	return []string{"res"}
}

func (t *resType) Games() []string {
	return []string{"Stellar 7"}
}

func (t *resType) IsInstance(content Stream) Certainty {
	size := content.Size()

	var pos int64
	i := 0
	for ; i < resSafetyMaxFiles && pos+resFATEntryLen <= size; i++ {
		name, err := readPadded(content, pos, resNameFieldLen)
		if err != nil {
			return DefinitelyNo
		}
		for j := 0; j < len(name); j++ {
			if name[j] < 32 {
				return DefinitelyNo // control characters in filename
			}
		}

		folderLen, err := readU32(content, pos+resEntrySizeOffset)
		if err != nil {
			return DefinitelyNo
		}

		pos += resFATEntryLen + int64(folderLen&^resFolderBit)
		if pos > size {
			return DefinitelyNo // entry runs past end of archive
		}
	}

	if i == resSafetyMaxFiles {
		return PossiblyYes
	}

	return DefinitelyYes
}

func (t *resType) Create(content Stream, supps SuppData) (Archive, error) {
	if err := content.Truncate(0); err != nil {
		return nil, err
	}

	return openRES(content, t.filters)
}

func (t *resType) Open(content Stream, supps SuppData) (Archive, error) {
	return openRES(content, t.filters)
}

func (t *resType) RequiredSupps(content Stream, filename string) map[SuppItem]string {
	return nil
}

// resArchive edits Stellar 7 RES files and folders within them.
type resArchive struct {
	*FATArchive
	NoHooks

	filterTable *FilterTable
}

func openRES(content Stream, filters *FilterTable) (*resArchive, error) {
	a := &resArchive{
		FATArchive:  newFATArchive(content, 0, resMaxNameLen, filters),
		filterTable: filters,
	}
	a.setHooks(a)
	seg := a.seg()

	size := seg.Size()
	var pos int64
	for i := 0; i < resSafetyMaxFiles && pos+resFATEntryLen <= size; i++ {
		name, err := readPadded(seg, pos, resNameFieldLen)
		if err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}
		folderLen, err := readU32(seg, pos+resEntrySizeOffset)
		if err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}

		e := &Entry{
			Name:       name,
			Type:       TypeGeneric,
			Index:      i,
			Offset:     pos,
			HeaderLen:  resFATEntryLen,
			StoredSize: int64(folderLen &^ resFolderBit),
			valid:      true,
		}
		e.RealSize = e.StoredSize
		if folderLen&resFolderBit != 0 {
			e.Attr |= AttrFolder
		}

		pos += resFATEntryLen + e.StoredSize
		if pos > size {
			return nil, fmt.Errorf("%w: entry %d past end of archive", ErrFormatCorrupt, i)
		}

		a.files = append(a.files, e)
	}

	return a, nil
}

func (a *resArchive) updateName(e *Entry, name string) error {
	return writePadded(a.seg(), e.Offset, name, resNameFieldLen)
}

func (a *resArchive) updateSize(e *Entry, delta int64) error {
	v := uint32(e.StoredSize)
	if e.Attr&AttrFolder != 0 {
		v |= resFolderBit
	}

	return writeU32(a.seg(), e.Offset+resEntrySizeOffset, v)
}

func (a *resArchive) preInsert(before, e *Entry) error {
	e.HeaderLen = resFATEntryLen
	e.Name = strings.ToUpper(e.Name)

	if err := a.seg().InsertAt(e.Offset, resFATEntryLen); err != nil {
		return err
	}
	if err := writePadded(a.seg(), e.Offset, e.Name, resNameFieldLen); err != nil {
		return err
	}

	v := uint32(e.StoredSize)
	if e.Attr&AttrFolder != 0 {
		v |= resFolderBit
	}
	if err := writeU32(a.seg(), e.Offset+resEntrySizeOffset, v); err != nil {
		return err
	}

	// The embedded header pushes every following file back.
	return a.shiftFiles(nil, e.Offset, resFATEntryLen, 0)
}

// OpenFolder recursively parses a folder entry's payload as a nested
// RES archive.  Nested edits write through to the parent's stream, but
// edits that change the folder's total size fail at flush; resize the
// folder entry from the parent first.
func (a *resArchive) OpenFolder(e *Entry) (Archive, error) {
	if !a.IsValid(e) {
		return nil, ErrEntryInvalid
	}
	if e.Attr&AttrFolder == 0 {
		return nil, fmt.Errorf("%w: %s is not a folder", ErrUnsupported, e.Name)
	}

	view, err := a.Open(e, false)
	if err != nil {
		return nil, err
	}
	sub, ok := view.(*Sub)
	if !ok {
		return nil, fmt.Errorf("%w: folder entries cannot be filtered", ErrUnsupported)
	}

	return openRES(&folderStream{sub: sub}, a.filterTable)
}

// folderStream adapts an open substream into the Stream contract so a
// nested archive can be parsed over it.  The window cannot change size
// from inside; only same-size truncation succeeds.
type folderStream struct {
	sub *Sub
}

func (f *folderStream) ReadAt(p []byte, off int64) (int, error) {
	return f.sub.ReadAt(p, off)
}

func (f *folderStream) WriteAt(p []byte, off int64) (int, error) {
	return f.sub.WriteAt(p, off)
}

func (f *folderStream) Size() int64 {
	return f.sub.Size()
}

func (f *folderStream) Truncate(size int64) error {
	if size == f.sub.Size() {
		return nil
	}

	return fmt.Errorf("%w: resize the folder entry in the parent archive instead", ErrUnsupported)
}
