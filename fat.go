// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"weak"
)

// FATArchive is the generic FAT-style archive editor.  It owns the
// segmented stream and the in-memory file list, and implements every
// Archive operation in terms of the format hooks.  Concrete formats
// embed it and supply the hooks.
//
// Open views are tracked by weak reference.  Every shift operation
// fixes up the surviving views in place; expired references are reaped
// as they are encountered.
type FATArchive struct {
	content      *SegStream
	hooks        FormatHooks
	filters      *FilterTable
	files        []*Entry
	subs         []weak.Pointer[Sub]
	attrs        []Attribute
	offFirstFile int64
	maxNameLen   int
}

// Common values for the maximum filename length.
const (
	// StdDOSFilenameLen is 8.3 plus the dot.
	StdDOSFilenameLen = 12
	// NoFilenames marks formats that store no names at all.
	NoFilenames = -1
)

// newFATArchive builds the core.  offFirstFile is the minimum offset
// where file data may appear (the data offset for an empty archive).
// maxNameLen bounds filenames; zero means unlimited, NoFilenames means
// the format stores none.  The caller wires hooks afterwards, before
// any operation runs.
func newFATArchive(backing Stream, offFirstFile int64, maxNameLen int, filters *FilterTable) *FATArchive {
	if filters == nil {
		filters = DefaultFilters()
	}

	return &FATArchive{
		content:      NewSegStream(backing),
		filters:      filters,
		offFirstFile: offFirstFile,
		maxNameLen:   maxNameLen,
	}
}

// setHooks wires the concrete format's hook set.
func (a *FATArchive) setHooks(h FormatHooks) {
	a.hooks = h
}

// Files returns the current file list.
func (a *FATArchive) Files() []*Entry {
	return slices.Clone(a.files)
}

// Find returns the first entry matching name, ignoring case, or nil.
func (a *FATArchive) Find(name string) *Entry {
	for _, e := range a.files {
		if strings.EqualFold(e.Name, name) {
			return e
		}
	}

	return nil
}

// IsValid reports whether e is non-nil and still live.
func (a *FATArchive) IsValid(e *Entry) bool {
	return e != nil && e.valid
}

// Open returns a view over the entry's payload region.
func (a *FATArchive) Open(e *Entry, useFilter bool) (File, error) {
	if !a.IsValid(e) {
		return nil, ErrEntryInvalid
	}

	sub := &Sub{
		seg:    a.content,
		entry:  e,
		off:    e.Offset + e.HeaderLen,
		length: e.StoredSize,
	}
	a.subs = append(a.subs, weak.Make(sub))

	if !useFilter || e.Filter == "" {
		return sub, nil
	}

	f, ok := a.filters.Lookup(e.Filter)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFilterNotFound, e.Filter)
	}

	return newFilteredFile(a, e, sub, f)
}

// OpenFolder opens a nested archive.  The default implementation fails;
// formats with folder support override it.
func (a *FATArchive) OpenFolder(e *Entry) (Archive, error) {
	return nil, fmt.Errorf("%w: format has no folders", ErrUnsupported)
}

// Insert creates a new entry before the given one, or appends when
// before is nil or invalid.
func (a *FATArchive) Insert(before *Entry, name string, storedSize int64, typ string, attr Attr) (*Entry, error) {
	if a.maxNameLen > 0 && len(name) > a.maxNameLen {
		return nil, fmt.Errorf("%w: maximum filename length is %d chars", ErrNameInvalid, a.maxNameLen)
	}

	e := a.hooks.createEntry()
	e.Name = name
	e.StoredSize = storedSize
	e.RealSize = storedSize // default to no filter
	e.Type = typ
	e.Attr = attr
	e.HeaderLen = 0
	e.valid = false

	if a.IsValid(before) {
		e.Offset = before.Offset
		e.Index = before.Index
	} else if n := len(a.files); n > 0 {
		last := a.files[n-1]
		e.Offset = last.Offset + last.HeaderLen + last.StoredSize
		e.Index = last.Index + 1
	} else {
		e.Offset = a.offFirstFile
		e.Index = 0
	}

	// The FAT hook may grow the on-disk table and shift existing
	// entries; the new entry is not in the list yet, so those shifts
	// leave it alone.
	if err := a.hooks.preInsert(before, e); err != nil {
		return nil, err
	}
	e.valid = true

	if a.IsValid(before) {
		if err := a.shiftFiles(e, e.Offset+e.HeaderLen, e.StoredSize, 1); err != nil {
			return nil, err
		}

		i := slices.Index(a.files, before)
		if i < 0 {
			return nil, ErrEntryInvalid
		}
		a.files = slices.Insert(a.files, i, e)
	} else {
		a.files = append(a.files, e)
	}

	// Payload space goes in after the header the hook wrote, if any.
	if err := a.content.InsertAt(e.Offset+e.HeaderLen, e.StoredSize); err != nil {
		return nil, err
	}

	if err := a.hooks.postInsert(e); err != nil {
		return nil, err
	}

	return e, nil
}

// Remove deletes the entry and its payload region.
func (a *FATArchive) Remove(e *Entry) error {
	if !a.IsValid(e) {
		return ErrEntryInvalid
	}

	if err := a.hooks.preRemove(e); err != nil {
		return err
	}

	i := slices.Index(a.files, e)
	if i < 0 {
		return ErrEntryInvalid
	}
	a.files = slices.Delete(a.files, i, i+1)

	if err := a.shiftFiles(e, e.Offset, -(e.StoredSize + e.HeaderLen), -1); err != nil {
		return err
	}

	if err := a.content.RemoveAt(e.Offset, e.StoredSize+e.HeaderLen); err != nil {
		return err
	}

	e.valid = false
	a.orphanViews(e)

	return a.hooks.postRemove(e)
}

// Rename changes the entry's filename.
func (a *FATArchive) Rename(e *Entry, newName string) error {
	if !a.IsValid(e) {
		return ErrEntryInvalid
	}
	if a.maxNameLen > 0 && len(newName) > a.maxNameLen {
		return fmt.Errorf("%w: maximum filename length is %d chars", ErrNameInvalid, a.maxNameLen)
	}

	if err := a.hooks.updateName(e, newName); err != nil {
		return err
	}

	e.Name = newName
	return nil
}

// Move reorders the entry to sit before the given one.  Implemented as
// insert-copy-remove so the format hooks see ordinary operations.
func (a *FATArchive) Move(before, e *Entry) error {
	if !a.IsValid(e) {
		return ErrEntryInvalid
	}

	src, err := a.Open(e, false)
	if err != nil {
		return err
	}

	moved, err := a.Insert(before, e.Name, e.StoredSize, e.Type, e.Attr)
	if err != nil {
		return err
	}

	if moved.Filter != e.Filter {
		if rmErr := a.Remove(moved); rmErr != nil {
			return rmErr
		}
		return fmt.Errorf("%w: cannot move to this position (filter change); remove and re-add instead",
			ErrUnsupported)
	}

	dst, err := a.Open(moved, false)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy payload of %s: %w", e.Name, err)
	}

	if moved.Filter != "" {
		if err := a.Resize(moved, moved.StoredSize, e.RealSize); err != nil {
			return err
		}
	}

	// Re-target open views so they follow the entry to its new slot
	// instead of being orphaned with the old one.
	for _, wp := range a.subs {
		if s := wp.Value(); s != nil && s.entry == e && !s.orphaned {
			s.entry = moved
			s.off = moved.Offset + moved.HeaderLen
			s.length = moved.StoredSize
		}
	}

	return a.Remove(e)
}

// Resize changes the entry's stored and real payload sizes.
func (a *FATArchive) Resize(e *Entry, newStoredSize, newRealSize int64) error {
	if !a.IsValid(e) {
		return ErrEntryInvalid
	}

	delta := newStoredSize - e.StoredSize
	if delta == 0 && newRealSize == e.RealSize {
		return nil
	}

	oldStoredSize := e.StoredSize
	oldRealSize := e.RealSize
	e.StoredSize = newStoredSize
	e.RealSize = newRealSize

	if err := a.hooks.updateSize(e, delta); err != nil {
		e.StoredSize = oldStoredSize
		e.RealSize = oldRealSize
		return err
	}

	if delta == 0 {
		return nil
	}

	var start int64
	if delta > 0 {
		start = e.Offset + e.HeaderLen + oldStoredSize
		if err := a.content.InsertAt(start, delta); err != nil {
			return err
		}
	} else {
		start = e.Offset + e.HeaderLen + newStoredSize
		if err := a.content.RemoveAt(start, -delta); err != nil {
			return err
		}
	}

	if err := a.shiftFiles(e, start, delta, 0); err != nil {
		return err
	}

	// Open views over the resized entry keep their offset but take the
	// new window length.  There may be more than one.
	for _, wp := range a.subs {
		if s := wp.Value(); s != nil && s.entry == e && !s.orphaned {
			s.setSize(newStoredSize)
		}
	}

	return nil
}

// Attributes returns a copy of the archive attribute list.
func (a *FATArchive) Attributes() []Attribute {
	return slices.Clone(a.attrs)
}

// SetTextAttribute updates a Text attribute by index.
func (a *FATArchive) SetTextAttribute(index int, value string) error {
	attr, err := a.attrAt(index, AttributeText)
	if err != nil {
		return err
	}
	if attr.TextMaxLen > 0 && len(value) > attr.TextMaxLen {
		return fmt.Errorf("%w: attribute %s limited to %d bytes", ErrStringTooLong, attr.Name, attr.TextMaxLen)
	}

	attr.TextValue = value
	attr.Changed = true
	return nil
}

// SetEnumAttribute updates an Enum attribute by index.
func (a *FATArchive) SetEnumAttribute(index int, value int) error {
	attr, err := a.attrAt(index, AttributeEnum)
	if err != nil {
		return err
	}
	if value < 0 || value >= len(attr.EnumNames) {
		return fmt.Errorf("%w: enum value %d out of range for %s", ErrUnsupported, value, attr.Name)
	}

	attr.EnumValue = value
	attr.Changed = true
	return nil
}

// SetIntAttribute updates an Int attribute by index.
func (a *FATArchive) SetIntAttribute(index int, value int64) error {
	attr, err := a.attrAt(index, AttributeInt)
	if err != nil {
		return err
	}
	if (attr.IntMin != 0 || attr.IntMax != 0) && (value < attr.IntMin || value > attr.IntMax) {
		return fmt.Errorf("%w: value %d out of range for %s", ErrUnsupported, value, attr.Name)
	}

	attr.IntValue = value
	attr.Changed = true
	return nil
}

func (a *FATArchive) attrAt(index int, want AttributeType) (*Attribute, error) {
	if index < 0 || index >= len(a.attrs) {
		return nil, fmt.Errorf("%w: no attribute %d", ErrUnsupported, index)
	}

	attr := &a.attrs[index]
	if attr.Type != want {
		return nil, fmt.Errorf("%w: attribute %s has a different type", ErrUnsupported, attr.Name)
	}

	return attr, nil
}

// Flush commits the segmented stream to the backing store.  Formats
// wrap this with their own final on-disk fixups.
func (a *FATArchive) Flush() error {
	return a.content.Flush()
}

// shiftFiles moves every entry starting at or after from by delta bytes
// and indexDelta positions, skipping skip.  Index changes apply before
// the on-disk offset write so hooks that address FAT slots by index
// target the right bytes.  Live views past the shift point relocate
// with their entries.
func (a *FATArchive) shiftFiles(skip *Entry, from int64, delta int64, indexDelta int) error {
	for _, e := range a.files {
		if !a.entryInRange(e, from, skip) {
			continue
		}

		e.Offset += delta
		e.Index += indexDelta
		if err := a.hooks.updateOffset(e, delta); err != nil {
			return err
		}
	}

	a.relocateViews(skip, from, delta)
	return nil
}

// entryInRange reports whether the entry should move during a shift
// starting at from.
func (a *FATArchive) entryInRange(e *Entry, from int64, skip *Entry) bool {
	if e.Offset < from {
		return false
	}

	if skip != nil && skip.valid {
		if e == skip {
			return false
		}

		// A zero-length entry (a section marker such as WAD's S_START)
		// sharing the skip entry's offset but sitting before it in
		// index order marks the position itself; it stays put so the
		// marker does not migrate past data inserted there.
		if e.StoredSize == 0 && e.Offset == skip.Offset && e.Index < skip.Index {
			return false
		}
	}

	return true
}

// relocateViews shifts live views at or after from, compacting out any
// expired weak references it encounters.
func (a *FATArchive) relocateViews(skip *Entry, from int64, delta int64) {
	live := a.subs[:0]
	for _, wp := range a.subs {
		s := wp.Value()
		if s == nil {
			continue
		}

		live = append(live, wp)
		if s.orphaned || (skip != nil && s.entry == skip) {
			continue
		}
		if s.off >= from {
			s.relocate(delta)
		}
	}

	a.subs = live
}

// orphanViews detaches every view over a removed entry.
func (a *FATArchive) orphanViews(e *Entry) {
	live := a.subs[:0]
	for _, wp := range a.subs {
		s := wp.Value()
		if s == nil {
			continue
		}

		if s.entry == e {
			s.orphan()
		}
		live = append(live, wp)
	}

	a.subs = live
}

// seg exposes the segmented stream to format hooks.
func (a *FATArchive) seg() *SegStream {
	return a.content
}
