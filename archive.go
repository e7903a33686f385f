// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

// Attr is a bit-set of entry attributes.
type Attr uint8

// Entry attribute flags.
const (
	// AttrCompressed marks entries whose stored form is compressed.
	AttrCompressed Attr = 1 << iota
	// AttrEncrypted marks entries whose stored form is encrypted.
	AttrEncrypted
	// AttrFolder marks entries that are nested archives.
	AttrFolder
	// AttrHidden marks entries not normally shown to the player.
	AttrHidden
	// AttrVacant marks allocated but unused slots.
	AttrVacant
)

// AttrDefault is the empty attribute set.
const AttrDefault Attr = 0

// TypeGeneric is the media-type tag for unclassified entries.
const TypeGeneric = ""

// Entry is one record of the archive's in-memory file list.  Offsets
// and sizes mirror the on-disk FAT; the FAT core keeps both in step.
type Entry struct {
	// Name is the logical filename, UTF-8 clean.  The concrete format
	// enforces its native encoding and length rules.
	Name string
	// Type is a media-type tag such as "image/bash-sprite", or
	// TypeGeneric.
	Type string
	// Filter names the byte transform applied on read/write, or empty.
	Filter string
	// Index is the zero-based position in the on-disk FAT.
	Index int
	// Offset is where this entry's data region begins in the archive.
	// If HeaderLen is nonzero the first HeaderLen bytes at Offset
	// belong to format metadata, not payload.
	Offset int64
	// HeaderLen is the embedded FAT size at the start of the region.
	HeaderLen int64
	// StoredSize is the payload size on disk.
	StoredSize int64
	// RealSize is the payload size after decoding; equals StoredSize
	// for unfiltered entries.
	RealSize int64
	// Attr is the attribute bit-set.
	Attr Attr

	// valid is cleared when the entry is removed.  It stays observable
	// through the post-remove hook.
	valid bool
	// extra carries format-private state; the core treats it as opaque.
	extra any
}

// Valid reports whether the entry is still part of an archive.
func (e *Entry) Valid() bool {
	return e != nil && e.valid
}

// IsCompressed reports whether the stored payload is compressed.
func (e *Entry) IsCompressed() bool {
	return e.Attr&AttrCompressed != 0
}

// IsFolder reports whether the entry is a nested archive.
func (e *Entry) IsFolder() bool {
	return e.Attr&AttrFolder != 0
}

// AttributeType identifies the value kind of an archive attribute.
type AttributeType int

// Archive attribute value kinds.
const (
	// AttributeText holds a free-form string value.
	AttributeText AttributeType = iota + 1
	// AttributeEnum holds one value out of a fixed name list.
	AttributeEnum
	// AttributeInt holds a bounded integer value.
	AttributeInt
)

// Attribute is one named piece of archive-level metadata a format may
// expose, such as a version selector or a description comment.
// Changes are persisted no later than the next Flush.
type Attribute struct {
	// Type selects which value field is meaningful.
	Type AttributeType
	// Name identifies the attribute.
	Name string
	// Desc describes the attribute for UI display.
	Desc string

	// TextValue holds the value of a Text attribute.
	TextValue string
	// TextMaxLen bounds TextValue; zero means unlimited.
	TextMaxLen int

	// EnumValue indexes into EnumNames for an Enum attribute.
	EnumValue int
	// EnumNames lists the allowed Enum values.
	EnumNames []string

	// IntValue holds the value of an Int attribute.
	IntValue int64
	// IntMin and IntMax bound IntValue.
	IntMin, IntMax int64

	// Changed marks a pending value edit; formats clear it once the
	// value is persisted (immediately or at the next Flush).
	Changed bool
}

// Archive is a mutable container of named sub-files bound to one
// backing byte store.  All edits stay in memory until Flush.
//
// Methods are not reentrant: invoking one while another is in progress
// on the same archive is undefined.  An archive instance belongs to a
// single caller.
type Archive interface {
	// Files returns the current file list.  List order is not
	// necessarily on-disk order; sort by Entry.Index for that.
	Files() []*Entry

	// Find returns the first entry whose name matches, ignoring case,
	// or nil.
	Find(name string) *Entry

	// IsValid reports whether e is a live entry of this archive.
	IsValid(e *Entry) bool

	// Open returns a view of the entry's payload.  With useFilter set
	// and a filter recorded on the entry, the view decodes on open and
	// encodes back on Flush.
	Open(e *Entry, useFilter bool) (File, error)

	// OpenFolder opens a Folder-flagged entry as a nested archive.
	// Formats without folders fail with ErrUnsupported.
	OpenFolder(e *Entry) (Archive, error)

	// Insert creates a new entry of storedSize payload bytes before the
	// given entry, or at the end of the archive when before is nil or
	// invalid.  The payload space is zeroed; write content through
	// Open.
	Insert(before *Entry, name string, storedSize int64, typ string, attr Attr) (*Entry, error)

	// Remove deletes the entry and its payload.  Open views over the
	// entry are orphaned.
	Remove(e *Entry) error

	// Rename changes the entry's filename.  Formats that do not store
	// names fail with ErrUnsupported.
	Rename(e *Entry, newName string) error

	// Move reorders the entry to sit before the given entry (or at the
	// end when before is nil), carrying its payload along.
	Move(before, e *Entry) error

	// Resize changes the entry's stored and real payload sizes.
	// Growth zero-fills at the tail; shrinking truncates.
	Resize(e *Entry, storedSize, realSize int64) error

	// Attributes returns the archive-level metadata attributes.
	Attributes() []Attribute

	// SetTextAttribute updates a Text attribute by index.
	SetTextAttribute(index int, value string) error

	// SetEnumAttribute updates an Enum attribute by index.
	SetEnumAttribute(index int, value int) error

	// SetIntAttribute updates an Int attribute by index.
	SetIntAttribute(index int, value int64) error

	// Flush applies format fixups and commits all pending edits to the
	// backing store.  Commit is not atomic; treat failure as fatal for
	// this archive instance.
	Flush() error
}
