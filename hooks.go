// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import "fmt"

// FormatHooks is the contract a concrete archive format supplies to the
// FAT core.  The core drives the generic edit sequence; hooks keep the
// on-disk FAT in step.  Hooks receive the archive's segmented stream
// through their receiver and may insert and remove bytes on it freely.
//
// On hook error the core does not roll back partial edits; the archive
// should be discarded.
type FormatHooks interface {
	// createEntry allocates a fresh entry before preInsert runs.
	// Formats may attach private state via Entry.extra.
	createEntry() *Entry

	// preInsert runs before the new entry joins the list.  It must add
	// the entry to the on-disk FAT and set HeaderLen.  Offset and size
	// adjustments for any FAT bytes it inserts are its responsibility,
	// typically via shiftFiles.
	preInsert(before, e *Entry) error

	// postInsert runs after the payload space has been spliced in.
	postInsert(e *Entry) error

	// updateName overwrites the name field in the on-disk FAT.
	updateName(e *Entry, name string) error

	// updateOffset overwrites the offset field in the on-disk FAT.
	// e.Offset already holds the new value.
	updateOffset(e *Entry, delta int64) error

	// updateSize overwrites the size fields in the on-disk FAT.
	// e.StoredSize and e.RealSize already hold the new values.
	updateSize(e *Entry, delta int64) error

	// preRemove removes the entry from the on-disk FAT.  The payload
	// has not yet been removed and offsets are not yet updated.
	preRemove(e *Entry) error

	// postRemove runs after the payload is gone and the entry is
	// invalid; the entry's fields are still readable.
	postRemove(e *Entry) error
}

// NoHooks provides the default hook set: allocation of a plain entry
// and no-ops everywhere a format stores nothing.  Formats embed it and
// override what their layout needs.
type NoHooks struct{}

func (NoHooks) createEntry() *Entry {
	return &Entry{}
}

func (NoHooks) preInsert(before, e *Entry) error {
	return nil
}

func (NoHooks) postInsert(e *Entry) error {
	return nil
}

func (NoHooks) updateName(e *Entry, name string) error {
	return fmt.Errorf("%w: format does not store filenames", ErrUnsupported)
}

func (NoHooks) updateOffset(e *Entry, delta int64) error {
	return nil
}

func (NoHooks) updateSize(e *Entry, delta int64) error {
	return nil
}

func (NoHooks) preRemove(e *Entry) error {
	return nil
}

func (NoHooks) postRemove(e *Entry) error {
	return nil
}
