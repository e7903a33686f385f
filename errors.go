// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import "errors"

// Sentinel errors for archive operations. Use errors.Is in callers.
var (
	// ErrFormatCorrupt means the header or FAT was inconsistent at parse time.
	ErrFormatCorrupt = errors.New("archive header or FAT is corrupt")
	// ErrNameInvalid means a filename violates the format's length or character rules.
	ErrNameInvalid = errors.New("invalid filename")
	// ErrFormatFull means the format's fixed file table has no free slots.
	ErrFormatFull = errors.New("maximum number of files reached for this format")
	// ErrUnsupported means the format does not support the requested operation.
	ErrUnsupported = errors.New("operation not supported by this format")
	// ErrEntryNotFound means no entry matched the requested name.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrEntryInvalid means the entry handle is nil or no longer valid.
	ErrEntryInvalid = errors.New("entry handle is not valid")
	// ErrFilterNotFound means the entry names a filter absent from the table.
	ErrFilterNotFound = errors.New("named filter not found")
	// ErrOrphaned means the substream's backing entry has been removed.
	ErrOrphaned = errors.New("substream backing entry was removed")
	// ErrBeyondWindow means a write would extend past the substream window.
	ErrBeyondWindow = errors.New("write extends past end of substream window")
	// ErrStringTooLong means a string does not fit its fixed on-disk field.
	ErrStringTooLong = errors.New("string exceeds fixed field length")
	// ErrUnknownFormat means no registered format matched the content.
	ErrUnknownFormat = errors.New("no format matched the archive content")
	// ErrSuppMissing means a required supplemental stream was not provided.
	ErrSuppMissing = errors.New("required supplemental stream not provided")
	// ErrNegativeSeek means a seek resolved to a negative position.
	ErrNegativeSeek = errors.New("seek to negative position")
)
