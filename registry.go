// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

package gamearc

import (
	"fmt"

	"github.com/woozymasta/pathrules"
)

// Certainty grades an ArchiveType's answer when sniffing content.
type Certainty int

// Sniff confidence levels, weakest to strongest.
const (
	// DefinitelyNo means the content cannot be this format.
	DefinitelyNo Certainty = iota
	// Unsure means the format has no identifying information.
	Unsure
	// PossiblyYes means structural checks passed but there is no
	// signature.
	PossiblyYes
	// DefinitelyYes means a signature matched.
	DefinitelyYes
)

// String returns the level's name.
func (c Certainty) String() string {
	switch c {
	case DefinitelyNo:
		return "definitely-no"
	case Unsure:
		return "unsure"
	case PossiblyYes:
		return "possibly-yes"
	case DefinitelyYes:
		return "definitely-yes"
	default:
		return fmt.Sprintf("certainty(%d)", int(c))
	}
}

// SuppItem identifies one supplemental (sidecar) stream role.
type SuppItem string

// Supplemental stream roles.
const (
	// SuppFAT is a sidecar holding the file table, for formats whose
	// FAT lives in a companion file such as an executable.
	SuppFAT SuppItem = "fat"
)

// SuppData carries opened supplemental streams keyed by role.
type SuppData map[SuppItem]Stream

// ArchiveType is one format plugin: it identifies the format from
// content and constructs archives bound to a backing store.
type ArchiveType interface {
	// Code returns the short format identifier, e.g. "wad-doom".
	Code() string
	// FriendlyName returns the human-readable format name.
	FriendlyName() string
	// FileExtensions lists filename extensions without the dot.
	FileExtensions() []string
	// Games lists games known to use the format.
	Games() []string
	// IsInstance performs a bounded sniff of the content.  It must not
	// mutate the stream.
	IsInstance(content Stream) Certainty
	// Open parses an existing archive.
	Open(content Stream, supps SuppData) (Archive, error)
	// Create writes a new empty archive into content and opens it.
	Create(content Stream, supps SuppData) (Archive, error)
	// RequiredSupps names the sidecar files the format needs, keyed by
	// role, given the archive filename.
	RequiredSupps(content Stream, filename string) map[SuppItem]string
}

// Registry holds the known format plugins and the filter table handed
// to every archive they construct.
type Registry struct {
	types   []ArchiveType
	filters *FilterTable
}

// NewRegistry builds a registry with every built-in format registered.
// A nil table selects DefaultFilters.
func NewRegistry(filters *FilterTable) *Registry {
	if filters == nil {
		filters = DefaultFilters()
	}

	r := &Registry{filters: filters}
	r.Register(&wadType{filters: filters})
	r.Register(&grpType{filters: filters})
	r.Register(&rffType{filters: filters})
	r.Register(&epfType{filters: filters})
	r.Register(&datBashType{filters: filters})
	r.Register(&resType{filters: filters})
	r.Register(&podType{filters: filters})
	r.Register(&gdDoofusType{filters: filters})

	return r
}

// Register adds a format plugin.
func (r *Registry) Register(t ArchiveType) {
	r.types = append(r.types, t)
}

// Types returns the registered plugins.
func (r *Registry) Types() []ArchiveType {
	out := make([]ArchiveType, len(r.types))
	copy(out, r.types)
	return out
}

// ByCode resolves a plugin by its short identifier, or nil.
func (r *Registry) ByCode(code string) ArchiveType {
	for _, t := range r.types {
		if t.Code() == code {
			return t
		}
	}

	return nil
}

// Identify sniffs content against every plugin and returns the best
// match with its certainty.  DefinitelyYes wins immediately; otherwise
// the strongest non-negative answer is kept.
func (r *Registry) Identify(content Stream) (ArchiveType, Certainty) {
	var best ArchiveType
	bestCertainty := DefinitelyNo

	for _, t := range r.types {
		c := t.IsInstance(content)
		if c == DefinitelyYes {
			return t, c
		}
		if c > bestCertainty {
			best, bestCertainty = t, c
		}
	}

	return best, bestCertainty
}

// ByFilename returns the plugins whose extension globs match the
// filename, in registration order.
func (r *Registry) ByFilename(filename string) []ArchiveType {
	var out []ArchiveType
	for _, t := range r.types {
		rules := make([]pathrules.Rule, 0, len(t.FileExtensions()))
		for _, ext := range t.FileExtensions() {
			rules = append(rules, pathrules.Rule{
				Action:  pathrules.ActionInclude,
				Pattern: "*." + ext,
			})
		}
		if len(rules) == 0 {
			continue
		}

		matcher, err := pathrules.NewMatcher(rules, pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		})
		if err != nil {
			continue
		}

		if matcher.Included(filename, false) {
			out = append(out, t)
		}
	}

	return out
}

// Interface conformance for the built-in formats and stream types.
var (
	_ Archive = (*wadArchive)(nil)
	_ Archive = (*grpArchive)(nil)
	_ Archive = (*rffArchive)(nil)
	_ Archive = (*epfArchive)(nil)
	_ Archive = (*datBashArchive)(nil)
	_ Archive = (*resArchive)(nil)
	_ Archive = (*podArchive)(nil)
	_ Archive = (*gdDoofusArchive)(nil)

	_ File = (*Sub)(nil)
	_ File = (*filteredFile)(nil)

	_ Stream = (*MemStream)(nil)
	_ Stream = (*FileStream)(nil)
	_ Stream = (*SegStream)(nil)
	_ Stream = (*folderStream)(nil)
	_ Stream = (*sectionStream)(nil)
)

// OpenArchive identifies the content and opens it with the best
// matching plugin.
func (r *Registry) OpenArchive(content Stream, supps SuppData) (Archive, ArchiveType, error) {
	t, c := r.Identify(content)
	if t == nil || c == DefinitelyNo {
		return nil, nil, ErrUnknownFormat
	}

	arc, err := t.Open(content, supps)
	if err != nil {
		return nil, t, err
	}

	return arc, t, nil
}
