// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

/*
Package gamearc edits FAT-style game archives: containers that bundle
multiple named sub-files into a single binary blob, as used by MS-DOS
era games (Doom WAD, Duke Nukem 3D GRP, Blood RFF, Monster Bash DAT and
friends).

Edits are staged in memory on a segmented stream, so inserting or
removing bytes in the middle of a large archive costs almost nothing
until Flush commits the result to the backing store.  Views of
individual sub-files stay valid while other files are inserted,
removed, resized or reordered; the archive fixes up every open view in
place as the byte layout shifts beneath it.

# Opening

Identify and open an archive through a registry:

	stream, err := gamearc.OpenFileStream("duke3d.grp")
	if err != nil {
	    return err
	}
	defer stream.Close()

	reg := gamearc.NewRegistry(nil)
	arc, _, err := reg.OpenArchive(stream, nil)
	if err != nil {
	    return err
	}
	for _, e := range arc.Files() {
	    // e.Name, e.StoredSize, e.Attr ...
	}

A known format can be selected directly:

	arc, err := reg.ByCode("wad-doom").Open(stream, nil)

Formats whose FAT lives in a sidecar file declare it via
RequiredSupps and receive the opened sidecar in SuppData:

	t := reg.ByCode("gd-doofus")
	supps := gamearc.SuppData{gamearc.SuppFAT: exeStream}
	arc, err := t.Open(stream, supps)

# Reading and writing sub-files

Open returns a read-write view of one entry's payload.  With filtering
enabled, compressed or encrypted entries decode on open and encode back
on Flush:

	e := arc.Find("STUFF.DAT")
	f, err := arc.Open(e, true)
	if err != nil {
	    return err
	}
	data, err := io.ReadAll(f)

# Editing

All mutations go through the archive so the on-disk FAT stays in step:

	e, err := arc.Insert(nil, "NEW.DAT", int64(len(data)), gamearc.TypeGeneric, gamearc.AttrDefault)
	if err != nil {
	    return err
	}
	f, _ := arc.Open(e, false)
	f.Write(data)

	arc.Rename(e, "OTHER.DAT")
	arc.Resize(e, 512, 512)
	arc.Remove(e)

	if err := arc.Flush(); err != nil {
	    return err // backing store state is undefined; discard the archive
	}

Nothing touches the backing store until Flush.  Flush is not atomic:
treat a flush error as fatal for the archive instance.

# Archive attributes

Formats expose archive-level metadata (a WAD's IWAD/PWAD type, an RFF's
version, an EPF's description comment) as typed attributes:

	for i, attr := range arc.Attributes() {
	    // attr.Name, attr.Type, attr.TextValue / attr.EnumValue
	    _ = i
	}
	arc.SetEnumAttribute(0, 1)

# Filters

Compression and encryption are modelled as named byte transforms held
in a FilterTable passed to NewRegistry.  The built-in table covers
xor-blood, lzss, lzw-epfs, lzw-bash and deflate; callers can register
their own:

	filters := gamearc.DefaultFilters()
	filters.Register(gamearc.Filter{Name: "rot13", Encode: rot13, Decode: unrot13})
	reg := gamearc.NewRegistry(filters)
*/
package gamearc
