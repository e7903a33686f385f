// SPDX-License-Identifier: MIT
// Copyright (c) 2026 RetroDOS
// Source: github.com/retrodos/gamearc

// Command gamearch lists and edits FAT-style game archives.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/retrodos/gamearc"
)

type cli struct {
	Debug  bool   `kong:"name=debug,help='Enable debug logging.'"`
	Format string `kong:"name=format,short=t,help='Force archive format by code instead of sniffing.'"`

	Identify identifyCmd `kong:"cmd,help='Detect the format of an archive.'"`
	List     listCmd     `kong:"cmd,help='List the files inside an archive.'"`
	Extract  extractCmd  `kong:"cmd,help='Extract one file from an archive.'"`
	Add      addCmd      `kong:"cmd,help='Add a local file to an archive.'"`
	Del      delCmd      `kong:"cmd,help='Remove a file from an archive.'"`
	Ren      renCmd      `kong:"cmd,help='Rename a file inside an archive.'"`
}

type context struct {
	registry *gamearc.Registry
	format   string
}

func main() {
	var flags cli
	ctx := kong.Parse(&flags,
		kong.Name("gamearch"),
		kong.Description("List and edit FAT-style game archives (WAD, GRP, RFF, EPF, DAT, RES, POD)."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	level := zerolog.InfoLevel
	if flags.Debug {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	err := ctx.Run(&context{
		registry: gamearc.NewRegistry(nil),
		format:   flags.Format,
	})
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}

// openArchive opens path with the forced format or by sniffing.
func (c *context) openArchive(path string) (gamearc.Archive, *gamearc.FileStream, error) {
	stream, err := gamearc.OpenFileStream(path)
	if err != nil {
		return nil, nil, err
	}

	if c.format != "" {
		t := c.registry.ByCode(c.format)
		if t == nil {
			_ = stream.Close()
			return nil, nil, fmt.Errorf("unknown format code %q", c.format)
		}

		arc, err := t.Open(stream, nil)
		if err != nil {
			_ = stream.Close()
			return nil, nil, err
		}

		return arc, stream, nil
	}

	arc, t, err := c.registry.OpenArchive(stream, nil)
	if err != nil {
		_ = stream.Close()
		return nil, nil, err
	}

	log.Debug().Str("format", t.Code()).Str("archive", path).Msg("format detected")
	return arc, stream, nil
}

type identifyCmd struct {
	Archive string `kong:"arg,help='Archive file.'"`
}

func (cmd *identifyCmd) Run(c *context) error {
	stream, err := gamearc.OpenFileStream(cmd.Archive)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	t, certainty := c.registry.Identify(stream)
	if t == nil {
		return fmt.Errorf("unrecognised archive format")
	}

	fmt.Printf("%s: %s (%s), %s\n", cmd.Archive, t.FriendlyName(), t.Code(), certainty)
	return nil
}

type listCmd struct {
	Archive string `kong:"arg,help='Archive file.'"`
}

func (cmd *listCmd) Run(c *context) error {
	arc, stream, err := c.openArchive(cmd.Archive)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	files := arc.Files()
	sort.Slice(files, func(i, j int) bool { return files[i].Index < files[j].Index })

	for _, e := range files {
		flags := ""
		if e.IsCompressed() {
			flags += "C"
		}
		if e.Attr&gamearc.AttrEncrypted != 0 {
			flags += "E"
		}
		if e.IsFolder() {
			flags += "D"
		}

		fmt.Printf("%4d  %10d  %-2s  %s\n", e.Index, e.StoredSize, flags, e.Name)
	}

	return nil
}

type extractCmd struct {
	Archive string `kong:"arg,help='Archive file.'"`
	Name    string `kong:"arg,help='File inside the archive.'"`
	Output  string `kong:"name=output,short=o,help='Destination path (default: entry name).'"`
	Raw     bool   `kong:"name=raw,help='Skip decompression/decryption filters.'"`
}

func (cmd *extractCmd) Run(c *context) error {
	arc, stream, err := c.openArchive(cmd.Archive)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	e := arc.Find(cmd.Name)
	if e == nil {
		return fmt.Errorf("%s: no such file in archive", cmd.Name)
	}

	src, err := arc.Open(e, !cmd.Raw)
	if err != nil {
		return err
	}

	outPath := cmd.Output
	if outPath == "" {
		outPath = e.Name
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}

	written, err := io.Copy(out, src)
	if err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	log.Info().Str("file", e.Name).Int64("bytes", written).Str("to", outPath).Msg("extracted")
	return nil
}

type addCmd struct {
	Archive string `kong:"arg,help='Archive file.'"`
	Name    string `kong:"arg,help='Name to store inside the archive.'"`
	Source  string `kong:"arg,help='Local file to add.'"`
	Before  string `kong:"name=before,help='Insert before this existing entry instead of appending.'"`
}

func (cmd *addCmd) Run(c *context) error {
	data, err := os.ReadFile(cmd.Source)
	if err != nil {
		return err
	}

	arc, stream, err := c.openArchive(cmd.Archive)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	var before *gamearc.Entry
	if cmd.Before != "" {
		if before = arc.Find(cmd.Before); before == nil {
			return fmt.Errorf("%s: no such file in archive", cmd.Before)
		}
	}

	e, err := arc.Insert(before, cmd.Name, int64(len(data)), gamearc.TypeGeneric, gamearc.AttrDefault)
	if err != nil {
		return err
	}

	dst, err := arc.Open(e, false)
	if err != nil {
		return err
	}
	if _, err := dst.Write(data); err != nil {
		return err
	}

	if err := arc.Flush(); err != nil {
		return err
	}

	log.Info().Str("file", e.Name).Int("bytes", len(data)).Msg("added")
	return nil
}

type delCmd struct {
	Archive string `kong:"arg,help='Archive file.'"`
	Name    string `kong:"arg,help='File inside the archive.'"`
}

func (cmd *delCmd) Run(c *context) error {
	arc, stream, err := c.openArchive(cmd.Archive)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	e := arc.Find(cmd.Name)
	if e == nil {
		return fmt.Errorf("%s: no such file in archive", cmd.Name)
	}

	if err := arc.Remove(e); err != nil {
		return err
	}
	if err := arc.Flush(); err != nil {
		return err
	}

	log.Info().Str("file", cmd.Name).Msg("removed")
	return nil
}

type renCmd struct {
	Archive string `kong:"arg,help='Archive file.'"`
	Name    string `kong:"arg,help='File inside the archive.'"`
	NewName string `kong:"arg,help='New filename.'"`
}

func (cmd *renCmd) Run(c *context) error {
	arc, stream, err := c.openArchive(cmd.Archive)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	e := arc.Find(cmd.Name)
	if e == nil {
		return fmt.Errorf("%s: no such file in archive", cmd.Name)
	}

	if err := arc.Rename(e, cmd.NewName); err != nil {
		return err
	}
	if err := arc.Flush(); err != nil {
		return err
	}

	log.Info().Str("from", cmd.Name).Str("to", cmd.NewName).Msg("renamed")
	return nil
}
