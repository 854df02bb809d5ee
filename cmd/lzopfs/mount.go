// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/urfave/cli/v2"

	"github.com/ianlewis/go-lzopfs"
)

// mountArgs is the result of walking the command line the way the
// original's lf_opt_proc callback walks fuse_opt_parse's argv: archive
// paths and the mount point come from non-option tokens, everything
// option-looking is left for FUSE.
type mountArgs struct {
	archives   []string
	mountpoint string
	options    []fuse.MountOption
	maxBlock   int64
	cacheSize  int64
	help       bool
	version    bool
}

// parseMountArgs partitions raw into lzopfs's own flags, FUSE mount
// options, and the archive/mountpoint path list. It exists because
// newLzopfsApp sets SkipFlagParsing: cli's declarative flag parser has no
// way to accept a FUSE option it wasn't told about in advance, so it
// would reject anything not already declared as one of our four flags
// instead of leaving it untouched for fuse.Mount.
//
// The archive/mountpoint split mirrors lf_opt_proc's gNextSource
// bookkeeping: a non-option token is never committed as a source archive
// until a later non-option token (or the end of the list) proves it
// wasn't the final mount point.
func parseMountArgs(raw []string) (*mountArgs, error) {
	m := &mountArgs{}
	var pending *string

	for i := 0; i < len(raw); i++ {
		tok := raw[i]

		switch {
		case tok == "--help" || tok == "-h":
			m.help = true

		case tok == "--version" || tok == "-v":
			m.version = true

		case tok == "--max-block" || strings.HasPrefix(tok, "--max-block="):
			val, consumed, err := flagValue(raw, i, "--max-block")
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: --max-block: %w", ErrFlagParse, err)
			}
			m.maxBlock = n
			i += consumed - 1

		case tok == "--cache-size" || strings.HasPrefix(tok, "--cache-size="):
			val, consumed, err := flagValue(raw, i, "--cache-size")
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: --cache-size: %w", ErrFlagParse, err)
			}
			m.cacheSize = n
			i += consumed - 1

		case tok == "-o":
			if i+1 >= len(raw) {
				return nil, fmt.Errorf("%w: -o requires an argument", ErrFlagParse)
			}
			opts, err := parseDashOSuboptions(raw[i+1])
			if err != nil {
				return nil, err
			}
			m.options = append(m.options, opts...)
			i++

		case strings.HasPrefix(tok, "-o"):
			opts, err := parseDashOSuboptions(strings.TrimPrefix(tok, "-o"))
			if err != nil {
				return nil, err
			}
			m.options = append(m.options, opts...)

		case strings.HasPrefix(tok, "-"):
			// lf_opt_proc returns 1 for every other option-looking
			// argument, leaving it in outargs for fuse_main untouched.
			// bazil.org/fuse has no equivalent raw passthrough: it only
			// accepts its own typed MountOption set, so an option we
			// can't translate is surfaced rather than silently dropped.
			fmt.Fprintf(os.Stderr, "lzopfs: ignoring unsupported FUSE option %q\n", tok)

		default:
			if pending != nil {
				m.archives = append(m.archives, *pending)
			}
			t := tok
			pending = &t
		}
	}

	if pending == nil {
		return nil, fmt.Errorf("%w: need at least one archive and a mount point", ErrUsage)
	}
	m.mountpoint = *pending

	return m, nil
}

// flagValue resolves name's value from either "name=value" in a single
// token or "name value" across two, returning how many tokens it consumed
// starting at i.
func flagValue(raw []string, i int, name string) (string, int, error) {
	tok := raw[i]
	if val, ok := strings.CutPrefix(tok, name+"="); ok {
		return val, 1, nil
	}
	if i+1 >= len(raw) {
		return "", 0, fmt.Errorf("%w: %s requires an argument", ErrFlagParse, name)
	}
	return raw[i+1], 2, nil
}

// parseDashOSuboptions translates a comma-separated -o argument into
// fuse.MountOptions, the way libfuse's mount helper would interpret it
// for fuse_main. bazil.org/fuse only exposes a fixed set of typed
// constructors rather than libfuse's open-ended option bag, so
// suboptions outside that set are reported instead of dropped silently.
func parseDashOSuboptions(spec string) ([]fuse.MountOption, error) {
	var opts []fuse.MountOption
	for _, sub := range strings.Split(spec, ",") {
		if sub == "" {
			continue
		}
		key, val, hasVal := strings.Cut(sub, "=")
		switch key {
		case "allow_other":
			opts = append(opts, fuse.AllowOther())
		case "allow_root":
			opts = append(opts, fuse.AllowRoot())
		case "allow_dev":
			opts = append(opts, fuse.AllowDev())
		case "allow_suid":
			opts = append(opts, fuse.AllowSUID())
		case "nonempty":
			opts = append(opts, fuse.AllowNonEmptyMount())
		case "default_permissions":
			opts = append(opts, fuse.DefaultPermissions())
		case "ro":
			opts = append(opts, fuse.ReadOnly())
		case "async_read":
			opts = append(opts, fuse.AsyncRead())
		case "writeback_cache":
			opts = append(opts, fuse.WritebackCache())
		case "local":
			opts = append(opts, fuse.LocalVolume())
		case "excl_create":
			opts = append(opts, fuse.ExclCreate())
		case "noappledouble":
			opts = append(opts, fuse.NoAppleDouble())
		case "noapplexattr":
			opts = append(opts, fuse.NoAppleXattr())
		case "fsname":
			if !hasVal {
				return nil, fmt.Errorf("%w: -o fsname requires a value", ErrFlagParse)
			}
			opts = append(opts, fuse.FSName(val))
		case "subtype":
			if !hasVal {
				return nil, fmt.Errorf("%w: -o subtype requires a value", ErrFlagParse)
			}
			opts = append(opts, fuse.Subtype(val))
		case "volname":
			if !hasVal {
				return nil, fmt.Errorf("%w: -o volname requires a value", ErrFlagParse)
			}
			opts = append(opts, fuse.VolumeName(val))
		case "max_readahead":
			if !hasVal {
				return nil, fmt.Errorf("%w: -o max_readahead requires a value", ErrFlagParse)
			}
			n, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: -o max_readahead: %w", ErrFlagParse, err)
			}
			opts = append(opts, fuse.MaxReadahead(uint32(n)))
		default:
			fmt.Fprintf(os.Stderr, "lzopfs: ignoring unsupported FUSE mount suboption %q\n", key)
		}
	}
	return opts, nil
}

// runMount implements the default (no subcommand) action: register every
// archive named on the command line and serve them as a FUSE mount at the
// final argument. FUSE options are translated into fuse.MountOptions for
// fuse.Mount; options with no bazil.org/fuse equivalent are reported on
// stderr and not applied.
func runMount(c *cli.Context) error {
	m, err := parseMountArgs(c.Args().Slice())
	if err != nil {
		return err
	}

	if m.help {
		check(cli.ShowAppHelp(c))
		return nil
	}
	if m.version {
		return printVersion(c)
	}

	files := lzopfs.NewFileList()
	for _, path := range m.archives {
		if _, err := files.Add(path, m.maxBlock); err != nil {
			return fmt.Errorf("%w: registering %q: %w", ErrLzopfs, path, err)
		}
	}

	cache := lzopfs.NewBlockCache(m.cacheSize)

	conn, err := fuse.Mount(m.mountpoint, m.options...)
	if err != nil {
		return fmt.Errorf("%w: mounting %q: %w", ErrLzopfs, m.mountpoint, err)
	}
	defer conn.Close()

	fsys := &lzopfsFS{files: files, cache: cache}

	errCh := make(chan error, 1)
	go func() {
		errCh <- fs.Serve(conn, fsys)
	}()

	select {
	case <-conn.Ready:
		if err := conn.MountError; err != nil {
			return fmt.Errorf("%w: mount handshake: %w", ErrLzopfs, err)
		}
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%w: serving: %w", ErrLzopfs, err)
		}
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("%w: serving: %w", ErrLzopfs, err)
	}

	return nil
}
