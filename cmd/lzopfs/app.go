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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"sigs.k8s.io/release-utils/version"
)

const (
	// ExitCodeSuccess is successful error code.
	ExitCodeSuccess int = iota

	// ExitCodeFlagParseError is the exit code for a flag parsing error.
	ExitCodeFlagParseError

	// ExitCodeUnknownError is the exit code for an unknown error.
	ExitCodeUnknownError
)

// ErrFlagParse is a flag parsing error.
var ErrFlagParse = errors.New("parsing flags")

// ErrUsage indicates the command line didn't supply enough positional
// arguments for the operation requested.
var ErrUsage = errors.New("usage")

// ErrLzopfs is the base error for all cmd/lzopfs command failures, wrapping
// errors from the lzopfs package the same way cmd/dictzip wraps its own
// ErrDictzip around library errors.
var ErrLzopfs = errors.New("lzopfs")

func init() {
	// Set the HelpFlag to a random name so that it isn't used. `cli` handles
	// the flag with the root command such that it takes a command name
	// argument but we don't use commands for the default mount action.
	//
	// This is done because `lzopfs --help foo` would otherwise try to look
	// up "foo" as a subcommand instead of displaying the help.
	//
	// This flag is hidden by the help output.
	// See: github.com/urfave/cli/issues/1809
	cli.HelpFlag = &cli.BoolFlag{
		Name:               "d41d8cd98f00b204e980",
		DisableDefaultText: true,
	}
}

// check panics if err is non-nil.
func check(err error) {
	if err != nil {
		panic(err)
	}
}

// must panics if err is non-nil, otherwise returns val.
func must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

func newLzopfsApp() *cli.App {
	return &cli.App{
		Name:  filepath.Base(os.Args[0]),
		Usage: "Mount lzop and dictzip archives as decompressed files.",
		Description: strings.Join([]string{
			"lzopfs(1)-style FUSE filesystem written in Go.",
			"http://github.com/ianlewis/go-lzopfs",
		}, "\n"),
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "max-block",
				Usage: "reject lzop archives with a block larger than this many bytes (0 means unbounded; dictzip archives are not checked)",
			},
			&cli.Int64Flag{
				Name:  "cache-size",
				Usage: "aggregate decompressed block cache budget, in bytes",
			},
			&cli.BoolFlag{
				Name:               "help",
				Usage:              "print this help text and exit",
				Aliases:            []string{"h"},
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "version",
				Usage:              "print version information and exit",
				Aliases:            []string{"v"},
				DisableDefaultText: true,
			},
		},
		// Non-option positional arguments form an alternating sequence: each
		// source archive followed eventually by a mount point, interspersed
		// with arbitrary FUSE mount options (-o opt[,opt...], -f, -d, -s, ...)
		// that are handled by runMount rather than by cli. cli's declarative flag parser
		// rejects any dash-prefixed token it doesn't recognize, so it's
		// disabled here (SkipFlagParsing) and runMount walks the raw argument
		// list itself, the same way the original's lf_opt_proc callback
		// consumes one argument at a time: non-option tokens are collected as
		// archive paths (the last one standing becomes the mount point) and
		// option-looking tokens are translated into fuse.MountOptions instead
		// of being rejected or silently swallowed.
		ArgsUsage:       "ARCHIVE... MOUNTPOINT",
		Copyright:       "Google LLC",
		HideHelp:        true,
		HideHelpCommand: true,
		SkipFlagParsing: true,
		Commands: []*cli.Command{
			newListCommand(),
			newPackCommand(),
		},
		Action: func(c *cli.Context) error {
			return runMount(c)
		},
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}

			_ = must(fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", c.App.Name, err))
			if errors.Is(err, ErrFlagParse) || errors.Is(err, ErrUsage) {
				cli.OsExiter(ExitCodeFlagParseError)
				return
			}

			cli.OsExiter(ExitCodeUnknownError)
		},
	}
}

func printVersion(c *cli.Context) error {
	versionInfo := version.GetVersionInfo()
	_, err := fmt.Fprintf(c.App.Writer, `%s %s
Copyright 2024 Google LLC

%s
`, c.App.Name, versionInfo.GitVersion, versionInfo.String())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLzopfs, err)
	}
	return nil
}
