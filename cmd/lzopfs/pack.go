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
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/ianlewis/go-lzopfs"
)

// newPackCommand returns the "pack" subcommand: the one write path in the
// repository, producing a mountable .dz archive from a plain file. This
// adapts cmd/dictzip's own "compress" subcommand's algorithm (open source,
// create destination, copy through a [lzopfs.DictzipWriter]) but, unlike the
// teacher's compress command, never deletes the source file — its purpose
// here is producing fixtures to mount, not a gzip-alike compression tool.
func newPackCommand() *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "create a .dz dictzip archive from a plain file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "overwrite an existing .dz file",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: pack takes exactly one file path", ErrUsage)
			}
			return runPack(c.Args().First(), c.Bool("force"))
		},
	}
}

func runPack(path string, force bool) error {
	destPath := path + ".dz"

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: opening %q: %w", ErrLzopfs, path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %q: %w", ErrLzopfs, path, err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if !force {
		flags |= os.O_EXCL
	}
	dst, err := os.OpenFile(destPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: creating %q: %w", ErrLzopfs, destPath, err)
	}
	defer dst.Close()

	zw, err := lzopfs.NewDictzipWriter(dst)
	if err != nil {
		return fmt.Errorf("%w: creating writer: %w", ErrLzopfs, err)
	}
	zw.Name = filepath.Base(path)
	zw.ModTime = info.ModTime()

	if _, err := io.Copy(zw, src); err != nil {
		return fmt.Errorf("%w: compressing %q: %w", ErrLzopfs, path, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: finalizing %q: %w", ErrLzopfs, destPath, err)
	}

	return nil
}
