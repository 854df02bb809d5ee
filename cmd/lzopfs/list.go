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

	"github.com/rodaine/table"
	"github.com/urfave/cli/v2"

	"github.com/ianlewis/go-lzopfs"
)

// newListCommand returns the "list" subcommand: a diagnostic that registers
// one archive and prints its block index (registering an lzop archive may
// write its sidecar index next to it), the same table shape
// cmd/dictzip's own list command printed for a single dictzip file, now
// generalized across both codecs via [lzopfs.CompressedFile.Blocks].
func newListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "print an archive's block index",
		ArgsUsage: "ARCHIVE",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("%w: list takes exactly one archive path", ErrUsage)
			}
			return runList(c.Args().First())
		},
	}
}

func runList(path string) error {
	files := lzopfs.NewFileList()
	cf, err := files.Add(path, 0)
	if err != nil {
		return fmt.Errorf("%w: registering %q: %w", ErrLzopfs, path, err)
	}

	blocks := cf.Blocks()
	var compressed int64
	for _, b := range blocks {
		compressed += b.CSize
	}
	uncompressed := cf.UncompressedSize()

	tbl := table.New("#", "usize", "csize", "uoff", "coff")
	for i, b := range blocks {
		tbl.AddRow(i, b.USize, b.CSize, b.UOff, b.COff)
	}
	tbl.Print()

	ratio := 0.0
	if uncompressed > 0 {
		ratio = (1 - float64(compressed)/float64(uncompressed)) * 100
	}
	fmt.Printf("\n%s: %s, %d blocks, %d -> %d bytes (%.1f%%)\n",
		path, cf.Suffix(), len(blocks), uncompressed, compressed, ratio)

	return nil
}
