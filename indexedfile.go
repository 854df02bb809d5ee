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

package lzopfs

import (
	"os"
)

// IndexedCompFile is a mixin embedded by codecs whose block index is
// expensive enough to scan that caching it in a sidecar file is worthwhile
// (lzop, where building the index means walking every block header in the
// archive). Codecs whose own on-disk header already carries the full block
// table at O(1) parse cost (dictzip) build their BlockList directly instead
// of embedding this type; see [DictzipFile].
type IndexedCompFile struct {
	path          string
	sidecarSuffix string
	maxBlock      int64
	blocks        BlockList
}

// scanFunc performs a full block scan of the archive, the expensive path
// taken when no sidecar index exists yet or the sidecar fails to parse.
type scanFunc func(fh *FileHandle) (BlockList, error)

// initialize loads the block index from the sidecar file at
// path+sidecarSuffix if present and well-formed; otherwise it scans the
// archive via scan and writes the freshly built index to the sidecar for
// next time. Either way, every block's USize is validated against maxBlock
// (0 means unbounded).
func (c *IndexedCompFile) initialize(path, sidecarSuffix string, maxBlock int64, fh *FileHandle, scan scanFunc) error {
	c.path = path
	c.sidecarSuffix = sidecarSuffix
	c.maxBlock = maxBlock

	if blocks, err := c.loadSidecar(); err == nil {
		if err := c.checkMaxBlock(blocks); err != nil {
			return err
		}
		c.blocks = blocks
		return nil
	}

	blocks, err := scan(fh)
	if err != nil {
		return err
	}
	if err := c.checkMaxBlock(blocks); err != nil {
		return err
	}
	c.blocks = blocks

	// A failure to persist the sidecar is not fatal to registration: the
	// archive is still fully readable, just without the startup-time win on
	// the next mount.
	_ = c.writeSidecar()

	return nil
}

func (c *IndexedCompFile) checkMaxBlock(blocks BlockList) error {
	if c.maxBlock <= 0 {
		return nil
	}
	for _, b := range blocks {
		if b.USize > c.maxBlock {
			return formatErrorf("block uncompressed size %d exceeds maxBlock %d", b.USize, c.maxBlock)
		}
	}
	return nil
}

func (c *IndexedCompFile) sidecarPath() string {
	return c.path + c.sidecarSuffix
}

// loadSidecar reads the {u32 usize, u32 csize, u64 coff} record stream
// terminated by a u32 zero, recomputing uoff by accumulation as specified.
func (c *IndexedCompFile) loadSidecar() (BlockList, error) {
	fh, err := openFileHandle(c.sidecarPath())
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var blocks BlockList
	var uoff int64
	for {
		usize, err := readBE[uint32](fh)
		if err != nil {
			return nil, err
		}
		if usize == 0 {
			return blocks, nil
		}
		csize, err := readBE[uint32](fh)
		if err != nil {
			return nil, err
		}
		coff, err := readBE[uint64](fh)
		if err != nil {
			return nil, err
		}

		blocks = append(blocks, Block{
			USize: int64(usize),
			CSize: int64(csize),
			COff:  int64(coff),
			UOff:  uoff,
		})
		uoff += int64(usize)
	}
}

// writeSidecar persists c.blocks to the sidecar path in the format
// loadSidecar expects.
func (c *IndexedCompFile) writeSidecar() error {
	f, err := os.OpenFile(c.sidecarPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return ioErrorf("creating sidecar: %w", err)
	}
	fh := &FileHandle{f: f}
	defer fh.Close()

	for _, b := range c.blocks {
		if err := writeBE(fh, uint32(b.USize)); err != nil {
			return err
		}
		if err := writeBE(fh, uint32(b.CSize)); err != nil {
			return err
		}
		if err := writeBE(fh, uint64(b.COff)); err != nil {
			return err
		}
	}
	return writeBE(fh, uint32(0))
}

// findBlock implements CompressedFile.FindBlock in terms of c.blocks.
func (c *IndexedCompFile) findBlock(uoff int64) (Block, bool) {
	return c.blocks.find(uoff)
}

// uncompressedSize implements CompressedFile.UncompressedSize in terms of
// c.blocks.
func (c *IndexedCompFile) uncompressedSize() int64 {
	return c.blocks.uncompressedSize()
}

// blockList implements CompressedFile.Blocks in terms of c.blocks.
func (c *IndexedCompFile) blockList() BlockList {
	return c.blocks
}
