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

import "sort"

// Block describes one compression unit within an archive.
//
// usize is the uncompressed byte count, csize the compressed byte count
// (csize == usize for an incompressible block stored verbatim), coff the
// absolute offset of the compressed payload in the archive (past any
// per-block checksums), and uoff the absolute offset of this block's first
// byte in the virtual uncompressed file.
type Block struct {
	USize int64
	CSize int64
	COff  int64
	UOff  int64
}

// BlockList is the ordered, immutable-after-build sequence of [Block]s for
// one archive, sorted by increasing UOff.
type BlockList []Block

// find returns the unique block with UOff <= off < UOff+USize, and true, or
// the zero Block and false if off is at or past the end of the file.
func (bl BlockList) find(off int64) (Block, bool) {
	i := sort.Search(len(bl), func(i int) bool {
		return bl[i].UOff+bl[i].USize > off
	})
	if i == len(bl) || off < bl[i].UOff {
		return Block{}, false
	}
	return bl[i], true
}

// uncompressedSize is the sum of all block USizes, i.e. the size of the
// virtual decompressed file.
func (bl BlockList) uncompressedSize() int64 {
	if len(bl) == 0 {
		return 0
	}
	last := bl[len(bl)-1]
	return last.UOff + last.USize
}
