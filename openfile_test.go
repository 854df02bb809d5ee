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
	"bytes"
	"testing"
)

// memFile is a [CompressedFile] stub backed entirely by an in-memory byte
// slice, split into fixed-size blocks. It exists to exercise
// [OpenCompressedFile.Read]'s block-straddling logic (spec.md §8 S1-S4)
// without needing a real archive on disk.
type memFile struct {
	data      []byte
	blockSize int64
	blocks    BlockList
}

func newMemFile(data []byte, blockSize int64) *memFile {
	var blocks BlockList
	var uoff int64
	for uoff < int64(len(data)) {
		usize := blockSize
		if remaining := int64(len(data)) - uoff; usize > remaining {
			usize = remaining
		}
		blocks = append(blocks, Block{USize: usize, CSize: usize, COff: uoff, UOff: uoff})
		uoff += usize
	}
	return &memFile{data: data, blockSize: blockSize, blocks: blocks}
}

func (f *memFile) Path() string               { return "mem" }
func (f *memFile) Suffix() string              { return "mem" }
func (f *memFile) DestName() string            { return "mem" }
func (f *memFile) UncompressedSize() int64     { return int64(len(f.data)) }
func (f *memFile) Blocks() BlockList           { return f.blocks }
func (f *memFile) FindBlock(uoff int64) (Block, bool) { return f.blocks.find(uoff) }

func (f *memFile) DecompressBlock(fh *FileHandle, b Block, out []byte) error {
	copy(out, f.data[b.UOff:b.UOff+b.USize])
	return nil
}

func newTestOpenFile(t *testing.T, data []byte, blockSize int64) (*OpenCompressedFile, *BlockCache) {
	t.Helper()

	mf := newMemFile(data, blockSize)
	o := &OpenCompressedFile{file: mf, fh: nil}
	return o, NewBlockCache(0)
}

func TestOpenCompressedFileReadWholeFile(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("0123456789"), 10) // 100 bytes
	o, cache := newTestOpenFile(t, data, 7)         // blocks don't divide evenly

	out := make([]byte, len(data))
	n, err := o.Read(cache, out, 0)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if n != len(data) {
		t.Fatalf("Read() n = %d, want %d", n, len(data))
	}
	if !bytes.Equal(out, data) {
		t.Error("Read() did not reproduce the whole file")
	}
}

func TestOpenCompressedFileReadAtEOF(t *testing.T) {
	t.Parallel()

	data := []byte("hello world")
	o, cache := newTestOpenFile(t, data, 4)

	n, err := o.Read(cache, make([]byte, 100), int64(len(data)))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if n != 0 {
		t.Errorf("Read() at EOF = %d, want 0", n)
	}
}

func TestOpenCompressedFileReadLastByte(t *testing.T) {
	t.Parallel()

	data := []byte("hello world")
	o, cache := newTestOpenFile(t, data, 4)

	out := make([]byte, 100)
	n, err := o.Read(cache, out, int64(len(data)-1))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("Read() n = %d, want 1", n)
	}
	if out[0] != 'd' {
		t.Errorf("Read() last byte = %q, want %q", out[0], 'd')
	}
}

func TestOpenCompressedFileReadStraddlingBlocks(t *testing.T) {
	t.Parallel()

	data := []byte("abcdefghijklmnopqrstuvwxyz")
	o, cache := newTestOpenFile(t, data, 4) // blocks: abcd efgh ijkl mnop ...

	// Offset 2 (mid first block) through offset 14 (mid fourth block):
	// straddles four blocks.
	out := make([]byte, 12)
	n, err := o.Read(cache, out, 2)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if n != 12 {
		t.Fatalf("Read() n = %d, want 12", n)
	}
	if want := data[2:14]; !bytes.Equal(out, want) {
		t.Errorf("Read() = %q, want %q", out, want)
	}
}

func TestOpenCompressedFileReadClampsSize(t *testing.T) {
	t.Parallel()

	data := []byte("short")
	o, cache := newTestOpenFile(t, data, 2)

	out := make([]byte, 100)
	n, err := o.Read(cache, out, 2)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if n != 3 {
		t.Fatalf("Read() n = %d, want 3", n)
	}
	if want := data[2:5]; !bytes.Equal(out[:n], want) {
		t.Errorf("Read() = %q, want %q", out[:n], want)
	}
}
