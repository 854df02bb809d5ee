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
	"encoding/binary"
	"errors"
	"hash/adler32"
	"testing"
)

// helloCompressed is a valid LZO1X1 stream (literal run, then a stream
// terminator) decompressing to "hello": 0x16 opens a 5-byte literal run,
// and 0x11 0x00 0x00 is the end-of-stream marker. internal/lzo's own tests
// decode the same vector.
var helloCompressed = []byte{0x16, 'h', 'e', 'l', 'l', 'o', 0x11, 0x00, 0x00}

// lzopBlock is one block's worth of test fixture input: its uncompressed
// bytes and, if it should be stored compressed, the already-compressed form
// (otherwise the block is stored verbatim, csize == usize).
type lzopBlock struct {
	uncompressed []byte
	compressed   []byte // nil means store verbatim
}

// buildLzopArchive assembles a minimal, spec-conformant lzop archive with
// the given header flags and blocks, suitable for NewLzopFile.
func buildLzopArchive(t *testing.T, flags uint32, blocks []lzopBlock) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(lzopMagic[:])

	var header bytes.Buffer
	writeBE16 := func(v uint16) { _ = binary.Write(&header, binary.BigEndian, v) }
	writeBE16(1)      // encoder_version
	writeBE16(0x0209) // lzo_lib_version
	writeBE16(lzopDecodeVersion)
	header.WriteByte(1) // method
	header.WriteByte(5) // level
	_ = binary.Write(&header, binary.BigEndian, flags)
	header.Write(make([]byte, 12)) // mode, mtime-low, mtime-high
	header.WriteByte(0)            // filename_length

	buf.Write(header.Bytes())
	_ = binary.Write(&buf, binary.BigEndian, headerChecksum(flags, header.Bytes()))

	usums := 0
	if flags&flagAdlerDec != 0 {
		usums++
	}
	if flags&flagCRCDec != 0 {
		usums++
	}
	csums := 0
	if flags&flagAdlerComp != 0 {
		csums++
	}
	if flags&flagCRCComp != 0 {
		csums++
	}

	for _, b := range blocks {
		usize := uint32(len(b.uncompressed))
		payload := b.uncompressed
		csize := usize
		if b.compressed != nil {
			payload = b.compressed
			csize = uint32(len(b.compressed))
		}

		_ = binary.Write(&buf, binary.BigEndian, usize)
		_ = binary.Write(&buf, binary.BigEndian, csize)

		for i := 0; i < usums; i++ {
			_ = binary.Write(&buf, binary.BigEndian, adler32.Checksum(b.uncompressed))
		}
		if usize != csize {
			for i := 0; i < csums; i++ {
				_ = binary.Write(&buf, binary.BigEndian, adler32.Checksum(payload))
			}
		}

		buf.Write(payload)
	}
	_ = binary.Write(&buf, binary.BigEndian, uint32(0)) // terminator

	return buf.Bytes()
}

func TestNewLzopFileBasic(t *testing.T) {
	t.Parallel()

	data := buildLzopArchive(t, 0, []lzopBlock{
		{uncompressed: []byte("hello"), compressed: helloCompressed},
	})
	path := writeTempFile(t, data)

	lf, err := NewLzopFile(path, 0)
	if err != nil {
		t.Fatalf("NewLzopFile() error: %v", err)
	}

	if got, want := lf.UncompressedSize(), int64(5); got != want {
		t.Errorf("UncompressedSize() = %d, want %d", got, want)
	}

	block, ok := lf.FindBlock(0)
	if !ok {
		t.Fatal("FindBlock(0) not found")
	}

	out := make([]byte, block.USize)
	fh, err := openFileHandle(path)
	if err != nil {
		t.Fatalf("openFileHandle: %v", err)
	}
	defer fh.Close()

	if err := lf.DecompressBlock(fh, block, out); err != nil {
		t.Fatalf("DecompressBlock() error: %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("DecompressBlock() = %q, want %q", out, "hello")
	}
}

func TestNewLzopFileIncompressibleBlockWithChecksums(t *testing.T) {
	t.Parallel()

	flags := uint32(flagAdlerDec | flagAdlerComp)
	data := buildLzopArchive(t, flags, []lzopBlock{
		{uncompressed: []byte("world")}, // stored verbatim
		{uncompressed: []byte("hello"), compressed: helloCompressed},
	})
	path := writeTempFile(t, data)

	lf, err := NewLzopFile(path, 0)
	if err != nil {
		t.Fatalf("NewLzopFile() error: %v", err)
	}

	if got, want := lf.UncompressedSize(), int64(10); got != want {
		t.Errorf("UncompressedSize() = %d, want %d", got, want)
	}

	fh, err := openFileHandle(path)
	if err != nil {
		t.Fatalf("openFileHandle: %v", err)
	}
	defer fh.Close()

	var got bytes.Buffer
	for off := int64(0); off < lf.UncompressedSize(); {
		block, ok := lf.FindBlock(off)
		if !ok {
			t.Fatalf("FindBlock(%d) not found", off)
		}
		out := make([]byte, block.USize)
		if err := lf.DecompressBlock(fh, block, out); err != nil {
			t.Fatalf("DecompressBlock() error: %v", err)
		}
		got.Write(out)
		off += block.USize
	}

	if got.String() != "worldhello" {
		t.Errorf("decompressed = %q, want %q", got.String(), "worldhello")
	}
}

func TestNewLzopFileMagicMismatch(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, []byte("not an lzop file at all"))
	_, err := NewLzopFile(path, 0)
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("NewLzopFile() error = %v, want ErrFormat", err)
	}
}

func TestNewLzopFileHeaderChecksumMismatch(t *testing.T) {
	t.Parallel()

	data := buildLzopArchive(t, 0, []lzopBlock{{uncompressed: []byte("hi"), compressed: nil}})
	// Corrupt the checksum word, which sits right after the 25-byte header.
	data[9+25] ^= 0xff
	path := writeTempFile(t, data)

	_, err := NewLzopFile(path, 0)
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("NewLzopFile() error = %v, want ErrFormat", err)
	}
}

func TestNewLzopFileMultiPartRejected(t *testing.T) {
	t.Parallel()

	data := buildLzopArchive(t, flagMultiPart, nil)
	path := writeTempFile(t, data)

	_, err := NewLzopFile(path, 0)
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("NewLzopFile() error = %v, want ErrFormat", err)
	}
}

func TestNewLzopFileMaxBlockExceeded(t *testing.T) {
	t.Parallel()

	data := buildLzopArchive(t, 0, []lzopBlock{{uncompressed: []byte("hello world")}})
	path := writeTempFile(t, data)

	_, err := NewLzopFile(path, 4)
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("NewLzopFile() with maxBlock exceeded error = %v, want ErrFormat", err)
	}
}

func TestLzopFileDestName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		path string
		want string
	}{
		{path: "/archives/foo.tzo", want: "foo.tar"},
		{path: "/archives/foo.lzo", want: "foo"},
		{path: "/archives/foo.bin", want: "foo.bin"},
	}

	for _, tc := range testCases {
		lf := &LzopFile{}
		lf.path = tc.path
		if got := lf.DestName(); got != tc.want {
			t.Errorf("DestName(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
