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
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// gzip header constants, shared with the writer in dictzippack.go.
const (
	hdrGzipID1   byte = 0x1f
	hdrGzipID2   byte = 0x8b
	hdrDeflateCM byte = 0x08

	// hdrDictzipSI1, hdrDictzipSI2 identify the dictzip random-access EXTRA
	// subfield, SI1='R' SI2='A'.
	hdrDictzipSI1 = byte('R')
	hdrDictzipSI2 = byte('A')
)

// FLG (Flags) bits, RFC 1952 section 2.3.1.
const (
	flgCRC     = byte(1 << 1)
	flgEXTRA   = byte(1 << 2)
	flgNAME    = byte(1 << 3)
	flgCOMMENT = byte(1 << 4)
)

// DictzipFile is the dictzip codec variant of [CompressedFile]: a
// gzip-compatible stream whose EXTRA header carries a chunk table, so unlike
// [LzopFile] its BlockList is derived directly from the header in O(1)
// parses rather than scanning the whole archive, and it does not need
// [IndexedCompFile]'s sidecar.
type DictzipFile struct {
	path      string
	name      string
	modTime   time.Time
	chunkSize int64
	blocks    BlockList
}

// NewDictzipFile registers the dictzip archive at path.
func NewDictzipFile(path string) (*DictzipFile, error) {
	fh, err := openFileHandle(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	df := &DictzipFile{path: path}

	sizes, chunkOffsets, err := df.parseHeader(fh)
	if err != nil {
		return nil, err
	}

	isize, err := df.readTrailerISize(fh)
	if err != nil {
		return nil, err
	}

	df.blocks = buildDictzipBlocks(df.chunkSize, sizes, chunkOffsets, isize)

	return df, nil
}

// Path implements [CompressedFile].
func (df *DictzipFile) Path() string { return df.path }

// Suffix implements [CompressedFile].
func (df *DictzipFile) Suffix() string { return "dictzip" }

// UncompressedSize implements [CompressedFile].
func (df *DictzipFile) UncompressedSize() int64 { return df.blocks.uncompressedSize() }

// FindBlock implements [CompressedFile].
func (df *DictzipFile) FindBlock(uoff int64) (Block, bool) { return df.blocks.find(uoff) }

// Blocks implements [CompressedFile].
func (df *DictzipFile) Blocks() BlockList { return df.blocks }

// DestName implements [CompressedFile]. The conventional gzip-family rule of
// stripping the format's own extension applies; dictzip has no equivalent of
// lzop's *.tzo -> *.tar rewrite.
func (df *DictzipFile) DestName() string {
	base := filepath.Base(df.path)
	if strings.HasSuffix(base, ".dz") {
		return strings.TrimSuffix(base, ".dz")
	}
	return base
}

// DecompressBlock implements [CompressedFile]. Each dictzip chunk is an
// independently-reset deflate stream (the writer in dictzippack.go calls
// flate.Writer.Reset between chunks, discarding the LZ77 window), so a fresh
// flate.Reader seeded with nothing but the chunk's own bytes decodes it
// correctly without needing the state of neighboring chunks.
func (df *DictzipFile) DecompressBlock(fh *FileHandle, b Block, out []byte) error {
	cbuf, err := fh.preadAt(b.COff, int(b.CSize))
	if err != nil {
		return formatErrorf("reading compressed chunk: %w", err)
	}

	fr := flate.NewReader(bytes.NewReader(cbuf))
	defer fr.Close()

	if _, err := io.ReadFull(fr, out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

// parseHeader reads the gzip header and dictzip RA EXTRA subfield, setting
// df.chunkSize, df.name, and df.modTime, and returns the compressed size and
// absolute file offset of every chunk.
func (df *DictzipFile) parseHeader(fh *FileHandle) ([]int, []int64, error) {
	head, err := fh.read(10)
	if err != nil {
		return nil, nil, formatErrorf("reading header: %w", err)
	}
	if head[0] != hdrGzipID1 || head[1] != hdrGzipID2 {
		return nil, nil, formatErrorf("ID1,ID2: %x", head[0:2])
	}
	if head[2] != hdrDeflateCM {
		return nil, nil, formatErrorf("CM: %x", head[2])
	}
	if mtime := binary.LittleEndian.Uint32(head[4:8]); mtime > 0 {
		df.modTime = time.Unix(int64(mtime), 0)
	}
	flg := head[3]

	if flg&flgEXTRA == 0 {
		return nil, nil, formatErrorf("no EXTRA field")
	}
	sizes, err := df.readExtra(fh)
	if err != nil {
		return nil, nil, err
	}

	if flg&flgNAME != 0 {
		name, err := readNULString(fh)
		if err != nil {
			return nil, nil, err
		}
		df.name = name
	}
	if flg&flgCOMMENT != 0 {
		if _, err := readNULString(fh); err != nil {
			return nil, nil, err
		}
	}
	if flg&flgCRC != 0 {
		if _, err := fh.read(2); err != nil { // CRC-16 of header, unverified here
			return nil, nil, formatErrorf("reading header CRC: %w", err)
		}
	}

	chunkStart, err := fh.tell()
	if err != nil {
		return nil, nil, err
	}

	offsets := make([]int64, len(sizes))
	off := chunkStart
	for i, size := range sizes {
		offsets[i] = off
		off += int64(size)
	}

	return sizes, offsets, nil
}

// readExtra parses the EXTRA header, returning the dictzip chunk's
// compressed sizes. The EXTRA field may contain subfields besides the
// dictzip 'R','A' one; any others are skipped.
func (df *DictzipFile) readExtra(fh *FileHandle) ([]int, error) {
	xlenBuf, err := fh.read(2)
	if err != nil {
		return nil, formatErrorf("EXTRA XLEN: %w", err)
	}
	xlen := binary.LittleEndian.Uint16(xlenBuf)
	extra, err := fh.read(int(xlen))
	if err != nil {
		return nil, formatErrorf("reading EXTRA: %w", err)
	}

	er := bytes.NewReader(extra)
	for er.Len() > 0 {
		sub := make([]byte, 4)
		if _, err := io.ReadFull(er, sub); err != nil {
			return nil, formatErrorf("reading EXTRA subfield: %w", err)
		}
		si1, si2 := sub[0], sub[1]
		subLen := binary.LittleEndian.Uint16(sub[2:])

		subData := make([]byte, subLen)
		if _, err := io.ReadFull(er, subData); err != nil {
			return nil, formatErrorf("reading EXTRA subfield: %w", err)
		}

		if si1 == hdrDictzipSI1 && si2 == hdrDictzipSI2 {
			return df.readRASubfield(subData)
		}
	}

	return nil, formatErrorf("no dictzip RA EXTRA subfield")
}

// readRASubfield parses the dictzip 'R','A' subfield body: VER, CHLEN,
// CHCNT, then CHCNT per-chunk compressed sizes, all little-endian u16.
func (df *DictzipFile) readRASubfield(data []byte) ([]int, error) {
	if len(data) < 6 {
		return nil, formatErrorf("RA subfield too short")
	}
	ver := binary.LittleEndian.Uint16(data[0:2])
	if ver != 1 {
		return nil, formatErrorf("unsupported RA version: %d", ver)
	}
	chlen := binary.LittleEndian.Uint16(data[2:4])
	chcnt := binary.LittleEndian.Uint16(data[4:6])
	df.chunkSize = int64(chlen)

	want := 6 + int(chcnt)*2
	if len(data) < want {
		return nil, formatErrorf("RA subfield truncated")
	}

	sizes := make([]int, chcnt)
	for i := range sizes {
		sizes[i] = int(binary.LittleEndian.Uint16(data[6+i*2 : 8+i*2]))
	}
	return sizes, nil
}

// readTrailerISize reads the gzip trailer's ISIZE field (the uncompressed
// size modulo 2^32, RFC 1952 section 2.3.1) from the last 4 bytes of the
// file, the only place dictzip's total uncompressed size is recorded.
func (df *DictzipFile) readTrailerISize(fh *FileHandle) (int64, error) {
	if _, err := fh.seek(-4, io.SeekEnd); err != nil {
		return 0, err
	}
	buf, err := fh.read(4)
	if err != nil {
		return 0, formatErrorf("reading ISIZE trailer: %w", err)
	}
	return int64(binary.LittleEndian.Uint32(buf)), nil
}

// buildDictzipBlocks assembles the BlockList from the per-chunk compressed
// sizes/offsets parsed from the header and the total uncompressed size from
// the trailer. Every chunk is chunkSize bytes uncompressed except the last,
// which is whatever remains.
func buildDictzipBlocks(chunkSize int64, sizes []int, offsets []int64, isize int64) BlockList {
	blocks := make(BlockList, len(sizes))
	uoff := int64(0)
	for i, csize := range sizes {
		usize := chunkSize
		if i == len(sizes)-1 {
			usize = isize - uoff
		}
		blocks[i] = Block{
			USize: usize,
			CSize: int64(csize),
			COff:  offsets[i],
			UOff:  uoff,
		}
		uoff += usize
	}
	return blocks
}

// readNULString reads a NUL-terminated ISO 8859-1 string, as gzip's NAME and
// COMMENT header fields are encoded.
func readNULString(fh *FileHandle) (string, error) {
	var b strings.Builder
	for {
		buf, err := fh.read(1)
		if err != nil {
			return "", formatErrorf("reading string header: %w", err)
		}
		if buf[0] == 0 {
			return b.String(), nil
		}
		b.WriteRune(rune(buf[0]))
	}
}
