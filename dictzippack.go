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
	"hash"
	"hash/crc32"
	"io"
	"math"
	"os"
	"time"
)

// DefaultChunkSize is the chunk size DictzipWriter uses unless overridden,
// matching dictzip's own field width limit (CHLEN is a u16).
const DefaultChunkSize = math.MaxUint16

// DictzipWriter writes archives in the format [DictzipFile] reads: a
// gzip-compatible stream whose EXTRA header carries the RA random-access
// chunk table. It exists so `lzopfs pack` can produce mountable fixtures;
// it is the one write path in the package, and it writes brand new
// archives, never through a live mount (see SPEC_FULL.md's non-goals).
//
// Like [DictzipFile.DecompressBlock] relies on, each chunk is compressed
// with an independently-reset flate.Writer, so later random access never
// needs a preceding chunk's state.
type DictzipWriter struct {
	// Name is written to the gzip NAME header field if non-empty; ModTime is
	// written to MTIME if it is after the Unix epoch.
	Name    string
	ModTime time.Time

	chunkSize int64

	tmp        *os.File
	chunkBuf   *bytes.Buffer
	compressor *flate.Writer
	hasData    bool

	w      io.Writer
	digest hash.Hash32
	isize  int64
	sizes  []int
	closed bool
}

// NewDictzipWriter initializes a writer with [DefaultChunkSize].
func NewDictzipWriter(w io.Writer) (*DictzipWriter, error) {
	return NewDictzipWriterSize(w, DefaultChunkSize)
}

// NewDictzipWriterSize initializes a writer with the given uncompressed
// chunk size, which must fit in a u16.
func NewDictzipWriterSize(w io.Writer, chunkSize int) (*DictzipWriter, error) {
	if chunkSize <= 0 || chunkSize > math.MaxUint16 {
		return nil, formatErrorf("chunk size out of range: %d", chunkSize)
	}

	tmp, err := os.CreateTemp("", "lzopfs-dictzip.*")
	if err != nil {
		return nil, ioErrorf("creating temp file: %w", err)
	}

	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing deflate writer: %w", errLzopfs, err)
	}

	return &DictzipWriter{
		chunkSize:  int64(chunkSize),
		tmp:        tmp,
		chunkBuf:   &buf,
		compressor: fw,
		w:          w,
		digest:     crc32.NewIEEE(),
	}, nil
}

// Write implements [io.Writer].
func (z *DictzipWriter) Write(p []byte) (int, error) {
	if z.closed {
		return 0, fmt.Errorf("%w: write on closed writer", errLzopfs)
	}

	var i int
	for i < len(p) {
		j := i + int(z.chunkSize) - int(z.isize%z.chunkSize)
		if j > len(p) {
			j = len(p)
		}

		n, err := z.compressor.Write(p[i:j])
		z.isize += int64(n)
		if err != nil {
			return i + n, fmt.Errorf("%w: compressing: %w", errLzopfs, err)
		}
		if _, err := z.digest.Write(p[i : i+n]); err != nil {
			return i + n, fmt.Errorf("%w: updating digest: %w", errLzopfs, err)
		}
		i += n
		if n > 0 {
			z.hasData = true
		}

		if z.isize%z.chunkSize == 0 {
			if err := z.flushChunk(); err != nil {
				return i, err
			}
		}
	}

	return i, nil
}

// Close finalizes the archive: flushes any partial chunk, writes the gzip
// header (with the RA chunk table, now that every chunk size is known),
// copies the compressed chunks from the temp file, and writes the CRC-32 and
// ISIZE trailer.
func (z *DictzipWriter) Close() error {
	if z.closed {
		return nil
	}
	z.closed = true
	defer z.tmp.Close()

	if err := z.flushChunk(); err != nil {
		return err
	}
	if err := z.compressor.Close(); err != nil {
		return fmt.Errorf("%w: compressing: %w", errLzopfs, err)
	}

	if err := z.writeHeader(); err != nil {
		return err
	}

	if err := z.tmp.Sync(); err != nil {
		return ioErrorf("sync: %w", err)
	}
	if _, err := z.tmp.Seek(0, io.SeekStart); err != nil {
		return ioErrorf("seek: %w", err)
	}
	if _, err := io.Copy(z.w, z.tmp); err != nil {
		return ioErrorf("writing chunks: %w", err)
	}
	if _, err := io.Copy(z.w, z.chunkBuf); err != nil {
		return ioErrorf("writing final chunk: %w", err)
	}

	trailer := make([]byte, 8)
	binary.LittleEndian.PutUint32(trailer[0:4], z.digest.Sum32())
	//nolint:gosec // ISIZE is intentionally truncated modulo 2^32, per RFC 1952.
	binary.LittleEndian.PutUint32(trailer[4:8], uint32(z.isize))
	if _, err := z.w.Write(trailer); err != nil {
		return ioErrorf("writing CRC-32 and ISIZE: %w", err)
	}

	return nil
}

func (z *DictzipWriter) flushChunk() error {
	if !z.hasData {
		return nil
	}
	if err := z.compressor.Flush(); err != nil {
		return fmt.Errorf("%w: compressing: %w", errLzopfs, err)
	}

	z.sizes = append(z.sizes, z.chunkBuf.Len())

	if _, err := io.Copy(z.tmp, z.chunkBuf); err != nil {
		return ioErrorf("buffering chunk: %w", err)
	}

	z.chunkBuf.Reset()
	z.compressor.Reset(z.chunkBuf)
	z.hasData = false

	return nil
}

func (z *DictzipWriter) writeHeader() error {
	header := make([]byte, 10)
	header[0] = hdrGzipID1
	header[1] = hdrGzipID2
	header[2] = hdrDeflateCM
	header[3] = flgEXTRA
	if z.Name != "" {
		header[3] |= flgNAME
	}
	if z.ModTime.After(time.Unix(0, 0)) {
		//nolint:gosec // MTIME is a u32 per RFC 1952; valid until 2106.
		binary.LittleEndian.PutUint32(header[4:8], uint32(z.ModTime.Unix()))
	}
	header[9] = 0xff // OS unknown
	if _, err := z.w.Write(header); err != nil {
		return ioErrorf("writing header: %w", err)
	}

	if err := z.writeExtra(); err != nil {
		return err
	}

	if z.Name != "" {
		if err := writeNULString(z.w, z.Name); err != nil {
			return err
		}
	}

	return nil
}

// writeExtra writes the EXTRA header: XLEN, then the RA subfield (SI1, SI2,
// LEN, VER, CHLEN, CHCNT, chunk sizes). There are no other EXTRA subfields
// to carry through on the write path.
func (z *DictzipWriter) writeExtra() error {
	chcnt := len(z.sizes)
	if chcnt > math.MaxUint16 {
		return formatErrorf("chunk count exceeded: %d", chcnt)
	}
	raLen := 6 + chcnt*2
	xlen := 4 + raLen

	extra := make([]byte, 2+xlen)
	//nolint:gosec // xlen is bounded by chcnt's MaxUint16 check above.
	binary.LittleEndian.PutUint16(extra[0:2], uint16(xlen))
	extra[2] = hdrDictzipSI1
	extra[3] = hdrDictzipSI2
	//nolint:gosec // raLen is bounded by chcnt's MaxUint16 check above.
	binary.LittleEndian.PutUint16(extra[4:6], uint16(raLen))
	binary.LittleEndian.PutUint16(extra[6:8], 1) // VER
	//nolint:gosec // z.chunkSize is checked against MaxUint16 at construction.
	binary.LittleEndian.PutUint16(extra[8:10], uint16(z.chunkSize))
	//nolint:gosec // chcnt is bounded above.
	binary.LittleEndian.PutUint16(extra[10:12], uint16(chcnt))

	i := 12
	for _, size := range z.sizes {
		if size > math.MaxUint16 {
			return formatErrorf("chunk size exceeded: %d", size)
		}
		//nolint:gosec // size is bounded by the check above.
		binary.LittleEndian.PutUint16(extra[i:i+2], uint16(size))
		i += 2
	}

	if _, err := z.w.Write(extra); err != nil {
		return ioErrorf("writing EXTRA: %w", err)
	}
	return nil
}

// writeNULString writes s as ISO 8859-1, NUL-terminated.
func writeNULString(w io.Writer, s string) error {
	b := make([]byte, 0, len(s)+1)
	for _, r := range s {
		if r == 0 || r > 0xff {
			return formatErrorf("non-Latin-1 header string")
		}
		b = append(b, byte(r))
	}
	b = append(b, 0)
	if _, err := w.Write(b); err != nil {
		return ioErrorf("writing string header: %w", err)
	}
	return nil
}
