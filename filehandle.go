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
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// FileHandle is a scoped acquisition of an OS file descriptor for positioned,
// big-endian binary reads. lzop archives and the sidecar index are
// big-endian, and readBE/writeBE centralize that convention; dictzip's
// gzip-inherited little-endian fields are decoded by [DictzipFile] itself
// with encoding/binary.
//
// Each [OpenCompressedFile] owns a dedicated FileHandle (see §4.F), so in
// practice a single FileHandle is never used by more than one read at a
// time; mu exists for the one case that isn't exclusive by construction: a
// [BlockCache] single-flight decompression running on behalf of one caller's
// read while a concurrent read against the same open handle also touches it.
type FileHandle struct {
	mu sync.Mutex
	f  *os.File
}

// openFileHandle opens path read-only.
func openFileHandle(path string) (*FileHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioErrorf("open %q: %w", path, err)
	}
	return &FileHandle{f: f}, nil
}

// Close releases the underlying file descriptor.
func (fh *FileHandle) Close() error {
	//nolint:wrapcheck // error does not need to be wrapped
	return fh.f.Close()
}

// read reads exactly n bytes at the current position, advancing it. A short
// read (including at EOF) is promoted to [ErrFormat] by callers that treat
// truncation as a parse failure; read itself reports an [ErrIO] wrapping
// io.EOF (nothing read) or io.ErrUnexpectedEOF (partial read).
func (fh *FileHandle) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(fh.f, buf); err != nil {
		return nil, fmt.Errorf("%w: read %d bytes: %w", ErrIO, n, err)
	}
	return buf, nil
}

// seek repositions the handle. whence is one of the io.Seek* constants.
func (fh *FileHandle) seek(offset int64, whence int) (int64, error) {
	pos, err := fh.f.Seek(offset, whence)
	if err != nil {
		return 0, ioErrorf("seek: %w", err)
	}
	return pos, nil
}

// tell returns the current position.
func (fh *FileHandle) tell() (int64, error) {
	return fh.seek(0, io.SeekCurrent)
}

// preadAt atomically seeks to off and reads n bytes, holding fh's mutex for
// the duration so a concurrent preadAt on the same handle can't interleave
// its seek with this one's read.
func (fh *FileHandle) preadAt(off int64, n int) ([]byte, error) {
	fh.mu.Lock()
	defer fh.mu.Unlock()

	if _, err := fh.seek(off, io.SeekStart); err != nil {
		return nil, err
	}
	return fh.read(n)
}

// unsignedInt is the set of unsigned integer widths readBE/writeBE support.
type unsignedInt interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// readBE reads a big-endian T from fh, advancing its position.
func readBE[T unsignedInt](fh *FileHandle) (T, error) {
	var zero T
	buf, err := fh.read(binary.Size(zero))
	if err != nil {
		return zero, err
	}

	switch any(zero).(type) {
	case uint8:
		return T(buf[0]), nil
	case uint16:
		return T(binary.BigEndian.Uint16(buf)), nil
	case uint32:
		return T(binary.BigEndian.Uint32(buf)), nil
	case uint64:
		return T(binary.BigEndian.Uint64(buf)), nil
	default:
		return zero, fmt.Errorf("%w: unsupported integer width", errLzopfs)
	}
}

// writeBE writes a big-endian T to fh.
func writeBE[T unsignedInt](fh *FileHandle, v T) error {
	buf := make([]byte, binary.Size(v))
	switch x := any(v).(type) {
	case uint8:
		buf[0] = x
	case uint16:
		binary.BigEndian.PutUint16(buf, x)
	case uint32:
		binary.BigEndian.PutUint32(buf, x)
	case uint64:
		binary.BigEndian.PutUint64(buf, x)
	default:
		return fmt.Errorf("%w: unsupported integer width", errLzopfs)
	}

	if _, err := fh.f.Write(buf); err != nil {
		return ioErrorf("write: %w", err)
	}
	return nil
}
