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

// OpenCompressedFile is a per-open handle on a registered [CompressedFile].
// It owns a dedicated [FileHandle] on the archive's source path, so that
// concurrent opens of the same archive never contend over one shared file
// position.
type OpenCompressedFile struct {
	file CompressedFile
	fh   *FileHandle
}

// OpenFile opens a dedicated handle on file's source archive.
func OpenFile(file CompressedFile) (*OpenCompressedFile, error) {
	fh, err := openFileHandle(file.Path())
	if err != nil {
		return nil, err
	}
	return &OpenCompressedFile{file: file, fh: fh}, nil
}

// Close releases the dedicated file handle.
func (o *OpenCompressedFile) Close() error {
	return o.fh.Close()
}

// Read fills out with the decompressed bytes of the virtual file starting
// at offset, routing every block through cache. It returns the number of
// bytes placed into out, which is less than len(out) only at EOF and never
// more.
func (o *OpenCompressedFile) Read(cache *BlockCache, out []byte, offset int64) (int, error) {
	size := o.file.UncompressedSize()
	if offset >= size {
		return 0, nil
	}
	if want := size - offset; int64(len(out)) > want {
		out = out[:want]
	}

	remaining := len(out)
	cursor := offset
	written := 0

	for remaining > 0 {
		block, ok := o.file.FindBlock(cursor)
		if !ok {
			break
		}

		data, err := cache.Get(o.file, o.fh, block)
		if err != nil {
			return written, err
		}

		intra := int(cursor - block.UOff)
		n := remaining
		if avail := int(block.USize) - intra; n > avail {
			n = avail
		}

		copy(out[written:written+n], data[intra:intra+n])

		cursor += int64(n)
		remaining -= n
		written += n
	}

	return written, nil
}
