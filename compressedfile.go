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

// CompressedFile is the capability set every supported archive codec
// implements. Concrete variants ([LzopFile], [DictzipFile]) are registered
// through a [FileList] and are immutable for the lifetime of the process
// once built.
//
// Implementations are used through a pointer receiver so that the pointer
// itself is a stable, comparable file identity suitable for use as a
// [BlockCache] key.
type CompressedFile interface {
	// Path is the source archive path on disk.
	Path() string

	// Suffix identifies the codec (e.g. "lzop", "dictzip").
	Suffix() string

	// DestName is the name this archive is exposed under in the mounted
	// filesystem, derived from the basename of Path.
	DestName() string

	// FindBlock returns the block covering uoff, and true, or the zero Block
	// and false if uoff is at or past UncompressedSize.
	FindBlock(uoff int64) (Block, bool)

	// DecompressBlock decompresses b, read through fh, into out. len(out)
	// must be exactly b.USize.
	DecompressBlock(fh *FileHandle, b Block, out []byte) error

	// UncompressedSize is the total size of the virtual decompressed file.
	UncompressedSize() int64

	// Blocks returns the file's block index. Callers must treat the
	// returned BlockList as read-only; it is the same slice the file uses
	// internally. This exists for read-only diagnostics (cmd/lzopfs's list
	// subcommand) rather than the random-access read path, which only ever
	// needs FindBlock.
	Blocks() BlockList
}
