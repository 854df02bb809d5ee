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
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

var (
	gzipMagic = [2]byte{0x1f, 0x8b}
)

// FileList is the registry of archives exposed by a mount: a mapping from
// virtual path ("/" + destName) to the [CompressedFile] backing it.
// Registration order is preserved for [FileList.ForNames], matching how a
// directory listing should read stable across `ls` calls.
type FileList struct {
	mu      sync.Mutex
	byVPath map[string]CompressedFile
	vpaths  []string
}

// NewFileList returns an empty registry.
func NewFileList() *FileList {
	return &FileList{byVPath: make(map[string]CompressedFile)}
}

// Add registers the archive at sourcePath, detecting its codec by its magic
// bytes (the file suffix is not consulted), and returns the [CompressedFile] now backing it. maxBlock is passed
// through to [NewLzopFile]; it has no effect on dictzip archives, whose
// chunk table is read directly from the header.
//
// If the resulting destName collides with an already-registered virtual
// path, Add disambiguates by inserting a numeric suffix before the
// extension (e.g. "foo.txt", "foo-1.txt", "foo-2.txt", ...).
func (fl *FileList) Add(sourcePath string, maxBlock int64) (CompressedFile, error) {
	magic, err := peekMagic(sourcePath)
	if err != nil {
		return nil, err
	}

	var cf CompressedFile
	switch {
	case bytes.Equal(magic[:len(lzopMagic)], lzopMagic[:]):
		cf, err = NewLzopFile(sourcePath, maxBlock)
	case bytes.Equal(magic[:len(gzipMagic)], gzipMagic[:]):
		cf, err = NewDictzipFile(sourcePath)
	default:
		return nil, formatErrorf("%q: unrecognized archive format", sourcePath)
	}
	if err != nil {
		return nil, err
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	vpath := "/" + fl.uniqueName(cf.DestName())
	fl.byVPath[vpath] = cf
	fl.vpaths = append(fl.vpaths, vpath)

	return cf, nil
}

// Find looks up the file registered under vpath.
func (fl *FileList) Find(vpath string) (CompressedFile, bool) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	cf, ok := fl.byVPath[vpath]
	return cf, ok
}

// ForNames invokes visit once per registered virtual path, in the order
// archives were added.
func (fl *FileList) ForNames(visit func(vpath string)) {
	fl.mu.Lock()
	vpaths := append([]string(nil), fl.vpaths...)
	fl.mu.Unlock()

	for _, vpath := range vpaths {
		visit(vpath)
	}
}

// uniqueName returns name, or a disambiguated variant, such that "/"+name is
// not already a key in fl.byVPath. Callers must hold fl.mu.
func (fl *FileList) uniqueName(name string) string {
	if _, exists := fl.byVPath["/"+name]; !exists {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, exists := fl.byVPath["/"+candidate]; !exists {
			return candidate
		}
	}
}

// peekMagic reads the first bytes of sourcePath needed to distinguish the
// supported archive formats' magic numbers, without requiring either codec's
// constructor to re-open the file on a failed guess.
func peekMagic(sourcePath string) ([9]byte, error) {
	fh, err := openFileHandle(sourcePath)
	if err != nil {
		return [9]byte{}, err
	}
	defer fh.Close()

	buf, err := fh.preadAt(0, 9)
	if err != nil {
		return [9]byte{}, formatErrorf("%q: reading magic: %w", sourcePath, err)
	}

	var magic [9]byte
	copy(magic[:], buf)
	return magic, nil
}
