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

package main

import (
	"context"
	"os"
	"strings"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/ianlewis/go-lzopfs"
)

// lzopfsFS is the FUSE root of a mount: one flat directory whose entries are
// the registered archives' virtual names. It holds no state of its own
// beyond what's needed to build the root [dir] node; the [lzopfs.FileList]
// and [lzopfs.BlockCache] it wraps are owned by the caller (cmd/lzopfs's
// default mount action, runMount), not package-level globals, per
// SPEC_FULL.md §6.1.
type lzopfsFS struct {
	files *lzopfs.FileList
	cache *lzopfs.BlockCache
}

// Root implements fs.FS.
func (f *lzopfsFS) Root() (fs.Node, error) {
	return &dir{fs: f}, nil
}

// dir is the single directory node, "/".
type dir struct {
	fs *lzopfsFS
}

// Attr implements fs.Node.
func (d *dir) Attr(_ context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0o755
	a.Nlink = 3
	return nil
}

// Lookup implements fs.NodeStringLookuper.
func (d *dir) Lookup(_ context.Context, name string) (fs.Node, error) {
	cf, ok := d.fs.files.Find("/" + name)
	if !ok {
		return nil, syscall.ENOENT
	}
	return &file{fs: d.fs, cf: cf}, nil
}

// ReadDirAll implements fs.HandleReadDirAller.
func (d *dir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	var entries []fuse.Dirent
	d.fs.files.ForNames(func(vpath string) {
		entries = append(entries, fuse.Dirent{
			Name: strings.TrimPrefix(vpath, "/"),
			Type: fuse.DT_File,
		})
	})
	return entries, nil
}

// file is the regular-file node for one registered archive.
type file struct {
	fs *lzopfsFS
	cf lzopfs.CompressedFile
}

// Attr implements fs.Node.
func (f *file) Attr(_ context.Context, a *fuse.Attr) error {
	a.Mode = 0o444
	//nolint:gosec // uncompressed sizes are never negative.
	a.Size = uint64(f.cf.UncompressedSize())
	return nil
}

// Open implements fs.NodeOpener. Only read-only opens are permitted; any
// write intent is rejected with EACCES, matching spec.md's AccessDenied
// error kind.
func (f *file) Open(_ context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	if !req.Flags.IsReadOnly() {
		return nil, syscall.EACCES
	}

	ocf, err := lzopfs.OpenFile(f.cf)
	if err != nil {
		return nil, syscall.EIO
	}

	resp.Flags |= fuse.OpenKeepCache
	return &fileHandle{fs: f.fs, ocf: ocf}, nil
}

// fileHandle is the open-file handle returned by [file.Open], one per
// concurrent opener so reads against distinct handles never contend on a
// single file position (see [lzopfs.OpenCompressedFile]).
type fileHandle struct {
	fs  *lzopfsFS
	ocf *lzopfs.OpenCompressedFile
}

// Read implements fs.HandleReader.
func (h *fileHandle) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	buf := make([]byte, req.Size)
	n, err := h.ocf.Read(h.fs.cache, buf, req.Offset)
	if err != nil {
		return syscall.EIO
	}
	resp.Data = buf[:n]
	return nil
}

// Release implements fs.HandleReleaser.
func (h *fileHandle) Release(_ context.Context, _ *fuse.ReleaseRequest) error {
	if err := h.ocf.Close(); err != nil {
		return syscall.EIO
	}
	return nil
}
