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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIndexedCompFileSidecarRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "archive.lzo")
	if err := os.WriteFile(path, []byte("not parsed in this test"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	want := BlockList{
		{USize: 10, CSize: 8, COff: 100, UOff: 0},
		{USize: 20, CSize: 20, COff: 108, UOff: 10},
		{USize: 5, CSize: 2, COff: 128, UOff: 30},
	}

	c := &IndexedCompFile{path: path, sidecarSuffix: ".index", blocks: want}
	if err := c.writeSidecar(); err != nil {
		t.Fatalf("writeSidecar() error: %v", err)
	}

	loaded, err := c.loadSidecar()
	if err != nil {
		t.Fatalf("loadSidecar() error: %v", err)
	}

	if diff := cmp.Diff(want, loaded); diff != "" {
		t.Errorf("loadSidecar() mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexedCompFileInitializeScansOnMissingSidecar(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "archive.lzo")
	if err := os.WriteFile(path, []byte("ignored"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	want := BlockList{{USize: 3, CSize: 3, COff: 0, UOff: 0}}
	scanned := false
	scan := func(fh *FileHandle) (BlockList, error) {
		scanned = true
		return want, nil
	}

	fh, err := openFileHandle(path)
	if err != nil {
		t.Fatalf("openFileHandle: %v", err)
	}
	defer fh.Close()

	c := &IndexedCompFile{}
	if err := c.initialize(path, ".index", 0, fh, scan); err != nil {
		t.Fatalf("initialize() error: %v", err)
	}
	if !scanned {
		t.Error("initialize() did not scan when no sidecar existed")
	}
	if diff := cmp.Diff(want, c.blocks); diff != "" {
		t.Errorf("initialize() blocks mismatch (-want +got):\n%s", diff)
	}

	// A second initialize against the now-written sidecar should not re-scan.
	scanned = false
	c2 := &IndexedCompFile{}
	if err := c2.initialize(path, ".index", 0, fh, scan); err != nil {
		t.Fatalf("second initialize() error: %v", err)
	}
	if scanned {
		t.Error("initialize() rescanned despite a valid sidecar being present")
	}
	if diff := cmp.Diff(want, c2.blocks); diff != "" {
		t.Errorf("second initialize() blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexedCompFileMaxBlockEnforced(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "archive.lzo")
	if err := os.WriteFile(path, []byte("ignored"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	scan := func(fh *FileHandle) (BlockList, error) {
		return BlockList{{USize: 100, CSize: 100, COff: 0, UOff: 0}}, nil
	}

	fh, err := openFileHandle(path)
	if err != nil {
		t.Fatalf("openFileHandle: %v", err)
	}
	defer fh.Close()

	c := &IndexedCompFile{}
	err = c.initialize(path, ".index", 10, fh, scan)
	if err == nil {
		t.Fatal("initialize() with block exceeding maxBlock: want error, got nil")
	}
}
