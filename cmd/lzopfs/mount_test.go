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
	"errors"
	"testing"
)

func TestParseMountArgsArchivesAndMountpoint(t *testing.T) {
	t.Parallel()

	m, err := parseMountArgs([]string{"a.lzo", "b.lzo", "/mnt"})
	if err != nil {
		t.Fatalf("parseMountArgs() error: %v", err)
	}
	if got, want := m.archives, []string{"a.lzo", "b.lzo"}; !equalStrings(got, want) {
		t.Errorf("archives = %v, want %v", got, want)
	}
	if m.mountpoint != "/mnt" {
		t.Errorf("mountpoint = %q, want /mnt", m.mountpoint)
	}
}

func TestParseMountArgsRequiresMountpoint(t *testing.T) {
	t.Parallel()

	if _, err := parseMountArgs(nil); !errors.Is(err, ErrUsage) {
		t.Fatalf("parseMountArgs(nil) error = %v, want ErrUsage", err)
	}
	if _, err := parseMountArgs([]string{"-o", "allow_other"}); !errors.Is(err, ErrUsage) {
		t.Fatalf("parseMountArgs() with no non-option tokens error = %v, want ErrUsage", err)
	}
}

func TestParseMountArgsSingleArchiveIsMountpoint(t *testing.T) {
	t.Parallel()

	// A single non-option token is the mount point, not an archive: there's
	// nothing to mount without at least one archive, but parseMountArgs
	// itself only enforces "at least one non-option token", the same way
	// lf_opt_proc never rejects this case either (fuse_main would fail to
	// find any files to expose instead).
	m, err := parseMountArgs([]string{"/mnt"})
	if err != nil {
		t.Fatalf("parseMountArgs() error: %v", err)
	}
	if len(m.archives) != 0 {
		t.Errorf("archives = %v, want none", m.archives)
	}
	if m.mountpoint != "/mnt" {
		t.Errorf("mountpoint = %q, want /mnt", m.mountpoint)
	}
}

func TestParseMountArgsFuseOptionsDoNotBecomeArchives(t *testing.T) {
	t.Parallel()

	m, err := parseMountArgs([]string{"a.lzo", "-o", "allow_other,fsname=lzopfs", "-f", "/mnt"})
	if err != nil {
		t.Fatalf("parseMountArgs() error: %v", err)
	}
	if got, want := m.archives, []string{"a.lzo"}; !equalStrings(got, want) {
		t.Errorf("archives = %v, want %v", got, want)
	}
	if m.mountpoint != "/mnt" {
		t.Errorf("mountpoint = %q, want /mnt", m.mountpoint)
	}
	if len(m.options) != 2 {
		t.Errorf("options = %d entries, want 2 (allow_other, fsname)", len(m.options))
	}
}

func TestParseMountArgsCombinedDashO(t *testing.T) {
	t.Parallel()

	m, err := parseMountArgs([]string{"-oallow_other", "a.lzo", "/mnt"})
	if err != nil {
		t.Fatalf("parseMountArgs() error: %v", err)
	}
	if len(m.options) != 1 {
		t.Errorf("options = %d entries, want 1", len(m.options))
	}
}

func TestParseMountArgsOwnFlags(t *testing.T) {
	t.Parallel()

	m, err := parseMountArgs([]string{"--max-block=1024", "--cache-size", "2048", "a.lzo", "/mnt"})
	if err != nil {
		t.Fatalf("parseMountArgs() error: %v", err)
	}
	if m.maxBlock != 1024 {
		t.Errorf("maxBlock = %d, want 1024", m.maxBlock)
	}
	if m.cacheSize != 2048 {
		t.Errorf("cacheSize = %d, want 2048", m.cacheSize)
	}
	if got, want := m.archives, []string{"a.lzo"}; !equalStrings(got, want) {
		t.Errorf("archives = %v, want %v", got, want)
	}
}

func TestParseMountArgsHelpAndVersion(t *testing.T) {
	t.Parallel()

	if m, err := parseMountArgs([]string{"--help"}); err != nil || !m.help {
		t.Fatalf("parseMountArgs(--help) = %+v, %v", m, err)
	}
	if m, err := parseMountArgs([]string{"-v"}); err != nil || !m.version {
		t.Fatalf("parseMountArgs(-v) = %+v, %v", m, err)
	}
}

func TestParseMountArgsUnknownSuboptionIsIgnoredNotFatal(t *testing.T) {
	t.Parallel()

	m, err := parseMountArgs([]string{"-o", "big_writes", "a.lzo", "/mnt"})
	if err != nil {
		t.Fatalf("parseMountArgs() error: %v", err)
	}
	if len(m.options) != 0 {
		t.Errorf("options = %d entries, want 0 for an untranslatable suboption", len(m.options))
	}
}

func TestParseDashOSuboptionsRequiresValues(t *testing.T) {
	t.Parallel()

	if _, err := parseDashOSuboptions("fsname"); !errors.Is(err, ErrFlagParse) {
		t.Errorf("parseDashOSuboptions(fsname) error = %v, want ErrFlagParse", err)
	}
	if _, err := parseDashOSuboptions("max_readahead=notanumber"); !errors.Is(err, ErrFlagParse) {
		t.Errorf("parseDashOSuboptions(max_readahead=notanumber) error = %v, want ErrFlagParse", err)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
