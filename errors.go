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
	"errors"
	"fmt"
)

// errLzopfs is the base error for all go-lzopfs errors.
var errLzopfs = errors.New("lzopfs")

var (
	// ErrFormat indicates the archive violates its format specification.
	ErrFormat = fmt.Errorf("%w: format", errLzopfs)

	// ErrIO indicates an underlying OS I/O failure.
	ErrIO = fmt.Errorf("%w: I/O", errLzopfs)

	// ErrDecode indicates the block decompressor rejected its input.
	ErrDecode = fmt.Errorf("%w: decode", errLzopfs)

	// ErrAccessDenied indicates an open was attempted in a non-read-only mode.
	ErrAccessDenied = fmt.Errorf("%w: access denied", errLzopfs)

	// ErrNotFound indicates a lookup against an unregistered virtual path.
	ErrNotFound = fmt.Errorf("%w: not found", errLzopfs)
)

// formatErrorf formats its arguments, fmt.Errorf-style, into an error
// wrapping [ErrFormat].
// Unexpected EOF during header or block scanning is promoted to ErrFormat
// per the format's own rules, rather than surfaced as a distinct error kind.
func formatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrFormat}, args...)...)
}

func ioErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrIO}, args...)...)
}
