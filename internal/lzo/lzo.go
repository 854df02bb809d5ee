// SPDX-License-Identifier: MIT
// Adapted from github.com/woozymasta/lzo.

// Package lzo implements LZO1X "safe" decompression, the variant lzop
// archives use for compressed blocks.
package lzo

import "errors"

var (
	// ErrOptionsRequired is returned when DecompressOptions is nil.
	ErrOptionsRequired = errors.New("lzo: options required")

	// ErrEmptyInput is returned when the compressed input is empty.
	ErrEmptyInput = errors.New("lzo: empty input")

	// ErrInputTooLarge is returned by DecompressFromReader when
	// MaxInputSize is exceeded.
	ErrInputTooLarge = errors.New("lzo: input too large")

	// ErrInputOverrun is returned when the decoder would read past the end
	// of the compressed input.
	ErrInputOverrun = errors.New("lzo: input overrun")

	// ErrOutputOverrun is returned when the decoder would write past the
	// end of the output buffer (the declared uncompressed size was wrong).
	ErrOutputOverrun = errors.New("lzo: output overrun")

	// ErrUnexpectedEOF is returned when the instruction stream ends without
	// a terminator.
	ErrUnexpectedEOF = errors.New("lzo: unexpected end of compressed stream")

	// ErrInvalidBackReference is returned when a match's distance points
	// before the start of the output buffer.
	ErrInvalidBackReference = errors.New("lzo: invalid back-reference distance")
)

// DecompressOptions configures a Decompress call.
type DecompressOptions struct {
	// OutLen is the exact number of bytes the compressed block expands to.
	// Callers must know this ahead of time (lzop's block header records it).
	OutLen int

	// MaxInputSize, if nonzero, bounds how many bytes DecompressFromReader
	// will read before giving up with ErrInputTooLarge.
	MaxInputSize int
}
