// SPDX-License-Identifier: MIT
// Adapted from github.com/woozymasta/lzo.

package lzo

const (
	// markerM4 is the low threshold for the M4 match opcode form
	// (0b0001HLLL, distance bit 14 in H, 3-bit length field).
	markerM4 = 0x10

	// markerM3 is the low threshold for the M3 match opcode form
	// (0b001LLLLL, 5-bit length field).
	markerM3 = 0x20

	// markerM2 is the low threshold for the M2 match opcode form
	// (0bLLLDDDSS with LLL >= 2, 3-bit length field in the high bits).
	markerM2 = 0x40

	// shortMatchBaseOffset is the base distance used by the short-match form
	// selected when the parser is in state 4.
	shortMatchBaseOffset = 0x0800

	// maxZeroExtendedChunks limits zero-extension runs so malformed inputs cannot
	// overflow run-length reconstruction math.
	maxZeroExtendedChunks = int(^uint(0)/255) - 2
)
