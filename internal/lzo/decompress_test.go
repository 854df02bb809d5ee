// SPDX-License-Identifier: MIT

package lzo

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecompress(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		src     []byte
		outLen  int
		want    []byte
		wantErr error
	}{
		{
			name:   "literal run only",
			src:    []byte{0x16, 'h', 'e', 'l', 'l', 'o', 0x11, 0x00, 0x00},
			outLen: 5,
			want:   []byte("hello"),
		},
		{
			name:   "short literal then back-reference",
			src:    []byte{0x13, 'a', 'b', 0xA4, 0x00, 0x11, 0x00, 0x00},
			outLen: 8,
			want:   []byte("abababab"),
		},
		{
			name:    "empty input",
			src:     nil,
			outLen:  5,
			wantErr: ErrEmptyInput,
		},
		{
			name:    "truncated literal run",
			src:     []byte{0x16, 'h', 'e'},
			outLen:  5,
			wantErr: ErrInputOverrun,
		},
		{
			name:    "no terminator",
			src:     []byte{0x16, 'h', 'e', 'l', 'l', 'o'},
			outLen:  5,
			wantErr: ErrUnexpectedEOF,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Decompress(tc.src, &DecompressOptions{OutLen: tc.outLen})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Decompress() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decompress() unexpected error: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("Decompress() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDecompressN(t *testing.T) {
	t.Parallel()

	src := []byte{0x16, 'h', 'e', 'l', 'l', 'o', 0x11, 0x00, 0x00}
	got, n, err := DecompressN(src, &DecompressOptions{OutLen: 5})
	if err != nil {
		t.Fatalf("DecompressN() unexpected error: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("DecompressN() = %q, want %q", got, "hello")
	}
	if n != len(src) {
		t.Errorf("DecompressN() consumed %d bytes, want %d", n, len(src))
	}
}

func TestDecompressOptionsRequired(t *testing.T) {
	t.Parallel()

	if _, err := Decompress([]byte{0x16}, nil); err != ErrOptionsRequired {
		t.Errorf("Decompress(nil opts) error = %v, want %v", err, ErrOptionsRequired)
	}
}
