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

// Package lzopfs exposes block-compressed archives (lzop, dictzip) as
// random-access decompressed files.
//
// Each archive is parsed once into a [BlockList] mapping uncompressed byte
// ranges to compressed blocks, which lets an [OpenCompressedFile] satisfy
// arbitrary (offset, length) reads by decompressing only the blocks a read
// actually covers, through a shared [BlockCache].
//
// Unless otherwise informed clients should not assume implementations in this
// package are safe for parallel execution except where individually
// documented (the [BlockCache] and [FileList] are safe for concurrent use).
package lzopfs
