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
	"container/list"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the default aggregate budget for a [BlockCache], in
// uncompressed bytes.
const DefaultCacheSize = 32 * 1024 * 1024

// cacheEntry is the payload stored in a BlockCache's LRU list.
type cacheEntry struct {
	key  string
	data []byte
}

// BlockCache is a bounded, single-flighted cache of decompressed blocks,
// shared across every [OpenCompressedFile] in a mount. Its eviction policy
// is a plain least-recently-used list; nothing here approximates working-set
// or frequency heuristics, matching the cache's one job: keep repeatedly
// read blocks (e.g. FUSE re-reading the same page) off the decompressor.
type BlockCache struct {
	maxSize int64

	mu      sync.Mutex
	size    int64
	entries map[string]*list.Element
	lru     *list.List // front = most recently used

	group singleflight.Group
}

// NewBlockCache returns a cache with the given aggregate byte budget. A
// maxSize of 0 uses [DefaultCacheSize].
func NewBlockCache(maxSize int64) *BlockCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &BlockCache{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// cacheKey identifies a block by (file identity, uoff). uoff, not block
// index, is the tie-breaker: a file's block index can be rebuilt (e.g. after
// a sidecar is regenerated) without invalidating entries keyed on it.
func cacheKey(file CompressedFile, uoff int64) string {
	return fmt.Sprintf("%p:%d", file, uoff)
}

// Get returns a copy of the decompressed bytes of block, decompressing it
// through fh on a miss. Concurrent Gets for the same (file, block) coalesce
// onto a single decompression via the cache's singleflight.Group; a decode
// failure is returned to every waiter and nothing is cached.
//
// The returned slice is a copy, not a live view into the cache's storage:
// [OpenCompressedFile] and its caller treat it as immutable, so handing back
// the cache's own backing array would work just as well in a single-threaded
// reader, but a copy avoids having to reason about a reader mutating bytes
// the cache still considers resident, or about pinning an entry against
// eviction while a caller holds a reference to it.
func (c *BlockCache) Get(file CompressedFile, fh *FileHandle, block Block) ([]byte, error) {
	key := cacheKey(file, block.UOff)

	c.mu.Lock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		data := elem.Value.(*cacheEntry).data
		c.mu.Unlock()

		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		out := make([]byte, block.USize)
		if err := file.DecompressBlock(fh, block, out); err != nil {
			return nil, err
		}
		c.insert(key, out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	data := v.([]byte)
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// insert adds data under key, then evicts least-recently-used entries until
// the cache fits maxSize. The entry just inserted is exempt from its own
// eviction pass: a single block may legitimately be larger than the entire
// budget, in which case the cache degenerates to holding just that one
// block.
func (c *BlockCache) insert(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.size -= int64(len(elem.Value.(*cacheEntry).data))
		c.lru.Remove(elem)
		delete(c.entries, key)
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, data: data})
	c.entries[key] = elem
	c.size += int64(len(data))

	for c.size > c.maxSize {
		back := c.lru.Back()
		if back == nil || back == elem {
			break
		}
		entry := back.Value.(*cacheEntry)
		c.lru.Remove(back)
		delete(c.entries, entry.key)
		c.size -= int64(len(entry.data))
	}
}
