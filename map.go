// Copyright 2026 The bytemap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bytemap implements a hash table keyed by raw byte sequences, using
// open addressing with linear probing. If you're not familiar with
// open-addressing see https://en.wikipedia.org/wiki/Open_addressing.
//
// # Layout
//
// The table is a single flat array of buckets whose length is always a power
// of 2, so that hash(key)%N reduces to a mask operation. Each bucket stores
// a filled flag, the key and value references, the cached hash of the key,
// and the key's home index (the slot the hash maps to at the current
// capacity). Collisions are resolved by stepping forward one slot at a time,
// wrapping at the end of the array. The table maintains the probe invariant
// of linear probing: every slot between an entry's home index and the slot
// it actually occupies is filled. Lookups walk forward from the home index
// and can stop at the first empty slot.
//
// Caching the hash in the bucket means a key is hashed exactly once, when it
// is inserted. Probes compare the cached hash before comparing key bytes,
// and resizing redistributes entries from their cached hashes without
// touching key memory.
//
// The table grows to twice its capacity when it becomes half full and
// shrinks to half its capacity when it becomes less than a quarter full, so
// the load factor stays in [1/4, 1/2) between resizes and probe chains stay
// short.
//
// # Deletion
//
// Deletion does not use tombstones. Removing an entry instead compacts the
// chain that follows it: the slots after the vacated one are walked in probe
// order up to the next empty slot, and each entry whose probe path crosses
// the gap is shifted backward into it, the gap moving to the slot the entry
// vacated. This is the classic deletion algorithm for linear probing,
// Algorithm R of Knuth's The Art of Computer Programming, Volume 3, Section
// 6.4; see also
// https://en.wikipedia.org/wiki/Linear_probing#Deletion. Compared to
// tombstone schemes the table never degrades with churn and never needs to
// rehash in place, at the cost of moving a short run of entries on each
// removal.
//
// # Keys
//
// Keys are byte slices interpreted according to the table's KeyMode:
// FixedKeys(n) uses exactly the first n bytes of every key, while
// StringKeys() uses the bytes up to (but not including) the first zero byte.
// The bytes the mode selects are the significant bytes; two keys are the
// same entry exactly when their significant bytes are equal. Hashing is
// FNV-1a over the significant bytes at the native pointer width.
//
// By default the table aliases the caller's key slices and never writes to
// them. With the WithCopiedKeys option it stores private copies instead, so
// the caller is free to reuse its buffers.
package bytemap

import (
	"bytes"
	"fmt"
	"math/bits"
	"strings"
)

const (
	debug = false

	// minTableSize is the smallest bucket array ever allocated. A table's
	// floor is the larger of this and its rounded initial capacity; shrinks
	// stop at the floor.
	minTableSize = 8
)

// Bucket holds a single entry of a Map: the key and value references, the
// cached hash of the key, and the home index the hash maps to at the current
// capacity.
type Bucket struct {
	filled bool
	home   int
	hash   uintptr
	key    []byte
	value  any
}

// Map is a hash table from byte-sequence keys to opaque values with Put,
// Get, Delete, and iteration operations. Values are type-erased; callers
// that need typed values wrap the table rather than the other way around.
//
// A Map is NOT goroutine-safe.
type Map struct {
	// buckets is the table storage. len(buckets) is the capacity and is
	// always a power of 2, at least minCap.
	buckets []Bucket
	// The number of filled buckets.
	count int
	// The capacity floor, fixed at creation.
	minCap int
	// How key bytes are interpreted. Fixed per table.
	mode KeyMode
	// Whether the table stores private copies of key bytes.
	copyKeys bool
	// The allocator to use for the buckets slice.
	allocator Allocator
}

// New constructs a Map with capacity for at least initialCapacity entries
// before the first growth. The capacity is rounded up to a power of 2 and
// never below 8, and the result is also the table's floor: shrinking stops
// there. New returns an error only if the configured allocator fails.
func New(initialCapacity int, mode KeyMode, options ...Option) (*Map, error) {
	m := &Map{
		mode:      mode,
		allocator: defaultAllocator{},
	}
	for _, op := range options {
		op.apply(m)
	}

	capacity := minTableSize
	if c := ceilPow2(initialCapacity); c > capacity {
		capacity = c
	}
	m.minCap = capacity

	buckets, err := m.allocator.AllocBuckets(capacity)
	if err != nil {
		return nil, fmt.Errorf("bytemap: allocating %d buckets: %w", capacity, err)
	}
	m.buckets = buckets
	m.checkInvariants()
	return m, nil
}

// ceilPow2 returns the smallest power of 2 that is >= n.
func ceilPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Len returns the number of entries in the map.
func (m *Map) Len() int {
	return m.count
}

// Get retrieves the value stored for key, or nil if there is no entry. Use
// Lookup to distinguish a stored nil value from an absent key.
func (m *Map) Get(key []byte) any {
	v, _ := m.Lookup(key)
	return v
}

// Lookup retrieves the value stored for key, with ok=false if there is no
// entry.
func (m *Map) Lookup(key []byte) (value any, ok bool) {
	k := m.mode.normalize(key)
	b := &m.buckets[m.locate(k, hashBytes(k))]
	if !b.filled {
		return nil, false
	}
	return b.value, true
}

// Has reports whether the map contains an entry for key.
func (m *Map) Has(key []byte) bool {
	_, ok := m.Lookup(key)
	return ok
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists. It returns the overwritten value,
// or nil if the entry is new. Put returns an error only if the table needed
// to grow and the configured allocator failed; the table is left untouched
// in that case.
func (m *Map) Put(key []byte, value any) (prev any, err error) {
	// Grow before locating so that the insertion slot is found in the array
	// it will live in.
	if m.count >= len(m.buckets)>>1 {
		if err := m.rehash(len(m.buckets) << 1); err != nil {
			return nil, err
		}
	}

	k := m.mode.normalize(key)
	if m.copyKeys {
		k = bytes.Clone(k)
	}
	h := hashBytes(k)
	if debug {
		fmt.Printf("put(%q): hash=%0*x home=%d\n", k, ptrBits/4, h, int(h&uintptr(len(m.buckets)-1)))
	}

	prev = m.setSlot(k, value, h)
	m.checkInvariants()
	return prev, nil
}

// Delete deletes the entry corresponding to the specified key from the map,
// returning its value, or nil if there was no entry. The slots after the
// vacated one are compacted so the table never accumulates tombstones.
func (m *Map) Delete(key []byte) any {
	k := m.mode.normalize(key)
	i := m.locate(k, hashBytes(k))
	if !m.buckets[i].filled {
		return nil
	}
	value := m.buckets[i].value
	if debug {
		fmt.Printf("delete(%q): index=%d\n", k, i)
	}

	// Walk the chain that follows the vacated slot, shifting back every
	// entry whose probe path crosses the gap. An entry at index i with home
	// index h may be moved into the gap at last exactly when last lies on
	// the path from h to i; the comparisons below are the wraparound-aware
	// form of that test. An entry sitting on its home slot is never moved.
	mask := len(m.buckets) - 1
	last := i
	for i = (i + 1) & mask; m.buckets[i].filled; i = (i + 1) & mask {
		h := m.buckets[i].home
		move := false
		switch {
		case h < i:
			move = last < i && h <= last
		case h > i:
			move = last < i || h <= last
		}
		if move {
			if debug {
				fmt.Printf("delete(shift): %d <- %d (home=%d)\n", last, i, h)
			}
			m.buckets[last] = m.buckets[i]
			last = i
		}
	}
	m.buckets[last] = Bucket{}
	m.count--

	if m.count < len(m.buckets)>>2 {
		// A failed shrink is ignored. The old array is still valid, just
		// sparser than the policy asks for.
		_ = m.rehash(len(m.buckets) >> 1)
	}
	m.checkInvariants()
	return value
}

// Clear removes all entries from the map, retaining the current capacity.
func (m *Map) Clear() {
	clear(m.buckets)
	m.count = 0
	m.checkInvariants()
}

// Close releases the bucket storage back to the configured allocator. If
// dispose is non-nil it is called with the value of every entry still in the
// map first. It is unnecessary to close a map using the default allocator
// unless disposal is wanted. It is invalid to use a Map after it has been
// closed, though Close itself is idempotent.
func (m *Map) Close(dispose func(value any)) {
	if m.buckets == nil {
		return
	}
	if dispose != nil {
		for i := range m.buckets {
			if m.buckets[i].filled {
				dispose(m.buckets[i].value)
			}
		}
	}
	m.allocator.FreeBuckets(m.buckets)
	m.buckets = nil
	m.count = 0
	m.allocator = nil
}

// locate returns the index of the bucket holding key, or of the first empty
// bucket on key's probe path if there is no entry. key must already be
// normalized. The caller checks the filled flag to tell the two apart.
func (m *Map) locate(key []byte, hash uintptr) int {
	mask := len(m.buckets) - 1
	i := int(hash & uintptr(mask))
	for {
		b := &m.buckets[i]
		if !b.filled || (b.hash == hash && bytes.Equal(b.key, key)) {
			return i
		}
		i = (i + 1) & mask
	}
}

// setSlot stores key and value in the bucket that locate picks for them,
// returning the previous value if the slot was filled. The key's home index
// is recomputed from the cached hash at the current capacity on every
// placement, which is what keeps Delete's shift test valid after a resize.
// key must already be normalized (and copied, if the table copies keys).
func (m *Map) setSlot(key []byte, value any, hash uintptr) (prev any) {
	b := &m.buckets[m.locate(key, hash)]
	if b.filled {
		prev = b.value
	} else {
		b.filled = true
		b.hash = hash
		m.count++
	}
	b.key = key
	b.value = value
	b.home = int(hash & uintptr(len(m.buckets)-1))
	return prev
}

// rehash moves the table to an array of newCapacity buckets, redistributing
// every entry from its cached hash. Asking for less than the table's floor
// is a no-op. If the allocator fails the table is left on its old array and
// the error is returned.
func (m *Map) rehash(newCapacity int) error {
	if newCapacity < m.minCap {
		return nil
	}
	newBuckets, err := m.allocator.AllocBuckets(newCapacity)
	if err != nil {
		return fmt.Errorf("bytemap: allocating %d buckets: %w", newCapacity, err)
	}
	if debug {
		fmt.Printf("rehash: capacity=%d->%d count=%d\n", len(m.buckets), newCapacity, m.count)
	}

	old := m.buckets
	m.buckets = newBuckets
	m.count = 0
	for i := range old {
		if old[i].filled {
			m.setSlot(old[i].key, old[i].value, old[i].hash)
		}
	}
	m.allocator.FreeBuckets(old)
	m.checkInvariants()
	return nil
}

func (m *Map) checkInvariants() {
	if invariants {
		if maxCount := len(m.buckets) / 2; m.count > maxCount {
			panic(fmt.Sprintf("invariant failed: count %d exceeds %d for capacity %d\n%s",
				m.count, maxCount, len(m.buckets), m.debugString()))
		}

		mask := len(m.buckets) - 1
		var filled int
		for i := range m.buckets {
			b := &m.buckets[i]
			if !b.filled {
				continue
			}
			filled++
			if b.hash != hashBytes(b.key) {
				panic(fmt.Sprintf("invariant failed: bucket(%d): cached hash %0*x is stale\n%s",
					i, ptrBits/4, b.hash, m.debugString()))
			}
			if want := int(b.hash & uintptr(mask)); b.home != want {
				panic(fmt.Sprintf("invariant failed: bucket(%d): home=%d, expected %d\n%s",
					i, b.home, want, m.debugString()))
			}
			// Every slot on the probe path from the home index must be
			// filled, and the entry must be reachable.
			for j := b.home; j != i; j = (j + 1) & mask {
				if !m.buckets[j].filled {
					panic(fmt.Sprintf("invariant failed: bucket(%d): empty slot %d on probe path from %d\n%s",
						i, j, b.home, m.debugString()))
				}
			}
			if _, ok := m.Lookup(b.key); !ok {
				panic(fmt.Sprintf("invariant failed: bucket(%d): %q not found\n%s",
					i, b.key, m.debugString()))
			}
		}

		if filled != m.count {
			panic(fmt.Sprintf("invariant failed: found %d filled buckets, but count is %d\n%s",
				filled, m.count, m.debugString()))
		}
	}
}

func (m *Map) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  count=%d  floor=%d  mode=%s\n",
		len(m.buckets), m.count, m.minCap, m.mode)
	for i := range m.buckets {
		b := &m.buckets[i]
		if !b.filled {
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
			continue
		}
		fmt.Fprintf(&buf, "  %4d: %q [hash=%0*x home=%d]\n", i, b.key, ptrBits/4, b.hash, b.home)
	}
	return buf.String()
}
