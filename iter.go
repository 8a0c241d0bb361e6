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

package bytemap

// Iterator yields the entries of a Map in bucket order. The map must not be
// mutated while an iterator is in use: a resize moves entries between
// buckets, and a removal can shift entries backward past the cursor.
type Iterator struct {
	m *Map
	// Index of the bucket the iterator last yielded, -1 before the first.
	idx int
}

// NewIter returns an iterator positioned before the map's first entry.
func (m *Map) NewIter() *Iterator {
	return &Iterator{m: m, idx: -1}
}

// Reset rewinds the iterator to before the first entry.
func (it *Iterator) Reset() {
	it.idx = -1
}

// Next advances to the next entry, returning its key and value. When the
// entries are exhausted Next returns ok=false and rewinds the iterator, so
// the call after that starts over at the first entry. The returned key is
// the stored key and must not be modified.
func (it *Iterator) Next() (key []byte, value any, ok bool) {
	for it.idx++; it.idx < len(it.m.buckets); it.idx++ {
		if b := &it.m.buckets[it.idx]; b.filled {
			return b.key, b.value, true
		}
	}
	it.idx = -1
	return nil, nil, false
}

// All calls yield sequentially for each key and value present in the map, in
// bucket order. If yield returns false, All stops the iteration. The map
// must not be mutated during the iteration. The signature of All follows the
// range-over-function protocol.
func (m *Map) All(yield func(key []byte, value any) bool) {
	for i := range m.buckets {
		if b := &m.buckets[i]; b.filled {
			if !yield(b.key, b.value) {
				return
			}
		}
	}
}
