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

import (
	"bytes"
	"fmt"
)

// KeyMode specifies how a Map extracts the significant bytes from the key
// slices passed to its operations. The zero value is StringKeys().
type KeyMode struct {
	fixed bool
	size  int
}

// FixedKeys returns the KeyMode for keys that are exactly size bytes long.
// Key slices passed to map operations must be at least size bytes long
// (shorter slices panic) and any bytes past size are ignored. FixedKeys
// panics if size is not positive.
func FixedKeys(size int) KeyMode {
	if size <= 0 {
		panic("bytemap: non-positive fixed key size")
	}
	return KeyMode{fixed: true, size: size}
}

// StringKeys returns the KeyMode for zero-terminated keys: the significant
// bytes are those before the first zero byte, or the whole slice if it
// contains no zero byte.
func StringKeys() KeyMode {
	return KeyMode{}
}

// normalize returns the significant bytes of key.
func (km KeyMode) normalize(key []byte) []byte {
	if km.fixed {
		return key[:km.size]
	}
	if i := bytes.IndexByte(key, 0); i >= 0 {
		return key[:i]
	}
	return key
}

func (km KeyMode) String() string {
	if km.fixed {
		return fmt.Sprintf("fixed(%d)", km.size)
	}
	return "string"
}

// Option provides an interface to do work on Map while it is being created.
type Option interface {
	apply(m *Map)
}

type copyKeysOption struct{}

func (copyKeysOption) apply(m *Map) {
	m.copyKeys = true
}

// WithCopiedKeys is an option that directs a Map to store a private copy of
// the significant bytes of each key rather than aliasing the caller's slice.
// Copies are made on insertion and dropped when the entry is removed or
// overwritten.
func WithCopiedKeys() Option {
	return copyKeysOption{}
}

// Allocator specifies an interface for allocating and releasing the bucket
// storage used by a Map. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory; it never fails.
//
// If the allocator is manually managing memory then Map.Close must be called
// in order to ensure FreeBuckets is called for the final bucket array.
type Allocator interface {
	// AllocBuckets should return a slice equivalent to make([]Bucket, n),
	// or an error if the allocation cannot be satisfied.
	AllocBuckets(n int) ([]Bucket, error)

	// FreeBuckets can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocBuckets.
	FreeBuckets(v []Bucket)
}

type defaultAllocator struct{}

func (defaultAllocator) AllocBuckets(n int) ([]Bucket, error) {
	return make([]Bucket, n), nil
}

func (defaultAllocator) FreeBuckets(v []Bucket) {
}

type allocatorOption struct {
	allocator Allocator
}

func (op allocatorOption) apply(m *Map) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specifying the Allocator to use for a Map.
func WithAllocator(allocator Allocator) Option {
	return allocatorOption{allocator}
}
