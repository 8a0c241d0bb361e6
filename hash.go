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

// ptrBits is the width of a uintptr: 64 on 64-bit platforms, 32 on 32-bit
// platforms.
const ptrBits = 32 << (^uintptr(0) >> 63)

// FNV-1a parameters for both widths. See
// http://www.isthe.com/chongo/tech/comp/fnv/ for the constants and the
// reference test vectors.
const (
	fnvOffset64 = 0xcbf29ce484222325
	fnvPrime64  = 0x00000100000001b3
	fnvOffset32 = 0x811c9dc5
	fnvPrime32  = 0x01000193

	// The parameters at the native pointer width. Selection is done with
	// untyped constant arithmetic so that the 64-bit literals never have to
	// fit in a 32-bit uintptr.
	fnvOffset = fnvOffset64*(ptrBits/64) + fnvOffset32*(1-ptrBits/64)
	fnvPrime  = fnvPrime64*(ptrBits/64) + fnvPrime32*(1-ptrBits/64)
)

// hashBytes returns the FNV-1a hash of k at the native pointer width. Map
// hashes the significant bytes of a key exactly once, on insertion or probe,
// and caches the result in the bucket; resizing reuses the cached value.
func hashBytes(k []byte) uintptr {
	h := uintptr(fnvOffset)
	for _, c := range k {
		h ^= uintptr(c)
		h *= fnvPrime
	}
	return h
}
