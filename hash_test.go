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
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestPtrBits(t *testing.T) {
	require.EqualValues(t, unsafe.Sizeof(uintptr(0))*8, ptrBits)
}

func TestHashParameters(t *testing.T) {
	// The width-selection arithmetic must pick the parameter pair matching
	// the platform's pointer width.
	var offset, prime uint64 = fnvOffset, fnvPrime
	if ptrBits == 64 {
		require.EqualValues(t, uint64(fnvOffset64), offset)
		require.EqualValues(t, uint64(fnvPrime64), prime)
	} else {
		require.EqualValues(t, uint64(fnvOffset32), offset)
		require.EqualValues(t, uint64(fnvPrime32), prime)
	}
}

func TestHashKnownVectors(t *testing.T) {
	if ptrBits != 64 {
		t.Skip("vectors are for the 64-bit parameters")
	}

	// Reference vectors from the FNV test suite at
	// http://www.isthe.com/chongo/tech/comp/fnv/.
	testCases := []struct {
		key      string
		expected uint64
	}{
		{"", 0xcbf29ce484222325},
		{"a", 0xaf63dc4c8601ec8c},
		{"b", 0xaf63df4c8601f1a5},
		{"foo", 0xdcb27518fed9d577},
		{"foobar", 0x85944171f73967e8},
	}
	for _, c := range testCases {
		require.EqualValues(t, c.expected, hashBytes([]byte(c.key)), "key=%q", c.key)
	}
}

func TestStringModeHashesSignificantBytes(t *testing.T) {
	// In string mode the zero byte and everything after it never reach the
	// hash, so a key probes the same slot however much trailing garbage its
	// buffer carries.
	km := StringKeys()
	require.Equal(t,
		hashBytes(km.normalize([]byte("abc\x00def"))),
		hashBytes([]byte("abc")))
	require.Equal(t,
		hashBytes(km.normalize([]byte("\x00def"))),
		hashBytes(nil))
}
