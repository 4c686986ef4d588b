// Copyright 2024 The Cockroach Authors
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
package longmap

import (
	"math/bits"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// murmur3HashLong is a direct rendition of 32-bit MurmurHash3 over a single
// 64-bit input, processed as two little-endian 32-bit blocks.
func murmur3HashLong(input int64, seed uint32) uint32 {
	const (
		c1 = 0xcc9e2d51
		c2 = 0x1b873593
	)
	mixK1 := func(k uint32) uint32 {
		k *= c1
		k = bits.RotateLeft32(k, 15)
		return k * c2
	}
	mixH1 := func(h, k uint32) uint32 {
		h ^= k
		h = bits.RotateLeft32(h, 13)
		return h*5 + 0xe6546b64
	}

	h := mixH1(seed, mixK1(uint32(input)))
	h = mixH1(h, mixK1(uint32(uint64(input)>>32)))

	h ^= 8
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

func TestMurmur3(t *testing.T) {
	keys := []int64{0, 1, -1, 10, 15, 1 << 32, -1 << 63, 1<<63 - 1}
	for i := 0; i < 1000; i++ {
		keys = append(keys, rand.Int63()-rand.Int63())
	}
	for _, k := range keys {
		require.Equal(t, murmur3HashLong(k, 0), Murmur3(k), "key %d", k)
	}
}

func TestHashersDeterministic(t *testing.T) {
	for _, h := range []Hasher{Murmur3, XXHash} {
		for i := int64(0); i < 100; i++ {
			require.Equal(t, h(i), h(i))
		}
		require.NotEqual(t, h(1), h(2))
	}
}

func TestHashersSpread(t *testing.T) {
	// Sequential keys should land in most of the slots of a small table.
	for _, h := range []Hasher{Murmur3, XXHash} {
		seen := make(map[uint32]struct{})
		for i := int64(0); i < 64; i++ {
			seen[h(i)&63] = struct{}{}
		}
		require.Greater(t, len(seen), 24)
	}
}
