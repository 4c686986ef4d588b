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
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// Hasher maps a key to a 32-bit hash. It must be deterministic. Only the
// low log2(capacity) bits are used to pick the first probe slot, so those
// bits should be well mixed; the probe sequence terminates regardless of
// the hash quality.
type Hasher func(key int64) uint32

// Murmur3 hashes the key's 8 little-endian bytes with 32-bit MurmurHash3
// and a zero seed. It is the default Hasher.
func Murmur3(key int64) uint32 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(key))
	return murmur3.Sum32WithSeed(b[:], 0)
}

// XXHash hashes the key's 8 little-endian bytes with XXH64 and folds the
// result to 32 bits.
func XXHash(key int64) uint32 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(key))
	h := xxhash.Sum64(b[:])
	return uint32(h ^ h>>32)
}
