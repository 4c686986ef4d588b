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

import "math/bits"

// minCapacity is the smallest table a Map will allocate. It is also the
// number of bits in one BitSet word.
const minCapacity = 64

// maxCapacity is the largest table a Map will allocate: the key/value block
// of 16 bytes per slot must have a size that fits in a uint64.
const maxCapacity = 1 << 59

// GrowthStrategy decides the capacity a Map grows to once its load factor
// is exceeded.
type GrowthStrategy interface {
	NextCapacity(current uint64) uint64
}

// Doubling is the default GrowthStrategy.
var Doubling GrowthStrategy = doubling{}

type doubling struct{}

func (doubling) NextCapacity(current uint64) uint64 {
	return current * 2
}

// nextCapacity applies g and normalizes the result to a power of two that
// is at least twice current, as the probe sequence requires a power of two
// table and growth must make progress.
func nextCapacity(g GrowthStrategy, current uint64) uint64 {
	if current > 1<<62 {
		return 1 << 63
	}
	return max(nextPowerOf2(g.NextCapacity(current)), current*2)
}

// nextPowerOf2 returns the smallest power of two >= n, with a floor of
// minCapacity. Results saturate at 1<<63.
func nextPowerOf2(n uint64) uint64 {
	if n <= minCapacity {
		return minCapacity
	}
	if n > 1<<63 {
		return 1 << 63
	}
	return uint64(1) << bits.Len64(n-1)
}
