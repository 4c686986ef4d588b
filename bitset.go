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
	"strings"
)

// BitSet is a fixed capacity packed bit vector backed by a LongArray. Bit i
// lives in word i>>6 at position i&63. The Map uses a BitSet to track which
// slots are occupied.
type BitSet struct {
	words    LongArray
	numWords uint64
	capacity uint64
}

// NewBitSet returns a BitSet over words. Its capacity is 64 bits per word.
func NewBitSet(words LongArray) *BitSet {
	return &BitSet{
		words:    words,
		numWords: words.Len(),
		capacity: words.Len() * 64,
	}
}

// Capacity returns the number of bits in the set.
func (b *BitSet) Capacity() uint64 {
	return b.capacity
}

// Block returns the block backing the set.
func (b *BitSet) Block() Block {
	return b.words.Block()
}

// Set sets bit i. It panics if i >= Capacity().
func (b *BitSet) Set(i uint64) {
	b.check(i)
	b.set(i)
}

// Unset clears bit i. It panics if i >= Capacity().
func (b *BitSet) Unset(i uint64) {
	b.check(i)
	w := i >> 6
	b.words.put(w, b.words.at(w)&^(1<<(i&63)))
}

// IsSet returns true if bit i is set. It panics if i >= Capacity().
func (b *BitSet) IsSet(i uint64) bool {
	b.check(i)
	return b.isSet(i)
}

// Cardinality returns the number of set bits.
func (b *BitSet) Cardinality() uint64 {
	var n int
	for w := uint64(0); w < b.numWords; w++ {
		n += bits.OnesCount64(uint64(b.words.at(w)))
	}
	return uint64(n)
}

// NextSetBit returns the smallest index >= from whose bit is set, or -1 if
// there is none. No iteration state is kept between calls, the caller
// threads the position through:
//
//	for i := b.NextSetBit(0); i >= 0; i = b.NextSetBit(uint64(i) + 1) {
//	  ...
//	}
func (b *BitSet) NextSetBit(from uint64) int64 {
	w := from >> 6
	if w >= b.numWords {
		return -1
	}

	// Shift out the bits below from in the first word. The shift must be
	// logical so the high bit is not smeared down.
	sub := from & 63
	if word := uint64(b.words.at(w)) >> sub; word != 0 {
		return int64(w<<6 + sub + uint64(bits.TrailingZeros64(word)))
	}

	for w++; w < b.numWords; w++ {
		if word := uint64(b.words.at(w)); word != 0 {
			return int64(w<<6 + uint64(bits.TrailingZeros64(word)))
		}
	}
	return -1
}

// String renders the set as a string of 0s and 1s in index order.
func (b *BitSet) String() string {
	var buf strings.Builder
	buf.Grow(int(b.capacity))
	for i := uint64(0); i < b.capacity; i++ {
		if b.isSet(i) {
			buf.WriteByte('1')
		} else {
			buf.WriteByte('0')
		}
	}
	return buf.String()
}

func (b *BitSet) check(i uint64) {
	if i >= b.capacity {
		panic(&IndexError{Index: i, Length: b.capacity})
	}
}

func (b *BitSet) set(i uint64) {
	w := i >> 6
	b.words.put(w, b.words.at(w)|int64(1)<<(i&63))
}

func (b *BitSet) isSet(i uint64) bool {
	return b.words.at(i>>6)&(int64(1)<<(i&63)) != 0
}
