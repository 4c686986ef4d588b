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

// Package longmap is an open-addressing hash map from int64 keys to int64
// values built directly on raw memory blocks rather than on Go's builtin
// map. It trades generality for a predictable memory layout, cache friendly
// probing and zero per-entry allocation, which matters when the map is
// embedded in a data processing pipeline operating on large key
// cardinalities.
//
// # Layout
//
// A Map with capacity C (always a power of two >= 64) owns two blocks:
//
//   - a LongArray of 2*C int64s holding interleaved key/value pairs. The key
//     of slot i lives at index 2*i and its value at 2*i+1.
//   - a BitSet of C bits. Slot i is occupied iff bit i is set.
//
// Both blocks come from an Allocator. The default allocator uses the Go heap;
// MmapAllocator maps memory from the OS outside the Go heap and
// LimitAllocator enforces a byte budget. Blocks must be zero-filled, which is
// what makes a freshly allocated table empty.
//
// # Probing
//
// The first slot probed for a key is hash(key) & (C-1). Subsequent probes
// advance by 1, 2, 3, ... slots, so the offsets from the first slot are the
// triangular numbers (i^2 + i)/2. That sequence is a bijection in Z/(2^m),
// which means that on a power of two table every slot is visited exactly
// once within C probes regardless of the quality of the hash function. See
// https://en.wikipedia.org/wiki/Quadratic_probing.
//
// An empty slot terminates a probe: the key is absent and the empty slot is
// where it would be inserted. Keys are never removed, so there are no
// tombstones and an occupied slot stays occupied until the whole table is
// rebuilt by growth.
//
// # Growth
//
// When an insertion pushes the number of keys past C*loadFactor the table
// grows before the insertion returns. New blocks are allocated first, every
// occupied slot of the old table is re-inserted into the new one, the new
// storage is installed, and only then are the old blocks freed. If the
// allocation fails the map is left untouched and the error, which wraps
// ErrOutOfMemory, is returned to the caller.
package longmap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrInvalidConfig is returned by New when an option is out of range.
var ErrInvalidConfig = errors.New("longmap: invalid configuration")

// noSlot is the position of a Location that has no candidate slot because
// the table is completely full.
const noSlot = ^uint64(0)

// Map is an unordered map from int64 keys to int64 values with Put, Get,
// Lookup, and All operations. Keys cannot be deleted.
//
// A Map is NOT goroutine-safe, not even for concurrent reads: Lookup hands
// out a cursor owned by the map and a concurrent Put may grow the table and
// free the memory being read.
type Map struct {
	hash       Hasher
	allocator  Allocator
	growth     GrowthStrategy
	logger     *slog.Logger
	loadFactor float64

	// longArray is 2*capacity in length and holds interleaved keys and values.
	longArray LongArray
	// bitset is capacity bits in length and tracks occupied slots.
	bitset *BitSet
	// The number of occupied slots (i.e. the number of keys in the map).
	size uint64
	// The number of slots (always 2^N with N >= 6).
	capacity uint64
	// capacity-1, used to compute i%capacity using a bitwise & operation.
	mask uint64
	// The number of keys the table may hold before it grows.
	growthThreshold uint64

	loc Location
}

// New constructs a new Map. The initial capacity is rounded up to the next
// power of two, with a minimum of 64 slots and a maximum of 2^59. The error, if any, wraps
// ErrInvalidConfig or the allocator's failure (ErrOutOfMemory).
func New(initialCapacity uint64, options ...option) (*Map, error) {
	m := &Map{
		hash:       Murmur3,
		allocator:  HeapAllocator{},
		growth:     Doubling,
		loadFactor: DefaultLoadFactor,
	}

	for _, op := range options {
		op.apply(m)
	}

	if !(m.loadFactor > 0 && m.loadFactor < 1) {
		return nil, fmt.Errorf("load factor %v not in (0, 1): %w", m.loadFactor, ErrInvalidConfig)
	}
	if m.hash == nil || m.allocator == nil || m.growth == nil {
		return nil, fmt.Errorf("nil hash, allocator or growth strategy: %w", ErrInvalidConfig)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	m.loc.m = m

	capacity := nextPowerOf2(initialCapacity)
	longArray, bitset, err := m.allocate(capacity)
	if err != nil {
		return nil, err
	}
	m.install(capacity, longArray, bitset)
	m.checkInvariants()
	return m, nil
}

// Close releases the map's memory back to its configured allocator. It is
// unnecessary to close a map using the default allocator. It is invalid to
// use a Map after it has been closed, though Close itself is idempotent.
func (m *Map) Close() {
	if m.bitset == nil {
		return
	}
	m.allocator.Free(m.longArray.Block())
	m.allocator.Free(m.bitset.Block())
	m.longArray = LongArray{}
	m.bitset = nil
	m.size = 0
	m.capacity = 0
	m.mask = 0
	m.growthThreshold = 0
}

// Len returns the number of keys in the map.
func (m *Map) Len() uint64 {
	return m.size
}

// Capacity returns the number of slots in the table.
func (m *Map) Capacity() uint64 {
	return m.capacity
}

// ContainsKey returns true if key is present in the map.
func (m *Map) ContainsKey(key int64) bool {
	_, found := m.find(key)
	return found
}

// Get returns the value for key. The result is unspecified if key is not
// present: callers must check ContainsKey or use Lookup first.
func (m *Map) Get(key int64) int64 {
	pos, _ := m.find(key)
	if pos == noSlot {
		return 0
	}
	return m.longArray.at(2*pos + 1)
}

// Put inserts an entry into the map, overwriting the existing value if the
// key is already present. The only possible error is a failure to allocate
// memory while growing, in which case the entry has still been stored if
// there was room for it.
func (m *Map) Put(key int64, value int64) error {
	return m.Lookup(key).SetValue(value)
}

// Lookup resolves key to its slot and returns a Location that can be used to
// test for presence and to read or write the value.
//
// The returned Location is owned by the map and reused by every call to
// Lookup and Put. It is only valid until the next such call.
func (m *Map) Lookup(key int64) *Location {
	pos, found := m.find(key)
	m.loc = Location{m: m, pos: pos, key: key, defined: found}
	return &m.loc
}

// All calls yield sequentially for each key and value present in the map, in
// slot order. If yield returns false, iteration stops. The map must not be
// mutated during iteration: growth frees the memory being iterated.
func (m *Map) All(yield func(key, value int64) bool) {
	for i := m.bitset.NextSetBit(0); i >= 0; i = m.bitset.NextSetBit(uint64(i) + 1) {
		pos := uint64(i)
		if !yield(m.longArray.at(2*pos), m.longArray.at(2*pos+1)) {
			return
		}
	}
}

// find returns the slot holding key and true, or the empty slot where key
// would be inserted and false. If the table is full and key is absent the
// position is noSlot.
func (m *Map) find(key int64) (uint64, bool) {
	seq := makeProbeSeq(uint64(m.hash(key)), m.mask)
	for ; seq.index < m.capacity; seq = seq.next() {
		if !m.bitset.isSet(seq.offset) {
			return seq.offset, false
		}
		if m.longArray.at(2*seq.offset) == key {
			return seq.offset, true
		}
	}
	return noSlot, false
}

// Location is a cursor over the slot a key resolved to. See Map.Lookup for
// its lifetime.
type Location struct {
	m       *Map
	pos     uint64
	key     int64
	defined bool
}

// IsDefined returns true if the key is present in the map.
func (l *Location) IsDefined() bool {
	return l.defined
}

// Key returns the key that was looked up.
func (l *Location) Key() int64 {
	return l.key
}

// Value returns the value stored for the key. The result is unspecified if
// the key is not defined.
func (l *Location) Value() int64 {
	if l.pos == noSlot {
		return 0
	}
	return l.m.longArray.at(2*l.pos + 1)
}

// SetValue stores value for the key, inserting the key if it is not yet
// defined. An insertion that pushes the map past its load factor grows the
// table before returning; the only possible error is a failure to allocate
// the larger table. After SetValue returns the Location refers to the key's
// current slot.
func (l *Location) SetValue(value int64) error {
	m := l.m
	if l.defined {
		m.longArray.put(2*l.pos+1, value)
		return nil
	}

	key := l.key
	if l.pos == noSlot {
		// The table is full, which can only happen after earlier growth
		// failed. Growing is the only way to make room.
		if err := m.grow(); err != nil {
			return err
		}
		*l = *m.Lookup(key)
	}

	m.size++
	m.bitset.set(l.pos)
	m.longArray.put(2*l.pos, key)
	m.longArray.put(2*l.pos+1, value)
	l.defined = true

	if m.size > m.growthThreshold {
		if err := m.grow(); err != nil {
			m.checkInvariants()
			return err
		}
		// The key moved.
		*l = *m.Lookup(key)
	}
	m.checkInvariants()
	return nil
}

// allocate allocates the blocks for a table with the specified capacity. On
// failure nothing remains allocated.
func (m *Map) allocate(capacity uint64) (LongArray, *BitSet, error) {
	if capacity > maxCapacity {
		return LongArray{}, nil, fmt.Errorf("%d slots exceeds the maximum of %d: %w", capacity, uint64(maxCapacity), ErrOutOfMemory)
	}
	kv, err := m.allocator.Allocate(capacity * 2 * 8)
	if err != nil {
		return LongArray{}, nil, fmt.Errorf("allocating %d slots: %w", capacity, err)
	}
	occupied, err := m.allocator.Allocate(capacity / 8)
	if err != nil {
		m.allocator.Free(kv)
		return LongArray{}, nil, fmt.Errorf("allocating %d slots: %w", capacity, err)
	}
	return NewLongArray(kv), NewBitSet(NewLongArray(occupied)), nil
}

func (m *Map) install(capacity uint64, longArray LongArray, bitset *BitSet) {
	m.longArray = longArray
	m.bitset = bitset
	m.capacity = capacity
	m.mask = capacity - 1
	m.growthThreshold = uint64(float64(capacity) * m.loadFactor)
}

// grow allocates a bigger table and uncheckedPuts each entry of the current
// table into it (we know that the keys are distinct), then discards the old
// blocks. If allocation fails the map is unchanged.
func (m *Map) grow() error {
	oldCapacity := m.capacity
	newCapacity := nextCapacity(m.growth, oldCapacity)

	longArray, bitset, err := m.allocate(newCapacity)
	if err != nil {
		m.logger.Warn("longmap: growth failed",
			slog.Uint64("old_capacity", oldCapacity),
			slog.Uint64("new_capacity", newCapacity),
			slog.Uint64("size", m.size),
			slog.Any("error", err))
		return err
	}

	oldLongArray, oldBitset := m.longArray, m.bitset
	newMask := newCapacity - 1
	for i := oldBitset.NextSetBit(0); i >= 0; i = oldBitset.NextSetBit(uint64(i) + 1) {
		pos := uint64(i)
		uncheckedPut(longArray, bitset, newMask, m.hash,
			oldLongArray.at(2*pos), oldLongArray.at(2*pos+1))
	}

	m.install(newCapacity, longArray, bitset)
	m.allocator.Free(oldLongArray.Block())
	m.allocator.Free(oldBitset.Block())

	m.logger.Debug("longmap: grew",
		slog.Uint64("old_capacity", oldCapacity),
		slog.Uint64("new_capacity", newCapacity),
		slog.Uint64("size", m.size))
	return nil
}

// uncheckedPut inserts an entry known not to be in the table. It has one
// less branch per probe than find since no key comparison is needed. The
// table must have at least one empty slot.
func uncheckedPut(longArray LongArray, bitset *BitSet, mask uint64, hash Hasher, key, value int64) {
	seq := makeProbeSeq(uint64(hash(key)), mask)
	for bitset.isSet(seq.offset) {
		seq = seq.next()
	}
	pos := seq.offset
	bitset.set(pos)
	longArray.put(2*pos, key)
	longArray.put(2*pos+1, value)
}

// probeSeq maintains the state for a probe sequence. The sequence is a
// triangular progression of the form
//
//	p(i) := (i^2 + i)/2 + hash (mod mask+1)
//
// It visits every slot exactly once within mask+1 steps since (i^2+i)/2 is
// a bijection in Z/(2^m) and the table size is a power of two.
type probeSeq struct {
	mask   uint64
	offset uint64
	index  uint64
}

func makeProbeSeq(hash, mask uint64) probeSeq {
	return probeSeq{
		mask:   mask,
		offset: hash & mask,
		index:  0,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	s.offset = (s.offset + s.index) & s.mask
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d index=%d", s.mask, s.offset, s.index)
}

func (m *Map) checkInvariants() {
	if invariants {
		if m.capacity < minCapacity || m.capacity&(m.capacity-1) != 0 {
			panic(fmt.Sprintf("invariant failed: capacity %d is not a power of two >= %d", m.capacity, minCapacity))
		}
		if m.bitset.Capacity() != m.capacity {
			panic(fmt.Sprintf("invariant failed: bitset capacity %d != capacity %d", m.bitset.Capacity(), m.capacity))
		}
		if m.longArray.Len() != 2*m.capacity {
			panic(fmt.Sprintf("invariant failed: long array length %d != 2*capacity %d", m.longArray.Len(), m.capacity))
		}
		if n := m.bitset.Cardinality(); n != m.size {
			panic(fmt.Sprintf("invariant failed: found %d occupied slots, but size is %d\n%s", n, m.size, m.debugString()))
		}

		// For every occupied slot, verify probing for its key ends there.
		for i := m.bitset.NextSetBit(0); i >= 0; i = m.bitset.NextSetBit(uint64(i) + 1) {
			key := m.longArray.at(2 * uint64(i))
			if pos, found := m.find(key); !found || pos != uint64(i) {
				panic(fmt.Sprintf("invariant failed: slot(%d): %d not found [hash=%08x]\n%s",
					i, key, m.hash(key), m.debugString()))
			}
		}
	}
}

func (m *Map) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  size=%d  growth-threshold=%d\n", m.capacity, m.size, m.growthThreshold)
	for i := uint64(0); i < m.capacity; i++ {
		if !m.bitset.isSet(i) {
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
			continue
		}
		key := m.longArray.at(2 * i)
		fmt.Fprintf(&buf, "  %4d: %d=%d [hash=%08x]\n", i, key, m.longArray.at(2*i+1), m.hash(key))
	}
	return buf.String()
}
