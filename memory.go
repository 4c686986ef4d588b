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
	"errors"
	"fmt"
	"unsafe"
)

// ErrOutOfMemory is returned (possibly wrapped) when an Allocator cannot
// satisfy a request. Use errors.Is to test for it.
var ErrOutOfMemory = errors.New("longmap: out of memory")

// Block is a handle to a contiguous, zero-initialized region of memory. The
// region is either owned by the Go heap or mapped directly from the OS. A
// Block is immutable once constructed and is owned by exactly one array view
// until it is released via Allocator.Free.
type Block struct {
	buf []byte
}

// Size returns the size of the block in bytes.
func (b Block) Size() uint64 {
	return uint64(len(b.buf))
}

// Base returns a pointer to the first byte of the block, or nil for an empty
// block.
func (b Block) Base() unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(b.buf))
}

// Bytes returns the block's memory as a byte slice. The slice aliases the
// block and must not be used after the block is freed.
func (b Block) Bytes() []byte {
	return b.buf
}

// BlockFromBytes wraps an existing byte slice. The slice must be 8-byte
// aligned so that 64-bit views over it are valid; BlockFromBytes panics
// otherwise. Memory returned by make([]byte, n) for n >= 8 satisfies this.
func BlockFromBytes(buf []byte) Block {
	if uintptr(unsafe.Pointer(unsafe.SliceData(buf)))&7 != 0 {
		panic(fmt.Sprintf("longmap: buffer at %p is not 8-byte aligned", unsafe.SliceData(buf)))
	}
	return Block{buf: buf}
}

// BlockFromInt64s wraps an existing int64 slice.
func BlockFromInt64s(v []int64) Block {
	return Block{buf: unsafeConvertSlice[byte](v, len(v)*8)}
}

// Allocator specifies an interface for allocating and releasing the memory
// blocks used by a Map. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// If the allocator is manually managing memory then Map.Close must be called
// in order to ensure Free is called for the blocks the map still owns.
type Allocator interface {
	// Allocate returns a zero-filled block of exactly size bytes. A failure
	// to obtain memory is reported with an error wrapping ErrOutOfMemory.
	Allocate(size uint64) (Block, error)

	// Free releases a block previously returned by Allocate. The block must
	// not be used afterwards.
	Free(b Block)
}

// HeapAllocator allocates blocks from the Go heap. Blocks are backed by
// []uint64 so their base is always 8-byte aligned. Free is a no-op.
type HeapAllocator struct{}

var _ Allocator = HeapAllocator{}

// Allocate implements Allocator.
func (HeapAllocator) Allocate(size uint64) (b Block, err error) {
	if size == 0 {
		return Block{}, nil
	}
	if size > maxHeapBytes {
		return Block{}, fmt.Errorf("heap allocation of %d bytes: %w", size, ErrOutOfMemory)
	}
	defer func() {
		// The runtime rejects lengths beyond its address space limit, which
		// is platform dependent and lower than maxHeapBytes on some targets.
		if r := recover(); r != nil {
			b, err = Block{}, fmt.Errorf("heap allocation of %d bytes: %v: %w", size, r, ErrOutOfMemory)
		}
	}()
	v := make([]uint64, (size+7)/8)
	return Block{buf: unsafeConvertSlice[byte](v, int(size))}, nil
}

// Free implements Allocator.
func (HeapAllocator) Free(Block) {}

// maxHeapBytes bounds heap allocations to what a Go slice can address and
// to the 48-bit heap address space of 64-bit platforms.
const maxHeapBytes = min(uint64(^uint(0)>>1), 1<<48)

// unsafeConvertSlice reinterprets the memory behind s as a []Dest of length
// n. n*sizeof(Dest) must not exceed len(s)*sizeof(Src).
func unsafeConvertSlice[Dest any, Src any](s []Src, n int) []Dest {
	return unsafe.Slice((*Dest)(unsafe.Pointer(unsafe.SliceData(s))), n)
}
