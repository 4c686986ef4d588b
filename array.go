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
	"math"
	"unsafe"
)

// ErrArrayTooLarge is returned by ToSlice when the view holds more elements
// than a Go slice can index on the current platform.
var ErrArrayTooLarge = errors.New("longmap: array too large for a Go slice")

// IndexError is the panic value for an out of range index on a checked
// accessor.
type IndexError struct {
	Index  uint64
	Length uint64
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("longmap: index %d out of range [0, %d)", e.Index, e.Length)
}

// view provides typed fixed-width access to a Block. There are two sets of
// accessors:
//
//   - Get and Set validate the index and panic with an *IndexError when it is
//     out of range.
//   - at and put perform raw pointer arithmetic without any check (unless
//     built with the invariants tag). They are used by BitSet and Map on their
//     hot paths, where every index is derived from a mask and is in range by
//     construction. An out of range index there reads or corrupts arbitrary
//     memory.
type view[T int32 | int64 | float64] struct {
	block  Block
	ptr    unsafe.Pointer
	length uint64
}

func makeView[T int32 | int64 | float64](b Block) view[T] {
	var t T
	width := uint64(unsafe.Sizeof(t))
	if b.Size()%width != 0 {
		panic(fmt.Sprintf("longmap: block size %d is not a multiple of %d", b.Size(), width))
	}
	return view[T]{block: b, ptr: b.Base(), length: b.Size() / width}
}

// Len returns the number of elements in the view.
func (v view[T]) Len() uint64 {
	return v.length
}

// Block returns the block backing the view.
func (v view[T]) Block() Block {
	return v.block
}

// Get returns the element at index i.
func (v view[T]) Get(i uint64) T {
	v.check(i)
	return v.at(i)
}

// Set stores x at index i.
func (v view[T]) Set(i uint64, x T) {
	v.check(i)
	v.put(i, x)
}

// ToSlice returns a copy of the view as a Go slice.
func (v view[T]) ToSlice() ([]T, error) {
	if v.length > math.MaxInt {
		return nil, fmt.Errorf("%d elements: %w", v.length, ErrArrayTooLarge)
	}
	r := make([]T, v.length)
	if v.length > 0 {
		copy(r, unsafe.Slice((*T)(v.ptr), int(v.length)))
	}
	return r, nil
}

func (v view[T]) check(i uint64) {
	if i >= v.length {
		panic(&IndexError{Index: i, Length: v.length})
	}
}

func (v view[T]) at(i uint64) T {
	if invariants {
		v.check(i)
	}
	var t T
	return *(*T)(unsafe.Add(v.ptr, uintptr(i)*unsafe.Sizeof(t)))
}

func (v view[T]) put(i uint64, x T) {
	if invariants {
		v.check(i)
	}
	*(*T)(unsafe.Add(v.ptr, uintptr(i)*unsafe.Sizeof(x))) = x
}

// LongArray interprets a Block as a dense sequence of int64 values. It does
// not own the block and performs no copying: reads and writes alias the
// block's memory.
type LongArray struct {
	view[int64]
}

// NewLongArray returns a LongArray over b. It panics if the size of b is not
// a multiple of 8.
func NewLongArray(b Block) LongArray {
	return LongArray{makeView[int64](b)}
}

// IntArray interprets a Block as a dense sequence of int32 values.
type IntArray struct {
	view[int32]
}

// NewIntArray returns an IntArray over b. It panics if the size of b is not
// a multiple of 4.
func NewIntArray(b Block) IntArray {
	return IntArray{makeView[int32](b)}
}

// DoubleArray interprets a Block as a dense sequence of float64 values.
type DoubleArray struct {
	view[float64]
}

// NewDoubleArray returns a DoubleArray over b. It panics if the size of b is
// not a multiple of 8.
func NewDoubleArray(b Block) DoubleArray {
	return DoubleArray{makeView[float64](b)}
}
