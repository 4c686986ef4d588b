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
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// LimitAllocator enforces a byte budget over another Allocator. Requests
// that would push the outstanding total past the limit fail immediately
// with ErrOutOfMemory; nothing blocks. A LimitAllocator may be shared by
// several maps and is safe for concurrent use.
type LimitAllocator struct {
	alloc Allocator
	limit int64
	sem   *semaphore.Weighted
	used  atomic.Int64
}

var _ Allocator = (*LimitAllocator)(nil)

// NewLimitAllocator returns an allocator that draws from alloc while
// keeping at most limit bytes outstanding. A nil alloc means HeapAllocator.
func NewLimitAllocator(alloc Allocator, limit uint64) *LimitAllocator {
	if alloc == nil {
		alloc = HeapAllocator{}
	}
	if limit > math.MaxInt64 {
		limit = math.MaxInt64
	}
	return &LimitAllocator{
		alloc: alloc,
		limit: int64(limit),
		sem:   semaphore.NewWeighted(int64(limit)),
	}
}

// Allocate implements Allocator.
func (a *LimitAllocator) Allocate(size uint64) (Block, error) {
	if size > uint64(a.limit) || !a.sem.TryAcquire(int64(size)) {
		return Block{}, fmt.Errorf("allocating %d bytes with %d of %d in use: %w",
			size, a.used.Load(), a.limit, ErrOutOfMemory)
	}
	b, err := a.alloc.Allocate(size)
	if err != nil {
		a.sem.Release(int64(size))
		return Block{}, err
	}
	a.used.Add(int64(size))
	return b, nil
}

// Free implements Allocator.
func (a *LimitAllocator) Free(b Block) {
	size := int64(b.Size())
	a.alloc.Free(b)
	a.used.Add(-size)
	a.sem.Release(size)
}

// Used returns the number of bytes currently outstanding.
func (a *LimitAllocator) Used() uint64 {
	return uint64(a.used.Load())
}

// Limit returns the configured budget in bytes.
func (a *LimitAllocator) Limit() uint64 {
	return uint64(a.limit)
}
