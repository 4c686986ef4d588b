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

//go:build unix

package longmap

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// MmapAllocator allocates blocks from anonymous private OS mappings. The
// memory lives outside the Go heap, is zero-filled by the kernel, and is
// invisible to the GC: every block must be released with Free (i.e. the
// owning Map must be closed).
type MmapAllocator struct{}

var _ Allocator = MmapAllocator{}

// Allocate implements Allocator.
func (MmapAllocator) Allocate(size uint64) (Block, error) {
	if size == 0 {
		return Block{}, nil
	}
	if size > uint64(^uint(0)>>1) {
		return Block{}, fmt.Errorf("mmap of %d bytes: %w", size, ErrOutOfMemory)
	}
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		if errors.Is(err, unix.ENOMEM) {
			return Block{}, fmt.Errorf("mmap of %d bytes: %w", size, ErrOutOfMemory)
		}
		return Block{}, fmt.Errorf("mmap of %d bytes: %w", size, err)
	}
	return Block{buf: data}, nil
}

// Free implements Allocator. It panics if the block was not obtained from
// an MmapAllocator.
func (MmapAllocator) Free(b Block) {
	if len(b.buf) == 0 {
		return
	}
	if err := unix.Munmap(b.buf[:cap(b.buf)]); err != nil {
		panic(fmt.Sprintf("longmap: munmap of %d bytes: %v", len(b.buf), err))
	}
}
