// Copyright 2022 - 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package malloc

import (
	"unsafe"

	"github.com/matrixorigin/mempool/pkg/common/moerr"
)

// DefaultCacheLineSize matches the line size of common x86-64 and
// arm64 parts.
const DefaultCacheLineSize = 64

// CacheAlignedAllocator returns heap buffers whose base address sits
// on an alignment boundary, so neighboring allocations never share a
// cache line. A pass-through over the Go heap, no internal state.
type CacheAlignedAllocator struct {
	alignment uint64
}

var _ Allocator = CacheAlignedAllocator{}

// NewCacheAlignedAllocator builds an allocator aligning to the given
// power-of-two boundary, or the cache line size when zero.
func NewCacheAlignedAllocator(alignment uint64) CacheAlignedAllocator {
	if alignment == 0 {
		alignment = DefaultCacheLineSize
	}
	return CacheAlignedAllocator{alignment: alignment}
}

func (c CacheAlignedAllocator) Allocate(size uint64) ([]byte, error) {
	if size == 0 {
		return nil, moerr.NewInvalidInputNoCtx("allocate 0 bytes")
	}
	if c.alignment&(c.alignment-1) != 0 {
		return nil, moerr.NewInvalidArgNoCtx("alignment", c.alignment)
	}

	// Over-allocate by one alignment unit and slice forward to the
	// first aligned address.
	raw := make([]byte, size+c.alignment)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	offset := uint64(0)
	if rem := uint64(base) & (c.alignment - 1); rem != 0 {
		offset = c.alignment - rem
	}
	return raw[offset : offset+size : offset+size], nil
}

// Deallocate releases a buffer returned by Allocate. Heap-backed, so
// the garbage collector reclaims it once the caller lets go.
func (c CacheAlignedAllocator) Deallocate(buf []byte) {
}

func (c CacheAlignedAllocator) IsAlwaysEqual() bool {
	return true
}
