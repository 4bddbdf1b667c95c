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
	"golang.org/x/sys/unix"

	"github.com/matrixorigin/mempool/pkg/common/moerr"
)

// DefaultHugePageSize is the usual transparent huge page size, 2 MiB.
const DefaultHugePageSize = 2 * MB

// HugePageAllocator maps huge-page-sized anonymous memory and advises
// the kernel to back it with transparent huge pages. A direct
// pass-through to the OS primitives, no internal state.
type HugePageAllocator struct {
	pageSize uint64
}

var _ Allocator = HugePageAllocator{}

func NewHugePageAllocator(pageSize uint64) HugePageAllocator {
	if pageSize == 0 {
		pageSize = DefaultHugePageSize
	}
	return HugePageAllocator{pageSize: pageSize}
}

// Allocate returns a mapping of size rounded up to the huge page size.
// The whole rounded buffer is usable.
func (h HugePageAllocator) Allocate(size uint64) ([]byte, error) {
	if size == 0 {
		return nil, moerr.NewInvalidInputNoCtx("allocate 0 bytes")
	}
	slice, err := unix.Mmap(
		-1, 0,
		int(roundUp(size, h.pageSize)),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON,
	)
	if err != nil {
		return nil, moerr.NewOOMNoCtx()
	}
	adviseHugePage(slice)
	return slice, nil
}

// Deallocate unmaps a buffer returned by Allocate.
func (h HugePageAllocator) Deallocate(buf []byte) {
	if len(buf) == 0 {
		return
	}
	if err := unix.Munmap(buf); err != nil {
		panic(moerr.NewInternalErrorNoCtx("munmap: %v", err))
	}
}

func (h HugePageAllocator) IsAlwaysEqual() bool {
	return true
}
