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

package mempool

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/mempool/pkg/common/moerr"
)

func TestPoolRoundTrip(t *testing.T) {
	pool, err := NewPool("round-trip", 16, nil)
	require.NoError(t, err)
	defer pool.Release()

	ptr, err := pool.Alloc()
	require.NoError(t, err)
	pool.Free(ptr)

	// LIFO reuse: the slot just freed comes back first.
	again, err := pool.Alloc()
	require.NoError(t, err)
	require.Equal(t, ptr, again)

	require.EqualValues(t, 2, pool.Stats().NumAlloc.Load())
	require.EqualValues(t, 1, pool.Stats().NumFree.Load())
	require.EqualValues(t, 1, pool.Stats().InUse())
	require.EqualValues(t, 1, pool.Stats().HighWaterMark.Load())
}

func TestPoolUniqueLiveAddresses(t *testing.T) {
	pool, err := NewPool("unique", 32, &Config{BlockSize: 1024})
	require.NoError(t, err)
	defer pool.Release()

	// Cross several region boundaries.
	seen := make(map[uintptr]bool)
	var live []unsafe.Pointer
	for i := 0; i < 1000; i++ {
		ptr, err := pool.Alloc()
		require.NoError(t, err)
		require.False(t, seen[uintptr(ptr)], "slot handed out twice")
		seen[uintptr(ptr)] = true
		live = append(live, ptr)
	}
	require.True(t, pool.Stats().NumRegions.Load() > 1)

	for _, ptr := range live {
		pool.Free(ptr)
	}
	require.EqualValues(t, 0, pool.Stats().InUse())
}

func TestPoolEndToEnd(t *testing.T) {
	// BlockSize 4096, SlotSize 16: one region is exactly 256 slots.
	pool, err := NewPool("end-to-end", 16, &Config{BlockSize: 4096})
	require.NoError(t, err)
	defer pool.Release()
	require.EqualValues(t, 0, pool.Stats().NumRegions.Load())

	a0, err := pool.Alloc()
	require.NoError(t, err)
	require.EqualValues(t, 1, pool.Stats().NumRegions.Load())

	// Forward carve plus LIFO pop: the first address out of the fresh
	// region is its highest slot, and addresses descend by one slot.
	addrs := []unsafe.Pointer{a0}
	for i := 0; i < 255; i++ {
		ptr, err := pool.Alloc()
		require.NoError(t, err)
		require.Equal(t, uintptr(addrs[len(addrs)-1])-16, uintptr(ptr))
		addrs = append(addrs, ptr)
	}
	// Exhausting the region's 256 slots never carved a second region,
	// and a0 is base + 4096 - 16.
	require.EqualValues(t, 1, pool.Stats().NumRegions.Load())
	base := uintptr(addrs[len(addrs)-1])
	require.Equal(t, base+4096-16, uintptr(a0))

	// The 257th allocation carves region two.
	_, err = pool.Alloc()
	require.NoError(t, err)
	require.EqualValues(t, 2, pool.Stats().NumRegions.Load())
}

func TestPoolPrewarm(t *testing.T) {
	const k = 3
	pool, err := NewPool("prewarm", 16, &Config{BlockSize: 4096, ReservedBlocks: k})
	require.NoError(t, err)
	defer pool.Release()

	require.EqualValues(t, k, pool.Stats().NumRegions.Load())
	require.Equal(t, k*256, pool.FreeSlots())

	// All reserved slots are served with zero further carves.
	for i := 0; i < k*256; i++ {
		_, err := pool.Alloc()
		require.NoError(t, err)
	}
	require.EqualValues(t, k, pool.Stats().NumRegions.Load())

	_, err = pool.Alloc()
	require.NoError(t, err)
	require.EqualValues(t, k+1, pool.Stats().NumRegions.Load())
}

func TestPoolTailPadding(t *testing.T) {
	// 100 % 16 != 0: the region yields floor(100/16) = 6 slots, the
	// 4-byte tail is padding.
	pool, err := NewPool("padding", 16, &Config{BlockSize: 100})
	require.NoError(t, err)
	defer pool.Release()

	for i := 0; i < 6; i++ {
		_, err := pool.Alloc()
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, pool.Stats().NumRegions.Load())

	_, err = pool.Alloc()
	require.NoError(t, err)
	require.EqualValues(t, 2, pool.Stats().NumRegions.Load())
}

func TestPoolRebind(t *testing.T) {
	pool, err := NewPool("rebind", 8, &Config{BlockSize: 4096})
	require.NoError(t, err)
	defer pool.Release()

	// Never carved: rebind commits a new geometry.
	pool.Rebind(64)
	require.EqualValues(t, 64, pool.SlotSize())

	// Subsequent carving uses the new size: LIFO addresses descend by
	// the rebound slot size.
	a, err := pool.Alloc()
	require.NoError(t, err)
	b, err := pool.Alloc()
	require.NoError(t, err)
	require.Equal(t, uintptr(a)-64, uintptr(b))
}

func TestPoolRebindAfterUse(t *testing.T) {
	pool, err := NewPool("rebind-late", 8, nil)
	require.NoError(t, err)
	defer pool.Release()

	ptr, err := pool.Alloc()
	require.NoError(t, err)
	pool.Free(ptr)

	freeBefore := pool.FreeSlots()
	slotBefore := pool.SlotSize()
	func() {
		defer func() {
			err := moerr.ConvertPanicError(moerr.Context(), recover())
			require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))
		}()
		pool.Rebind(64)
		t.Fatal("rebind after use must panic")
	}()
	// No partial mutation.
	require.Equal(t, freeBefore, pool.FreeSlots())
	require.Equal(t, slotBefore, pool.SlotSize())
}

func TestPoolRebindAfterPrewarm(t *testing.T) {
	// Pre-warming carves regions, so the rebind window is already
	// closed even though no allocation was served.
	pool, err := NewPool("rebind-prewarm", 8, &Config{ReservedBlocks: 1})
	require.NoError(t, err)
	defer pool.Release()

	require.Panics(t, func() {
		pool.Rebind(64)
	})
}

func TestPoolRebindBadSize(t *testing.T) {
	pool, err := NewPool("rebind-bad", 8, &Config{BlockSize: 4096})
	require.NoError(t, err)
	defer pool.Release()

	require.Panics(t, func() { pool.Rebind(0) })
	require.Panics(t, func() { pool.Rebind(4097) })
}

func TestNewPoolBadArgs(t *testing.T) {
	_, err := NewPool("zero-slot", 0, nil)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))

	_, err = NewPool("fat-slot", 8192, &Config{BlockSize: 4096})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidArg))

	_, err = NewPool("bad-reserve", 16, &Config{ReservedBlocks: -1})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}

func TestPoolSharedRelease(t *testing.T) {
	pool, err := NewPool("shared", 16, &Config{ReservedBlocks: 1})
	require.NoError(t, err)

	pool.retain()
	pool.Release()
	// One reference still holds the regions.
	require.NotZero(t, pool.FreeSlots())

	pool.Release()
	// Last reference dropped: all regions released at once.
	require.Zero(t, pool.FreeSlots())
}

func TestPoolSlotWrites(t *testing.T) {
	pool, err := NewPool("writes", 8, nil)
	require.NoError(t, err)
	defer pool.Release()

	ptrs := make([]*uint64, 0, 300)
	for i := 0; i < 300; i++ {
		ptr, err := pool.Alloc()
		require.NoError(t, err)
		v := (*uint64)(ptr)
		*v = uint64(i)
		ptrs = append(ptrs, v)
	}
	for i, v := range ptrs {
		require.Equal(t, uint64(i), *v)
	}
}
