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
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/matrixorigin/mempool/pkg/common/moerr"
	"github.com/matrixorigin/mempool/pkg/logutil"
)

// Pool hands out fixed-size slots carved from mmap-backed regions.
//
// A region is acquired in bulk, sliced into BlockSize/SlotSize slots,
// and owned by the pool until the last reference is released; regions
// are never unmapped individually. Free slots live on a LIFO stack of
// raw addresses, so the most recently released (or most recently
// carved) slot is reused first. Slots are carved forward from the
// region base, which makes the first address out of a fresh region the
// highest-addressed slot.
//
// A Pool is single-owner: no internal locking, callers that share one
// across goroutines must synchronize on their own. Stats are atomics
// only so that a metrics scraper may read them concurrently.
//
// Releasing an address that did not come from Alloc, or releasing the
// same address twice, corrupts the free stack. The pool does not
// detect it; it is misuse in the same class as a double free.
type Pool struct {
	name      string
	slotSize  uint64
	blockSize uint64

	regions [][]byte
	free    []unsafe.Pointer

	refs  atomic.Int32
	stats Stats
}

// Stats are the allocation counters of one pool. Counters only ever
// grow; in-use is derived.
type Stats struct {
	NumAlloc      atomic.Int64
	NumFree       atomic.Int64
	NumRegions    atomic.Int64
	HighWaterMark atomic.Int64
}

// InUse returns the number of slots currently handed out.
func (s *Stats) InUse() int64 {
	return s.NumAlloc.Load() - s.NumFree.Load()
}

// NewPool returns a pool carving slotSize slots out of regions sized
// by cfg. When cfg asks for reserved blocks, the regions are carved
// here, before any allocation arrives.
func NewPool(name string, slotSize uint64, cfg *Config) (*Pool, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Adjust()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkSlotSize(slotSize, cfg.BlockSize); err != nil {
		return nil, err
	}

	p := &Pool{
		name:      name,
		slotSize:  slotSize,
		blockSize: cfg.BlockSize,
	}
	p.refs.Store(1)

	for i := 0; i < cfg.ReservedBlocks; i++ {
		if err := p.carve(); err != nil {
			p.destroy()
			return nil, err
		}
	}
	if cfg.ReservedBlocks > 0 {
		logutil.Info("mempool: reserved regions",
			zap.Any("pool", name),
			zap.Any("slot size", slotSize),
			zap.Any("regions", cfg.ReservedBlocks),
			zap.Any("free slots", len(p.free)),
		)
	}

	return p, nil
}

func checkSlotSize(slotSize, blockSize uint64) error {
	if slotSize == 0 {
		return moerr.NewInvalidArgNoCtx("slot size", slotSize)
	}
	if slotSize > blockSize {
		return moerr.NewInvalidArgNoCtx("slot size larger than block size", slotSize)
	}
	return nil
}

// Alloc returns the address of one free slot, carving a fresh region
// when the free stack is empty. The only failure is the region
// acquisition itself; it is returned as an OOM error and never retried.
func (p *Pool) Alloc() (unsafe.Pointer, error) {
	if len(p.free) == 0 {
		if err := p.carve(); err != nil {
			return nil, err
		}
	}

	ptr := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	p.stats.NumAlloc.Add(1)
	p.updateHighWaterMark()
	return ptr, nil
}

// Free pushes ptr back on the free stack. ptr must be an address
// previously returned by Alloc and not already freed.
func (p *Pool) Free(ptr unsafe.Pointer) {
	p.free = append(p.free, ptr)
	p.stats.NumFree.Add(1)
}

// Rebind changes the slot size of a pool that has never carved a
// region. Containers use it to turn the element allocator they were
// handed into the allocator for their internal node type, before any
// node exists. Once a region is carved the slot geometry is baked into
// the free stack, so a late rebind is a contract violation and panics
// without touching pool state.
func (p *Pool) Rebind(slotSize uint64) {
	if len(p.regions) != 0 || len(p.free) != 0 {
		panic(moerr.NewInvalidStateNoCtx(
			"pool %s already carved, cannot rebind slot size %d to %d",
			p.name, p.slotSize, slotSize))
	}
	if err := checkSlotSize(slotSize, p.blockSize); err != nil {
		panic(err)
	}
	p.slotSize = slotSize
}

// carve maps one more region and pushes every slot in it.
func (p *Pool) carve() error {
	slice, err := unix.Mmap(
		-1, 0,
		int(p.blockSize),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON,
	)
	if err != nil {
		return moerr.NewOOMNoCtx()
	}

	base := unsafe.Pointer(unsafe.SliceData(slice))
	// Every full slot is used; the tail remainder, when blockSize is
	// not a multiple of slotSize, is padding.
	numSlots := p.blockSize / p.slotSize
	for i := uint64(0); i < numSlots; i++ {
		p.free = append(p.free, unsafe.Add(base, int(i*p.slotSize)))
	}

	p.regions = append(p.regions, slice)
	p.stats.NumRegions.Add(1)

	logutil.Debug("mempool: carved region",
		zap.Any("pool", p.name),
		zap.Any("slot size", p.slotSize),
		zap.Any("slots", numSlots),
		zap.Any("regions", len(p.regions)),
	)
	return nil
}

func (p *Pool) updateHighWaterMark() {
	inuse := p.stats.InUse()
	for {
		hwm := p.stats.HighWaterMark.Load()
		if inuse <= hwm {
			return
		}
		if p.stats.HighWaterMark.CompareAndSwap(hwm, inuse) {
			return
		}
	}
}

// retain adds one shared-ownership reference. Allocator copies and
// rebinds go through here.
func (p *Pool) retain() {
	p.refs.Add(1)
}

// Release drops one reference. Dropping the last one unmaps every
// region at once; no region is ever returned to the OS before that.
func (p *Pool) Release() {
	if p.refs.Add(-1) == 0 {
		p.destroy()
	}
}

func (p *Pool) destroy() {
	for _, region := range p.regions {
		if err := unix.Munmap(region); err != nil {
			logutil.Error("mempool: munmap failed",
				zap.Any("pool", p.name),
				zap.Any("error", err),
			)
		}
	}
	p.regions = nil
	p.free = nil
}

// Stats returns the counters of this pool. Safe to read from another
// goroutine.
func (p *Pool) Stats() *Stats {
	return &p.stats
}

// FreeSlots returns the current depth of the free stack.
func (p *Pool) FreeSlots() int {
	return len(p.free)
}

// SlotSize returns the current slot geometry.
func (p *Pool) SlotSize() uint64 {
	return p.slotSize
}

// BlockSize returns the region capacity in bytes.
func (p *Pool) BlockSize() uint64 {
	return p.blockSize
}

// Name returns the pool name used in logs and metrics.
func (p *Pool) Name() string {
	return p.name
}
