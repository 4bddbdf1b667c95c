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
	"unsafe"

	"github.com/matrixorigin/mempool/pkg/common/moerr"
)

// Allocator is a typed handle over a shared Pool, shaped like the
// allocator contract node containers consume: single-element requests
// are pool slots, multi-element requests bypass the pool.
//
// Copies made with Clone and related-type handles made with Rebind all
// share one Pool; the regions live until the last handle calls
// Release.
//
// Values written into pool slots live outside the Go heap. A slot must
// not hold the only reference to a garbage-collected object.
type Allocator[T any] struct {
	pool *Pool
}

// NewAllocator builds an allocator for T over a fresh pool with
// SlotSize = sizeof(T).
func NewAllocator[T any](name string, cfg *Config) (*Allocator[T], error) {
	var zero T
	pool, err := NewPool(name, uint64(unsafe.Sizeof(zero)), cfg)
	if err != nil {
		return nil, err
	}
	return &Allocator[T]{pool: pool}, nil
}

// Rebind derives the allocator for U from an allocator for T, sharing
// the pool and re-slotting it for U. The container machinery calls
// this before the first allocation; on a pool that has already carved,
// the underlying Rebind panics.
func Rebind[U, T any](a *Allocator[T]) *Allocator[U] {
	var zero U
	a.pool.Rebind(uint64(unsafe.Sizeof(zero)))
	a.pool.retain()
	return &Allocator[U]{pool: a.pool}
}

// Clone returns a same-type handle sharing the pool unchanged.
func (a *Allocator[T]) Clone() *Allocator[T] {
	a.pool.retain()
	return &Allocator[T]{pool: a.pool}
}

// Allocate returns storage for n values of T. n == 1 is the pool fast
// path. n > 1 bypasses the pool: the run comes from the regular Go
// heap, the pool never serves variable-length runs.
func (a *Allocator[T]) Allocate(n int) (*T, error) {
	if n <= 0 {
		return nil, moerr.NewInvalidInputNoCtx("allocate %d elements", n)
	}
	if n > 1 {
		s := make([]T, n)
		return &s[0], nil
	}

	ptr, err := a.pool.Alloc()
	if err != nil {
		return nil, err
	}
	return (*T)(ptr), nil
}

// Deallocate releases storage obtained from Allocate with the same n.
// The n > 1 case was heap-allocated and is reclaimed by the garbage
// collector once the caller drops the address, so only the single-slot
// case returns to the pool.
func (a *Allocator[T]) Deallocate(ptr *T, n int) {
	if ptr == nil || n != 1 {
		return
	}
	a.pool.Free(unsafe.Pointer(ptr))
}

// Equal reports whether both handles share the same pool. Equal slot
// geometry is not enough; this allocator family is not always-equal.
func (a *Allocator[T]) Equal(b *Allocator[T]) bool {
	return a.pool == b.pool
}

// IsAlwaysEqual is the capability flag of the allocator contract.
// Stateful, so false.
func (a *Allocator[T]) IsAlwaysEqual() bool {
	return false
}

// Release drops this handle's reference to the shared pool.
func (a *Allocator[T]) Release() {
	a.pool.Release()
}

// Pool exposes the shared pool, mainly for stats and metrics.
func (a *Allocator[T]) Pool() *Pool {
	return a.pool
}
