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

// Package malloc holds the stateless reference allocators that
// comparison benchmarks run against the pool. They hold no free
// registry and no shared state; any two instances of the same kind are
// interchangeable.
package malloc

const (
	KB = 1 << 10
	MB = 1 << 20
)

// Allocator hands out byte buffers in bulk. The returned buffer may be
// larger than requested; Deallocate takes the buffer as returned.
type Allocator interface {
	Allocate(size uint64) ([]byte, error)
	Deallocate(buf []byte)

	// IsAlwaysEqual reports whether instances carry no per-instance
	// state, making any two of them interchangeable.
	IsAlwaysEqual() bool
}

func roundUp(size, unit uint64) uint64 {
	return (size + unit - 1) / unit * unit
}
