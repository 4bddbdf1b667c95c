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

package mempool_test

import (
	"fmt"

	"github.com/matrixorigin/mempool/pkg/common/mempool"
)

type node struct {
	value int
	next  *node
}

// A node container takes the allocator its caller hands it for the
// element type, and rebinds it for the node type before allocating
// anything.
func ExampleRebind() {
	elems, err := mempool.NewAllocator[int]("example", nil)
	if err != nil {
		panic(err)
	}
	defer elems.Release()

	nodes := mempool.Rebind[node](elems)
	defer nodes.Release()

	var head *node
	for i := 0; i < 3; i++ {
		n, err := nodes.Allocate(1)
		if err != nil {
			panic(err)
		}
		n.value = i
		n.next = head
		head = n
	}
	for n := head; n != nil; n = n.next {
		fmt.Println(n.value)
	}
	for n := head; n != nil; {
		next := n.next
		nodes.Deallocate(n, 1)
		n = next
	}

	// Output:
	// 2
	// 1
	// 0
}
