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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	pool, err := NewPool("metrics", 16, &Config{BlockSize: 4096})
	require.NoError(t, err)
	defer pool.Release()

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector(pool)))

	ptr, err := pool.Alloc()
	require.NoError(t, err)
	pool.Free(ptr)
	_, err = pool.Alloc()
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	got := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				got[mf.GetName()] = m.GetCounter().GetValue()
			} else {
				got[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	require.Equal(t, float64(2), got["mempool_allocated_slots_total"])
	require.Equal(t, float64(1), got["mempool_freed_slots_total"])
	require.Equal(t, float64(1), got["mempool_inuse_slots"])
	require.Equal(t, float64(1), got["mempool_regions"])
	require.Equal(t, float64(1), got["mempool_inuse_slots_high_water_mark"])
}
