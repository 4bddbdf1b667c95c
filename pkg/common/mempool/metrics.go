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
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports a pool's Stats as prometheus metrics. Stats are
// atomics, so scraping does not need the pool's single owner to stop.
type Collector struct {
	pool *Pool

	allocatedSlots *prometheus.Desc
	freedSlots     *prometheus.Desc
	inuseSlots     *prometheus.Desc
	regions        *prometheus.Desc
	highWaterMark  *prometheus.Desc
}

var _ prometheus.Collector = new(Collector)

func NewCollector(pool *Pool) *Collector {
	labels := prometheus.Labels{"pool": pool.Name()}
	return &Collector{
		pool: pool,
		allocatedSlots: prometheus.NewDesc(
			"mempool_allocated_slots_total",
			"Total number of slots handed out",
			nil, labels,
		),
		freedSlots: prometheus.NewDesc(
			"mempool_freed_slots_total",
			"Total number of slots returned",
			nil, labels,
		),
		inuseSlots: prometheus.NewDesc(
			"mempool_inuse_slots",
			"Slots currently handed out",
			nil, labels,
		),
		regions: prometheus.NewDesc(
			"mempool_regions",
			"Regions carved since pool construction",
			nil, labels,
		),
		highWaterMark: prometheus.NewDesc(
			"mempool_inuse_slots_high_water_mark",
			"Peak of slots handed out at once",
			nil, labels,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allocatedSlots
	ch <- c.freedSlots
	ch <- c.inuseSlots
	ch <- c.regions
	ch <- c.highWaterMark
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(
		c.allocatedSlots, prometheus.CounterValue, float64(stats.NumAlloc.Load()))
	ch <- prometheus.MustNewConstMetric(
		c.freedSlots, prometheus.CounterValue, float64(stats.NumFree.Load()))
	ch <- prometheus.MustNewConstMetric(
		c.inuseSlots, prometheus.GaugeValue, float64(stats.InUse()))
	ch <- prometheus.MustNewConstMetric(
		c.regions, prometheus.GaugeValue, float64(stats.NumRegions.Load()))
	ch <- prometheus.MustNewConstMetric(
		c.highWaterMark, prometheus.GaugeValue, float64(stats.HighWaterMark.Load()))
}
