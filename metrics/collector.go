// https://github.com/letitz/yamalloc
//
// Copyright (c) The yamalloc Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package metrics exposes a heap.Allocator's bookkeeping as Prometheus
// metrics, following the instrumentation pattern
// buildbarn/bb-storage's partitioningBlockAllocator uses around its own
// allocate/release/get calls.
package metrics

import (
	"sync"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/letitz/yamalloc/heap"
)

var (
	allocationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "yamalloc",
		Name:      "allocations_total",
		Help:      "Number of blocks handed out, by Allocate() or by a relocating Resize().",
	})
	releasesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "yamalloc",
		Name:      "releases_total",
		Help:      "Number of blocks freed, by Release() or by Resize() (zero size, or the old block after relocating).",
	})
	resizesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "yamalloc",
		Name:      "resizes_total",
		Help:      "Number of Resize() calls that shrank, grew in place or relocated a block.",
	})
	extendsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "yamalloc",
		Name:      "region_extends_total",
		Help:      "Number of times the region grew via the Extender.",
	})
	oomsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "yamalloc",
		Name:      "out_of_memory_total",
		Help:      "Number of times the Extender failed to satisfy a growth request.",
	})
)

var registerCountersOnce sync.Once

func registerCounters() {
	registerCountersOnce.Do(func() {
		prometheus.MustRegister(allocationsTotal, releasesTotal, resizesTotal, extendsTotal, oomsTotal)
	})
}

var (
	regionBytesDesc = prometheus.NewDesc(
		"yamalloc_region_bytes",
		"Total size of the managed region, in bytes.",
		nil, nil)
	freeBytesDesc = prometheus.NewDesc(
		"yamalloc_free_bytes",
		"Bytes currently sitting on the free list.",
		nil, nil)
	allocatedBytesDesc = prometheus.NewDesc(
		"yamalloc_allocated_bytes",
		"Bytes currently held by live allocations.",
		nil, nil)
	freeListLengthDesc = prometheus.NewDesc(
		"yamalloc_free_list_length",
		"Number of blocks currently on the free list.",
		nil, nil)
)

// Collector adapts an *heap.Allocator's Stats snapshot to
// prometheus.Collector. Register it once per Allocator instance you want
// observed.
type Collector struct {
	alloc *heap.Allocator
}

// NewCollector returns a Collector over alloc. Callers still need to
// prometheus.Register it.
func NewCollector(alloc *heap.Allocator) *Collector {
	return &Collector{alloc: alloc}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- regionBytesDesc
	ch <- freeBytesDesc
	ch <- allocatedBytesDesc
	ch <- freeListLengthDesc
}

// Collect implements prometheus.Collector. It reads a single Stats
// snapshot, emits the four gauges it carries on ch, and adds the deltas to
// the package-level counters. The counters are not sent on ch: they are
// registered with the default Prometheus registry on first Collect, once
// per process, so that constructing a Collector never double-registers
// across Allocator instances sharing a process.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	registerCounters()

	s := c.alloc.Stats()

	ch <- prometheus.MustNewConstMetric(regionBytesDesc, prometheus.GaugeValue, float64(s.RegionBytes))
	ch <- prometheus.MustNewConstMetric(freeBytesDesc, prometheus.GaugeValue, float64(s.FreeBytes))
	ch <- prometheus.MustNewConstMetric(allocatedBytesDesc, prometheus.GaugeValue, float64(s.AllocatedBytes))
	ch <- prometheus.MustNewConstMetric(freeListLengthDesc, prometheus.GaugeValue, float64(s.FreeListLength))

	setCounter(allocationsTotal, s.Allocations)
	setCounter(releasesTotal, s.Releases)
	setCounter(resizesTotal, s.Resizes)
	setCounter(extendsTotal, s.Extends)
	setCounter(oomsTotal, s.OOMs)
}

// setCounter brings a monotonic prometheus.Counter in line with an
// absolute count read out of a Stats snapshot. Counters only grow, and
// Stats' fields only grow too; only a positive difference is added, so a
// zero or negative difference leaves the counter unchanged.
func setCounter(c prometheus.Counter, total uint64) {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return
	}

	if delta := float64(total) - m.GetCounter().GetValue(); delta > 0 {
		c.Add(delta)
	}
}
