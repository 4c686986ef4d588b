// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package promalloc exports the memory held by longmap allocators as
// Prometheus metrics.
package promalloc

import (
	"errors"

	"github.com/cockroachdb/longmap"
	"github.com/prometheus/client_golang/prometheus"
)

// Allocator wraps a longmap.Allocator and records its activity. It is safe
// for concurrent use if the wrapped allocator is.
type Allocator struct {
	alloc longmap.Allocator

	// Bytes is the number of bytes currently allocated.
	Bytes prometheus.Gauge
	// Blocks is the number of blocks currently allocated.
	Blocks prometheus.Gauge
	// Allocs counts successful allocations.
	Allocs prometheus.Counter
	// Failures counts failed allocations, labeled by whether the failure was
	// an out of memory condition.
	Failures *prometheus.CounterVec
}

var _ longmap.Allocator = (*Allocator)(nil)
var _ prometheus.Collector = (*Allocator)(nil)

// New wraps alloc. The metric names are prefixed with namespace, e.g.
// "<namespace>_longmap_allocated_bytes". A nil alloc means
// longmap.HeapAllocator.
func New(alloc longmap.Allocator, namespace string) *Allocator {
	if alloc == nil {
		alloc = longmap.HeapAllocator{}
	}
	return &Allocator{
		alloc: alloc,
		Bytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "longmap",
			Name:      "allocated_bytes",
			Help:      "Bytes currently allocated for longmap tables",
		}),
		Blocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "longmap",
			Name:      "allocated_blocks",
			Help:      "Memory blocks currently allocated for longmap tables",
		}),
		Allocs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "longmap",
			Name:      "allocations_total",
			Help:      "Total successful block allocations",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "longmap",
			Name:      "allocation_failures_total",
			Help:      "Total failed block allocations",
		}, []string{"oom"}),
	}
}

// Allocate implements longmap.Allocator.
func (a *Allocator) Allocate(size uint64) (longmap.Block, error) {
	b, err := a.alloc.Allocate(size)
	if err != nil {
		oom := "false"
		if errors.Is(err, longmap.ErrOutOfMemory) {
			oom = "true"
		}
		a.Failures.WithLabelValues(oom).Inc()
		return b, err
	}
	a.Allocs.Inc()
	a.Blocks.Inc()
	a.Bytes.Add(float64(size))
	return b, nil
}

// Free implements longmap.Allocator.
func (a *Allocator) Free(b longmap.Block) {
	size := b.Size()
	a.alloc.Free(b)
	a.Blocks.Dec()
	a.Bytes.Sub(float64(size))
}

// Describe implements prometheus.Collector.
func (a *Allocator) Describe(ch chan<- *prometheus.Desc) {
	a.Bytes.Describe(ch)
	a.Blocks.Describe(ch)
	a.Allocs.Describe(ch)
	a.Failures.Describe(ch)
}

// Collect implements prometheus.Collector.
func (a *Allocator) Collect(ch chan<- prometheus.Metric) {
	a.Bytes.Collect(ch)
	a.Blocks.Collect(ch)
	a.Allocs.Collect(ch)
	a.Failures.Collect(ch)
}
