// https://github.com/letitz/yamalloc
//
// Copyright (c) The yamalloc Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package heap implements a general-purpose dynamic memory allocator over
// a contiguous, monotonically growable arena: boundary-tag blocks, an
// explicit doubly-linked free list threaded through free-block payloads,
// first-fit placement, and eager coalescing.
//
// The four process-wide globals a C implementation would carry
// (region_begin, region_end, fl_head, fl_tail) are bundled into a single
// Allocator, with a package-level default instance created lazily —
// every public entry point is a method on *Allocator, and free functions
// (Allocate, Release, ZeroAllocate, Resize) forward to that instance.
package heap

import "sync"

// Observer receives structured events from an Allocator's internal
// operations. It is nil-safe: an Allocator with no Observer set pays
// nothing extra on its hot path. See package obslog for a
// zap-backed implementation.
type Observer interface {
	OnExtend(deltaWords int)
	OnSplit(left, right int)
	OnCoalesce(base int, mergedSize uint64)
	OnOOM(nBytes int)
}

// Stats is a point-in-time snapshot of an Allocator's bookkeeping,
// cheap to compute (it walks the free list, not the block chain) — see
// package metrics for a Prometheus
// wrapper around it.
type Stats struct {
	RegionBytes    int
	FreeBytes      int
	AllocatedBytes int
	FreeListLength int
	Allocations    uint64
	Releases       uint64
	Resizes        uint64
	Extends        uint64
	OOMs           uint64
}

// Allocator owns a single managed region. The zero value is not usable;
// construct one with NewAllocator.
type Allocator struct {
	mu sync.Mutex

	arena       []uint64
	regionBegin int
	regionEnd   int
	flHead      int
	flTail      int

	ext Extender
	obs Observer

	allocations uint64
	releases    uint64
	resizes     uint64
	extends     uint64
	ooms        uint64
}

// NewAllocator constructs an Allocator backed by ext. A nil ext uses the
// default in-process, append-driven backing store (see growSliceExtender),
// which needs no OS support and is what heap's own tests use.
func NewAllocator(ext Extender) *Allocator {
	if ext == nil {
		ext = &growSliceExtender{}
	}

	return &Allocator{ext: ext}
}

// SetObserver installs an Observer, replacing any previously set one. A
// nil Observer (the default) disables event reporting entirely.
func (a *Allocator) SetObserver(obs Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.obs = obs
}

// Start returns the region's base address (a word index into the
// allocator's backing store), or 0 if the region has not been
// initialized yet.
func (a *Allocator) Start() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.regionBegin
}

// End returns one past the last word belonging to any block in the
// region.
func (a *Allocator) End() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.regionEnd
}

// Size returns the region's current size in words.
func (a *Allocator) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.regionEnd - a.regionBegin
}

// Stats returns a snapshot of the allocator's bookkeeping.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.statsLocked()
}

func (a *Allocator) statsLocked() Stats {
	s := Stats{
		RegionBytes: (a.regionEnd - a.regionBegin) * wordSize,
		Allocations: a.allocations,
		Releases:    a.releases,
		Resizes:     a.resizes,
		Extends:     a.extends,
		OOMs:        a.ooms,
	}

	for n := a.flHead; n != 0; n = a.flNext(n) {
		s.FreeBytes += int(a.blockSize(n)) * wordSize
		s.FreeListLength++
	}

	s.AllocatedBytes = s.RegionBytes - s.FreeBytes

	return s
}

// init initializes the region on first use, per spec §4.3. Callers must
// hold a.mu. It is idempotent: a non-zero regionBegin means the region is
// already initialized.
func (a *Allocator) init() error {
	if a.regionBegin != 0 {
		return nil
	}

	s := blockFit(chunkBytes)
	total := 2 + int(s)

	region, oldEnd, err := a.ext.Grow(total)
	if err != nil {
		a.ooms++
		if a.obs != nil {
			a.obs.OnOOM(chunkBytes)
		}
		return err
	}

	a.arena = region
	a.regionBegin = oldEnd + 2
	a.regionEnd = a.regionBegin + int(s)

	a.blockInit(a.regionBegin, s)
	a.flHead = 0
	a.flTail = 0
	a.flInsert(a.regionBegin)

	a.extends++
	if a.obs != nil {
		a.obs.OnExtend(int(s))
	}

	return nil
}

// extend grows the region to satisfy a request of nBytes, per spec §4.3.
// It returns the resulting free block covering (at least) the request, or
// 0 on OOM. Callers must hold a.mu.
func (a *Allocator) extend(nBytes int) int {
	remaining := nBytes
	tailBase := 0

	if a.flTail != 0 && a.flTail+int(a.blockSize(a.flTail)) == a.regionEnd {
		tailBase = a.flTail
		tailUsableBytes := (int(a.blockSize(tailBase)) - 4) * wordSize
		remaining -= tailUsableBytes

		if remaining <= 0 {
			return tailBase
		}
	}

	roundedBytes := roundUpChunk(remaining)
	s := blockFit(roundedBytes)

	region, oldEnd, err := a.ext.Grow(int(s))
	if err != nil {
		a.ooms++
		if a.obs != nil {
			a.obs.OnOOM(nBytes)
		}
		return 0
	}

	a.arena = region
	newBase := oldEnd
	a.regionEnd = oldEnd + int(s)

	a.blockInit(newBase, s)
	a.flInsert(newBase)

	a.extends++
	if a.obs != nil {
		a.obs.OnExtend(int(s))
	}

	// Free list before tags: flCoalesceWithPrev must observe the
	// pre-merge sizes to locate the physical left neighbor via the free
	// list, so it must run before blockCoalesceLeft overwrites tags.
	a.flCoalesceWithPrev(newBase)
	merged := a.blockCoalesceLeft(newBase)

	if merged != newBase && a.obs != nil {
		a.obs.OnCoalesce(merged, a.blockSize(merged))
	}

	return merged
}

func roundUpChunk(n int) int {
	if n <= 0 {
		return chunkBytes
	}

	return ((n + chunkBytes - 1) / chunkBytes) * chunkBytes
}

var (
	defaultOnce sync.Once
	defaultInst *Allocator
)

// Default returns the process-wide default Allocator instance, creating
// it (with the default, OS-independent Extender) on first use.
func Default() *Allocator {
	defaultOnce.Do(func() {
		defaultInst = NewAllocator(nil)
	})

	return defaultInst
}
