// https://github.com/letitz/yamalloc
//
// Copyright (c) The yamalloc Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package heap

import "errors"

// ErrOutOfMemory is returned by an Extender when the host boundary refuses
// to grow the region further.
var ErrOutOfMemory = errors.New("heap: out of memory")

// Extender is the one external collaborator spec §6.1 describes: a
// "program-break" style primitive that grows the managed region by a
// requested number of words and hands back the resulting backing store.
//
// Because the free list stores offsets into the region rather than raw
// pointers, the backing slice returned by Grow is free to relocate — an
// append-driven fallback and a real mmap/mremap-backed implementation
// (see package sysbrk) are equally valid Extenders.
type Extender interface {
	// Grow extends the backing store by deltaWords words. It returns the
	// (possibly relocated) word slice for the whole region, the previous
	// length in words (the region's old end), and a non-nil err if the
	// request could not be satisfied — in which case no growth happened
	// and the previous backing store remains valid.
	Grow(deltaWords int) (region []uint64, oldEnd int, err error)
}

// growSliceExtender is the default Extender: it backs the region with a
// plain Go slice that grows via append. It never fails. This is what
// heap's own tests use, and what a caller gets from NewAllocator with a
// nil Extender — it needs no OS support at all.
type growSliceExtender struct {
	region []uint64
}

func (g *growSliceExtender) Grow(deltaWords int) ([]uint64, int, error) {
	oldEnd := len(g.region)
	g.region = append(g.region, make([]uint64, deltaWords)...)

	return g.region, oldEnd, nil
}
