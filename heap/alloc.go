// https://github.com/letitz/yamalloc
//
// Copyright (c) The yamalloc Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package heap

// Allocate returns the address of a block of at least nBytes usable
// bytes, or 0 if nBytes is 0 or the region could not grow to satisfy the
// request.
func (a *Allocator) Allocate(nBytes int) int {
	if nBytes <= 0 {
		return 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.init(); err != nil {
		return 0
	}

	return a.allocateLocked(nBytes)
}

// allocateLocked implements spec §4.4's Allocate decision tree. Callers
// must hold a.mu and must have already initialized the region.
func (a *Allocator) allocateLocked(nBytes int) int {
	k := blockFit(nBytes)

	b := a.flFindFirstFit(k)
	if b == 0 {
		b = a.extend(nBytes)
		if b == 0 {
			return 0
		}

		b = a.flFindFirstFit(k)
		if b == 0 {
			return 0
		}
	}

	// Split policy: split whenever the remainder would be >= minBlock;
	// otherwise the user gets the whole block (internal fragmentation up
	// to minBlock-1 words). blockSplit already encodes that threshold.
	//
	// Note: when a split happens, flOnSplit already substitutes the
	// right half for b at b's former position in the free list — b's own
	// link words are stale at that point, so calling flRemove(b)
	// afterwards (as spec §4.4's prose literally reads) would splice the
	// list using those stale links and orphan the right half. Only one
	// of the two list-surgery operations is correct per call; which one
	// depends on whether the split happened.
	if right := a.blockSplit(b, k); right != 0 {
		a.flOnSplit(b, right)

		if a.obs != nil {
			a.obs.OnSplit(b, right)
		}
	} else {
		a.flRemove(b)
	}

	a.blockSetAllocated(b)
	a.allocations++

	return b
}

// Release returns the block at p to the free list. p == 0, an address
// outside the region, or an address whose block is already free are all
// treated as no-ops (spec §7: best-effort, formally undefined).
func (a *Allocator) Release(p int) {
	if p == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.releaseLocked(p)
}

func (a *Allocator) releaseLocked(p int) {
	if p < a.regionBegin || p >= a.regionEnd {
		return
	}

	if !a.blockIsAllocated(p) {
		return
	}

	a.blockSetFree(p)
	a.flInsert(p)

	// Free list first: the coalesce helpers below use the free list's
	// current links to detect physical adjacency before any tag gets
	// merged; merging tags first would leave the free-list surgery
	// unable to tell which node used to be which.
	a.flCoalesceWithPrev(p)
	a.flCoalesceWithNext(p)

	size := a.blockSize(p)
	merged := a.blockCoalesce(p)

	a.releases++
	if a.obs != nil && a.blockSize(merged) != size {
		a.obs.OnCoalesce(merged, a.blockSize(merged))
	}
}

// ZeroAllocate is the equivalent of Allocate(count*size) followed by
// zeroing every payload word of the returned block — the block's four tag
// and link words are never user-visible and are left untouched.
func (a *Allocator) ZeroAllocate(count, size int) int {
	p := a.Allocate(count * size)
	if p == 0 {
		return 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	payloadWords := int(a.blockSize(p)) - 4
	for i := 0; i < payloadWords; i++ {
		a.arena[p+i] = 0
	}

	return p
}

// Resize implements spec §4.4's Resize decision tree: p == 0 behaves as
// Allocate(n), n == 0 behaves as Release(p), a same-fit request is a
// no-op, a shrink splits off and frees the remainder, a grow first tries
// to consume a free right neighbor (growing the region first if p is the
// last block), and otherwise falls back to allocate-copy-release. The
// returned address may equal p or differ; on differ, p is no longer
// valid.
func (a *Allocator) Resize(p int, n int) int {
	if p == 0 {
		return a.Allocate(n)
	}

	if n == 0 {
		a.Release(p)
		return 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if p < a.regionBegin || p >= a.regionEnd || !a.blockIsAllocated(p) {
		return 0
	}

	k := blockFit(n)
	s := a.blockSize(p)

	if k == s {
		return p
	}

	if k < s {
		return a.resizeShrink(p, k)
	}

	return a.resizeGrow(p, n, k, s)
}

func (a *Allocator) resizeShrink(p int, k uint64) int {
	if right := a.blockSplit(p, k); right != 0 {
		a.blockSetFree(right)
		a.flInsert(right)
		a.flCoalesceWithNext(right)

		size := a.blockSize(right)
		merged := a.blockCoalesceRight(right)
		if a.obs != nil && a.blockSize(merged) != size {
			a.obs.OnCoalesce(merged, a.blockSize(merged))
		}
	}

	a.blockSetAllocated(p)
	a.resizes++

	return p
}

func (a *Allocator) resizeGrow(p int, n int, k uint64, s uint64) int {
	next := p + int(s)

	nextFree := next < a.regionEnd && !a.blockIsAllocated(next)

	if nextFree && s+a.blockSize(next) >= k {
		merged := a.growInPlaceFrom(p, k, next)
		a.resizes++

		return merged
	}

	atEnd := next >= a.regionEnd
	if !atEnd && nextFree {
		atEnd = next+int(a.blockSize(next)) == a.regionEnd
	}

	if atEnd {
		if tail := a.extend(n); tail != 0 {
			merged := a.growInPlaceFrom(p, k, tail)
			a.resizes++

			return merged
		}
	}

	return a.resizeRelocate(p, n, s)
}

// resizeRelocate allocates a fresh block of the requested size, copies
// the entire old payload (S-4 words — not n bytes, per spec §4.4), frees
// the old block and returns the new address.
func (a *Allocator) resizeRelocate(p int, n int, s uint64) int {
	newBase := a.allocateLocked(n)
	if newBase == 0 {
		return 0
	}

	copyWords := int(s) - 4
	copy(a.arena[newBase:newBase+copyWords], a.arena[p:p+copyWords])

	a.releaseLocked(p)
	a.resizes++

	return newBase
}

// growInPlaceFrom consumes (at least) the deficit between k and p's
// current size from the free block at neighbor — p's immediate physical
// right neighbor, already known to be large enough together with p to
// cover k words. If the neighbor has more than the deficit to spare (by
// at least minBlock), the remainder is split off and kept in the free
// list; otherwise the whole neighbor is absorbed (internal
// fragmentation, per the split policy of spec §4.5). The consumed
// portion is then merged into p tag-wise and p is marked allocated.
func (a *Allocator) growInPlaceFrom(p int, k uint64, neighbor int) int {
	deficit := k - a.blockSize(p)
	neighborSize := a.blockSize(neighbor)

	a.flRemove(neighbor)

	if neighborSize-deficit >= minBlock {
		remSize := neighborSize - deficit
		a.blockInit(neighbor, deficit)

		rem := neighbor + int(deficit)
		a.blockInit(rem, remSize)
		a.flInsert(rem)
	}

	a.blockSetFree(neighbor)
	merged := a.blockCoalesceRight(p)
	a.blockSetAllocated(merged)

	return merged
}

// Allocate is the equivalent of Allocator.Allocate on the default
// instance.
func Allocate(nBytes int) int {
	return Default().Allocate(nBytes)
}

// Release is the equivalent of Allocator.Release on the default instance.
func Release(p int) {
	Default().Release(p)
}

// ZeroAllocate is the equivalent of Allocator.ZeroAllocate on the default
// instance.
func ZeroAllocate(count, size int) int {
	return Default().ZeroAllocate(count, size)
}

// Resize is the equivalent of Allocator.Resize on the default instance.
func Resize(p, n int) int {
	return Default().Resize(p, n)
}
