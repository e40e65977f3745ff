// https://github.com/letitz/yamalloc
//
// Copyright (c) The yamalloc Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package heap

import "fmt"

// Verify walks the region once and checks every universal invariant
// spec §8 lists:
//
//  1. hdr == ftr for every block.
//  2. the block chain tiles the region exactly.
//  3. no two physically adjacent blocks are both free.
//  4. a block is in the free list iff its allocated bit is clear.
//  5. the free list is strictly ascending by address, bounded by
//     flHead/flTail.
//  6. all block sizes are multiples of 2 and >= minBlock.
//  7. all user-visible (allocated) addresses are double-word aligned.
//
// It is promoted from the manual re-derivation original_source/yatest.c
// performs by hand after every operation in the original test harness.
func (a *Allocator) Verify() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.verifyLocked()
}

func (a *Allocator) verifyLocked() error {
	if a.regionBegin == 0 {
		return nil
	}

	inFreeList := make(map[int]bool)
	for n := a.flHead; n != 0; n = a.flNext(n) {
		inFreeList[n] = true
	}

	var prevFree bool
	freeBlocks := 0
	b := a.regionBegin

	for b < a.regionEnd {
		size := a.blockSize(b)
		ftr := tag(a.arena[ftrIdx(b, size)])

		if ftr.size() != size || ftr.allocated() != a.blockIsAllocated(b) {
			return fmt.Errorf("heap: block %d: hdr/ftr mismatch", b)
		}

		if size%2 != 0 || size < minBlock {
			return fmt.Errorf("heap: block %d: invalid size %d", b, size)
		}

		free := !a.blockIsAllocated(b)

		if free && prevFree {
			return fmt.Errorf("heap: blocks adjacent to %d: two free neighbors not coalesced", b)
		}

		if free != inFreeList[b] {
			return fmt.Errorf("heap: block %d: free-list membership disagrees with allocated bit", b)
		}

		if free {
			freeBlocks++
		}

		if !free && b%2 != 0 {
			return fmt.Errorf("heap: block %d: not double-word aligned", b)
		}

		prevFree = free
		b += int(size)
	}

	if b != a.regionEnd {
		return fmt.Errorf("heap: block chain ends at %d, region ends at %d", b, a.regionEnd)
	}

	if freeBlocks != len(inFreeList) {
		return fmt.Errorf("heap: free list holds %d nodes, region has %d free blocks", len(inFreeList), freeBlocks)
	}

	if err := a.verifyFreeListOrder(); err != nil {
		return err
	}

	return nil
}

func (a *Allocator) verifyFreeListOrder() error {
	if (a.flHead == 0) != (a.flTail == 0) {
		return fmt.Errorf("heap: flHead/flTail nullity disagree")
	}

	prev := 0
	n := a.flHead

	for n != 0 {
		if n <= prev {
			return fmt.Errorf("heap: free list not strictly ascending at %d", n)
		}

		prev = n
		n = a.flNext(n)
	}

	if prev != 0 && prev != a.flTail {
		return fmt.Errorf("heap: flTail %d does not match last node %d", a.flTail, prev)
	}

	return nil
}
