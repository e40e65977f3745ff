// https://github.com/letitz/yamalloc
//
// Copyright (c) The yamalloc Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 1 (spec §8): fresh heap, allocate(4). block_fit(4) = 6. The
// initial free block splits into 6 + the remainder.
func TestAllocateFreshHeap(t *testing.T) {
	a := NewAllocator(nil)

	p := a.Allocate(4)
	require.NotEqual(t, 0, p)

	assert.Equal(t, uint64(minBlock), a.blockSize(p))
	assert.True(t, a.blockIsAllocated(p))
	assert.Equal(t, 0, p%2, "address must be double-word aligned")

	require.NoError(t, a.Verify())

	require.NotZero(t, a.flHead)
	assert.Equal(t, a.flHead, a.flTail)

	initialFull := blockFit(chunkBytes)
	assert.Equal(t, initialFull-minBlock, a.blockSize(a.flHead))
}

// Scenario 2: two successive allocate(10) calls each take minBlock words;
// the free list shrinks accordingly and the two blocks are distinct.
func TestAllocateTwoSuccessive(t *testing.T) {
	a := NewAllocator(nil)

	p1 := a.Allocate(10)
	p2 := a.Allocate(10)

	require.NotZero(t, p1)
	require.NotZero(t, p2)
	assert.NotEqual(t, p1, p2)

	initialFull := blockFit(chunkBytes)
	want := initialFull - 2*minBlock

	require.NoError(t, a.Verify())
	assert.Equal(t, want, a.blockSize(a.flHead))
}

// Scenario 3: an allocation larger than the remaining free space forces a
// region extension; the new tail coalesces with the trailing free block.
func TestAllocateForcesExtend(t *testing.T) {
	a := NewAllocator(nil)

	// Consume almost all of the initial chunk first, leaving the tail
	// too small for a 10000-byte request.
	p := a.Allocate(8000)
	require.NotZero(t, p)

	before := a.Stats()

	big := a.Allocate(10000)
	require.NotZero(t, big)

	require.NoError(t, a.Verify())

	after := a.Stats()
	assert.Greater(t, after.Extends, before.Extends)
	assert.Greater(t, after.RegionBytes, before.RegionBytes)

	k := blockFit(10000)
	assert.Equal(t, k, a.blockSize(big))
}

// Scenario 4: releasing the middle of three contiguous allocated blocks
// adds exactly one free-list node; neither neighbor is free, so no
// coalesce fires.
func TestReleaseMiddleNoCoalesce(t *testing.T) {
	a := NewAllocator(nil)

	p1 := a.Allocate(16)
	p2 := a.Allocate(16)
	p3 := a.Allocate(16)

	require.NotZero(t, p1)
	require.NotZero(t, p2)
	require.NotZero(t, p3)

	before := a.Stats()

	a.Release(p2)

	require.NoError(t, a.Verify())

	after := a.Stats()
	assert.Equal(t, before.FreeListLength+1, after.FreeListLength)
	assert.False(t, a.blockIsAllocated(p2))
	assert.True(t, a.blockIsAllocated(p1))
	assert.True(t, a.blockIsAllocated(p3))
}

// Scenario 5: releasing a block whose both physical neighbors are free
// merges all three into a single free block, net free-list count -1.
func TestReleaseBothNeighborsFree(t *testing.T) {
	a := NewAllocator(nil)

	p1 := a.Allocate(16)
	p2 := a.Allocate(16)
	p3 := a.Allocate(16)

	a.Release(p1)
	a.Release(p3)

	before := a.Stats()
	require.Equal(t, 2, before.FreeListLength)

	a.Release(p2)

	require.NoError(t, a.Verify())

	after := a.Stats()
	assert.Equal(t, 1, after.FreeListLength)
}

// release(allocate(n)) leaves a freshly initialized heap observably
// equivalent to its pre-allocate state.
func TestReleaseUndoesAllocate(t *testing.T) {
	a := newTestAllocator(t)

	before := a.Stats()

	p := a.Allocate(123)
	require.NotZero(t, p)

	a.Release(p)

	after := a.Stats()
	assert.Equal(t, before.FreeBytes, after.FreeBytes)
	assert.Equal(t, before.FreeListLength, after.FreeListLength)

	require.NoError(t, a.Verify())
}

func TestResizeSameSizeIsNoop(t *testing.T) {
	a := NewAllocator(nil)

	p := a.Allocate(40)
	require.NotZero(t, p)

	a.arena[p] = 0xdeadbeef

	got := a.Resize(p, 40)
	assert.Equal(t, p, got)
	assert.Equal(t, uint64(0xdeadbeef), a.arena[p])
}

func TestResizeShrinkSplitsAndFrees(t *testing.T) {
	a := NewAllocator(nil)

	p := a.Allocate(200)
	require.NotZero(t, p)

	before := a.Stats()

	got := a.Resize(p, 8)
	require.Equal(t, p, got)

	require.NoError(t, a.Verify())

	after := a.Stats()
	assert.Greater(t, after.FreeBytes, before.FreeBytes)
}

func TestResizeGrowPreservesPrefix(t *testing.T) {
	a := NewAllocator(nil)

	p := a.Allocate(32)
	require.NotZero(t, p)

	payload := a.payloadSlice(p)
	for i := range payload {
		payload[i] = uint64(i + 1)
	}

	got := a.Resize(p, 400)
	require.NotZero(t, got)

	require.NoError(t, a.Verify())

	grown := a.payloadSlice(got)
	for i := range payload {
		assert.Equal(t, payload[i], grown[i], "word %d not preserved", i)
	}
}

func TestResizeToZeroReleases(t *testing.T) {
	a := NewAllocator(nil)

	p := a.Allocate(40)
	require.NotZero(t, p)

	got := a.Resize(p, 0)
	assert.Equal(t, 0, got)
	assert.False(t, a.blockIsAllocated(p))

	require.NoError(t, a.Verify())
}

func TestResizeNilBehavesAsAllocate(t *testing.T) {
	a := NewAllocator(nil)

	p := a.Resize(0, 16)
	require.NotZero(t, p)
	assert.True(t, a.blockIsAllocated(p))
}

func TestAllocateZeroReturnsNull(t *testing.T) {
	a := NewAllocator(nil)

	assert.Equal(t, 0, a.Allocate(0))
}

func TestReleaseInvalidPointersAreNoop(t *testing.T) {
	a := NewAllocator(nil)

	p := a.Allocate(16)
	require.NotZero(t, p)

	a.Release(0) // no-op
	a.Release(p - 1000000)
	a.Release(p + 1000000)
	a.Release(p) // frees it
	a.Release(p) // already free: no-op, must not corrupt

	require.NoError(t, a.Verify())
}

func TestZeroAllocateClearsPayload(t *testing.T) {
	a := NewAllocator(nil)

	p := a.Allocate(64)
	require.NotZero(t, p)

	payload := a.payloadSlice(p)
	for i := range payload {
		payload[i] = 0xffffffffffffffff
	}

	a.Release(p)

	q := a.ZeroAllocate(8, 8)
	require.NotZero(t, q)

	for _, w := range a.payloadSlice(q) {
		assert.Equal(t, uint64(0), w)
	}
}

// payloadSlice is a test helper exposing a block's usable payload words.
func (a *Allocator) payloadSlice(base int) []uint64 {
	size := a.blockSize(base)
	return a.arena[base : base+int(size)-4]
}
