// https://github.com/letitz/yamalloc
//
// Copyright (c) The yamalloc Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sysbrk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letitz/yamalloc/heap"
)

func TestMmapExtenderGrowsAndPreservesContent(t *testing.T) {
	m := NewMmapExtender()
	defer m.Close()

	region, oldEnd, err := m.Grow(128)
	require.NoError(t, err)
	assert.Equal(t, 0, oldEnd)
	assert.Len(t, region, 128)

	region[0] = 0xdeadbeef
	region[127] = 0xfeedface

	region, oldEnd, err = m.Grow(64)
	require.NoError(t, err)
	assert.Equal(t, 128, oldEnd)
	assert.Len(t, region, 192)
	assert.Equal(t, uint64(0xdeadbeef), region[0])
	assert.Equal(t, uint64(0xfeedface), region[127])
}

func TestMmapExtenderSatisfiesHeapExtender(t *testing.T) {
	var _ heap.Extender = NewMmapExtender()

	a := heap.NewAllocator(NewMmapExtender())

	p := a.Allocate(64)
	require.NotZero(t, p)
	require.NoError(t, a.Verify())
}
