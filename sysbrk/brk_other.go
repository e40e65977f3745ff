// https://github.com/letitz/yamalloc
//
// Copyright (c) The yamalloc Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !linux

package sysbrk

// MmapExtender falls back to a growable Go slice on platforms with no
// mmap/mremap pair wired up (everything but linux, for now — darwin and
// the BSDs have the syscalls but not yet a binding here). It implements
// heap.Extender with the same semantics as the linux build, just without
// a real page mapping underneath.
type MmapExtender struct {
	region []uint64
}

// NewMmapExtender returns a heap.Extender usable as a drop-in for the
// linux build's real mmap-backed one.
func NewMmapExtender() *MmapExtender {
	return &MmapExtender{}
}

// Grow implements heap.Extender.
func (m *MmapExtender) Grow(deltaWords int) ([]uint64, int, error) {
	oldWords := len(m.region)
	m.region = append(m.region, make([]uint64, deltaWords)...)

	return m.region, oldWords, nil
}

// Close is a no-op on this build: there is no mapping to release.
func (m *MmapExtender) Close() error {
	return nil
}
