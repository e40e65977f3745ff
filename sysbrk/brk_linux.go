// https://github.com/letitz/yamalloc
//
// Copyright (c) The yamalloc Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build linux

// Package sysbrk implements heap.Extender against real OS memory, standing
// in for the "program-break" style syscall spec.md describes as the
// allocator's one external collaborator.
package sysbrk

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/letitz/yamalloc/heap"
)

const wordSize = 8

// MmapExtender grows the region with an anonymous mmap, then widens it in
// place with mremap as the allocator demands more — mremap is free to
// relocate the mapping, which is exactly why heap.Extender hands back the
// whole backing slice rather than a fixed base address.
type MmapExtender struct {
	data []byte
}

// NewMmapExtender returns a heap.Extender backed by anonymous, private
// pages. The returned value's zero state (before the first Grow) holds no
// mapping at all.
func NewMmapExtender() *MmapExtender {
	return &MmapExtender{}
}

// Grow implements heap.Extender.
func (m *MmapExtender) Grow(deltaWords int) ([]uint64, int, error) {
	if deltaWords <= 0 {
		return m.words(), len(m.data) / wordSize, nil
	}

	oldWords := len(m.data) / wordSize
	newBytes := (oldWords + deltaWords) * wordSize

	var data []byte
	var err error

	if m.data == nil {
		data, err = unix.Mmap(-1, 0, newBytes, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	} else {
		data, err = unix.Mremap(m.data, newBytes, unix.MREMAP_MAYMOVE)
	}

	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", heap.ErrOutOfMemory, err)
	}

	m.data = data

	return m.words(), oldWords, nil
}

// Close unmaps the backing region. The Extender must not be used
// afterwards.
func (m *MmapExtender) Close() error {
	if m.data == nil {
		return nil
	}

	err := unix.Munmap(m.data)
	m.data = nil

	return err
}

// words reinterprets the byte-addressed mapping as the word slice
// heap.Extender deals in. mmap'd pages are at minimum page-aligned, which
// satisfies uint64's 8-byte alignment requirement on every architecture
// this package supports.
func (m *MmapExtender) words() []uint64 {
	if len(m.data) == 0 {
		return nil
	}

	return unsafe.Slice((*uint64)(unsafe.Pointer(&m.data[0])), len(m.data)/wordSize)
}
