// https://github.com/letitz/yamalloc
//
// Copyright (c) The yamalloc Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Command yamallocstat drives an Allocator through a synthetic sequence of
// allocations, resizes and releases, backed by a real OS region, and
// prints a final bookkeeping snapshot.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"go.uber.org/zap"

	"github.com/letitz/yamalloc/heap"
	"github.com/letitz/yamalloc/obslog"
	"github.com/letitz/yamalloc/sysbrk"
)

func main() {
	n := flag.Int("n", 1000, "number of allocate/release cycles to run")
	minSize := flag.Int("min", 8, "minimum request size in bytes")
	maxSize := flag.Int("max", 4096, "maximum request size in bytes")
	seed := flag.Int64("seed", 1, "PRNG seed")
	verbose := flag.Bool("v", false, "log every extend/split/coalesce event")
	flag.Parse()

	fmt.Println("yamallocstat: first-fit boundary-tag allocator demo")
	fmt.Printf("  cycles=%d sizes=[%d,%d] seed=%d\n\n", *n, *minSize, *maxSize, *seed)

	var log *zap.Logger
	if *verbose {
		log, _ = zap.NewDevelopment()
	} else {
		log = zap.NewNop()
	}
	defer log.Sync()

	ext := sysbrk.NewMmapExtender()
	a := heap.NewAllocator(ext)
	a.SetObserver(obslog.New(log))

	if err := run(a, *n, *minSize, *maxSize, *seed); err != nil {
		fmt.Fprintln(os.Stderr, "yamallocstat:", err)
		os.Exit(1)
	}

	if err := a.Verify(); err != nil {
		fmt.Fprintln(os.Stderr, "yamallocstat: heap corrupted:", err)
		os.Exit(1)
	}

	printStats(a.Stats())
}

// run allocates and releases a shifting working set of buffers, forcing a
// release whenever more than n/2 are live (so at most n/2+1 are live at any
// time), then resizes every surviving allocation once before releasing the
// rest.
func run(a *heap.Allocator, n, minSize, maxSize int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))

	var live []int

	for i := 0; i < n; i++ {
		if len(live) > 0 && (rng.Intn(2) == 0 || len(live) > n/2) {
			idx := rng.Intn(len(live))
			a.Release(live[idx])
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}

		size := minSize + rng.Intn(maxSize-minSize+1)

		p := a.Allocate(size)
		if p == 0 {
			return fmt.Errorf("allocate(%d) failed at cycle %d", size, i)
		}

		live = append(live, p)
	}

	for i, p := range live {
		got := a.Resize(p, minSize)
		if got == 0 {
			return fmt.Errorf("resize(%d) failed", p)
		}
		live[i] = got
	}

	for _, p := range live {
		a.Release(p)
	}

	return nil
}

func printStats(s heap.Stats) {
	fmt.Println("final stats:")
	fmt.Printf("  region:     %d bytes\n", s.RegionBytes)
	fmt.Printf("  free:       %d bytes (%d blocks)\n", s.FreeBytes, s.FreeListLength)
	fmt.Printf("  allocated:  %d bytes\n", s.AllocatedBytes)
	fmt.Printf("  allocs:     %d\n", s.Allocations)
	fmt.Printf("  releases:   %d\n", s.Releases)
	fmt.Printf("  resizes:    %d\n", s.Resizes)
	fmt.Printf("  extends:    %d\n", s.Extends)
	fmt.Printf("  ooms:       %d\n", s.OOMs)
}
