// https://github.com/letitz/yamalloc
//
// Copyright (c) The yamalloc Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package obslog

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letitz/yamalloc/heap"
)

func newObserved() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New(zap.New(core)), logs
}

func TestNewWithNilLoggerIsSilent(t *testing.T) {
	l := New(nil)
	require.NotNil(t, l)

	// Must not panic even though there is nowhere for this to go.
	l.OnExtend(128)
	l.OnOOM(4096)
}

func TestLoggerWiresIntoAllocator(t *testing.T) {
	l, logs := newObserved()

	a := heap.NewAllocator(nil)
	a.SetObserver(l)

	p := a.Allocate(4)
	require.NotZero(t, p)

	// A fresh heap's first allocation both extends the region (via
	// init) and splits the resulting block, so both events should have
	// fired exactly once.
	assert.Equal(t, 1, logs.FilterMessage("region extended").Len())
	assert.Equal(t, 1, logs.FilterMessage("block split").Len())
}

func TestLoggerReportsCoalesce(t *testing.T) {
	l, logs := newObserved()

	a := heap.NewAllocator(nil)
	a.SetObserver(l)

	p1 := a.Allocate(16)
	p2 := a.Allocate(16)
	require.NotZero(t, p1)
	require.NotZero(t, p2)

	a.Release(p1)
	a.Release(p2)

	assert.GreaterOrEqual(t, logs.FilterMessage("blocks coalesced").Len(), 1)
}
