// https://github.com/letitz/yamalloc
//
// Copyright (c) The yamalloc Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package obslog implements heap.Observer with structured, leveled
// logging via go.uber.org/zap.
package obslog

import (
	"go.uber.org/zap"

	"github.com/letitz/yamalloc/heap"
)

// Logger is a heap.Observer that emits one structured log entry per
// event, at a verbosity matching how often the event fires in practice:
// splits and coalesces are per-call noise worth Debug, region growth and
// out-of-memory are operationally interesting and logged at Info/Warn.
type Logger struct {
	log *zap.Logger
}

var _ heap.Observer = (*Logger)(nil)

// New wraps log as a heap.Observer. A nil log uses zap.NewNop, so
// New(nil) is a safe, silent default.
func New(log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}

	return &Logger{log: log.Named("yamalloc")}
}

// OnExtend implements heap.Observer.
func (l *Logger) OnExtend(deltaWords int) {
	l.log.Info("region extended",
		zap.Int("delta_words", deltaWords),
		zap.Int64("delta_bytes", int64(deltaWords)*8),
	)
}

// OnSplit implements heap.Observer.
func (l *Logger) OnSplit(left, right int) {
	l.log.Debug("block split",
		zap.Int("left", left),
		zap.Int("right", right),
	)
}

// OnCoalesce implements heap.Observer.
func (l *Logger) OnCoalesce(base int, mergedSize uint64) {
	l.log.Debug("blocks coalesced",
		zap.Int("base", base),
		zap.Uint64("merged_size_words", mergedSize),
	)
}

// OnOOM implements heap.Observer.
func (l *Logger) OnOOM(nBytes int) {
	l.log.Warn("out of memory",
		zap.Int("requested_bytes", nBytes),
	)
}
