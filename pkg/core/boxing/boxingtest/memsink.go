// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package boxingtest holds test utilities for code using the boxing package.
package boxingtest

import (
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/xy548/oneflow/pkg/core/boxing"
)

// MemorySink is a boxing.Sink that keeps the lines in memory.
//
// Appended lines are pending until Flush, which moves them to the flushed lines. It's safe for concurrent use,
// so tests can inspect it while a Collector writes to it.
type MemorySink struct {
	mu                 sync.Mutex
	pending, flushed   []string
	numFlush, numClose int

	// AppendErr, FlushErr and CloseErr, if set, are returned by the corresponding methods.
	AppendErr, FlushErr, CloseErr error
}

var _ boxing.Sink = (*MemorySink)(nil)

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append implements boxing.Sink.
func (s *MemorySink) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	if s.numClose > 0 {
		return errors.New("MemorySink.Append() called after Close()")
	}
	s.pending = append(s.pending, line)
	return nil
}

// Flush implements boxing.Sink.
func (s *MemorySink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numFlush++
	if s.FlushErr != nil {
		return s.FlushErr
	}
	s.flushed = append(s.flushed, s.pending...)
	s.pending = nil
	return nil
}

// Close implements boxing.Sink. It flushes first.
func (s *MemorySink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numClose++
	return s.CloseErr
}

// Lines returns a copy of the flushed lines.
func (s *MemorySink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.flushed)
}

// Pending returns a copy of the lines appended but not yet flushed.
func (s *MemorySink) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pending)
}

// Contents returns the concatenation of the flushed lines.
func (s *MemorySink) Contents() string {
	return strings.Join(s.Lines(), "")
}

// NumFlush returns the number of times Flush was called (including from Close).
func (s *MemorySink) NumFlush() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numFlush
}

// NumClose returns the number of times Close was called.
func (s *MemorySink) NumClose() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numClose
}
