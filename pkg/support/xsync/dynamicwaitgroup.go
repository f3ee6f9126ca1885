// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xsync implements synchronization primitives not covered by the standard library.
package xsync

import (
	"sync"

	"github.com/pkg/errors"
)

// DynamicWaitGroup is a WaitGroup-like synchronization primitive that allows the count
// to be changed (new values added) while someone is waiting for it.
//
// It can also be sealed: after Seal is called, TryAdd refuses to increase the counter. This lets a
// consumer stop accepting new work and wait for the work already accepted.
type DynamicWaitGroup struct {
	mu     sync.Mutex
	cond   *sync.Cond
	count  int64
	sealed bool
}

// NewDynamicWaitGroup creates a new DynamicWaitGroup.
func NewDynamicWaitGroup() *DynamicWaitGroup {
	cwg := &DynamicWaitGroup{}
	cwg.cond = sync.NewCond(&cwg.mu)
	return cwg
}

// Add changes the DynamicWaitGroup counter by the given delta.
// If the counter becomes zero, it broadcasts to all waiting goroutines.
// If the counter would go negative, it panics.
func (cwg *DynamicWaitGroup) Add(delta int) {
	cwg.mu.Lock()
	defer cwg.mu.Unlock()
	cwg.lockedAdd(delta)
}

func (cwg *DynamicWaitGroup) lockedAdd(delta int) {
	cwg.count += int64(delta)
	if cwg.count < 0 {
		panic(errors.Errorf("DynamicWaitGroup: negative counter"))
	}
	if cwg.count == 0 {
		cwg.cond.Broadcast()
	}
}

// TryAdd increments the counter by one and returns true, unless the DynamicWaitGroup has been sealed,
// in which case it returns false and the counter is unchanged.
func (cwg *DynamicWaitGroup) TryAdd() bool {
	cwg.mu.Lock()
	defer cwg.mu.Unlock()
	if cwg.sealed {
		return false
	}
	cwg.lockedAdd(1)
	return true
}

// Done decrements the DynamicWaitGroup counter by one.
func (cwg *DynamicWaitGroup) Done() {
	cwg.Add(-1)
}

// Seal prevents further TryAdd calls from succeeding. Add is not affected.
// It returns false if it was already sealed.
func (cwg *DynamicWaitGroup) Seal() bool {
	cwg.mu.Lock()
	defer cwg.mu.Unlock()
	if cwg.sealed {
		return false
	}
	cwg.sealed = true
	return true
}

// Wait blocks until the DynamicWaitGroup counter is zero.
func (cwg *DynamicWaitGroup) Wait() {
	cwg.mu.Lock()
	defer cwg.mu.Unlock()
	// sync.Cond.Wait() can have spurious wakeups.
	for cwg.count > 0 {
		cwg.cond.Wait()
	}
}
