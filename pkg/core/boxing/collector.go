// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package boxing

import (
	"context"

	"github.com/pkg/errors"
	"github.com/xy548/oneflow/pkg/support/xsync"
	"k8s.io/klog/v2"
)

// ErrCollectorClosed is returned by Collector.Submit after Collector.Close was called.
var ErrCollectorClosed = errors.New("boxing collector is closed")

// Collector funnels records from concurrent producers into a single Log.
//
// One goroutine owns the Log and writes the records in the order they are received. The order across
// producers is not defined, but every record accepted by Submit is written exactly once.
type Collector struct {
	log      *Log
	records  chan *Record
	inFlight *xsync.DynamicWaitGroup
	done     *xsync.Latch

	// err is the first error returned by the Log, only read after done is triggered.
	err error
}

// NewCollector starts a Collector writing to log. bufferSize is the number of records that can be queued
// before Submit blocks.
//
// The Collector takes ownership of the log: it's closed by Collector.Close.
func NewCollector(log *Log, bufferSize int) *Collector {
	if bufferSize < 0 {
		bufferSize = 0
	}
	c := &Collector{
		log:      log,
		records:  make(chan *Record, bufferSize),
		inFlight: xsync.NewDynamicWaitGroup(),
		done:     xsync.NewLatch(),
	}
	go c.run()
	return c
}

func (c *Collector) run() {
	defer c.done.Trigger()
	for r := range c.records {
		if c.err != nil {
			// Keep draining, so producers don't block.
			continue
		}
		if err := c.log.Log(r); err != nil {
			klog.Errorf("boxing collector stopped writing: %+v", err)
			c.err = err
		}
	}
	if err := c.log.Close(); err != nil && c.err == nil {
		c.err = err
	}
}

// Submit queues the record to be logged. It's safe to call concurrently.
//
// It blocks while the queue is full, and returns the context error if ctx is done first.
// It returns ErrCollectorClosed if Close was already called.
func (c *Collector) Submit(ctx context.Context, r *Record) error {
	if !c.inFlight.TryAdd() {
		return ErrCollectorClosed
	}
	defer c.inFlight.Done()
	select {
	case c.records <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting records, waits for the pending Submit calls, writes all queued records and closes
// the Log.
//
// It returns the first error returned while writing or closing the Log. Calling Close more than once is fine,
// it returns the same error.
func (c *Collector) Close() error {
	if c.inFlight.Seal() {
		c.inFlight.Wait()
		close(c.records)
	}
	c.done.Wait()
	return c.err
}

// NumRecords returns the number of records written, once the Collector is closed. Before that it returns 0.
func (c *Collector) NumRecords() int {
	if !c.done.Test() {
		return 0
	}
	return c.log.NumRecords()
}
