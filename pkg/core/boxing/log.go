// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package boxing

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrClosed is returned by Log.Log after the log has been closed.
var ErrClosed = errors.New("boxing log is closed")

// Log writes boxing Records, one CSV line each, to a Sink.
//
// The Header is written once, when the Log is created, before any record. Close flushes and closes the sink;
// a Log that is garbage collected without being closed is flushed (but errors can only be logged). The garbage
// collector doesn't run on os.Exit or on a crash, so callers should `defer l.Close()`, and use
// WithFlushEveryLine if the lines written so far must survive a crash.
//
// Log is not safe for concurrent use, see Collector.
type Log struct {
	sink       Sink
	config     logConfig
	numRecords int
	closed     bool

	// cleanup flushes the sink if the Log is garbage collected before Close.
	cleanup runtime.Cleanup
}

type logConfig struct {
	tee            bool
	flushEveryLine bool
	validate       bool
}

// Option configures a Log.
type Option func(c *logConfig)

// WithTee also logs every line written (and the header) with klog at verbosity level 1.
func WithTee(tee bool) Option {
	return func(c *logConfig) { c.tee = tee }
}

// WithFlushEveryLine flushes the sink after every record.
// It's slower, but no line is lost if the process is killed.
func WithFlushEveryLine(flush bool) Option {
	return func(c *logConfig) { c.flushEveryLine = flush }
}

// WithValidation makes Log.Log call Record.Validate, and reject invalid records with an error.
func WithValidation(validate bool) Option {
	return func(c *logConfig) { c.validate = validate }
}

// Open creates (or truncates) the file at path and returns a Log writing to it.
//
// It returns an error, and no Log, if the file can't be created or the header can't be written.
// Close the Log when done, usually with `defer l.Close()`.
func Open(path string, options ...Option) (*Log, error) {
	sink, err := NewFileSink(path)
	if err != nil {
		return nil, err
	}
	l, err := New(sink, options...)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	return l, nil
}

// New returns a Log writing to the given sink. It writes the Header immediately.
//
// The Log takes ownership of the sink: it will be closed by Log.Close, which callers should defer.
func New(sink Sink, options ...Option) (*Log, error) {
	if sink == nil {
		return nil, errors.New("boxing.New(): sink cannot be nil")
	}
	l := &Log{sink: sink}
	for _, option := range options {
		option(&l.config)
	}
	if err := l.sink.Append(Header); err != nil {
		return nil, errors.WithMessage(err, "failed to write boxing log header")
	}
	if l.config.tee {
		klog.V(1).Infof("boxing: %s", strings.TrimSuffix(Header, "\n"))
	}
	l.cleanup = runtime.AddCleanup(l, flushOnCleanup, sink)
	return l, nil
}

func flushOnCleanup(sink Sink) {
	if err := sink.Flush(); err != nil {
		klog.Warningf("Failed to flush boxing log that was not closed: %+v", err)
	}
}

// Log formats the record and appends it to the sink.
//
// It returns ErrClosed if the Log was already closed. Records with an invalid blob.Desc (e.g. an empty shape)
// are always rejected, even without WithValidation.
func (l *Log) Log(r *Record) error {
	if l.closed {
		return ErrClosed
	}
	if !r.BlobDesc.Ok() {
		return errors.Errorf("invalid blob descriptor %s for %s: it must be created with blob.NewDesc", r.BlobDesc, r.Lbi)
	}
	if l.config.validate {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	line := FormatRecord(r)
	if err := l.sink.Append(line); err != nil {
		return errors.WithMessagef(err, "failed to log boxing record for %s", r.Lbi)
	}
	l.numRecords++
	if l.config.tee {
		klog.V(1).Infof("boxing: %s", strings.TrimSuffix(line, "\n"))
	}
	if l.config.flushEveryLine {
		return l.sink.Flush()
	}
	return nil
}

// Flush the underlying sink.
func (l *Log) Flush() error {
	if l.closed {
		return ErrClosed
	}
	return l.sink.Flush()
}

// NumRecords returns the number of records logged so far (not counting the header).
func (l *Log) NumRecords() int {
	return l.numRecords
}

// Close flushes and closes the sink. Further calls to Log return ErrClosed.
//
// It's safe to call Close more than once: only the first call closes the sink.
func (l *Log) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.cleanup.Stop()
	if err := l.sink.Close(); err != nil {
		return errors.WithMessage(err, "failed to close boxing log")
	}
	klog.V(1).Infof("boxing: log closed after %d records", l.numRecords)
	return nil
}
