// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package boxing

import (
	"bufio"
	"os"

	"github.com/pkg/errors"
	"github.com/xy548/oneflow/pkg/support/fsutil"
)

// Sink is where a Log writes its lines.
//
// Append may buffer. Flush must make every appended line durable (as far as the sink goes).
// Close flushes and releases the sink.
type Sink interface {
	Append(line string) error
	Flush() error
	Close() error
}

// FileSink is a buffered Sink writing to a local file.
type FileSink struct {
	path   string
	file   *os.File
	writer *bufio.Writer
}

var _ Sink = (*FileSink)(nil)

// NewFileSink creates (or truncates) the file at path and returns a FileSink writing to it.
// A leading "~" in path is replaced by the user's home directory, and missing parent directories are created.
func NewFileSink(path string) (*FileSink, error) {
	path, err := fsutil.ReplaceTildeInDir(path)
	if err != nil {
		return nil, err
	}
	if err = fsutil.MkdirParent(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open boxing log file %q", path)
	}
	return &FileSink{path: path, file: f, writer: bufio.NewWriter(f)}, nil
}

// Path of the file written to.
func (s *FileSink) Path() string { return s.path }

// Append implements Sink.
func (s *FileSink) Append(line string) error {
	_, err := s.writer.WriteString(line)
	if err != nil {
		return errors.Wrapf(err, "failed to write to boxing log file %q", s.path)
	}
	return nil
}

// Flush implements Sink: buffered data is written to the file and the file is synced.
func (s *FileSink) Flush() error {
	if err := s.writer.Flush(); err != nil {
		return errors.Wrapf(err, "failed to flush boxing log file %q", s.path)
	}
	if err := s.file.Sync(); err != nil {
		return errors.Wrapf(err, "failed to sync boxing log file %q", s.path)
	}
	return nil
}

// Close implements Sink.
func (s *FileSink) Close() error {
	flushErr := s.Flush()
	closeErr := s.file.Close()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, "failed to close boxing log file %q", s.path)
	}
	return nil
}
