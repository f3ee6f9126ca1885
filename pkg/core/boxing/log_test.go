// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package boxing_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xy548/oneflow/pkg/core/blob"
	"github.com/xy548/oneflow/pkg/core/boxing"
	"github.com/xy548/oneflow/pkg/core/boxing/boxingtest"
)

func TestLog(t *testing.T) {
	t.Run("Header once, before data", func(t *testing.T) {
		sink := boxingtest.NewMemorySink()
		l, err := boxing.New(sink)
		require.NoError(t, err)
		require.Equal(t, []string{boxing.Header}, sink.Pending())

		r := newTestRecord(t)
		for range 5 {
			require.NoError(t, l.Log(r))
		}
		assert.Equal(t, 5, l.NumRecords())
		require.NoError(t, l.Close())

		lines := sink.Lines()
		require.Len(t, lines, 6)
		assert.Equal(t, boxing.Header, lines[0])
		for _, line := range lines[1:] {
			assert.Equal(t, boxing.FormatRecord(r), line)
			assert.NotEqual(t, boxing.Header, line)
		}
		assert.Equal(t, 1, sink.NumClose())
	})

	t.Run("Header without records", func(t *testing.T) {
		sink := boxingtest.NewMemorySink()
		l := must.M1(boxing.New(sink))
		require.NoError(t, l.Close())
		assert.Equal(t, boxing.Header, sink.Contents())
	})

	t.Run("Closed log rejects writes", func(t *testing.T) {
		sink := boxingtest.NewMemorySink()
		l := must.M1(boxing.New(sink))
		require.NoError(t, l.Close())
		require.NoError(t, l.Close(), "Close must be idempotent")
		assert.Equal(t, 1, sink.NumClose())
		assert.ErrorIs(t, l.Log(newTestRecord(t)), boxing.ErrClosed)
		assert.ErrorIs(t, l.Flush(), boxing.ErrClosed)
		assert.Equal(t, boxing.Header, sink.Contents())
	})

	t.Run("Buffered until flush", func(t *testing.T) {
		sink := boxingtest.NewMemorySink()
		l := must.M1(boxing.New(sink))
		require.NoError(t, l.Log(newTestRecord(t)))
		assert.Empty(t, sink.Lines())
		assert.Len(t, sink.Pending(), 2)
		require.NoError(t, l.Flush())
		assert.Len(t, sink.Lines(), 2)
		require.NoError(t, l.Close())
	})

	t.Run("Flush every line", func(t *testing.T) {
		sink := boxingtest.NewMemorySink()
		l := must.M1(boxing.New(sink, boxing.WithFlushEveryLine(true), boxing.WithTee(true)))
		require.NoError(t, l.Log(newTestRecord(t)))
		assert.Len(t, sink.Lines(), 2)
		assert.Empty(t, sink.Pending())
		require.NoError(t, l.Close())
	})

	t.Run("Flushed lines without Close", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "boxing.csv")
		l, err := boxing.Open(path, boxing.WithFlushEveryLine(true))
		require.NoError(t, err)
		r := newTestRecord(t)
		require.NoError(t, l.Log(r))
		// Read before Close, as after a crash.
		contents, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, boxing.Header+boxing.FormatRecord(r), string(contents))
		require.NoError(t, l.Close())
	})

	t.Run("Validation", func(t *testing.T) {
		sink := boxingtest.NewMemorySink()
		l := must.M1(boxing.New(sink, boxing.WithValidation(true)))
		r := newTestRecord(t)
		r.Comment = "a,b"
		require.Error(t, l.Log(r))
		assert.Equal(t, 0, l.NumRecords())
		require.NoError(t, l.Close())
		assert.Equal(t, boxing.Header, sink.Contents())
	})

	t.Run("Empty blob descriptor is rejected", func(t *testing.T) {
		sink := boxingtest.NewMemorySink()
		l := must.M1(boxing.New(sink))
		r := newTestRecord(t)
		r.BlobDesc = blob.Desc{}
		require.Error(t, l.Log(r))
		assert.Equal(t, 0, l.NumRecords())
		require.NoError(t, l.Close())
		assert.Equal(t, boxing.Header, sink.Contents())
	})

	t.Run("Sink errors", func(t *testing.T) {
		_, err := boxing.New(nil)
		require.Error(t, err)

		sink := boxingtest.NewMemorySink()
		sink.AppendErr = errors.New("disk full")
		_, err = boxing.New(sink)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")

		sink = boxingtest.NewMemorySink()
		l := must.M1(boxing.New(sink))
		sink.AppendErr = errors.New("disk full")
		require.Error(t, l.Log(newTestRecord(t)))
		assert.Equal(t, 0, l.NumRecords())
		sink.AppendErr = nil
		sink.CloseErr = errors.New("close failed")
		require.Error(t, l.Close())
	})
}

func TestOpen(t *testing.T) {
	t.Run("Writes file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "boxing.csv")
		l, err := boxing.Open(path)
		require.NoError(t, err)
		r := newTestRecord(t)
		require.NoError(t, l.Log(r))
		require.NoError(t, l.Log(r))
		require.NoError(t, l.Close())

		contents := string(must.M1(os.ReadFile(path)))
		assert.Equal(t, boxing.Header+boxing.FormatRecord(r)+boxing.FormatRecord(r), contents)
		assert.Equal(t, 1, strings.Count(contents, boxing.Header))
	})

	t.Run("Truncates previous contents", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "boxing.csv")
		require.NoError(t, os.WriteFile(path, []byte("old contents\n"), 0o644))
		l := must.M1(boxing.Open(path))
		require.NoError(t, l.Close())
		assert.Equal(t, boxing.Header, string(must.M1(os.ReadFile(path))))
	})

	t.Run("Creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "job_0", "boxing.csv")
		l := must.M1(boxing.Open(path))
		require.NoError(t, l.Close())
		assert.Equal(t, boxing.Header, string(must.M1(os.ReadFile(path))))
	})

	t.Run("Open failure", func(t *testing.T) {
		dir := t.TempDir()
		l, err := boxing.Open(dir) // A directory can't be opened for writing.
		require.Error(t, err)
		assert.Nil(t, l)
	})
}
