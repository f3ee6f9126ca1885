// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package redissink implements a boxing.Sink that appends the boxing log lines to a Redis list.
//
// Each Sink owns its list, the same way boxing.FileSink owns its file: the key must not exist when the Sink is
// created, and the first Flush creates the list atomically. So the list holds exactly one header, before all the
// data lines. Lines are buffered in memory and sent with RPUSH on Flush, preserving the order of Append.
package redissink

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/xy548/oneflow/pkg/core/boxing"
	"k8s.io/klog/v2"
)

// KeyPrefix of the keys created by NewKey.
const KeyPrefix = "boxing:"

// ErrKeyInUse is returned when the list key already exists: it belongs to another boxing log.
var ErrKeyInUse = errors.New("redis key already in use")

// DefaultTimeout for each Redis round trip.
var DefaultTimeout = 10 * time.Second

// NewKey returns a new unique list key, "boxing:<uuid>".
func NewKey() string {
	return KeyPrefix + uuid.NewString()
}

// Sink appends lines to a Redis list.
type Sink struct {
	rdb     *redis.Client
	key     string
	timeout time.Duration

	mu      sync.Mutex
	pending []any
	created bool // Whether the first Flush created the list.
}

var _ boxing.Sink = (*Sink)(nil)

// New connects to Redis and returns a Sink appending to the list at key. If key is empty, NewKey is used.
//
// It returns ErrKeyInUse if key already exists. Connection problems are also reported here rather than on
// the first Flush.
func New(ctx context.Context, opts *redis.Options, key string) (*Sink, error) {
	if opts == nil {
		return nil, errors.New("redissink.New(): redis options cannot be nil")
	}
	if key == "" {
		key = NewKey()
	}
	s := &Sink{
		rdb:     redis.NewClient(opts),
		key:     key,
		timeout: DefaultTimeout,
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		_ = s.rdb.Close()
		return nil, errors.Wrapf(err, "failed to connect to Redis at %q", opts.Addr)
	}
	n, err := s.rdb.Exists(ctx, key).Result()
	if err == nil && n > 0 {
		err = errors.WithMessagef(ErrKeyInUse, "boxing log key %q", key)
	}
	if err != nil {
		_ = s.rdb.Close()
		return nil, errors.WithMessagef(err, "failed to check Redis key %q", key)
	}
	klog.V(1).Infof("boxing log to Redis list %q at %s", key, opts.Addr)
	return s, nil
}

// Key of the Redis list.
func (s *Sink) Key() string {
	return s.key
}

// Append implements boxing.Sink. The line is kept in memory until Flush.
func (s *Sink) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, line)
	return nil
}

// Flush implements boxing.Sink, sending the pending lines to Redis.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	var err error
	if s.created {
		err = s.rdb.RPush(ctx, s.key, s.pending...).Err()
	} else {
		err = s.create(ctx)
	}
	if err != nil {
		return errors.WithMessagef(err, "failed to append %d lines to Redis list %q", len(s.pending), s.key)
	}
	s.created = true
	s.pending = nil
	return nil
}

// create pushes the pending lines only if the list doesn't exist yet, in a WATCH/MULTI transaction.
func (s *Sink) create(ctx context.Context) error {
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, s.key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrKeyInUse
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, s.key, s.pending...)
			return nil
		})
		return err
	}, s.key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrKeyInUse
	}
	return err
}

// Close implements boxing.Sink. It flushes the pending lines and closes the Redis connection.
func (s *Sink) Close() error {
	flushErr := s.Flush()
	closeErr := s.rdb.Close()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "failed to close Redis connection")
	}
	return nil
}
