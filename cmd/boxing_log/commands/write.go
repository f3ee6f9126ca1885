// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xy548/oneflow/internal/plan"
	"github.com/xy548/oneflow/internal/workerspool"
	"github.com/xy548/oneflow/pkg/core/boxing"
	"github.com/xy548/oneflow/pkg/core/boxing/redissink"
	"k8s.io/klog/v2"
)

var (
	writeOutput         string
	writeRedisAddr      string
	writeRedisKey       string
	writeParallelism    int
	writeQueueSize      int
	writeTee            bool
	writeFlushEveryLine bool
	writeProgress       bool
)

var writeCmd = &cobra.Command{
	Use:   "write PLAN_FILE",
	Short: "Write the boxing log for a plan",
	Long: `Write the boxing log for every record of the plan, to a local file (--output) or to a
new Redis list (--redis). An existing output file is truncated, while an existing Redis
key is an error.

Records are built by --parallelism concurrent workers and funneled through a single
collector, so the order of the lines in the log is not defined.

Examples:
  # Write to a local file.
  boxing_log write plan.yaml --output ~/logs/boxing.csv

  # Write to a new Redis list.
  boxing_log write plan.yaml --redis localhost:6379 --key boxing:job_0`,
	Args: cobra.ExactArgs(1),
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().StringVarP(&writeOutput, "output", "o", "boxing.csv", "Path of the boxing log file to create")
	writeCmd.Flags().StringVar(&writeRedisAddr, "redis", "", "Redis address: if set, lines are appended to a Redis list instead of a file")
	writeCmd.Flags().StringVar(&writeRedisKey, "key", "", "Redis list key, it must not exist yet (defaults to a new \"boxing:<uuid>\" key)")
	writeCmd.Flags().IntVar(&writeParallelism, "parallelism", 0, "Number of concurrent record builders (0 for the number of CPUs, -1 for unlimited)")
	writeCmd.Flags().IntVar(&writeQueueSize, "queue", 64, "Number of records queued for the collector")
	writeCmd.Flags().BoolVar(&writeTee, "tee", false, "Also log every line with klog (requires -v=1)")
	writeCmd.Flags().BoolVar(&writeFlushEveryLine, "flush_every_line", false, "Flush the log after every record")
	writeCmd.Flags().BoolVar(&writeProgress, "progress", false, "Display a progress bar")
	rootCmd.AddCommand(writeCmd)
}

func openSink(ctx context.Context) (boxing.Sink, string, error) {
	if writeRedisAddr != "" {
		sink, err := redissink.New(ctx, &redis.Options{Addr: writeRedisAddr}, writeRedisKey)
		if err != nil {
			return nil, "", err
		}
		return sink, fmt.Sprintf("redis://%s/%s", writeRedisAddr, sink.Key()), nil
	}
	sink, err := boxing.NewFileSink(writeOutput)
	if err != nil {
		return nil, "", err
	}
	return sink, sink.Path(), nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	sink, target, err := openSink(ctx)
	if err != nil {
		return err
	}
	l, err := boxing.New(sink,
		boxing.WithTee(writeTee),
		boxing.WithFlushEveryLine(writeFlushEveryLine))
	if err != nil {
		_ = sink.Close()
		return err
	}
	collector := boxing.NewCollector(l, writeQueueSize)

	var bar *progressbar.ProgressBar
	if writeProgress {
		bar = progressbar.NewOptions(p.NumRecords(),
			progressbar.OptionSetDescription("boxing records"),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
		)
	}

	pool := workerspool.New()
	if writeParallelism != 0 {
		pool.SetMaxParallelism(writeParallelism)
	}
	var (
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}
	for i := range p.NumRecords() {
		pool.WaitToStart(func() {
			r, err := p.Record(i)
			if err == nil {
				err = collector.Submit(ctx, r)
			}
			if err != nil {
				setErr(err)
				return
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		})
	}
	pool.Wait()
	if err := collector.Close(); err != nil {
		setErr(err)
	}
	if bar != nil {
		_ = bar.Finish()
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
	}
	if firstErr != nil {
		return errors.WithMessagef(firstErr, "failed to write boxing log to %s", target)
	}
	klog.V(1).Infof("boxing log written to %s", target)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s boxing records to %s\n",
		humanize.Comma(int64(collector.NumRecords())), target)
	return nil
}
