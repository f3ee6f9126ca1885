// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// boxing_log writes boxing logs from boxing plans, and summarizes plans.
//
// See `boxing_log --help`.
package main

import (
	"os"

	"github.com/xy548/oneflow/cmd/boxing_log/commands"
	"k8s.io/klog/v2"
)

func main() {
	defer klog.Flush()
	if err := commands.Execute(); err != nil {
		klog.Errorf("%+v", err)
		klog.Flush()
		os.Exit(1)
	}
}
