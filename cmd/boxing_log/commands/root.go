// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commands implements the boxing_log sub-commands.
package commands

import (
	"flag"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var rootCmd = &cobra.Command{
	Use:   "boxing_log",
	Short: "Write and inspect boxing logs",
	Long: `boxing_log writes boxing logs (CSV audit trails of tensor redistribution decisions)
from boxing plans: YAML files listing the placements and the decisions.

The log has one header line and one line per decision:

  src_op_name,dst_op_name,src_parallel_conf,dst_parallel_conf,src_sbp_conf,dst_sbp_conf,lbi,dtype,shape,builder,comment`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the command selected by the command-line arguments.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func init() {
	// klog flags (-v, -logtostderr, ...) are available to all commands.
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)
}
