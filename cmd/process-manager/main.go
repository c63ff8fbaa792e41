// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Command process-manager is a cobra binary wrapping the daemon (run) and a
// thin gRPC client for read-only introspection (list, status).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "process-manager",
		Short:         "Supervise declaratively-configured processes under cgroup and restart policy.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config", "", "path to the daemon's YAML configuration file")
	root.PersistentFlags().String("addr", "127.0.0.1:0", "daemon gRPC address for list/status subcommands")

	root.AddCommand(newRunCommand())
	root.AddCommand(newListCommand())
	root.AddCommand(newStatusCommand())
	return root
}
