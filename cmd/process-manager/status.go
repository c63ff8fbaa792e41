// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <name>",
		Short: "Show one process's current state.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			c, conn, err := dialClient(cmd, addr)
			if err != nil {
				return err
			}
			defer conn.Close()

			s, err := c.Status(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			fmt.Printf("name:          %s\n", s.Name)
			fmt.Printf("state:         %s\n", s.State)
			fmt.Printf("pid:           %d\n", s.PID)
			fmt.Printf("health_status: %s\n", s.HealthStatus)
			fmt.Printf("run_count:     %d\n", s.RunCount)
			return nil
		},
	}
}
