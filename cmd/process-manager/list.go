// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/DataDog/agent-process-manager/pkg/client"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every process the daemon currently tracks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			c, conn, err := dialClient(cmd, addr)
			if err != nil {
				return err
			}
			defer conn.Close()

			statuses, err := c.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			for _, s := range statuses {
				fmt.Printf("%-24s %-12s pid=%-8d health=%-10s runs=%d\n", s.Name, s.State, s.PID, s.HealthStatus, s.RunCount)
			}
			return nil
		},
	}
}

func dialClient(cmd *cobra.Command, addr string) (*client.Client, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return client.NewClient(conn), conn, nil
}
