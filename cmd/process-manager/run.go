// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/DataDog/agent-process-manager/pkg/client"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/health"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/socketactivation"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/supervisor"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/infra/config"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/infra/ddresolver"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/infra/executor"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/infra/healthprobe"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/infra/repository"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/infra/watcher"
	"github.com/DataDog/agent-process-manager/pkg/util/log"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the process-manager daemon in the foreground.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			return runDaemon(cmd.Context(), cfgPath)
		},
	}
	return cmd
}

func runDaemon(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if err := log.SetupDefault(cfg.LogLevel); err != nil {
		return fmt.Errorf("run: logger: %w", err)
	}

	repo := repository.New()
	for _, spec := range cfg.Processes {
		domainCfg, err := spec.ToDomain()
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		p, err := process.New(spec.Name, domainCfg)
		if err != nil {
			return fmt.Errorf("run: process %q: %w", spec.Name, err)
		}
		if err := repo.Save(p); err != nil {
			return fmt.Errorf("run: process %q: %w", spec.Name, err)
		}
	}

	exec := executor.New()
	w := watcher.New()
	mon := health.NewMonitor(repo, healthprobe.New())

	sup := supervisor.New(repo, exec, w, mon)

	resolver := ddresolver.New("")
	sockMgr := socketactivation.New(resolver)
	for _, p := range mustFindAll(repo) {
		if p.Config.SocketActivation == nil {
			continue
		}
		if err := sockMgr.Create(*p.Config.SocketActivation); err != nil {
			log.Warnf("run: socket activation for %s: %v", p.Name, err)
		}
	}
	sup = sup.WithSocketActivation(sockMgr.Events())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go sup.Run(runCtx)

	for _, p := range mustFindAll(repo) {
		if p.Config.SocketActivation != nil {
			continue // activated on first connection/accept instead.
		}
		if err := sup.StartProcess(runCtx, p.ID); err != nil {
			log.Warnf("run: start %s: %v", p.Name, err)
		}
	}

	var grpcServer *grpc.Server
	if cfg.GRPCPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("run: grpc listen: %w", err)
		}
		grpcServer = grpc.NewServer()
		client.Register(grpcServer, client.NewServer(repo))
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				log.Warnf("run: grpc serve: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Infof("run: shutting down")
	cancel()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	return sup.Shutdown(context.Background())
}

func mustFindAll(repo *repository.Memory) []*process.Process {
	all, err := repo.FindAll()
	if err != nil {
		return nil
	}
	return all
}
