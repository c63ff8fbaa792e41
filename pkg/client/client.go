// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package client is a thin wrapper the CLI's list/status subcommands use to
// talk to a running daemon, matching process_manager/go-client's wire
// contract. Messages are protobuf well-known types (structpb/wrapperspb/
// emptypb) rather than a custom .proto schema, since this collaborator is
// deliberately narrow and never grows its own message types.
package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the gRPC service path every method hangs off.
const ServiceName = "procmgr.ProcessManager"

// ProcessStatus is the client-facing shape of one entity, decoded off the
// wire's structpb.Struct.
type ProcessStatus struct {
	Name         string
	State        string
	PID          int64
	HealthStatus string
	RunCount     int64
}

func processStatusFromStruct(s *structpb.Struct) ProcessStatus {
	f := s.GetFields()
	return ProcessStatus{
		Name:         f["name"].GetStringValue(),
		State:        f["state"].GetStringValue(),
		PID:          int64(f["pid"].GetNumberValue()),
		HealthStatus: f["health_status"].GetStringValue(),
		RunCount:     int64(f["run_count"].GetNumberValue()),
	}
}

// Client is a thin wrapper around a *grpc.ClientConn dialed against a
// running daemon's gRPC port (config.Config.GRPCPort).
type Client struct {
	cc grpc.ClientConnInterface
}

// Dial connects to a daemon listening on addr (host:port).
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

// NewClient wraps an already-established connection; used by callers that
// manage their own *grpc.ClientConn lifecycle.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// List returns every process the daemon currently tracks.
func (c *Client) List(ctx context.Context) ([]ProcessStatus, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/List", new(emptypb.Empty), out); err != nil {
		return nil, fmt.Errorf("client: list: %w", err)
	}
	statuses := make([]ProcessStatus, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		statuses = append(statuses, processStatusFromStruct(v.GetStructValue()))
	}
	return statuses, nil
}

// Status returns one process by name.
func (c *Client) Status(ctx context.Context, name string) (ProcessStatus, error) {
	out := new(structpb.Struct)
	in := wrapperspb.String(name)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Status", in, out); err != nil {
		return ProcessStatus{}, fmt.Errorf("client: status %s: %w", name, err)
	}
	return processStatusFromStruct(out), nil
}
