// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package client

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/ports"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
)

// Server implements the ProcessManager gRPC service directly against the
// repository port; it never touches the supervisor, so it stays read-only
// by construction.
type Server struct {
	repo ports.Repository
}

// NewServer wraps repo for gRPC registration.
func NewServer(repo ports.Repository) *Server {
	return &Server{repo: repo}
}

func processToStruct(p *process.Process) *structpb.Struct {
	fields := map[string]interface{}{
		"name":          p.Name,
		"state":         string(p.State),
		"health_status": string(p.HealthStatus),
		"run_count":     p.RunCount,
	}
	if p.PID != nil {
		fields["pid"] = *p.PID
	}
	s, _ := structpb.NewStruct(fields)
	return s
}

// List handles the "/procmgr.ProcessManager/List" RPC.
func (s *Server) List(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	all, err := s.repo.FindAll()
	if err != nil {
		return nil, err
	}
	values := make([]*structpb.Value, 0, len(all))
	for _, p := range all {
		values = append(values, structpb.NewStructValue(processToStruct(p)))
	}
	return &structpb.ListValue{Values: values}, nil
}

// Status handles the "/procmgr.ProcessManager/Status" RPC.
func (s *Server) Status(ctx context.Context, name *wrapperspb.StringValue) (*structpb.Struct, error) {
	p, err := s.repo.FindByName(name.GetValue())
	if err != nil {
		return nil, err
	}
	return processToStruct(p), nil
}

func _ProcessManager_List_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).List(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/List"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).List(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _ProcessManager_Status_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Status"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(*Server).Status(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is the hand-assembled equivalent of what protoc-gen-go-grpc
// would generate from a procmgr.proto declaring List/Status; kept here
// directly since the wire contract is this narrow and already expressed
// fully in well-known types.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: _ProcessManager_List_Handler},
		{MethodName: "Status", Handler: _ProcessManager_Status_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "procmgr.proto",
}

// Register attaches s to grpcServer under the ProcessManager service name.
func Register(grpcServer *grpc.Server, s *Server) {
	grpcServer.RegisterService(&serviceDesc, s)
}
