// Package server provides the broker process's gRPC health endpoint.
//
// The broker's client-facing protocol (spec.md §6) is transport-agnostic
// JSON request/response handed to internal/protocol.Processor by whatever
// transport the deployment wires up (WebSocket, HTTP long-poll, ...); this
// package only owns the operational liveness/readiness surface a deployment
// needs to know the process is up, grounded on the teacher's GRPCServer
// lifecycle (internal/core/server/grpc.go) with the sensor-API service
// registration removed — there is no generated service to register here.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer manages the lifecycle of a standalone gRPC health server.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	addr     string
}

// NewHealthServer builds a health server bound to host:port. It starts
// reporting NOT_SERVING until MarkServing is called.
func NewHealthServer(host string, port int) *HealthServer {
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{
		server: grpcServer,
		health: healthServer,
		addr:   fmt.Sprintf("%s:%d", host, port),
	}
}

// MarkServing flips the health check to SERVING, once the broker has
// finished loading its tree and is accepting connections.
func (s *HealthServer) MarkServing() {
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
}

// MarkNotServing flips the health check back to NOT_SERVING, e.g. during a
// tree reload.
func (s *HealthServer) MarkNotServing() {
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

// Start binds the listener and serves until Shutdown is called.
func (s *HealthServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	s.listener = listener
	return s.server.Serve(listener)
}

// Addr returns the listener's bound address, e.g. for a ":0" port chosen by
// the OS. Empty until Start has bound the listener.
func (s *HealthServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server with a 30-second timeout.
func (s *HealthServer) Shutdown(ctx context.Context) error {
	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(30 * time.Second):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
