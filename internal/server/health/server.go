// Package health exposes the standard gRPC health checking service so
// process supervisors can check the chat and file services.
package health

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtalk/internal/logging"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service names reported by the health server.
const (
	ServiceChat  = "gophtalk.chat"
	ServiceFiles = "gophtalk.files"
)

type Server struct {
	mu     sync.Mutex
	health *grpchealth.Server
	logger logging.Logger
}

// New returns a health server whose services start as NOT_SERVING.
func New(logger logging.Logger) *Server {
	h := grpchealth.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(ServiceChat, healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(ServiceFiles, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{
		health: h,
		logger: logger.With("module", "health"),
	}
}

// SetServing flips one service. The overall ("") status is SERVING only
// while every named service is.
func (s *Server) SetServing(service string, serving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, st)

	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range []string{ServiceChat, ServiceFiles} {
		resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: name})
		if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			overall = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}
	s.health.SetServingStatus("", overall)
}

// Serve answers health checks on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.logInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping health server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting health server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}

func (s *Server) logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "health rpc", "method", info.FullMethod, "duration", time.Since(start), "error", err)
	return resp, err
}
