// Package introspect implements the introspection endpoint from spec.md's
// Go-native extension to §6 (external interfaces): a local-only, health-only
// gRPC endpoint a supervisor or debugging tool can probe to ask whether the
// shell is alive, without granting it any control over job state.
//
// Grounded on the teacher's internal/server/server.go: same
// grpc.NewServer/keepalive.ServerParameters/health.NewServer/
// reflection.Register shape, stripped of TLS and the job-control service
// (there is no remote job-submission surface in this spec) and moved from a
// TCP listener to a Unix domain socket, since nothing outside the host this
// shell runs on has any business querying it.
package introspect

import (
	"log/slog"
	"net"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

const (
	keepaliveTime    = 30 * time.Second
	keepaliveTimeout = 20 * time.Second
	keepaliveMinTime = 15 * time.Second

	// ServiceName is the health service name goshell reports status under;
	// the empty "" service name is the whole-server status.
	ServiceName = "goshell"
)

// Server is the introspection endpoint. A nil *Server is valid and every
// method on it is a no-op, so callers can construct one unconditionally and
// skip it only when binding the socket failed.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	lis        net.Listener
}

// Listen binds sockPath, removing a stale socket file left by a previous
// crashed instance first. Binding is best-effort: spec.md's core job-control
// loop must work with no introspection endpoint at all, so a bind failure is
// logged and Listen returns a nil *Server rather than an error.
func Listen(sockPath string) *Server {
	_ = os.Remove(sockPath)

	lis, err := net.Listen("unix", sockPath)
	if err != nil {
		slog.Warn("introspection endpoint disabled: listen failed", "path", sockPath, "err", err)
		return nil
	}

	s := &Server{lis: lis, health: health.NewServer()}
	s.grpcServer = grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    keepaliveTime,
			Timeout: keepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             keepaliveMinTime,
			PermitWithoutStream: true,
		}),
	)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)

	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return s
}

// Serve blocks accepting connections until GracefulStop is called. A nil
// receiver returns immediately.
func (s *Server) Serve() error {
	if s == nil {
		return nil
	}
	return s.grpcServer.Serve(s.lis)
}

// GracefulStop marks the service NOT_SERVING and stops accepting new
// connections, letting in-flight health checks finish. A nil receiver is a
// no-op.
func (s *Server) GracefulStop() {
	if s == nil {
		return
	}
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.grpcServer.GracefulStop()
}
