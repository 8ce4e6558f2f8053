package control

import (
	"context"

	"github.com/core-tools/hsu-scheduler/pkg/logging"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const (
	spawnedSuffix  = "/spawned"
	externalSuffix = "/external"
)

// StatusSource answers the running-state queries exposed over gRPC
type StatusSource interface {
	IsSpawnedRunning() bool
	IsExternalRunning(ctx context.Context) bool
}

// SpawnedService and ExternalService name the health services of a supervised process
func SpawnedService(processName string) string { return processName + spawnedSuffix }

func ExternalService(processName string) string { return processName + externalSuffix }

// RegisterGRPCServerHandler exposes source through the standard gRPC health protocol.
// The empty service name reports the daemon itself, which is always serving.
func RegisterGRPCServerHandler(grpcServerRegistrar grpc.ServiceRegistrar, processName string, source StatusSource, logger logging.Logger) {
	healthpb.RegisterHealthServer(grpcServerRegistrar, &grpcServerHandler{
		processName: processName,
		source:      source,
		logger:      logger,
	})
}

type grpcServerHandler struct {
	healthpb.UnimplementedHealthServer
	processName string
	source      StatusSource
	logger      logging.Logger
}

func (h *grpcServerHandler) Check(ctx context.Context, request *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	var running bool
	switch request.GetService() {
	case "":
		running = true
	case SpawnedService(h.processName):
		running = h.source.IsSpawnedRunning()
	case ExternalService(h.processName):
		running = h.source.IsExternalRunning(ctx)
	default:
		h.logger.Debugf("Health check for unknown service %q", request.GetService())
		return nil, status.Errorf(codes.NotFound, "unknown service %q", request.GetService())
	}

	h.logger.Debugf("Health check %q done, running: %t", request.GetService(), running)
	return &healthpb.HealthCheckResponse{Status: servingStatus(running)}, nil
}

func servingStatus(running bool) healthpb.HealthCheckResponse_ServingStatus {
	if running {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
