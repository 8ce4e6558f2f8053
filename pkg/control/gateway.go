package control

import (
	"context"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/logging"

	coreControl "github.com/core-tools/hsu-core/pkg/control"
	coreDomain "github.com/core-tools/hsu-core/pkg/domain"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Status is the running state reported by a daemon
type Status struct {
	Daemon   bool
	Spawned  bool
	External bool
}

// PingOptions bound how long Connect waits for the daemon to answer
type PingOptions struct {
	RetryAttempts int
	RetryInterval time.Duration
}

var DefaultPingOptions = PingOptions{
	RetryAttempts: 5,
	RetryInterval: 1 * time.Second,
}

// Connect attaches to the daemon listening on port and waits until it answers a ping
func Connect(ctx context.Context, port int, pingOptions PingOptions, logger logging.Logger) (*ClientGateway, error) {
	if port == 0 {
		port = DefaultPort
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	coreLogger := NewCoreLogger(logger)

	connectionOptions := coreControl.ConnectionOptions{
		AttachPort: port,
	}
	connection, err := coreControl.NewConnection(connectionOptions, coreLogger)
	if err != nil {
		return nil, errors.NewIOError("failed to connect to control server", err).WithContext("port", port)
	}

	coreClientGateway := coreControl.NewGRPCClientGateway(connection.GRPC(), coreLogger)

	retryPingOptions := coreDomain.RetryPingOptions{
		RetryAttempts: pingOptions.RetryAttempts,
		RetryInterval: pingOptions.RetryInterval,
	}
	if err := coreDomain.RetryPing(ctx, coreClientGateway, retryPingOptions, coreLogger); err != nil {
		return nil, errors.NewIOError("control server did not answer", err).WithContext("port", port)
	}

	return NewGRPCClientGateway(connection.GRPC(), logger), nil
}

func NewGRPCClientGateway(grpcClientConnection grpc.ClientConnInterface, logger logging.Logger) *ClientGateway {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ClientGateway{
		grpcClient: healthpb.NewHealthClient(grpcClientConnection),
		logger:     logger,
	}
}

type ClientGateway struct {
	grpcClient healthpb.HealthClient
	logger     logging.Logger
}

// Status queries the daemon, then the spawned and external state of processName
func (gw *ClientGateway) Status(ctx context.Context, processName string) (Status, error) {
	var result Status

	checks := []struct {
		service string
		target  *bool
	}{
		{"", &result.Daemon},
		{SpawnedService(processName), &result.Spawned},
		{ExternalService(processName), &result.External},
	}
	for _, check := range checks {
		response, err := gw.grpcClient.Check(ctx, &healthpb.HealthCheckRequest{Service: check.service})
		if err != nil {
			gw.logger.Errorf("Status client gateway, service %q: %v", check.service, err)
			return Status{}, errors.NewIOError("status query failed", err).WithContext("service", check.service)
		}
		*check.target = response.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}

	gw.logger.Debugf("Status client gateway done")
	return result, nil
}
