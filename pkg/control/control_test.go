package control

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/logging"

	"github.com/phayes/freeport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type fakeSource struct {
	spawned  atomic.Bool
	external atomic.Bool
}

func (f *fakeSource) IsSpawnedRunning() bool                   { return f.spawned.Load() }
func (f *fakeSource) IsExternalRunning(ctx context.Context) bool { return f.external.Load() }

func TestHandler_Check(t *testing.T) {
	source := &fakeSource{}
	source.spawned.Store(true)
	handler := &grpcServerHandler{processName: "valheim", source: source, logger: logging.NewNopLogger()}
	ctx := context.Background()

	tests := []struct {
		service  string
		expected healthpb.HealthCheckResponse_ServingStatus
	}{
		{"", healthpb.HealthCheckResponse_SERVING},
		{"valheim/spawned", healthpb.HealthCheckResponse_SERVING},
		{"valheim/external", healthpb.HealthCheckResponse_NOT_SERVING},
	}
	for _, tt := range tests {
		response, err := handler.Check(ctx, &healthpb.HealthCheckRequest{Service: tt.service})
		require.NoError(t, err)
		assert.Equal(t, tt.expected, response.GetStatus(), "service %q", tt.service)
	}

	_, err := handler.Check(ctx, &healthpb.HealthCheckRequest{Service: "other/spawned"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

var testPingOptions = PingOptions{RetryAttempts: 20, RetryInterval: 100 * time.Millisecond}

func TestServerAndGateway(t *testing.T) {
	source := &fakeSource{}
	source.external.Store(true)

	port, err := freeport.GetFreePort()
	require.NoError(t, err)

	server, err := NewServer(port, "valheim", source, nil)
	require.NoError(t, err)
	assert.Equal(t, port, server.Port())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, server.Run(ctx))
	}()

	queryCtx, queryCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer queryCancel()

	gateway, err := Connect(queryCtx, port, testPingOptions, nil)
	require.NoError(t, err)

	result, err := gateway.Status(queryCtx, "valheim")
	require.NoError(t, err)
	assert.Equal(t, Status{Daemon: true, Spawned: false, External: true}, result)

	source.spawned.Store(true)
	result, err = gateway.Status(queryCtx, "valheim")
	require.NoError(t, err)
	assert.True(t, result.Spawned)

	_, err = gateway.Status(queryCtx, "unknown")
	assert.True(t, errors.IsIOError(err))

	cancel()
	wg.Wait()
}

func TestConnect_NoServer(t *testing.T) {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = Connect(ctx, port, PingOptions{RetryAttempts: 2, RetryInterval: 10 * time.Millisecond}, nil)
	assert.True(t, errors.IsIOError(err), "got %v", err)
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(DefaultPort, "valheim", nil, nil)
	assert.True(t, errors.IsValidationError(err))
}
