package control

import (
	"context"
	"time"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
	"github.com/core-tools/hsu-scheduler/pkg/logging"

	coreControl "github.com/core-tools/hsu-core/pkg/control"
	coreDomain "github.com/core-tools/hsu-core/pkg/domain"
)

const DefaultPort = 50070

const shutdownTimeout = 5 * time.Second

// Server serves the core ping service and the status endpoint until its context is done
type Server struct {
	port   int
	server coreControl.Server
	logger logging.Logger
}

func NewServer(port int, processName string, source StatusSource, logger logging.Logger) (*Server, error) {
	if port == 0 {
		port = DefaultPort
	}
	if source == nil {
		return nil, errors.NewValidationError("status source is required", nil)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	coreLogger := NewCoreLogger(logger)

	server, err := coreControl.NewServer(coreControl.ServerOptions{Port: port}, coreLogger)
	if err != nil {
		return nil, errors.NewIOError("failed to create control server", err).WithContext("port", port)
	}

	// Ping, used by clients to wait for the daemon
	coreHandler := coreDomain.NewDefaultHandler(coreLogger)
	coreControl.RegisterGRPCServerHandler(server.GRPC(), coreHandler, coreLogger)

	RegisterGRPCServerHandler(server.GRPC(), processName, source, logger)

	return &Server{
		port:   port,
		server: server,
		logger: logger,
	}, nil
}

func (s *Server) Port() int {
	return s.port
}

// Run serves requests until ctx is done, then shuts the server down
func (s *Server) Run(ctx context.Context) error {
	s.logger.Infof("Control server starting on port %d", s.port)
	s.server.Start(ctx)

	<-ctx.Done()

	s.logger.Infof("Stopping control server on port %d", s.port)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.server.Shutdown(shutdownCtx)

	s.logger.Infof("Control server stopped")
	return nil
}
