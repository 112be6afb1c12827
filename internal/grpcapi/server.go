package grpcapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/types"
)

type Server struct {
	grpcServer *grpc.Server
	healthSrv  *health.Server
	logger     *slog.Logger
}

func New(engine *service.DecisionEngine, logger *slog.Logger) *Server {
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		unaryLoggingInterceptor(logger),
	))

	RegisterCheckpointServer(grpcServer, &checkpointService{engine: engine, logger: logger})

	healthSrv := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)

	return &Server{grpcServer: grpcServer, healthSrv: healthSrv, logger: logger}
}

// Serve blocks until Stop is called or lis fails.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server listening", "address", lis.Addr().String())
	s.healthSrv.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.healthSrv.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	s.grpcServer.GracefulStop()
	s.logger.Info("gRPC server stopped")
}

func unaryLoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.InfoContext(ctx, "grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"dur", time.Since(start))
		return resp, err
	}
}

type checkpointService struct {
	engine *service.DecisionEngine
	logger *slog.Logger
}

func (c *checkpointService) Decide(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := types.DecisionRequestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := c.engine.Decide(ctx, req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		c.logger.ErrorContext(ctx, "decide error", "err", err)
		return nil, status.Error(codes.Unavailable, "decision could not be recorded")
	}

	out, err := types.DecisionResponseStruct(types.NewDecisionResponse(res))
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}
