package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/agendaslug/agenda/libs/grpcx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const healthServiceName = "agenda.slots.v1"

type grpcServer struct {
	srv    *grpc.Server
	health *health.Server
	logger *slog.Logger
	lis    net.Listener
	// self is a client of our own listener; /readyz checks health through it.
	self *grpc.ClientConn
}

func startGRPC(logger *slog.Logger, addr string) (*grpcServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	self, err := grpcx.Dial(loopbackAddr(lis.Addr()), grpcx.DialOptions{})
	if err != nil {
		_ = lis.Close()
		return nil, err
	}
	srv := grpcx.NewServer(logger)
	gs := &grpcServer{
		srv:    srv,
		health: grpcx.RegisterHealth(srv, healthServiceName),
		logger: logger,
		lis:    lis,
		self:   self,
	}

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil && err != grpc.ErrServerStopped {
			logger.Error("grpc server error", "err", err)
		}
	}()
	return gs, nil
}

func loopbackAddr(a net.Addr) string {
	if tcp, ok := a.(*net.TCPAddr); ok {
		return net.JoinHostPort("127.0.0.1", strconv.Itoa(tcp.Port))
	}
	return a.String()
}

func (g *grpcServer) addr() string {
	return g.lis.Addr().String()
}

// readyCheck asks the health service over the network, the path external probes take.
func (g *grpcServer) readyCheck(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(g.self).Check(ctx, &healthpb.HealthCheckRequest{Service: healthServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("health status %s", resp.GetStatus())
	}
	return nil
}

// stop flips health to NOT_SERVING before draining in-flight calls.
func (g *grpcServer) stop() {
	g.health.Shutdown()
	_ = g.self.Close()
	g.srv.GracefulStop()
	g.logger.Info("grpc server stopped")
}
