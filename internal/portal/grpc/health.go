package grpc

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the name load balancers health-check for the cart API.
const Service = "portal.cart"

// NewHealth returns a health server reporting the cart API as serving.
func NewHealth() *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(Service, healthpb.HealthCheckResponse_SERVING)
	return hs
}

func Run(addr string, hs *health.Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return Serve(lis, hs), nil
}

func Serve(lis net.Listener, hs *health.Server) *grpc.Server {
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	go func() {
		_ = gs.Serve(lis)
	}()
	return gs
}
