// Package server wires onion pipelines into a gRPC server.
//
//	srv, err := server.NewServer(
//		server.WithRecovery(),
//		server.WithRequestID(),
//		server.WithRateLimit(ratelimit.NewLimiter(500, 100)),
//	)
//	if err != nil {
//		return err
//	}
//	pb.RegisterMyServiceServer(srv.GRPC(), &myImpl{})
package server

import (
	"net/http"

	"github.com/Keksclan/onion/interceptors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

// Server is a thin wrapper around a gRPC server whose unary and stream calls
// run through onion pipelines.
type Server struct {
	grpcServer *grpc.Server
	cfg        config
}

// NewServer applies opts and installs the resulting pipelines as the
// server's interceptors. It fails when an option could not be applied or a
// pipeline contains a nil layer.
func NewServer(opts ...Option) (*Server, error) {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}

	serverOpts := cfg.serverOpts
	if len(cfg.unary) > 0 {
		u, err := interceptors.Unary(cfg.unary...)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.UnaryInterceptor(u))
	}
	if len(cfg.stream) > 0 {
		s, err := interceptors.Stream(cfg.stream...)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.StreamInterceptor(s))
	}

	return &Server{
		grpcServer: grpc.NewServer(serverOpts...),
		cfg:        cfg,
	}, nil
}

// GRPC returns the underlying *grpc.Server so callers can register services.
func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics from
// the registry given to WithMetrics, or the default registry.
func (s *Server) MetricsHandler() http.Handler {
	if s.cfg.registry != nil {
		return promhttp.HandlerFor(s.cfg.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
