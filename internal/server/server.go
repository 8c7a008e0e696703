package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/formgate/formgate/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	config          *Config
	router          *Router
	httpListener    net.Listener
	httpServer      *http.Server
	metricsListener net.Listener
	metricsServer   *http.Server
	commandHandler  *CommandHandler
}

func NewServer(config *Config, router *Router) *Server {
	return &Server{
		config: config,
		router: router,
	}
}

func (s *Server) Start() error {
	err := s.startHTTPServer()
	if err != nil {
		return err
	}

	err = s.startMetricsServer()
	if err != nil {
		return err
	}

	s.startCommandHandler()

	slog.Info("Server started", "http", s.HttpPort())
	return nil
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.commandHandler.Stop()
	PerformConcurrently(
		func() { s.httpServer.Shutdown(ctx) },
		func() {
			if s.metricsServer != nil {
				s.metricsServer.Shutdown(ctx)
			}
		},
	)

	slog.Info("Server stopped")
}

func (s *Server) HttpPort() int {
	return s.httpListener.Addr().(*net.TCPAddr).Port
}

// Private

func (s *Server) startHTTPServer() error {
	httpAddr := fmt.Sprintf("%s:%d", s.config.Bind, s.config.HttpPort)

	l, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return err
	}
	s.httpListener = l
	s.httpServer = &http.Server{
		Addr:    httpAddr,
		Handler: s.buildHandler(),
	}

	go s.httpServer.Serve(s.httpListener)

	return nil
}

func (s *Server) startMetricsServer() error {
	if s.config.MetricsPort == 0 {
		return nil
	}

	metricsAddr := fmt.Sprintf("%s:%d", s.config.Bind, s.config.MetricsPort)

	l, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		return err
	}
	s.metricsListener = l

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Enable())
	s.metricsServer = &http.Server{
		Addr:    metricsAddr,
		Handler: mux,
	}

	go s.metricsServer.Serve(s.metricsListener)

	slog.Info("Metrics enabled", "port", s.config.MetricsPort)
	return nil
}

func (s *Server) startCommandHandler() {
	s.commandHandler = NewCommandHandler(s.router)

	go s.commandHandler.Start(s.config.SocketPath())
}

func (s *Server) buildHandler() http.Handler {
	var handler http.Handler

	maxBytes := s.config.MaxRequestBodySize
	maxMemBytes := s.config.MaxMemoryBufferSize

	handler = s.router
	handler = WithFormBodyMiddleware(NewFormExtractor(), NewFormEncoder(), maxBytes, maxMemBytes, handler)
	if s.config.InspectForms {
		handler = WithFormInspectionMiddleware(maxMemBytes, handler)
	}
	handler = WithRewindableBodyMiddleware(maxBytes, maxMemBytes, handler)
	handler = WithLoggingMiddleware(slog.Default(), handler)
	handler = WithRequestIDMiddleware(handler)

	return handler
}
