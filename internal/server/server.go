package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kavka/kavka/internal/api"
	"github.com/kavka/kavka/internal/config"
	"github.com/kavka/kavka/pkg/logger"
	"go.uber.org/zap"
)

// Server HTTP服务器
type Server struct {
	apiServer     *http.Server
	metricsServer *http.Server
	pprofServer   *http.Server
	ready         atomic.Bool
}

// NewServer 创建HTTP服务器
func NewServer(cfg *config.Config, svc *api.Service) *Server {
	s := &Server{}

	// API服务器
	s.apiServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: NewRouter(svc),
	}

	// Metrics服务器
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		mux.HandleFunc("/health", healthHandler)
		mux.HandleFunc("/ready", s.readyHandler)

		s.metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
	}

	// Pprof服务器
	if cfg.Pprof.Enabled {
		s.pprofServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Pprof.Port),
			Handler: http.DefaultServeMux, // pprof已自动注册到DefaultServeMux
		}
	}

	return s
}

// Start 启动服务器，端口监听失败时直接返回错误
func (s *Server) Start() error {
	for _, srv := range []*http.Server{s.apiServer, s.metricsServer, s.pprofServer} {
		if srv == nil {
			continue
		}
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		go serve(srv, ln)
	}

	s.ready.Store(true)
	return nil
}

func serve(srv *http.Server, ln net.Listener) {
	logger.Info("http server listening", zap.String("addr", srv.Addr))
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		logger.Error("http server error", zap.String("addr", srv.Addr), zap.Error(err))
	}
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) error {
	s.ready.Store(false)

	var firstErr error
	for _, srv := range []*http.Server{s.apiServer, s.metricsServer, s.pprofServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown http server", zap.String("addr", srv.Addr), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// healthHandler 健康检查
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyHandler 就绪检查
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Not Ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
