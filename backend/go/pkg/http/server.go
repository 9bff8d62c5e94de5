package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/pkg/httpmiddleware"
	"AIAssistant/backend/go/pkg/logger"
)

// Middleware 包装一个 http.Handler。
type Middleware func(http.Handler) http.Handler

// Server 封装标准库 http.Server，并按配置挂载限流与熔断中间件。
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	log        *logger.Logger
}

// ServerOption 用于配置 Server。
type ServerOption func(*Server)

// WithAddress 设置监听地址。
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.httpServer.Addr = addr
	}
}

// WithLogger 设置服务日志。
func WithLogger(l *logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithReadHeaderTimeout 设置读取请求头的超时。
// 事件流是长连接，因此不设置 WriteTimeout。
func WithReadHeaderTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.httpServer.ReadHeaderTimeout = d
	}
}

// NewServer 根据配置创建 Server，启用的中间件按 限流 -> 熔断 的顺序执行。
func NewServer(cfg *config.AppConfig, opts ...ServerOption) (*Server, error) {
	mux := http.NewServeMux()
	var handler http.Handler = mux
	srv := &Server{
		httpServer: &http.Server{ReadHeaderTimeout: 10 * time.Second},
		mux:        mux,
		log:        logger.New("http-server", "", ""),
	}
	for _, opt := range opts {
		opt(srv)
	}

	var middlewares []Middleware
	if rl := cfg.Middleware.RateLimiter; rl.Enabled && rl.KeyHeader != "" {
		keyed, err := NewKeyedRateLimiter(rl)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		srv.log.Info("启用按 " + rl.KeyHeader + " 限流中间件, 算法: " + rl.Algorithm)
		middlewares = append(middlewares, httpmiddleware.RateLimitBy(keyed, httpmiddleware.HeaderKey(rl.KeyHeader)))
	} else if rl.Enabled {
		limiter, err := NewRateLimiter(rl)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		srv.log.Info("启用限流中间件, 算法: " + rl.Algorithm)
		middlewares = append(middlewares, httpmiddleware.RateLimit(limiter))
	}
	if cfg.Middleware.CircuitBreaker.Enabled {
		breaker, err := NewCircuitBreaker("http_server", cfg.Middleware.CircuitBreaker)
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		srv.log.Info("启用熔断中间件")
		middlewares = append(middlewares, httpmiddleware.CircuitBreak(breaker))
	}
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	srv.httpServer.Handler = handler

	if srv.httpServer.Addr == "" {
		srv.httpServer.Addr = cfg.Server.Address
	}
	if srv.httpServer.Addr == "" {
		srv.httpServer.Addr = ":8080"
	}
	return srv, nil
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler 返回挂载了中间件的根处理器。
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Handle registers the handler for the given pattern.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// HandleFunc registers the handler function for the given pattern.
func (s *Server) HandleFunc(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

// ListenAndServe 启动服务，正常关闭时返回 http.ErrServerClosed。
func (s *Server) ListenAndServe() error {
	s.log.Info("服务启动, 监听 " + s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
