// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes search aggregation and site login over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/medref/internal/library"
	"github.com/pdiddy/medref/internal/logging"
	"github.com/pdiddy/medref/internal/search"
	"github.com/pdiddy/medref/internal/session"
	"github.com/pdiddy/medref/pkg/types"
)

// DefaultAddr is the listen address used when ServerConfig.Addr is empty.
const DefaultAddr = ":8765"

// requestIDHeader carries the per-request id set by RequestID.
const requestIDHeader = "X-Request-ID"

// Server is the HTTP transport.
type Server struct {
	server *http.Server
	logger *zap.Logger

	aggregator *search.Aggregator
	pool       *session.Pool

	// library is optional; when nil, requests asking to save are rejected.
	library *library.Store
}

// New builds the router and HTTP server. lib may be nil.
func New(cfg types.ServerConfig, agg *search.Aggregator, pool *session.Pool, lib *library.Store, logger *zap.Logger) *Server {
	logger = logging.OrNop(logger)
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		logger:     logger,
		aggregator: agg,
		pool:       pool,
		library:    lib,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", s.health)
	router.POST("/login", s.login)
	router.POST("/logout", s.logout)
	router.POST("/search/aggregate", s.aggregate)
	router.POST("/search/:provider", s.searchOne)

	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start listens until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// RequestID tags each request with an id, reusing the caller's when given.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// LoggerMiddleware logs one line per request.
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}
