// Package api exposes the reconciliation service over HTTP.
//
// Routes mirror the dashboard the service was built for: transaction CRUD
// with a trash, statement uploads, ledger import, automatic and manual
// reconciliation. Every error body has the shape {"error": "..."}.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reconciliation-dashboard/internal/reconciler"
	"reconciliation-dashboard/internal/store"
	"reconciliation-dashboard/pkg/logger"
)

// Config holds the HTTP server settings
type Config struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxUploadBytes bounds the multipart form held in memory
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  32 << 20,
	}
}

// Server wires HTTP handlers to the reconciliation service
type Server struct {
	service *reconciler.Service
	store   store.Store
	sheets  reconciler.LedgerSource
	config  *Config
	logger  logger.Logger
}

// NewServer creates a server. sheets may be nil, in which case the ledger
// import route reports that no spreadsheet is connected.
func NewServer(service *reconciler.Service, sheets reconciler.LedgerSource, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	return &Server{
		service: service,
		store:   service.Store(),
		sheets:  sheets,
		config:  config,
		logger:  logger.WithComponent("api"),
	}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	router.MaxMultipartMemory = s.config.MaxUploadBytes

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := router.Group("/api")
	{
		api.GET("/transactions", s.listTransactions)
		api.POST("/transactions", s.createTransaction)
		api.POST("/transactions/manual-reconcile", s.manualReconcile)
		api.GET("/transactions/:id", s.getTransaction)
		api.PATCH("/transactions/:id", s.updateTransaction)
		api.DELETE("/transactions/:id", s.deleteTransaction)
		api.GET("/transactions/:id/candidates", s.candidates)

		api.GET("/trash", s.listTrash)
		api.POST("/trash/:id/restore", s.restoreTransaction)

		api.POST("/upload", s.upload)
		api.POST("/google-sheets/import", s.importSheet)
		api.POST("/reconcile", s.reconcile)
		api.GET("/review", s.reviewQueue)
	}

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.config.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		l := s.logger.WithFields(logger.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			l.Warn("Request failed")
			return
		}
		l.Debug("Request handled")
	}
}
