package server

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Server exposes the classified result set and scan controls over HTTP.
type Server struct {
	router *gin.Engine
	srv    *http.Server
}

// New creates the API server and wires up the routes.
func New(port string, h *Handlers) *Server {
	router := gin.Default()

	router.GET("/health", h.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/results", h.GetResults)
		v1.GET("/results/:status", h.GetResultsByStatus)
		v1.POST("/scan", h.TriggerScan)
		v1.GET("/scan/status", h.ScanStatus)
		v1.GET("/chart/:code", h.GetChart)
	}

	return &Server{
		router: router,
		srv: &http.Server{
			Addr:    ":" + port,
			Handler: router,
		},
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[INFO] API server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[ERROR] API server: %v", err)
		}
	}()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
