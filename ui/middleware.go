package ui

import (
	"io/fs"
	"log"
	"net/http"
	"time"

	"statwizard/ui/middleware"

	"github.com/gin-gonic/gin"
)

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware(cookieMaxAge time.Duration) {
	s.router.Use(gin.Logger(), gin.Recovery())

	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		log.Printf("[setupMiddleware] Error creating static filesystem: %v", err)
	} else {
		s.router.StaticFS("/static", http.FS(staticFS))
	}

	// Every route after this point has a browser session id
	s.router.Use(middleware.EnsureSession(cookieMaxAge))
}
