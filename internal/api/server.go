// Package api exposes a Session over HTTP for browser frontends.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ppiankov/factstrip/internal/model"
	"github.com/ppiankov/factstrip/internal/session"
)

// New builds the router serving sess
func New(sess *session.Session, cfg model.ServerConfig, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	g := gin.New()
	g.Use(requestLogger(logger), gin.Recovery())
	attachRoutes(g, cfg, sess)
	return g
}

func attachRoutes(r *gin.Engine, cfg model.ServerConfig, sess *session.Session) {
	if len(cfg.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.AllowOrigins,
			AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	h := handlers{sess: sess}

	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.GET("/state", h.State)
		api.POST("/check", h.Check)
		api.POST("/clear", h.Clear)

		api.GET("/history", h.ListHistory)
		api.DELETE("/history", h.ClearHistory)
		api.GET("/history/:id", h.GetEntry)
		api.DELETE("/history/:id", h.RemoveEntry)
		api.POST("/history/:id/explanation", h.RegenerateExplanation)
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
