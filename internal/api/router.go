// Package api exposes stored enrichment runs as a JSON HTTP API.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"peakmotif/internal"
	"peakmotif/ports"
)

// NewRouter builds the gin engine serving /api/runs
func NewRouter(repo ports.ResultRepository, logger *internal.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	h := NewRunsHandler(repo, logger)
	runs := r.Group("/api/runs")
	{
		runs.GET("", h.ListRuns)
		runs.GET("/:runId", h.GetRun)
		runs.GET("/:runId/results", h.GetResults)
		runs.GET("/:runId/failures", h.GetFailures)
	}
	return r
}

func requestLogger(logger *internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(internal.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("request")
	}
}
