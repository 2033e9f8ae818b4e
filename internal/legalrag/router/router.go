// Package router registers the legal RAG routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/internal/legalrag/handler"
	"github.com/kart-io/legal-rag/pkg/infra/middleware"
)

// Register registers the service routes on engine. Upload bodies are
// capped at maxUploadSize bytes.
func Register(engine *gin.Engine, h *handler.Handler, maxUploadSize int64) {
	logger.Info("Registering legal RAG routes...")

	engine.GET("/", handler.Root)
	engine.GET("/health", handler.Health)
	engine.GET("/version", handler.Version)
	engine.GET("/metrics", h.Metrics)

	api := engine.Group("/api")
	{
		api.POST("/query", h.Query)
		api.GET("/stats", h.Stats)

		api.GET("/resources", h.ListResources)
		api.DELETE("/resources/:id", h.DeleteResource)

		upload := api.Group("/upload", middleware.BodyLimit(maxUploadSize))
		{
			upload.POST("/document", h.UploadDocument)
			upload.POST("/faq", h.UploadFAQ)
		}
	}

	logger.Info("HTTP routes registered")
}
