// Package server provides the REST API for the document Q&A service:
// session lifecycle, document upload and evidence-backed querying.
package server

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mike-a-ellis/docqa/internal/index"
	"github.com/mike-a-ellis/docqa/internal/ingest"
	"github.com/mike-a-ellis/docqa/internal/service"
	"github.com/mike-a-ellis/docqa/internal/session"
)

// QA is the slice of the application service the handlers need.
type QA interface {
	StartSession() string
	EndSession(id string) error
	SessionCount() int
	Documents(sessionID string) ([]session.Document, error)
	Upload(ctx context.Context, sessionID string, uploads []ingest.Upload) (*ingest.Result, error)
	Retrieve(ctx context.Context, sessionID, query string, k int, minScore *float64) ([]index.RetrievedUnit, error)
	Ask(ctx context.Context, sessionID, question string, k int, minScore *float64) (*service.Answer, error)
	BatchAsk(ctx context.Context, documentURL string, questions []string) ([]string, error)
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(svc QA, ginMode string) *gin.Engine {
	if ginMode != "" {
		gin.SetMode(ginMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	h := newHandler(svc)
	router.GET("/healthz", h.Health)

	v1 := router.Group("/api/v1")
	v1.POST("/sessions", h.StartSession)
	v1.DELETE("/sessions/:id", h.EndSession)
	v1.POST("/sessions/:id/documents", h.UploadDocuments)
	v1.GET("/sessions/:id/documents", h.ListDocuments)
	v1.POST("/sessions/:id/query", h.Query)
	v1.POST("/sessions/:id/search", h.Search)
	v1.POST("/batch", h.Batch)

	return router
}
