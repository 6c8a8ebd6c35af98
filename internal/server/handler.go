package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mike-a-ellis/docqa/internal/embedding"
	"github.com/mike-a-ellis/docqa/internal/ingest"
	"github.com/mike-a-ellis/docqa/internal/server/response"
	"github.com/mike-a-ellis/docqa/internal/session"
	"github.com/mike-a-ellis/docqa/internal/synthesizer"
)

const maxUploadSize = 10 << 20 // 10 MB per file

type handler struct {
	svc QA
}

func newHandler(svc QA) *handler {
	return &handler{svc: svc}
}

// Health reports service liveness and the live session count.
func (h *handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"sessions":  h.svc.SessionCount(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// StartSession mints a new session id.
func (h *handler) StartSession(c *gin.Context) {
	response.OK(c, gin.H{"session_id": h.svc.StartSession()})
}

// EndSession disposes of a session and its index.
func (h *handler) EndSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.EndSession(id); err != nil {
		if h.sessionError(c, err) {
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "end session failed")
		return
	}
	response.OK(c, gin.H{"ended_session_id": id})
}

// sessionError handles the session id failure modes shared by every
// per-session route: unknown ids are 404s, malformed ids are 400s. Reports
// whether the error was handled.
func (h *handler) sessionError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, "session not found")
		return true
	case errors.Is(err, session.ErrInvalidSessionID):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return true
	}
	return false
}

// UploadDocuments accepts a multipart form with one or more "files" entries
// and ingests them into the session, creating the session on first upload.
func (h *handler) UploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no files provided")
		return
	}

	var uploads []ingest.Upload
	for _, file := range files {
		if file.Size > maxUploadSize {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest,
				"file too large (max 10MB): "+file.Filename)
			return
		}
		f, err := file.Open()
		if err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read upload")
			return
		}
		defer f.Close()
		uploads = append(uploads, ingest.Upload{Name: file.Filename, Reader: f})
	}

	result, err := h.svc.Upload(c.Request.Context(), c.Param("id"), uploads)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidSessionID):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		case errors.Is(err, ingest.ErrNoDocuments):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "no ingestable documents in upload")
		default:
			h.upstreamError(c, err, "ingest failed")
		}
		return
	}
	response.OK(c, result)
}

// ListDocuments returns the session's ingested documents.
func (h *handler) ListDocuments(c *gin.Context) {
	docs, err := h.svc.Documents(c.Param("id"))
	if err != nil {
		if h.sessionError(c, err) {
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, gin.H{"documents": docs, "count": len(docs)})
}

// MinScore distinguishes absent from an explicit zero: omitted means the
// service default, a provided value is honored as given.
type queryRequest struct {
	Question string   `json:"question" binding:"required"`
	K        int      `json:"k"`
	MinScore *float64 `json:"min_score"`
}

// Query answers a question from the session's documents.
func (h *handler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	answer, err := h.svc.Ask(c.Request.Context(), c.Param("id"), req.Question, req.K, req.MinScore)
	if err != nil {
		if h.sessionError(c, err) {
			return
		}
		h.upstreamError(c, err, "query failed")
		return
	}
	response.OK(c, answer)
}

type searchRequest struct {
	Query    string   `json:"query" binding:"required"`
	K        int      `json:"k"`
	MinScore *float64 `json:"min_score"`
}

// Search returns ranked retrieved units without answer synthesis.
func (h *handler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	units, err := h.svc.Retrieve(c.Request.Context(), c.Param("id"), req.Query, req.K, req.MinScore)
	if err != nil {
		if h.sessionError(c, err) {
			return
		}
		h.upstreamError(c, err, "search failed")
		return
	}
	response.OK(c, gin.H{"results": units, "count": len(units)})
}

type batchRequest struct {
	Documents string   `json:"documents" binding:"required"`
	Questions []string `json:"questions" binding:"required,min=1"`
}

// Batch answers a list of questions against a single remotely hosted
// document, fetched by URL and indexed into a throwaway session.
func (h *handler) Batch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	answers, err := h.svc.BatchAsk(c.Request.Context(), req.Documents, req.Questions)
	if err != nil {
		if errors.Is(err, ingest.ErrNoDocuments) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "document could not be ingested")
			return
		}
		h.upstreamError(c, err, "batch failed")
		return
	}
	response.OK(c, gin.H{"answers": answers})
}

// upstreamError maps pipeline failures onto HTTP statuses: provider
// failures and malformed generations are bad gateways, caller timeouts are
// gateway timeouts, anything else is internal.
func (h *handler) upstreamError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		response.Error(c, http.StatusGatewayTimeout, response.CodeUpstreamFailed, message+": "+err.Error())
	case errors.Is(err, embedding.ErrEmbedding),
		errors.Is(err, synthesizer.ErrGeneration),
		errors.Is(err, synthesizer.ErrMalformedResponse):
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailed, message+": "+err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, message+": "+err.Error())
	}
}
