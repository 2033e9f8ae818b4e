package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/legal-rag/pkg/utils/errors"
	"github.com/kart-io/legal-rag/pkg/utils/response"
)

const defaultMaxResults = 5

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Question         string `json:"question" validate:"required,notblank"`
	IncludeDocuments *bool  `json:"include_documents"`
	MaxResults       *int   `json:"max_results"`
}

// Query answers a question from the indexed documents and FAQs.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.ErrValidation, err)
		return
	}

	includeSources := true
	if req.IncludeDocuments != nil {
		includeSources = *req.IncludeDocuments
	}
	k := defaultMaxResults
	if req.MaxResults != nil {
		k = *req.MaxResults
	}

	result, err := h.service.Answer(c.Request.Context(), req.Question, k, includeSources)
	if err != nil {
		fail(c, errors.ErrQueryFailed, err)
		return
	}
	if result.Sources == nil {
		result.Sources = []string{}
	}

	response.OK(c, result)
}

// Stats reports the vector store statistics.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		fail(c, errors.ErrStatsFailed, err)
		return
	}
	response.OK(c, stats)
}
