// Package handler provides HTTP handlers for the legal RAG service.
package handler

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/internal/legalrag/biz"
	"github.com/kart-io/legal-rag/internal/legalrag/metrics"
	"github.com/kart-io/legal-rag/internal/legalrag/registry"
	"github.com/kart-io/legal-rag/internal/legalrag/store"
	"github.com/kart-io/legal-rag/internal/pkg/chunker"
	"github.com/kart-io/legal-rag/internal/pkg/extract"
	"github.com/kart-io/legal-rag/pkg/infra/middleware/resilience"
	"github.com/kart-io/legal-rag/pkg/utils/errors"
	"github.com/kart-io/legal-rag/pkg/utils/response"
)

// Handler serves the query, upload and resource endpoints.
type Handler struct {
	service  biz.Service
	registry registry.Registry
	splitter *chunker.Splitter
	metrics  *metrics.Metrics
}

// NewHandler creates a new Handler.
func NewHandler(service biz.Service, reg registry.Registry, splitter *chunker.Splitter, m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.Default()
	}
	return &Handler{
		service:  service,
		registry: reg,
		splitter: splitter,
		metrics:  m,
	}
}

// fail maps err onto an errno and writes it. fallback is used for causes
// without a more specific errno.
func fail(c *gin.Context, fallback *errors.Errno, err error) {
	e := toErrno(fallback, err)
	if e.HTTPStatus() >= 500 {
		logger.Errorw("request failed",
			"path", c.FullPath(),
			"code", e.Code,
			"error", err.Error(),
			"request_id", response.RequestID(c),
		)
	}
	response.Fail(c, e)
}

func toErrno(fallback *errors.Errno, err error) *errors.Errno {
	var (
		missing *extract.MissingColumnsError
		tooLong *store.FieldTooLongError
	)
	switch {
	case resilience.IsBodyTooLarge(err):
		return errors.ErrPayloadTooLarge
	case stderrors.As(err, &missing):
		return errors.ErrMissingColumns.WithMessage(missing.Error())
	case stderrors.As(err, &tooLong):
		return errors.ErrFieldTooLong.WithMessage(tooLong.Error())
	case stderrors.Is(err, registry.ErrNotFound):
		return errors.ErrResourceNotFound
	case stderrors.Is(err, biz.ErrAnswerGeneration):
		return errors.ErrAnswerGeneration.WithCause(err)
	case stderrors.Is(err, biz.ErrStoreWrite):
		return errors.ErrStoreWrite.WithCause(err)
	}

	var e *errors.Errno
	if stderrors.As(err, &e) {
		return e
	}
	return fallback.WithCause(err)
}
