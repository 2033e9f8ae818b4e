package handler

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/internal/legalrag/registry"
	"github.com/kart-io/legal-rag/pkg/utils/errors"
	"github.com/kart-io/legal-rag/pkg/utils/response"
)

// ListResources returns every uploaded resource.
func (h *Handler) ListResources(c *gin.Context) {
	resources, err := h.registry.List(c.Request.Context())
	if err != nil {
		fail(c, errors.ErrListFailed, err)
		return
	}
	response.OK(c, resources)
}

// DeleteResource removes a resource and all of its stored records.
func (h *Handler) DeleteResource(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	unlock := h.registry.Lock(id)
	defer unlock()

	if _, err := h.registry.Get(ctx, id); err != nil {
		fail(c, errors.ErrDeleteFailed, err)
		return
	}

	n, err := h.service.DeleteResource(ctx, id)
	if err != nil {
		fail(c, errors.ErrDeleteFailed, err)
		return
	}

	if err := h.registry.Delete(ctx, id); err != nil && !stderrors.Is(err, registry.ErrNotFound) {
		fail(c, errors.ErrDeleteFailed, err)
		return
	}

	logger.Infow("resource deleted", "resource_id", id, "records", n)
	response.OK(c, gin.H{"message": "Resource deleted successfully"})
}
