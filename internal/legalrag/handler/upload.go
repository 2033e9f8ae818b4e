package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/internal/model"
	"github.com/kart-io/legal-rag/internal/pkg/chunker"
	"github.com/kart-io/legal-rag/internal/pkg/extract"
	"github.com/kart-io/legal-rag/pkg/infra/middleware/resilience"
	"github.com/kart-io/legal-rag/pkg/utils/errors"
	"github.com/kart-io/legal-rag/pkg/utils/response"
)

const (
	msgDocumentFormats = "Only PDF and Word documents are supported"
	msgFAQFormats      = "Only Excel (.xlsx, .xls) and CSV files are supported"
)

// UploadResponse is returned by both upload endpoints.
type UploadResponse struct {
	Message    string `json:"message"`
	ResourceID string `json:"resource_id"`
}

// UploadDocument extracts, chunks and indexes a PDF or Word file.
func (h *Handler) UploadDocument(c *gin.Context) {
	fh, ok := formFile(c)
	if !ok {
		return
	}
	if !extract.IsDocument(fh.Filename) {
		response.Fail(c, errors.ErrUnsupportedFormat.WithMessage(msgDocumentFormats))
		return
	}

	path, cleanup, err := saveTemp(fh)
	if err != nil {
		fail(c, errors.ErrDocumentProcess, err)
		return
	}
	defer cleanup()

	text, err := extract.ExtractDocument(path)
	if err != nil {
		fail(c, errors.ErrDocumentProcess, err)
		return
	}
	chunks := chunker.DocumentChunks(text, fh.Filename, extract.Ext(fh.Filename), h.splitter)

	id, err := h.ingest(c.Request.Context(), fh, model.ResourceTypeDocument, func(ctx context.Context, id string) error {
		return h.service.IngestDocument(ctx, id, chunks)
	})
	if err != nil {
		fail(c, errors.ErrDocumentProcess, err)
		return
	}

	logger.Infow("document uploaded", "resource_id", id, "name", fh.Filename, "chunks", len(chunks))
	response.OK(c, UploadResponse{Message: "Document uploaded successfully", ResourceID: id})
}

// UploadFAQ reads question/answer rows from a CSV or Excel sheet and indexes them.
func (h *Handler) UploadFAQ(c *gin.Context) {
	fh, ok := formFile(c)
	if !ok {
		return
	}
	if !extract.IsFAQ(fh.Filename) {
		response.Fail(c, errors.ErrUnsupportedFormat.WithMessage(msgFAQFormats))
		return
	}

	path, cleanup, err := saveTemp(fh)
	if err != nil {
		fail(c, errors.ErrFAQProcess, err)
		return
	}
	defer cleanup()

	records, err := extract.ExtractFAQ(path)
	if err != nil {
		fail(c, errors.ErrFAQProcess, err)
		return
	}

	id, err := h.ingest(c.Request.Context(), fh, model.ResourceTypeFAQ, func(ctx context.Context, id string) error {
		return h.service.IngestFAQ(ctx, id, records)
	})
	if err != nil {
		fail(c, errors.ErrFAQProcess, err)
		return
	}

	logger.Infow("faq uploaded", "resource_id", id, "name", fh.Filename, "records", len(records))
	response.OK(c, UploadResponse{Message: "FAQ uploaded successfully", ResourceID: id})
}

// ingest allocates the resource id, indexes under its lock and registers
// the resource once the store write succeeded.
func (h *Handler) ingest(ctx context.Context, fh *multipart.FileHeader, typ model.ResourceType, index func(context.Context, string) error) (string, error) {
	id := uuid.NewString()
	unlock := h.registry.Lock(id)
	defer unlock()

	if err := index(ctx, id); err != nil {
		return "", err
	}

	err := h.registry.Put(ctx, &model.Resource{
		ID:         id,
		Name:       fh.Filename,
		Type:       typ,
		UploadDate: time.Now().UTC(),
		Size:       fh.Size,
	})
	if err != nil {
		if _, derr := h.service.DeleteResource(context.WithoutCancel(ctx), id); derr != nil {
			logger.Errorw("failed to remove records of unregistered resource", "resource_id", id, "error", derr.Error())
		}
		return "", fmt.Errorf("register resource: %w", err)
	}
	return id, nil
}

func formFile(c *gin.Context) (*multipart.FileHeader, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		if resilience.IsBodyTooLarge(err) {
			response.Fail(c, errors.ErrPayloadTooLarge)
		} else {
			response.Fail(c, errors.ErrMissingFile)
		}
		return nil, false
	}
	return fh, true
}

// saveTemp copies the upload into a temporary file. cleanup removes it.
func saveTemp(fh *multipart.FileHeader) (string, func(), error) {
	src, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.CreateTemp("", "legal-rag-*."+extract.Ext(fh.Filename))
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(dst.Name()) }

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		cleanup()
		return "", nil, err
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return dst.Name(), cleanup, nil
}
