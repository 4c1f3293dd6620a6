package transport

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/upload"
	"github.com/ds124wfegd/scribble-diffusion/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type UploadHandler struct {
	service      service.UploadService
	maxBodyBytes int64
}

func NewUploadHandler(svc service.UploadService, maxBodyBytes int64) *UploadHandler {
	return &UploadHandler{
		service:      svc,
		maxBodyBytes: maxBodyBytes,
	}
}

// UploadScribble accepts either {"scribble": "data:..."} or a multipart "image" file.
func (h *UploadHandler) UploadScribble(c *gin.Context) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	data, err := h.readScribble(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	fileURL, err := h.service.Upload(c.Request.Context(), data, c.Request.UserAgent())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, entity.UploadResponse{FileURL: fileURL})
}

func (h *UploadHandler) readScribble(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("image")
		if err != nil {
			return nil, tooLargeOr(err, entity.ErrInvalidImage)
		}
		src, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return io.ReadAll(src)
	}

	var req entity.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, tooLargeOr(err, entity.ErrInvalidDataURI)
	}

	data, _, err := upload.DecodeDataURI(req.Scribble)
	return data, err
}

func (h *UploadHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entity.ErrInvalidDataURI),
		errors.Is(err, entity.ErrInvalidImage),
		errors.Is(err, entity.ErrUploadTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	case errors.Is(err, entity.ErrUploadFailed):
		logrus.WithError(err).Error("Scribble upload failed")
		c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
	default:
		logrus.WithError(err).Error("Scribble upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	}
}

func tooLargeOr(err error, fallback error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return entity.ErrUploadTooLarge
	}
	return fallback
}
