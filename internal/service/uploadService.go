package service

import (
	"context"
	"fmt"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/ds124wfegd/scribble-diffusion/internal/metrics"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/processor"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/upload"
)

type uploadService struct {
	processor processor.ScribbleProcessor
	uploader  upload.Uploader
	maxBytes  int64
}

func (s *uploadService) Upload(ctx context.Context, data []byte, userAgent string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty scribble", entity.ErrInvalidImage)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return "", entity.ErrUploadTooLarge
	}

	normalized, err := s.processor.Normalize(data)
	if err != nil {
		return "", err
	}

	fileURL, err := s.uploader.Upload(ctx, normalized, upload.Metadata{
		Mime:             upload.DefaultMime,
		OriginalFileName: upload.DefaultOriginalFileName,
		UserAgent:        userAgent,
	})
	if err != nil {
		metrics.UploadFailed()
		return "", err
	}

	metrics.UploadSucceeded()
	return fileURL, nil
}
