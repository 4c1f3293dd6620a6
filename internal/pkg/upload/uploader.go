package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMime             = "image/png"
	DefaultOriginalFileName = "scribble_input.png"
)

type Metadata struct {
	Mime             string
	OriginalFileName string
	UserAgent        string
}

// Uploader publishes a scribble and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, meta Metadata) (string, error)
}

type UploadIOConfig struct {
	BaseURL    string
	AccountID  string
	APIKey     string
	AppName    string
	AppVersion string
	Timeout    time.Duration
}

type uploadIOUploader struct {
	cfg  UploadIOConfig
	http *http.Client
}

// NewUploadIOUploader talks to the Upload.io basic upload endpoint.
func NewUploadIOUploader(cfg UploadIOConfig) Uploader {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &uploadIOUploader{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

func (u *uploadIOUploader) Upload(ctx context.Context, data []byte, meta Metadata) (string, error) {
	meta = withDefaults(meta)

	q := url.Values{}
	q.Set("folderPath", fmt.Sprintf("/uploads/%s/%s/{UTC_DATE}", u.cfg.AppName, u.cfg.AppVersion))
	q.Set("folderPathVariablesEnabled", "true")
	q.Set("fileName", "{ORIGINAL_FILE_NAME}_{UNIQUE_DIGITS_8}{ORIGINAL_FILE_EXT}")
	q.Set("fileNameVariablesEnabled", "true")
	q.Set("originalFileName", meta.OriginalFileName)

	endpoint := fmt.Sprintf("%s/accounts/%s/uploads/binary?%s", u.cfg.BaseURL, url.PathEscape(u.cfg.AccountID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+u.cfg.APIKey)
	req.Header.Set("Content-Type", meta.Mime)

	if meta.UserAgent != "" {
		metadata, err := json.Marshal(map[string]string{"userAgent": meta.UserAgent})
		if err != nil {
			return "", err
		}
		req.Header.Set("X-Upload-Metadata", string(metadata))
	}

	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrUploadFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: upload host answered %s: %s", entity.ErrUploadFailed, resp.Status, strings.TrimSpace(string(body)))
	}

	var result struct {
		FileURL  string `json:"fileUrl"`
		FilePath string `json:"filePath"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrUploadFailed, err)
	}
	if result.FileURL == "" {
		return "", fmt.Errorf("%w: response has no fileUrl", entity.ErrUploadFailed)
	}

	logrus.WithFields(logrus.Fields{
		"file_url":  result.FileURL,
		"file_path": result.FilePath,
		"bytes":     len(data),
	}).Info("Scribble uploaded")

	return result.FileURL, nil
}

type localUploader struct {
	storage storage.FileStorage
	baseURL string
	now     func() time.Time
}

// NewLocalUploader stores scribbles on disk; the server exposes them under /uploads.
func NewLocalUploader(fs storage.FileStorage, publicBaseURL string) Uploader {
	return &localUploader{
		storage: fs,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		now:     time.Now,
	}
}

func (u *localUploader) Upload(ctx context.Context, data []byte, meta Metadata) (string, error) {
	meta = withDefaults(meta)

	ext := path.Ext(meta.OriginalFileName)
	base := strings.TrimSuffix(meta.OriginalFileName, ext)
	key := path.Join(
		"scribbles",
		u.now().UTC().Format("2006-01-02"),
		fmt.Sprintf("%s_%s%s", base, uuid.New().String()[:8], ext),
	)

	if err := u.storage.Save(key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrUploadFailed, err)
	}

	logrus.WithFields(logrus.Fields{
		"key":   key,
		"bytes": len(data),
	}).Info("Scribble stored locally")

	return u.baseURL + "/uploads/" + key, nil
}

func withDefaults(meta Metadata) Metadata {
	if meta.Mime == "" {
		meta.Mime = DefaultMime
	}
	if meta.OriginalFileName == "" {
		meta.OriginalFileName = DefaultOriginalFileName
	}
	return meta
}
