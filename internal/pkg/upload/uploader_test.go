package upload

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
	"github.com/ds124wfegd/scribble-diffusion/internal/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDataURI(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	encoded := base64.StdEncoding.EncodeToString(payload)

	tests := []struct {
		name     string
		uri      string
		wantData []byte
		wantMime string
		wantErr  bool
	}{
		{
			name:     "base64 png",
			uri:      "data:image/png;base64," + encoded,
			wantData: payload,
			wantMime: "image/png",
		},
		{
			name:     "unpadded base64",
			uri:      "data:image/png;base64," + strings.TrimRight(base64.StdEncoding.EncodeToString([]byte("ab")), "="),
			wantData: []byte("ab"),
			wantMime: "image/png",
		},
		{
			name:     "percent encoded text",
			uri:      "data:,hello%20world",
			wantData: []byte("hello world"),
			wantMime: "text/plain",
		},
		{
			name:    "not a data uri",
			uri:     "https://example.com/a.png",
			wantErr: true,
		},
		{
			name:    "no comma",
			uri:     "data:image/png;base64",
			wantErr: true,
		},
		{
			name:    "broken base64",
			uri:     "data:image/png;base64,***",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, mime, err := DecodeDataURI(tt.uri)
			if tt.wantErr {
				assert.ErrorIs(t, err, entity.ErrInvalidDataURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, data)
			assert.Equal(t, tt.wantMime, mime)
		})
	}
}

func TestUploadIOUploader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/FW25b4F/uploads/binary", r.URL.Path)
		assert.Equal(t, "Bearer public_key", r.Header.Get("Authorization"))
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		assert.Equal(t, "/uploads/scribble-diffusion/0.1.0/{UTC_DATE}", r.URL.Query().Get("folderPath"))
		assert.Equal(t, "scribble_input.png", r.URL.Query().Get("originalFileName"))

		var meta map[string]string
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get("X-Upload-Metadata")), &meta))
		assert.Equal(t, "test-agent", meta["userAgent"])

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "png", string(body))

		w.Write([]byte(`{"fileUrl":"https://upcdn.io/FW25b4F/raw/uploads/a.png","filePath":"/uploads/a.png"}`))
	}))
	defer srv.Close()

	u := NewUploadIOUploader(UploadIOConfig{
		BaseURL:    srv.URL,
		AccountID:  "FW25b4F",
		APIKey:     "public_key",
		AppName:    "scribble-diffusion",
		AppVersion: "0.1.0",
	})

	fileURL, err := u.Upload(context.Background(), []byte("png"), Metadata{UserAgent: "test-agent"})
	require.NoError(t, err)
	assert.Equal(t, "https://upcdn.io/FW25b4F/raw/uploads/a.png", fileURL)
}

func TestUploadIOUploaderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	u := NewUploadIOUploader(UploadIOConfig{BaseURL: srv.URL, AccountID: "a", APIKey: "k"})

	_, err := u.Upload(context.Background(), []byte("png"), Metadata{})
	assert.ErrorIs(t, err, entity.ErrUploadFailed)
}

func TestLocalUploader(t *testing.T) {
	fs := storage.NewFileStorage(t.TempDir())
	u := NewLocalUploader(fs, "http://localhost:8080/")

	fileURL, err := u.Upload(context.Background(), []byte("png"), Metadata{})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(fileURL, "http://localhost:8080/uploads/scribbles/"))
	assert.True(t, strings.HasSuffix(fileURL, ".png"))

	key := strings.TrimPrefix(fileURL, "http://localhost:8080/uploads/")
	data, err := os.ReadFile(filepath.Join(fs.Root(), filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}
