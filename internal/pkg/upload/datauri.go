package upload

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/ds124wfegd/scribble-diffusion/internal/entity"
)

// DecodeDataURI turns a canvas export ("data:image/png;base64,...") into raw bytes
// and its media type. Non-base64 payloads are percent-decoded.
func DecodeDataURI(uri string) ([]byte, string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, "", fmt.Errorf("%w: missing data: scheme", entity.ErrInvalidDataURI)
	}

	header, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing payload separator", entity.ErrInvalidDataURI)
	}

	params := strings.Split(header, ";")
	mediaType := strings.TrimSpace(params[0])
	if mediaType == "" {
		mediaType = "text/plain"
	}

	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// some encoders drop the padding
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return nil, "", fmt.Errorf("%w: %v", entity.ErrInvalidDataURI, err)
			}
		}
		return data, mediaType, nil
	}

	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", entity.ErrInvalidDataURI, err)
	}
	return []byte(decoded), mediaType, nil
}
