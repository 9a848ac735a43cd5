package services

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/ecoalerta/chat-backend/models"
)

// ParseImage normalizes the image payload of a chat request. It accepts a
// data URI, an http(s) URL or bare base64. An empty payload yields nil.
func ParseImage(payload string) (*models.ImageInput, error) {
	payload = strings.TrimSpace(payload)
	switch {
	case payload == "":
		return nil, nil
	case strings.HasPrefix(payload, "http://"), strings.HasPrefix(payload, "https://"):
		return parseImageURL(payload)
	case strings.HasPrefix(payload, "data:"):
		return parseDataURI(payload)
	default:
		data, err := decodeBase64(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: not a URL, data URI or base64 string", ErrInvalidImage)
		}
		return newInlineImage("", data)
	}
}

func parseImageURL(raw string) (*models.ImageInput, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: malformed URL", ErrInvalidImage)
	}
	return &models.ImageInput{
		URL:      raw,
		MIMEType: mime.TypeByExtension(strings.ToLower(path.Ext(u.Path))),
	}, nil
}

func parseDataURI(raw string) (*models.ImageInput, error) {
	header, encoded, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: data URI has no payload", ErrInvalidImage)
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, fmt.Errorf("%w: data URI must be base64 encoded", ErrInvalidImage)
	}
	data, err := decodeBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return newInlineImage(mimeType, data)
}

// newInlineImage sniffs the content type when none was declared and rejects
// anything that is not an image.
func newInlineImage(mimeType string, data []byte) (*models.ImageInput, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrInvalidImage, mimeType)
	}
	return &models.ImageInput{MIMEType: mimeType, Data: data}, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
