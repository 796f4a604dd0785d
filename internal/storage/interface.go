package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Uploader stores image payloads and hands back a stable URL. The service
// only ever persists the returned URL, never raw bytes.
type Uploader interface {
	// Upload stores content under key and returns the URL it is served from.
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)

	// Delete removes the content with the given key.
	Delete(ctx context.Context, key string) error
}

var ErrInvalidPayload = errors.New("invalid image payload")

// DecodePayload decodes a client-supplied image payload. Accepts a data URI
// ("data:image/png;base64,....") or a bare base64 string, returning the raw
// bytes and the declared content type.
func DecodePayload(payload string) ([]byte, string, error) {
	contentType := "application/octet-stream"
	data := payload

	if strings.HasPrefix(payload, "data:") {
		meta, rest, ok := strings.Cut(payload[len("data:"):], ",")
		if !ok {
			return nil, "", ErrInvalidPayload
		}
		if ct, _, found := strings.Cut(meta, ";"); found && ct != "" {
			contentType = ct
		} else if meta != "" {
			contentType = meta
		}
		data = rest
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(raw) == 0 {
		return nil, "", ErrInvalidPayload
	}
	return raw, contentType, nil
}

// ExtensionFor maps a content type to a file extension for object keys.
func ExtensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
