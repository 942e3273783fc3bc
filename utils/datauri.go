package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"

	"nutritrack/classifier"
)

// MaxFrameBytes caps a decoded camera frame.
const MaxFrameBytes = 4 << 20

// DecodeDataURI turns "data:<mime>;base64,<data>" into a frame. A bare
// base64 payload is accepted as JPEG.
func DecodeDataURI(s string) (classifier.Frame, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return classifier.Frame{}, errors.New("empty image")
	}
	contentType := "image/jpeg"
	payload := s
	if strings.HasPrefix(s, "data:") {
		meta, data, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return classifier.Frame{}, errors.New("invalid data URI")
		}
		contentType = strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
		if !strings.HasPrefix(contentType, "image/") {
			return classifier.Frame{}, fmt.Errorf("unsupported content type %q", contentType)
		}
		payload = data
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxFrameBytes {
		return classifier.Frame{}, errors.New("image too large")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return classifier.Frame{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return classifier.Frame{Data: raw, ContentType: contentType}, nil
}

// ExtForContentType picks a file extension for an image MIME type.
func ExtForContentType(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	if _, sub, ok := strings.Cut(contentType, "/"); ok {
		return "." + sub
	}
	return ""
}
