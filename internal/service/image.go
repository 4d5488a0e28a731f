package service

import (
	"fmt"
	"net/http"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// SniffImage returns the content type detected from the upload's leading
// bytes. Anything other than JPEG, PNG or WebP is ErrInvalidImage.
func SniffImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty upload", ErrInvalidImage)
	}
	ct := http.DetectContentType(data)
	if !allowedImageTypes[ct] {
		return "", fmt.Errorf("%w: unsupported type %s", ErrInvalidImage, ct)
	}
	return ct, nil
}
