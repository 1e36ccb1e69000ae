package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

// ProfilePictureMaxWidth is the width profile pictures are scaled down to
const ProfilePictureMaxWidth = 512

// ErrUnsupportedImage is returned for content types the optimizer cannot decode
var ErrUnsupportedImage = errors.New("unsupported image type")

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// IsImage checks if the content type is a supported image format
func IsImage(contentType string) bool {
	_, ok := imageExtensions[normalizeContentType(contentType)]
	return ok
}

// ImageExtension returns the file extension for a supported image type
func ImageExtension(contentType string) string {
	return imageExtensions[normalizeContentType(contentType)]
}

func normalizeContentType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// OptimizeImage resizes an image to at most maxWidth pixels wide.
// It returns the new bytes and the file extension matching them.
func OptimizeImage(data []byte, maxWidth uint) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}

	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}

	if uint(img.Bounds().Dx()) <= maxWidth {
		return data, ext, nil
	}

	// Resize using Lanczos3 for quality
	m := resize.Resize(maxWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, m, &jpeg.Options{Quality: 85})
	default:
		// gif and webp have no encoder here; png keeps transparency
		err = png.Encode(&buf, m)
		ext = "png"
	}
	if err != nil {
		return nil, "", err
	}

	return buf.Bytes(), ext, nil
}

// ErrInvalidDataURL is returned for data: URLs that are not base64 encoded
var ErrInvalidDataURL = errors.New("unsupported data URL")

// DecodeDataURL splits a base64 data: URL into its content type and bytes
func DecodeDataURL(src string) (string, []byte, error) {
	header, data, ok := strings.Cut(strings.TrimPrefix(strings.TrimSpace(src), "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", nil, ErrInvalidDataURL
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return "", nil, fmt.Errorf("decoding data URL: %w", err)
	}
	return strings.TrimSuffix(header, ";base64"), decoded, nil
}
