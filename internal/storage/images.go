package storage

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// Profile pictures use fixed widths; photo widths come from config.
const (
	profileThumbWidth = 200
	profileFullWidth  = 800

	jpegQuality = 85
)

// DecodeImage decodes an uploaded image, honoring EXIF orientation.
// Handlers call this before handing the image to the facade.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// renderVariant scales the image down to maxWidth (never up, aspect
// ratio preserved) and encodes it as JPEG.
func renderVariant(img image.Image, maxWidth int) ([]byte, error) {
	out := img
	if img.Bounds().Dx() > maxWidth {
		out = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
