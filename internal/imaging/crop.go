package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// CropRows extracts the full-width band of rows [top, bottom) from img.
//
// A zero-height band (top == bottom) is valid and yields an empty image that keeps
// the source width, so callers can report it rather than lose it. Row indices are
// relative to the image origin, not to img.Bounds().Min.
func CropRows(img image.Image, top, bottom int) (*image.NRGBA, error) {
	bounds := img.Bounds()
	height := bounds.Dy()

	if top < 0 || bottom > height || top > bottom {
		return nil, fmt.Errorf("row band [%d,%d) outside image height %d", top, bottom, height)
	}
	if top == bottom {
		return image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), 0)), nil
	}

	rect := image.Rect(bounds.Min.X, bounds.Min.Y+top, bounds.Max.X, bounds.Min.Y+bottom)
	return imaging.Crop(img, rect), nil
}

// Save writes img to path, creating parent directories as needed. The encoder is
// chosen from the file extension.
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image %s: %w", path, err)
	}
	return nil
}

// EncodedImage is a PNG rendition of an image for transports that cannot carry
// raw pixels.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG renders img as a base64 PNG.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
