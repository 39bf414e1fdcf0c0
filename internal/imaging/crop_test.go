package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
)

// rowStripes returns an image whose row y is the gray level y%256, so a crop's
// first row tells where it was cut.
func rowStripes(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(y % 256)})
		}
	}
	return img
}

func grayAt(img image.Image, x, y int) uint8 {
	b := img.Bounds()
	return color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
}

func TestCropRows(t *testing.T) {
	img := rowStripes(40, 100)

	band, err := CropRows(img, 10, 30)
	if err != nil {
		t.Fatalf("CropRows failed: %v", err)
	}
	if band.Bounds().Dx() != 40 || band.Bounds().Dy() != 20 {
		t.Errorf("dimensions: got %v, want 40x20", band.Bounds())
	}
	if got := grayAt(band, 5, 0); got != 10 {
		t.Errorf("first row: got gray %d, want 10", got)
	}
	if got := grayAt(band, 5, 19); got != 29 {
		t.Errorf("last row: got gray %d, want 29", got)
	}
}

func TestCropRows_FullAndEmpty(t *testing.T) {
	img := rowStripes(40, 100)

	full, err := CropRows(img, 0, 100)
	if err != nil {
		t.Fatalf("full crop failed: %v", err)
	}
	if full.Bounds().Dy() != 100 {
		t.Errorf("full crop height: got %d", full.Bounds().Dy())
	}

	empty, err := CropRows(img, 50, 50)
	if err != nil {
		t.Fatalf("empty crop failed: %v", err)
	}
	if empty.Bounds().Dx() != 40 || empty.Bounds().Dy() != 0 {
		t.Errorf("empty crop should keep width: got %v", empty.Bounds())
	}
}

func TestCropRows_Invalid(t *testing.T) {
	img := rowStripes(10, 10)

	tests := []struct {
		name        string
		top, bottom int
	}{
		{"negative top", -1, 5},
		{"bottom past height", 0, 11},
		{"inverted", 6, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CropRows(img, tt.top, tt.bottom); err == nil {
				t.Errorf("CropRows(%d, %d) should fail", tt.top, tt.bottom)
			}
		})
	}
}

func TestCropRows_SubImageOrigin(t *testing.T) {
	sub := rowStripes(20, 200).SubImage(image.Rect(0, 50, 20, 150))

	band, err := CropRows(sub, 0, 10)
	if err != nil {
		t.Fatalf("CropRows failed: %v", err)
	}
	if got := grayAt(band, 0, 0); got != 50 {
		t.Errorf("rows are relative to the image origin: got gray %d, want 50", got)
	}
}

func TestCropRows_DoesNotAlias(t *testing.T) {
	img := rowStripes(10, 10)
	band, err := CropRows(img, 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	band.Set(0, 0, color.White)
	if img.GrayAt(0, 0).Y != 0 {
		t.Error("writing to the crop changed the source")
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handwritten", "nested", "a01-000u.png")
	if err := Save(rowStripes(30, 12), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 12 {
		t.Errorf("saved dimensions: got %v", img.Bounds())
	}

	if err := Save(rowStripes(3, 3), filepath.Join(t.TempDir(), "out.xyz")); err == nil {
		t.Error("Save should fail for an unknown extension")
	}
}

func TestEncodePNG(t *testing.T) {
	result, err := EncodePNG(rowStripes(64, 32))
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	if result.Width != 64 || result.Height != 32 || result.MimeType != "image/png" {
		t.Errorf("header: got %+v", result)
	}

	raw, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	if grayAt(img, 0, 31) != 31 {
		t.Error("round-tripped pixels differ")
	}
}
