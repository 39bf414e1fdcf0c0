package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"

	"github.com/otiai10/gosseract/v2"
)

// Word is one recognized word with its box in form coordinates.
type Word struct {
	// Text is the recognized word.
	Text string `json:"text"`

	// Confidence is Tesseract's recognition confidence (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Box is the word's bounding box in the image.
	Box image.Rectangle `json:"box"`
}

// Recognizer finds the words of a form image.
type Recognizer interface {
	Words(img image.Image) ([]Word, error)
}

// Tesseract recognizes words with the Tesseract engine.
type Tesseract struct {
	// Language is a Tesseract language code such as "eng". Its traineddata
	// must be installed.
	Language string
}

// NewTesseract creates a recognizer for language, defaulting to English.
func NewTesseract(language string) *Tesseract {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{Language: language}
}

// Words runs word-level OCR over img.
//
// The image is handed to Tesseract as an in-memory PNG, so boxes are relative
// to the image origin. Words with empty text are dropped.
func (t *Tesseract) Words(img image.Image) ([]Word, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.Language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		words = append(words, Word{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Box:        box.Box,
		})
	}
	return words, nil
}

// Version returns the linked Tesseract version.
func Version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}

// GroupLines orders words into text lines, top to bottom and left to right.
// A word joins the current line when its top lies above the line's lowest
// bottom edge seen so far.
func GroupLines(words []Word) [][]Word {
	if len(words) == 0 {
		return nil
	}

	sorted := append([]Word(nil), words...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Box.Min.Y != sorted[j].Box.Min.Y {
			return sorted[i].Box.Min.Y < sorted[j].Box.Min.Y
		}
		return sorted[i].Box.Min.X < sorted[j].Box.Min.X
	})

	lines := [][]Word{{sorted[0]}}
	bottom := sorted[0].Box.Max.Y
	for _, w := range sorted[1:] {
		if w.Box.Min.Y < bottom {
			lines[len(lines)-1] = append(lines[len(lines)-1], w)
			if w.Box.Max.Y > bottom {
				bottom = w.Box.Max.Y
			}
			continue
		}
		lines = append(lines, []Word{w})
		bottom = w.Box.Max.Y
	}

	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool {
			return line[i].Box.Min.X < line[j].Box.Min.X
		})
	}
	return lines
}

// meanGray returns the average luminance inside r, or 255 for an empty box.
func meanGray(img image.Image, r image.Rectangle) int {
	b := img.Bounds()
	r = r.Add(b.Min).Intersect(b)
	if r.Empty() {
		return 255
	}

	var sum, n int
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			sum += int(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
			n++
		}
	}
	return sum / n
}
