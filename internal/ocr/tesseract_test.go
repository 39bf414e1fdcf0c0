package ocr

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/form-segment/internal/annotation"
)

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	point := fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  point,
	}
	d.DrawString(text)
}

// createWhiteImage creates a white canvas
func createWhiteImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

// fakeRecognizer returns canned words
type fakeRecognizer struct {
	words []Word
	err   error
}

func (f *fakeRecognizer) Words(img image.Image) ([]Word, error) {
	return f.words, f.err
}

func word(text string, conf float64, x, y, w, h int) Word {
	return Word{Text: text, Confidence: conf, Box: image.Rect(x, y, x+w, y+h)}
}

func TestTesseract_Words(t *testing.T) {
	img := createWhiteImage(400, 80)
	drawText(img, 20, 40, "HELLO FORM", color.Black)

	words, err := NewTesseract("eng").Words(img)
	if err != nil {
		// Tesseract might not be installed - skip test
		if strings.Contains(err.Error(), "tesseract") ||
			strings.Contains(err.Error(), "language") ||
			strings.Contains(err.Error(), "library") {
			t.Skip("Tesseract not available")
		}
		t.Fatalf("Words failed: %v", err)
	}

	for _, w := range words {
		if w.Text == "" {
			t.Error("empty words should be dropped")
		}
		if !w.Box.In(img.Bounds()) {
			t.Errorf("box %v outside image", w.Box)
		}
		if w.Confidence < 0 || w.Confidence > 1 {
			t.Errorf("confidence %f outside [0,1]", w.Confidence)
		}
	}
}

func TestNewTesseract_DefaultLanguage(t *testing.T) {
	if got := NewTesseract("").Language; got != "eng" {
		t.Errorf("default language: got %q, want eng", got)
	}
	if got := NewTesseract("deu").Language; got != "deu" {
		t.Errorf("language: got %q, want deu", got)
	}
}

func TestGroupLines(t *testing.T) {
	words := []Word{
		word("second", 0.9, 200, 105, 80, 30),
		word("third", 0.9, 20, 300, 60, 30),
		word("first", 0.9, 20, 100, 80, 40),
		word("tail", 0.9, 320, 110, 50, 25),
	}

	lines := GroupLines(words)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var got []string
	for _, w := range lines[0] {
		got = append(got, w.Text)
	}
	if strings.Join(got, " ") != "first second tail" {
		t.Errorf("line 0 order: got %v", got)
	}
	if lines[1][0].Text != "third" {
		t.Errorf("line 1: got %v", lines[1])
	}

	if GroupLines(nil) != nil {
		t.Error("no words should give no lines")
	}
}

func TestRecords(t *testing.T) {
	img := createWhiteImage(500, 400)
	for y := 100; y < 140; y++ {
		for x := 20; x < 100; x++ {
			img.Set(x, y, color.Black)
		}
	}

	words := []Word{
		word("Name", 0.95, 20, 100, 80, 40),
		word("sm ith", 0.40, 150, 102, 90, 38),
		word(" ", 0.99, 300, 100, 10, 10),
		word("Date", 0.80, 20, 300, 60, 30),
	}

	records := Records("x01-000", img, words, 0.6)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	first := records[0]
	if first.WordID != "x01-000-00-00" || first.Status != "ok" || first.Text != "Name" {
		t.Errorf("first record: %+v", first)
	}
	if first.X != 20 || first.Y != 100 || first.W != 80 || first.H != 40 {
		t.Errorf("first box: %+v", first)
	}
	if first.GrayLevel != 0 {
		t.Errorf("solid black box should have gray level 0, got %d", first.GrayLevel)
	}

	second := records[1]
	if second.Status != "er" || second.Text != "smith" || second.WordID != "x01-000-00-01" {
		t.Errorf("low-confidence record: %+v", second)
	}

	if records[2].WordID != "x01-000-01-00" {
		t.Errorf("second line id: got %s", records[2].WordID)
	}
}

func TestAnnotate_FeedsAnnotationDetector(t *testing.T) {
	img := createWhiteImage(600, 1000)
	rec := &fakeRecognizer{words: []Word{
		word("printed", 0.97, 30, 120, 100, 30),
		word("scrawl", 0.20, 30, 60, 100, 30),
		word("answer", 0.70, 30, 500, 120, 40),
	}}

	records, err := Annotate(rec, "f07-000", img, 0.6)
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteAnnotations(&buf, records); err != nil {
		t.Fatalf("WriteAnnotations failed: %v", err)
	}

	groups, err := annotation.GroupByForm(&buf)
	if err != nil {
		t.Fatalf("GroupByForm failed: %v", err)
	}
	lines, ok := groups["f07-000"]
	if !ok || len(lines) != 3 {
		t.Fatalf("expected 3 lines for f07-000, got %v", groups)
	}

	// The low-confidence word at y=60 is written as "er" and ignored.
	split, err := annotation.NewDetector().Detect(img, lines)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if split != 100 {
		t.Errorf("split: got %d, want 100", split)
	}
}

func TestAnnotate_RecognizerError(t *testing.T) {
	boom := errors.New("engine down")
	_, err := Annotate(&fakeRecognizer{err: boom}, "f07-000", createWhiteImage(10, 10), 0.6)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped recognizer error, got %v", err)
	}
}

func TestWriteAnnotations_Header(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnnotations(&buf, nil); err != nil {
		t.Fatalf("WriteAnnotations failed: %v", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if !strings.HasPrefix(line, "#") {
			t.Errorf("header line not a comment: %q", line)
		}
	}
}

func TestMeanGray(t *testing.T) {
	img := createWhiteImage(10, 10)
	for x := 0; x < 5; x++ {
		img.Set(x, 0, color.Black)
	}

	if got := meanGray(img, image.Rect(0, 0, 10, 1)); got != 127 {
		t.Errorf("half black row: got %d, want 127", got)
	}
	if got := meanGray(img, image.Rect(20, 20, 30, 30)); got != 255 {
		t.Errorf("box outside image: got %d, want 255", got)
	}
}
