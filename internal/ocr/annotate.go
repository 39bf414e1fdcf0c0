package ocr

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/ironsheep/form-segment/internal/annotation"
)

// UnknownTag fills the grammatical tag column; OCR output is not tagged.
const UnknownTag = "UNK"

// Records converts recognized words into words.txt records for formID.
//
// Word ids follow <form>-<line>-<word>. A word is "ok" when its confidence is
// at least minConfidence and "er" otherwise, so the annotation detector only
// trusts words Tesseract was sure of. The gray level column is the mean
// luminance of the word box.
func Records(formID string, img image.Image, words []Word, minConfidence float64) []annotation.Record {
	records := make([]annotation.Record, 0, len(words))
	for li, line := range GroupLines(words) {
		for wi, w := range line {
			text := strings.Join(strings.Fields(w.Text), "")
			if text == "" {
				continue
			}
			status := "er"
			if w.Confidence >= minConfidence {
				status = annotation.StatusOK
			}
			records = append(records, annotation.Record{
				WordID:    fmt.Sprintf("%s-%02d-%02d", formID, li, wi),
				Status:    status,
				GrayLevel: meanGray(img, w.Box),
				X:         w.Box.Min.X,
				Y:         w.Box.Min.Y,
				W:         w.Box.Dx(),
				H:         w.Box.Dy(),
				Tag:       UnknownTag,
				Text:      text,
			})
		}
	}
	return records
}

// Annotate recognizes img and returns its words.txt records.
func Annotate(r Recognizer, formID string, img image.Image, minConfidence float64) ([]annotation.Record, error) {
	words, err := r.Words(img)
	if err != nil {
		return nil, fmt.Errorf("form %s: %w", formID, err)
	}
	return Records(formID, img, words, minConfidence), nil
}

// WriteAnnotations writes records in words.txt format behind a format header.
func WriteAnnotations(w io.Writer, records []annotation.Record) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "#--- words.txt generated by form-segment annotate ---#")
	fmt.Fprintln(bw, "# format: word_id status graylevel x y w h tag transcription")
	for _, rec := range records {
		if _, err := fmt.Fprintln(bw, rec.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
