package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/form-segment/internal/annotation"
	"github.com/ironsheep/form-segment/internal/ocr"
	"github.com/ironsheep/form-segment/internal/source"
)

var annotateOut string

var annotateCmd = &cobra.Command{
	Use:   "annotate <file>...",
	Short: "Generate words.txt annotations with Tesseract OCR",
	Long: `Recognize the words of each form and write them in words.txt format, so
the annotations mode can run on scans that ship without word boxes. Words
read below --min-confidence are written with status "er" and do not count
toward the split.

Requires Tesseract and the language data to be installed.

Examples:
  form-segment annotate --out words.txt scans/*.png
  form-segment annotate --language deu form.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg := cm.Get()
		logger := cfg.NewLogger(os.Stderr)

		tess := ocr.NewTesseract(cfg.OCR.Language)
		logger.Debug("tesseract", "version", ocr.Version(), "language", tess.Language)
		src := source.NewDirSource("", cfg.PDF.DPI)

		var records []annotation.Record
		for _, path := range args {
			forms, err := source.FormsForFile(path)
			if err != nil {
				logger.Warn("skipping file", "path", path, "error", err)
				continue
			}
			for _, form := range forms {
				img, err := src.Load(cmd.Context(), form)
				if err != nil {
					logger.Warn("skipping form", "form", form.ID, "error", err)
					continue
				}
				recs, err := ocr.Annotate(tess, form.ID, img, cfg.OCR.MinConfidence)
				if err != nil {
					return err
				}
				logger.Info("annotated form", "form", form.ID, "words", len(recs))
				records = append(records, recs...)
			}
		}

		var w io.Writer = cmd.OutOrStdout()
		if annotateOut != "" {
			f, err := os.Create(annotateOut)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", annotateOut, err)
			}
			defer f.Close()
			w = f
		}
		return ocr.WriteAnnotations(w, records)
	},
}

func init() {
	annotateCmd.Flags().StringVar(&annotateOut, "out", "", "output file (default: stdout)")
	annotateCmd.Flags().String("language", "eng", "Tesseract language code")
	annotateCmd.Flags().Float64("min-confidence", 0.6, "confidence (0-1) below which words are marked er")
	annotateCmd.Flags().Float64("dpi", 200, "render resolution for PDF pages")

	rootCmd.AddCommand(annotateCmd)
}
