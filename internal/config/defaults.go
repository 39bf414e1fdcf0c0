package config

import (
	"time"

	"github.com/ironsheep/form-segment/internal/annotation"
	"github.com/ironsheep/form-segment/internal/detection"
)

// DefaultConfig returns the configuration tuned for IAM-style forms.
func DefaultConfig() *Config {
	morph := detection.DefaultMorphConfig()
	hough := detection.DefaultHoughConfig()

	return &Config{
		LogLevel: "info",
		Detect: DetectConfig{
			Variant:           detection.VariantMorph,
			MaxLines:          detection.DefaultMaxLines,
			FallbackFractions: append([]float64(nil), detection.DefaultFallbackFractions...),
			Morph: MorphConfig{
				Threshold:           int(morph.Threshold),
				KernelWidthRatio:    morph.KernelWidthRatio,
				MinWidthRatio:       morph.MinWidthRatio,
				MaxThickness:        morph.MaxThickness,
				OnInsufficientLines: string(morph.Policy),
			},
			Hough: HoughConfig{
				MinLineLength:       hough.MinLineLength,
				MaxLineGap:          hough.MaxLineGap,
				EdgeThreshold:       int(hough.EdgeThreshold),
				VoteThreshold:       hough.VoteThreshold,
				HorizontalTolerance: hough.HorizontalTolerance,
				MergeTolerance:      hough.MergeTolerance,
				OnInsufficientLines: string(hough.Policy),
			},
			Debug: DebugConfig{
				Enabled: false,
				Path:    detection.DefaultDebugPath,
			},
		},
		Annotation: AnnotationConfig{
			Margin:    annotation.DefaultMargin,
			Status:    annotation.StatusOK,
			MinFields: annotation.DefaultMinFields,
			Path:      "data/IAM_Dataset/annotations/words.txt",
		},
		Batch: BatchConfig{
			DataDir:      "data/IAM_Dataset",
			OutputDir:    "outputs",
			Workers:      4,
			LoadAttempts: 3,
			LoadDelay:    200 * time.Millisecond,
		},
		PDF: PDFConfig{
			DPI: 200,
		},
		OCR: OCRConfig{
			Language:      "eng",
			MinConfidence: 0.6,
		},
	}
}

// DefaultValues flattens DefaultConfig into viper keys. Every leaf is listed
// so that FORMSEG_* environment variables resolve for each key.
func DefaultValues() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"log_level": d.LogLevel,

		"detect.variant":            d.Detect.Variant,
		"detect.max_lines":          d.Detect.MaxLines,
		"detect.fallback_fractions": d.Detect.FallbackFractions,

		"detect.morph.threshold":             d.Detect.Morph.Threshold,
		"detect.morph.kernel_width_ratio":    d.Detect.Morph.KernelWidthRatio,
		"detect.morph.min_width_ratio":       d.Detect.Morph.MinWidthRatio,
		"detect.morph.max_thickness":         d.Detect.Morph.MaxThickness,
		"detect.morph.on_insufficient_lines": d.Detect.Morph.OnInsufficientLines,

		"detect.hough.min_line_length":       d.Detect.Hough.MinLineLength,
		"detect.hough.max_line_gap":          d.Detect.Hough.MaxLineGap,
		"detect.hough.edge_threshold":        d.Detect.Hough.EdgeThreshold,
		"detect.hough.vote_threshold":        d.Detect.Hough.VoteThreshold,
		"detect.hough.horizontal_tolerance":  d.Detect.Hough.HorizontalTolerance,
		"detect.hough.merge_tolerance":       d.Detect.Hough.MergeTolerance,
		"detect.hough.on_insufficient_lines": d.Detect.Hough.OnInsufficientLines,

		"detect.debug.enabled": d.Detect.Debug.Enabled,
		"detect.debug.path":    d.Detect.Debug.Path,

		"annotation.margin":     d.Annotation.Margin,
		"annotation.status":     d.Annotation.Status,
		"annotation.min_fields": d.Annotation.MinFields,
		"annotation.path":       d.Annotation.Path,

		"batch.data_dir":      d.Batch.DataDir,
		"batch.output_dir":    d.Batch.OutputDir,
		"batch.workers":       d.Batch.Workers,
		"batch.load_attempts": d.Batch.LoadAttempts,
		"batch.load_delay":    d.Batch.LoadDelay,
		"batch.report":        d.Batch.Report,
		"batch.save_header":   d.Batch.SaveHeader,

		"pdf.dpi": d.PDF.DPI,

		"ocr.language":       d.OCR.Language,
		"ocr.min_confidence": d.OCR.MinConfidence,
	}
}
