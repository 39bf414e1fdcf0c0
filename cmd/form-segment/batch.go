package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/form-segment/internal/annotation"
	"github.com/ironsheep/form-segment/internal/batch"
	"github.com/ironsheep/form-segment/internal/config"
	"github.com/ironsheep/form-segment/internal/source"
)

var linesCmd = &cobra.Command{
	Use:   "lines [data-dir]",
	Short: "Segment every form of a directory on its detected rule lines",
	Long: `Detect the rule lines of every form under data-dir and write up to three
bands per form: computer_written, handwritten and bottom.

Forms whose lines cannot be found fall back to estimated positions with the
morph detector, or are skipped with the hough detector. Skipped forms are
logged with their reason and never stop the run.

Examples:
  form-segment lines data/IAM_Dataset/forms
  form-segment lines --variant hough --output-dir out/hough forms/
  form-segment lines --report out/run.yaml forms/`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args, batch.ModeLines)
	},
}

var annotationsCmd = &cobra.Command{
	Use:   "annotations [data-dir]",
	Short: "Segment forms on the boundary given by their word annotations",
	Long: `Split every annotated form once, a margin above its topmost handwritten word,
into computer_written and handwritten bands. Word boxes come from an
IAM-style words.txt; forms without usable annotations are skipped.

Examples:
  form-segment annotations --annotations data/IAM_Dataset/annotations/words.txt forms/
  form-segment annotations --margin 30 forms/`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args, batch.ModeAnnotations)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{linesCmd, annotationsCmd} {
		addOutputFlags(cmd)
		cmd.Flags().String("data-dir", "data/IAM_Dataset", "directory of form images and PDFs")
		cmd.Flags().String("report", "", "write a YAML run report to this path")
		cmd.Flags().Float64("dpi", 200, "render resolution for PDF pages")
	}

	linesCmd.Flags().String("variant", "morph", "line detector: morph or hough")
	linesCmd.Flags().Bool("debug", false, "write a line overlay for every detected form")
	linesCmd.Flags().String("debug-path", "outputs/debug_lines_fallback.png", "where the debug overlay is written")

	annotationsCmd.Flags().String("annotations", "data/IAM_Dataset/annotations/words.txt", "words.txt with the word boxes")
	annotationsCmd.Flags().Int("margin", 20, "pixels kept above the topmost handwritten word")

	rootCmd.AddCommand(linesCmd, annotationsCmd)
}

func runBatch(cmd *cobra.Command, args []string, mode batch.Mode) error {
	cm, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg := cm.Get()
	logger := cfg.NewLogger(os.Stderr)

	dataDir := cfg.Batch.DataDir
	if len(args) == 1 {
		dataDir = args[0]
	}

	runner, err := newRunner(cfg, dataDir, mode)
	if err != nil {
		return err
	}
	runner.Logger = logger
	if mode == batch.ModeLines {
		if runner.Detector, err = cfg.NewDetector(logger); err != nil {
			return err
		}
	}

	summary, err := runner.Run(cmd.Context())
	if summary != nil {
		printSummary(cmd, summary)
		if cfg.Batch.Report != "" {
			if werr := batch.WriteReport(summary, cfg.Batch.Report); werr != nil {
				logger.Error("failed to write report", "path", cfg.Batch.Report, "error", werr)
			} else {
				logger.Info("wrote report", "path", cfg.Batch.Report)
			}
		}
	}
	return err
}

// newRunner assembles a runner over dataDir without a detector or logger. In
// annotations mode it loads the word annotations.
func newRunner(cfg *config.Config, dataDir string, mode batch.Mode) (*batch.Runner, error) {
	src := source.NewLoader(
		source.NewDirSource(dataDir, cfg.PDF.DPI),
		cfg.Batch.LoadAttempts,
		cfg.Batch.LoadDelay,
		nil,
	)

	runner := &batch.Runner{
		Source: src,
		Options: batch.Options{
			Mode:       mode,
			OutputDir:  cfg.Batch.OutputDir,
			Workers:    cfg.Batch.Workers,
			SaveHeader: cfg.Batch.SaveHeader,
		},
	}

	if mode == batch.ModeAnnotations {
		words, err := annotation.LoadFile(cfg.Annotation.Path)
		if err != nil {
			return nil, err
		}
		runner.Annotations = cfg.AnnotationDetector()
		runner.Words = words
	}
	return runner, nil
}

func printSummary(cmd *cobra.Command, s *batch.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s (%s): %d forms, %d segmented, %d skipped, %d estimated\n",
		s.RunID, s.Mode, s.Total(), s.Processed, s.Skipped, s.Estimated)
	for reason, n := range s.Reasons {
		fmt.Fprintf(out, "  %-24s %d\n", reason, n)
	}
}
