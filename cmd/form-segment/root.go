package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ironsheep/form-segment/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "form-segment",
	Short: "Split scanned handwriting forms into printed, handwritten and signature regions",
	Long: `form-segment finds the horizontal rule lines of scanned forms (IAM style) and
crops each form into its regions:

  computer_written/  the printed prompt text
  handwritten/       the writer's copy of it
  bottom/            the signature area, when a third rule exists

Splits come either from detected rule lines or from word annotations
(words.txt). PDFs are processed page by page.`,
	Version:      Version,
	SilenceUsage: true,
}

// flagKeys maps command-line flags onto the config keys they override.
var flagKeys = map[string]string{
	"log-level":      "log_level",
	"variant":        "detect.variant",
	"debug":          "detect.debug.enabled",
	"debug-path":     "detect.debug.path",
	"annotations":    "annotation.path",
	"margin":         "annotation.margin",
	"data-dir":       "batch.data_dir",
	"output-dir":     "batch.output_dir",
	"workers":        "batch.workers",
	"report":         "batch.report",
	"save-header":    "batch.save_header",
	"dpi":            "pdf.dpi",
	"language":       "ocr.language",
	"min-confidence": "ocr.min_confidence",
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./form-segment.yaml or ~/.form-segment/form-segment.yaml)",
	)
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration, letting any flag of cmd listed in
// flagKeys override its key.
func loadConfig(cmd *cobra.Command) (*config.Manager, error) {
	flags := make(map[string]*pflag.Flag)
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			flags[key] = f
		}
	}
	return config.NewManager(cfgFile, flags)
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("output-dir", "outputs", "directory receiving the region subdirectories")
	cmd.Flags().Int("workers", 4, "forms processed in parallel")
	cmd.Flags().Bool("save-header", false, "also write the band above the first rule")
}
