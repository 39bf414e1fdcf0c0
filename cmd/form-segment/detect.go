package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/form-segment/internal/formerr"
	"github.com/ironsheep/form-segment/internal/source"
)

// detectEntry is one form's entry in the detect output.
type detectEntry struct {
	Form      string `yaml:"form"`
	Lines     []int  `yaml:"lines,flow"`
	Estimated bool   `yaml:"estimated,omitempty"`
	Reason    string `yaml:"reason,omitempty"`
}

var detectCmd = &cobra.Command{
	Use:   "detect <file>...",
	Short: "Print the rule lines found on forms without writing crops",
	Long: `Run the configured line detector on each file and print the result as YAML.
PDF files report one entry per page. With --debug the overlay of the last
form is written to the debug path.

Examples:
  form-segment detect a01-000u.png
  form-segment detect --variant hough --debug scans/*.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg := cm.Get()
		logger := cfg.NewLogger(os.Stderr)

		det, err := cfg.NewDetector(logger)
		if err != nil {
			return err
		}

		var results []detectEntry
		for _, path := range args {
			forms, err := source.FormsForFile(path)
			if err != nil {
				results = append(results, detectEntry{Form: path, Reason: formerr.Reason(err)})
				continue
			}
			src := source.NewDirSource("", cfg.PDF.DPI)
			for _, form := range forms {
				entry := detectEntry{Form: form.ID}
				img, err := src.Load(cmd.Context(), form)
				if err != nil {
					entry.Reason = formerr.Reason(err)
					results = append(results, entry)
					continue
				}
				res, err := det.Detect(img)
				if res != nil {
					entry.Lines = res.Lines
					entry.Estimated = res.Estimated
				}
				entry.Reason = formerr.Reason(err)
				results = append(results, entry)
			}
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(results)
	},
}

func init() {
	detectCmd.Flags().String("variant", "morph", "line detector: morph or hough")
	detectCmd.Flags().Bool("debug", false, "write a line overlay for the detected form")
	detectCmd.Flags().String("debug-path", "outputs/debug_lines_fallback.png", "where the debug overlay is written")
	detectCmd.Flags().Float64("dpi", 200, "render resolution for PDF pages")

	rootCmd.AddCommand(detectCmd)
}
