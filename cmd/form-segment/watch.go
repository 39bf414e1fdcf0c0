package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/form-segment/internal/batch"
	"github.com/ironsheep/form-segment/internal/config"
)

var watchCmd = &cobra.Command{
	Use:   "watch <inbox-dir>",
	Short: "Segment forms as they are dropped into a directory",
	Long: `Watch inbox-dir and segment each new form on its rule lines as soon as it
appears. Files already in the directory are left alone; run "lines" for
those. PDFs that are still being written are retried.

The config file is watched too: a changed log_level applies immediately.
Detector settings apply after a restart.

Example:
  form-segment watch --output-dir out/ scans/inbox`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		level := new(slog.LevelVar)
		level.Set(cfg.SlogLevel())
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		cm.OnChange(func(c *config.Config) {
			level.Set(c.SlogLevel())
			logger.Info("configuration reloaded", "log_level", c.LogLevel)
		})
		cm.WatchConfig()

		runner, err := newRunner(cfg, args[0], batch.ModeLines)
		if err != nil {
			return err
		}
		runner.Logger = logger
		if runner.Detector, err = cfg.NewDetector(logger); err != nil {
			return err
		}

		watcher := batch.NewWatcher(args[0], runner, cfg.Batch.LoadAttempts, cfg.Batch.LoadDelay)
		out := cmd.OutOrStdout()
		watcher.OnResult = func(r batch.FormResult) {
			if r.Status == batch.StatusOK {
				fmt.Fprintf(out, "%s\tok\t%v\n", r.ID, r.Lines)
				return
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", r.ID, r.Status, r.Reason)
		}

		return watcher.Run(cmd.Context())
	},
}

func init() {
	addOutputFlags(watchCmd)
	watchCmd.Flags().String("variant", "morph", "line detector: morph or hough")
	watchCmd.Flags().Float64("dpi", 200, "render resolution for PDF pages")

	rootCmd.AddCommand(watchCmd)
}
