package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/form-segment/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Serve the form tools over the Model Context Protocol (JSON-RPC 2.0 on
stdin/stdout). Logs go to stderr; stdout carries only protocol messages.

Configure it in your MCP client, e.g.:

  {"command": "form-segment", "args": ["serve"]}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg := cm.Get()
		logger := cfg.NewLogger(os.Stderr)

		detCfg, err := cfg.DetectionConfig()
		if err != nil {
			return err
		}

		srv, err := server.New(server.Options{
			Name:        "form-segment",
			Version:     Version,
			Detection:   detCfg,
			Annotations: cfg.AnnotationDetector(),
			DPI:         cfg.PDF.DPI,
			SaveHeader:  cfg.Batch.SaveHeader,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		logger.Debug("starting mcp server", "build_time", BuildTime, "commit", GitCommit, "config", cm.ConfigFile())

		return srv.Run(cmd.Context(), os.Stdin, os.Stdout)
	},
}

func init() {
	serveCmd.Flags().String("variant", "morph", "default line detector: morph or hough")
	serveCmd.Flags().Float64("dpi", 200, "render resolution for PDF pages")

	rootCmd.AddCommand(serveCmd)
}
