package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/comfybridge/internal/document"
	"github.com/GriffinCanCode/comfybridge/internal/export"
	"github.com/GriffinCanCode/comfybridge/internal/imaging"
	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/monitoring"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var documentPath, selectionPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run the export pipeline once and print the artifact paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if documentPath == "" {
				documentPath = cfg.Paths.DocumentPath
			}
			if selectionPath == "" {
				selectionPath = cfg.Paths.SelectionPath
			}
			if documentPath == "" {
				return errors.New("no document: pass --document or set DOCUMENT_PATH")
			}

			pipeline := export.NewPipeline(
				document.NewFileSource(documentPath, selectionPath),
				imaging.NewEncoder(cfg.Export.JPEGQuality),
				export.Artifacts{
					RGBPath:     cfg.Paths.RGBArtifactPath(),
					InpaintPath: cfg.Paths.InpaintArtifactPath(),
				},
				logger,
				monitoring.NewMetrics(),
			)
			artifacts, err := pipeline.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", export.Cause(err), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), artifacts.RGBPath)
			fmt.Fprintln(cmd.OutOrStdout(), artifacts.InpaintPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&documentPath, "document", "", "document image (PNG or JPEG)")
	cmd.Flags().StringVar(&selectionPath, "selection", "", "grayscale selection mask image")
	return cmd
}
