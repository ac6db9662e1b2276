package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"imgpdf/api"
	"imgpdf/internal/bgremoval"
	"imgpdf/internal/estimate"
)

func (a *app) newRemoveBackgroundCommand() *cobra.Command {
	var (
		resolution string
		outDir     string
	)
	cmd := &cobra.Command{
		Use:   "rmbg <image>...",
		Short: "Remove image backgrounds with the configured segmentation command",
		Long: `Remove image backgrounds. Each image is downsized to the resolution profile, passed to
the segmentation command configured under background_removal.command as PNG on stdin,
and the grayscale mask it prints to stdout becomes the alpha channel of the result.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("resolution") {
				resolution = a.cfg.BackgroundRemoval.Resolution
			}
			profile, err := bgremoval.LookupProfile(resolution)
			if err != nil {
				return err
			}
			if profile.Warning != "" {
				a.ui.Warn("%s", profile.Warning)
			}

			pipeline := a.pipeline()
			defer pipeline.Release()

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("could not read image: %w", err)
				}
				res, err := bgremoval.RemoveBackground(cmd.Context(), pipeline, filepath.Base(path), data, profile)
				if err != nil {
					return err
				}
				out := filepath.Join(outDir, res.Filename())
				if err := writeOutput(out, res.Image.Data); err != nil {
					return err
				}
				a.ui.Success("Wrote %s (%dx%d, %s)", out, res.Image.Width, res.Image.Height, estimate.FormatFileSize(res.Image.Size()))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&resolution, "resolution", "r", bgremoval.DefaultProfile, "resolution profile: high, medium or low")
	cmd.Flags().StringVarP(&outDir, "output-dir", "d", ".", "directory for the results")
	return cmd
}

func (a *app) newServeCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the converter over HTTP on a loopback address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}
			srv := api.NewServer(a.cfg, a.converter(), a.pipeline(), nil)
			a.ui.Info("Listening on http://%s", a.cfg.Server.Addr())
			return srv.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "listen port")
	return cmd
}
