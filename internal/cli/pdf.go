package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"imgpdf/internal/converter"
	"imgpdf/internal/estimate"
	"imgpdf/internal/pdfdoc"
	"imgpdf/internal/preset"
	"imgpdf/internal/raster"
)

func (a *app) newToImagesCommand() *cobra.Command {
	var (
		format  string
		quality float64
		scale   float64
		outDir  string
	)
	cmd := &cobra.Command{
		Use:   "toimages <file.pdf>",
		Short: "Render every page of a PDF to an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := a.cfg.ExtractSettings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format") {
				settings.Format = raster.Format(strings.ToLower(format))
			}
			if cmd.Flags().Changed("quality") {
				settings.Quality = quality
			}
			if cmd.Flags().Changed("scale") {
				settings.Scale = scale
			}

			src := args[0]
			pdf, err := os.ReadFile(src)
			if err != nil {
				return fmt.Errorf("could not read PDF: %w", err)
			}

			pages, err := a.converter().PDFToImages(cmd.Context(), pdf, settings, newProgressReporter(cmd.ErrOrStderr(), a.ui))
			if err != nil {
				return err
			}
			for _, page := range pages {
				path := filepath.Join(outDir, page.Filename(src))
				if err := writeOutput(path, page.Image.Data); err != nil {
					return err
				}
				a.ui.Info("Wrote %s (%dx%d, %s)", path, page.Image.Width, page.Image.Height, estimate.FormatFileSize(page.Image.Size()))
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&format, "format", "f", "png", "output image format: png or jpeg")
	fl.Float64VarP(&quality, "quality", "q", 0.92, "JPEG quality between 0.1 and 1")
	fl.Float64Var(&scale, "scale", 2, "render scale between 1 and 3")
	fl.StringVarP(&outDir, "output-dir", "d", ".", "directory for the page images")
	return cmd
}

func (a *app) newCompressCommand() *cobra.Command {
	var (
		level  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "compress <file.pdf>",
		Short: "Shrink a PDF by re-rendering its pages as JPEG images",
		Long: `Shrink a PDF by rasterising every page and re-encoding it as JPEG. Page sizes are
kept but text and vector graphics become pixels and can no longer be selected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("level") {
				level = a.cfg.Compress.Level
			}
			lvl, err := preset.LookupPDFLevel(level)
			if err != nil {
				return err
			}

			src := args[0]
			pdf, err := os.ReadFile(src)
			if err != nil {
				return fmt.Errorf("could not read PDF: %w", err)
			}

			res, err := a.converter().CompressPDF(cmd.Context(), pdf, lvl, newProgressReporter(cmd.ErrOrStderr(), a.ui))
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(filepath.Dir(src), converter.CompressedFilename(src))
			}
			if err := writeOutput(output, res.Data); err != nil {
				return err
			}
			a.ui.Success("Wrote %s: %s -> %s (%d%% smaller, %d pages)", output,
				estimate.FormatFileSize(res.OriginalSize), estimate.FormatFileSize(res.CompressedSize), res.Savings(), res.PageCount)
			if res.Savings() == 0 {
				a.ui.Warn("The compressed PDF is not smaller than the original")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&level, "level", "l", preset.DefaultPDFLevel, "compression level: balanced or aggressive")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <name>-compressed.pdf)")
	return cmd
}

func (a *app) newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.pdf>",
		Short: "Show page count and page sizes of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pdf, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("could not read PDF: %w", err)
			}
			info, err := pdfdoc.Inspect(pdf)
			if err != nil {
				return err
			}
			a.ui.Section(filepath.Base(args[0]))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Size:  %s\n", estimate.FormatFileSize(info.Size))
			fmt.Fprintf(out, "Pages: %d\n", info.PageCount)
			for i, p := range info.Pages {
				fmt.Fprintf(out, "  %3d  %.1f x %.1f mm\n", i+1, p.Width, p.Height)
			}
			return nil
		},
	}
}
