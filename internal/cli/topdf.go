package cli

import (
	"time"

	"github.com/spf13/cobra"

	"imgpdf/internal/converter"
	"imgpdf/internal/estimate"
)

// settingsFlags holds the raw page and compression flags shared by topdf and estimate.
type settingsFlags struct {
	raw    converter.RawSettings
	margin float64
}

func (f *settingsFlags) register(cmd *cobra.Command, layoutFlags bool) {
	fl := cmd.Flags()
	if layoutFlags {
		fl.StringVarP(&f.raw.PageSize, "page-size", "s", "", "page size: a4 or letter")
		fl.StringVar(&f.raw.Orientation, "orientation", "", "page orientation: portrait or landscape")
		fl.StringVar(&f.raw.FitMode, "fit", "", "image placement: fit, fill or original")
		fl.Float64Var(&f.margin, "margin", 0, "page margin in millimetres")
	}
	fl.StringVarP(&f.raw.ConversionMode, "mode", "m", "", "conversion mode: optimized or direct")
	fl.StringVarP(&f.raw.Preset, "preset", "p", "", "compression preset: high, balanced, small or verySmall")
}

// resolve merges the flags over the configured defaults.
func (f *settingsFlags) resolve(cmd *cobra.Command, defaults converter.RawSettings) (converter.Settings, error) {
	raw := f.raw
	if cmd.Flags().Changed("margin") {
		margin := f.margin
		raw.MarginMm = &margin
	}
	if raw.Preset != "" && raw.ConversionMode == "" {
		raw.ConversionMode = "optimized"
	}
	return raw.Merge(defaults).Resolve()
}

func (a *app) newToPDFCommand() *cobra.Command {
	var (
		flags  settingsFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "topdf [files or directories...]",
		Short: "Convert images to a single PDF, one image per page",
		Long: `Convert images to a PDF. Directories contribute their .webp, .jpg, .jpeg and .png
files in name order; files are used in argument order. With no arguments the current
directory is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.resolve(cmd, a.cfg.Defaults)
			if err != nil {
				return err
			}

			paths, err := collectImageFiles(args)
			if err != nil {
				return err
			}
			a.ui.Info("Found %d image files to convert", len(paths))

			sources, err := openSources(paths)
			if err != nil {
				return err
			}
			images, err := converter.LoadSources(cmd.Context(), sources, a.cfg.Workers, a.cfg.Limits)
			if err != nil {
				return err
			}

			var original int64
			for _, img := range images {
				original += img.Size()
			}
			estimated := converter.EstimateOutputSize(images, settings.Mode)
			a.ui.Info("Input %s, estimated output %s (%s)", estimate.FormatFileSize(original), estimate.FormatFileSize(estimated), settings.Mode)

			pdf, err := a.converter().ImagesToPDF(cmd.Context(), images, settings, newProgressReporter(cmd.ErrOrStderr(), a.ui))
			if err != nil {
				return err
			}

			if output == "" {
				output = converter.DefaultOutputFilename(time.Now())
			}
			if err := writeOutput(output, pdf); err != nil {
				return err
			}
			a.ui.Success("Successfully created '%s' (%s) from %d images", output, estimate.FormatFileSize(int64(len(pdf))), len(images))
			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output PDF file name (default images-YYYY-MM-DD.pdf)")
	return cmd
}
