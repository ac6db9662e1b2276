package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"imgpdf/internal/bgremoval"
	"imgpdf/internal/estimate"
	"imgpdf/internal/preset"
)

func (a *app) newEstimateCommand() *cobra.Command {
	var flags settingsFlags
	cmd := &cobra.Command{
		Use:   "estimate [files or directories...]",
		Short: "Predict the PDF size for a set of images without converting them",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.resolve(cmd, a.cfg.Defaults)
			if err != nil {
				return err
			}
			paths, err := collectImageFiles(args)
			if err != nil {
				return err
			}

			sizes := make([]int64, 0, len(paths))
			var original int64
			for _, p := range paths {
				info, err := os.Stat(p)
				if err != nil {
					return err
				}
				sizes = append(sizes, info.Size())
				original += info.Size()
			}

			a.ui.Info("%d images, %s", len(paths), estimate.FormatFileSize(original))
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODE\tESTIMATE\tSAVINGS\t")

			modes := []preset.Mode{preset.Direct()}
			for _, p := range preset.All() {
				modes = append(modes, preset.Optimized(p.Name))
			}
			for _, m := range modes {
				size := estimate.OutputSize(sizes, m)
				marker := ""
				if m == settings.Mode {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s%s\t%s\t%d%%\t\n", m, marker, estimate.FormatFileSize(size), estimate.Savings(original, size))
			}
			return tw.Flush()
		},
	}
	flags.register(cmd, false)
	return cmd
}

func (a *app) newPresetsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List compression presets, PDF compression levels and background removal profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(catalog())
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			a.ui.Section("Image presets")
			fmt.Fprintln(tw, "NAME\tMAX SIZE\tQUALITY\tDESCRIPTION\t")
			for _, p := range preset.All() {
				fmt.Fprintf(tw, "%s\t%dpx\t%d%%\t%s\t\n", p.Name, p.MaxDimension, preset.QualityPercent(p.Quality), p.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			a.ui.Section("PDF compression levels")
			for _, l := range preset.PDFLevels() {
				fmt.Fprintf(tw, "%s\tscale %.1f\t%d%%\t%s\t\n", l.Name, l.Scale, preset.QualityPercent(l.Quality), l.Label)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			a.ui.Section("Background removal profiles")
			for _, p := range bgremoval.Profiles() {
				fmt.Fprintf(tw, "%s\t%dpx\t%s\t\n", p.Name, p.MaxDimension, p.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// Catalog lists every selectable preset, level and profile.
type Catalog struct {
	Presets   []preset.Preset     `json:"presets"`
	PDFLevels []preset.PDFLevel   `json:"pdfLevels"`
	Profiles  []bgremoval.Profile `json:"backgroundProfiles"`
}

func catalog() Catalog {
	return Catalog{
		Presets:   preset.All(),
		PDFLevels: preset.PDFLevels(),
		Profiles:  bgremoval.Profiles(),
	}
}
