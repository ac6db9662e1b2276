// Package cli is the imgpdf command line front end.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"imgpdf/internal/bgremoval"
	"imgpdf/internal/config"
	"imgpdf/internal/converter"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	cfgFile    string
	verbose    bool
	noColor    bool
	cpuprofile string
	memprofile string

	cfg         *config.Config
	ui          *ui
	stopProfile func()
}

// NewRootCommand builds the imgpdf command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "imgpdf",
		Short: "Convert images to PDF and PDF back to images",
		Long: `imgpdf lays images out onto PDF pages, optionally downscaling and re-encoding them
with a compression preset. It can also render PDF pages to images, shrink existing PDFs
and strip image backgrounds with a local segmentation command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file path")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	pf.StringVar(&a.cpuprofile, "cpuprofile", "", "write cpu profile to `file`")
	pf.StringVar(&a.memprofile, "memprofile", "", "write memory profile to `file`")

	root.AddCommand(
		a.newToPDFCommand(),
		a.newToImagesCommand(),
		a.newInfoCommand(),
		a.newCompressCommand(),
		a.newEstimateCommand(),
		a.newPresetsCommand(),
		a.newRemoveBackgroundCommand(),
		a.newServeCommand(),
	)
	return root
}

// Execute runs the command tree until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		newUI(root.OutOrStdout(), root.ErrOrStderr()).Error("%v", err)
		return err
	}
	return nil
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.noColor {
		color.NoColor = true
	}
	a.ui = newUI(cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	logger, err := config.NewLogger(cmd.ErrOrStderr(), cfg.Log, a.verbose)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	stop, err := startCPUProfile(a.cpuprofile)
	if err != nil {
		return err
	}
	a.stopProfile = stop
	if a.cpuprofile != "" {
		a.ui.Info("CPU profiling enabled, output to %s", a.cpuprofile)
	}
	return nil
}

func (a *app) teardown() error {
	if a.stopProfile != nil {
		a.stopProfile()
	}
	if a.memprofile == "" {
		return nil
	}
	if err := writeHeapProfile(a.memprofile); err != nil {
		return err
	}
	a.ui.Info("Memory profile written to %s", a.memprofile)
	return nil
}

func (a *app) converter() *converter.Converter {
	return converter.New(converter.WithLogger(slog.Default()))
}

func (a *app) pipeline() *bgremoval.Pipeline {
	bg := a.cfg.BackgroundRemoval
	return bgremoval.NewPipeline(bgremoval.NewCommandLoader(bg.Command, bg.Args...))
}
