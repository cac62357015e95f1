package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/clipforge/internal/pipeline"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		outDir  string
		clipsN  int
		burn    bool
		maxSec  int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Download one video, pick its highlights and render them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clipsN < 0 {
				return fmt.Errorf("config: clips must be >= 0")
			}
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("burn-subtitles") {
				cfg.Render.BurnSubtitles = burn
			}
			if cmd.Flags().Changed("max") {
				cfg.Selection.MaxDuration = float64(maxSec)
			}

			app, err := pipeline.Build(cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			runDir, err := pipeline.Run(ctx, app.Service, pipeline.RunConfig{
				URL:      args[0],
				OutDir:   outDir,
				MaxClips: clipsN,
			}, log)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(runDir, "manifest.json"))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&outDir, "out", "out", "Output directory")
	f.IntVar(&clipsN, "clips", 0, "Number of clips to render (0 renders every selected clip)")
	f.BoolVar(&burn, "burn-subtitles", false, "Burn karaoke subtitles into rendered clips")
	f.DurationVar(&timeout, "timeout", 3*time.Hour, "Overall deadline for the run")

	f.IntVar(&maxSec, "max", 60, "Max clip duration seconds")
	_ = f.MarkHidden("max")
	return cmd
}
