package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"storyreel/internal/config"
	"storyreel/internal/deps"
	"storyreel/internal/job"
	"storyreel/internal/model"
	"storyreel/internal/orchestrator"
	"storyreel/internal/script"
	"storyreel/internal/services"
)

type generateOptions struct {
	title      string
	format     string
	settings   model.Settings
	jsonOutput bool
	skipChecks bool
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate <script>",
		Short: "Generate a video from a script file",
		Long: `Parse the script, generate voice, visual, and UI artifacts for every scene,
and assemble them into a single video. Press Ctrl+C to cancel; partial work
is discarded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			if !opts.skipChecks {
				if err := deps.Missing(deps.CheckBinaries(deps.Requirements(cfg))); err != nil {
					return fmt.Errorf("missing dependencies (run `storyreel deps`):\n%w", err)
				}
			}
			parser, err := parserFor(cfg, opts.format, args[0])
			if err != nil {
				return err
			}

			progress := newProgressPrinter(cmd.ErrOrStderr())
			orch, err := ctx.newOrchestrator(orchestrator.Dependencies{Parser: parser}, orchestrator.WithObserver(progress.observe))
			if err != nil {
				return err
			}

			j, runErr := orch.Run(cmd.Context(), opts.title, string(raw), opts.settings)
			if j == nil {
				return runErr
			}
			if opts.jsonOutput {
				if err := writeJSON(cmd, j.Status()); err != nil {
					return err
				}
				return runErr
			}
			printJobSummary(cmd.OutOrStdout(), j.Status())
			if errors.Is(runErr, services.ErrCancelled) {
				return context.Canceled
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "Video title (defaults to the script title)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Script format: auto, text, or yaml (defaults to file extension)")
	cmd.Flags().StringVar(&opts.settings.Voice, "voice", "", "Voice identifier passed to the voice backend")
	cmd.Flags().IntVar(&opts.settings.Width, "width", 0, "Output width in pixels")
	cmd.Flags().IntVar(&opts.settings.Height, "height", 0, "Output height in pixels")
	cmd.Flags().IntVar(&opts.settings.FPS, "fps", 0, "Output frame rate")
	cmd.Flags().StringVar(&opts.settings.Background, "background", "", "Background colour for visual cards and fillers")
	cmd.Flags().StringVar(&opts.settings.TextColor, "text-color", "", "Text colour for cards and captions")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the final job status as JSON")
	cmd.Flags().BoolVar(&opts.skipChecks, "skip-checks", false, "Skip the external binary check")
	return cmd
}

// parserFor picks the grammar from the flag, then the file extension, then
// the configured default.
func parserFor(cfg *config.Config, flag, path string) (script.Parser, error) {
	format := script.Format(strings.TrimSpace(flag))
	if format == "" {
		format = script.FormatForPath(path)
	}
	if format == script.FormatAuto {
		format = script.Format(cfg.Script.Format)
	}
	return script.New(format, script.Options{LastSceneDuration: cfg.LastSceneDuration()})
}

// progressPrinter reports each stage transition once.
type progressPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	last job.Stage
	pct  int
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out, pct: -1}
}

func (p *progressPrinter) observe(j *job.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if j.Stage == p.last && j.Progress == p.pct {
		return
	}
	p.last, p.pct = j.Stage, j.Progress
	fmt.Fprintf(p.out, "[%3d%%] %s\n", j.Progress, stageLabel(j.Stage))
}
