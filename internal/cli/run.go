package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/cliprelay/internal/pipeline"
)

func NewRunCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "run <language>",
		Short: "Record, transcribe and translate in one process",
		Long: "Run the recorder and both stages together, printing the running translation.\n" +
			"Press Ctrl+C to stop.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setLanguage(deps, args[0]); err != nil {
				return err
			}
			return runPipeline(cmd.Context(), deps, pipeline.All)
		},
	}
}

func setLanguage(deps *Dependencies, language string) error {
	deps.Config.Translate.Language = language
	return deps.Config.Validate()
}

// runPipeline runs the selected stages until ctx is done or the process is
// interrupted.
func runPipeline(ctx context.Context, deps *Dependencies, stages pipeline.Stages) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := pipeline.New(deps.Config, stages, deps.Pipeline)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	cfg := deps.Config
	if stages.Record {
		fmt.Fprintf(deps.Out, "Recording to: %s\n", cfg.Audio.Dir)
	}
	if stages.Transcribe {
		fmt.Fprintf(deps.Out, "Transcribing: %s -> %s\n", cfg.Audio.Dir, cfg.Transcribe.OutDir)
	}
	if stages.Translate {
		fmt.Fprintf(deps.Out, "Translating to %s: %s -> %s\n", cfg.Translate.Language, cfg.Transcribe.OutDir, cfg.Translate.OutDir)
	}
	if cfg.Server.HTTPAddr != "" {
		fmt.Fprintf(deps.Out, "Status server: %s\n", cfg.Server.HTTPAddr)
	}

	// Transcripts are only echoed when no translation will overwrite them.
	console := NewConsole(deps.Out, stages.Transcribe && !stages.Translate, stages.Translate)
	events, unsubscribe := m.Feed().Subscribe()
	defer unsubscribe()
	consoleCtx, cancelConsole := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		console.Run(consoleCtx, events)
	}()

	err = m.Run(ctx)
	cancelConsole()
	<-done
	return err
}
