package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/cliprelay/internal/config"
	"github.com/GriffinCanCode/cliprelay/internal/pipeline"
	"github.com/GriffinCanCode/cliprelay/internal/version"
)

// Dependencies is shared by every command. Config is loaded before a
// command runs, after flags are parsed.
type Dependencies struct {
	Out io.Writer
	Err io.Writer
	// Pipeline overrides the audio device and remote clients.
	Pipeline pipeline.Deps

	Config *config.Config

	configPath string
	httpAddr   string
	logCloser  io.Closer
}

// NewDependencies writes to the process's stdout and stderr.
func NewDependencies() *Dependencies {
	return &Dependencies{Out: os.Stdout, Err: os.Stderr}
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cliprelay",
		Short: "Record, transcribe and translate speech in near real time",
		Long: "cliprelay records the microphone as back-to-back clips, transcribes each clip\n" +
			"and keeps a rolling translation of everything said so far.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(deps.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http") {
				cfg.Server.HTTPAddr = deps.httpAddr
			}
			deps.Config = cfg

			closer, err := setupLogging(cfg.Log, deps.Err)
			if err != nil {
				return err
			}
			deps.logCloser = closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if deps.logCloser != nil {
				return deps.logCloser.Close()
			}
			return nil
		},
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")
	rootCmd.SetOut(deps.Out)
	rootCmd.SetErr(deps.Err)

	rootCmd.PersistentFlags().StringVar(&deps.configPath, "config", "",
		"config file (default $XDG_CONFIG_HOME/cliprelay/config.toml)")
	rootCmd.PersistentFlags().StringVar(&deps.httpAddr, "http", "",
		"status server address, e.g. :8000 (empty disables)")

	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewTranscribeCmd(deps))
	rootCmd.AddCommand(NewTranslateCmd(deps))
	rootCmd.AddCommand(NewRunCmd(deps))

	return rootCmd
}
